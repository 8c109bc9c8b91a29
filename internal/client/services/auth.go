package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// AuthOutcome tells the caller which path a PIN login took.
type AuthOutcome int

const (
	// RemoteAuthenticated: the backend knew the PIN and the user is active.
	RemoteAuthenticated AuthOutcome = iota + 1
	// RemoteUnavailable: the backend answered with a non-retryable error, so
	// the login could not be decided.
	RemoteUnavailable
	// LocalFallback: the backend was unreachable and the stored identity was
	// accepted.
	LocalFallback
	// NotFound: no identity matches the PIN.
	NotFound
	// Inactive: the identity exists but is deactivated.
	Inactive
)

func (o AuthOutcome) String() string {
	switch o {
	case RemoteAuthenticated:
		return "remote_authenticated"
	case RemoteUnavailable:
		return "remote_unavailable"
	case LocalFallback:
		return "local_fallback"
	case NotFound:
		return "not_found"
	case Inactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// AuthResult is the outcome of Login. Session is set only when
// Authenticated reports true.
type AuthResult struct {
	Outcome AuthOutcome
	Session *models.Session
	Err     error

	// LastLogin delivers the result of the background last-login update.
	// Nil when no update was scheduled.
	LastLogin <-chan error
}

// Authenticated reports whether the login produced a session.
func (r AuthResult) Authenticated() bool {
	return r.Outcome == RemoteAuthenticated || r.Outcome == LocalFallback
}

// LoginHook runs after every successful login.
type LoginHook func(ctx context.Context, s *models.Session)

// AuthService performs PIN login against the backend with a fallback to the
// identities cached in the local store.
type AuthService struct {
	remote client.Client
	store  UserStore
	net    Connectivity
	log    logging.Logger
	now    func() time.Time

	hook              LoginHook
	backgroundTimeout time.Duration

	wg sync.WaitGroup
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithAuthClock overrides time.Now for session start and last-login stamps.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) { s.now = now }
}

// WithLoginHook registers fn to run after each successful login, e.g. to
// start a sync pass.
func WithLoginHook(fn LoginHook) AuthOption {
	return func(s *AuthService) { s.hook = fn }
}

// WithBackgroundTimeout bounds the detached last-login update.
func WithBackgroundTimeout(d time.Duration) AuthOption {
	return func(s *AuthService) { s.backgroundTimeout = d }
}

// NewAuthService builds the PIN login service. remote answers online
// lookups, store caches identities for offline logins, and net picks the
// path. The detached last-login update is bounded by 30s unless
// WithBackgroundTimeout says otherwise.
func NewAuthService(remote client.Client, store UserStore, net Connectivity, log logging.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		remote:            remote,
		store:             store,
		net:               net,
		log:               log.With("component", "auth"),
		now:               time.Now,
		backgroundTimeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Login resolves pin to a user. When the backend is reachable it is the
// source of truth and the returned identity replaces the cached one. When
// it is not reachable, or fails with a transient error, the local store
// decides.
func (s *AuthService) Login(ctx context.Context, pin string) AuthResult {
	if pin == "" {
		return AuthResult{Outcome: NotFound, Err: &common.ValidationError{Field: "pin", Reason: "required"}}
	}

	if s.net.Online(ctx) {
		res, fallback := s.loginRemote(ctx, pin)
		if !fallback {
			return s.finish(ctx, res)
		}
	} else {
		s.log.Info(ctx, "backend unreachable, using local identities")
	}

	return s.finish(ctx, s.loginLocal(ctx, pin))
}

func (s *AuthService) loginRemote(ctx context.Context, pin string) (AuthResult, bool) {
	users, err := client.QueryAs[client.RemoteUser](ctx, s.remote, client.UserByPINQuery(pin))
	if err != nil {
		if client.IsTransient(err) {
			s.log.Warn(ctx, "remote user lookup failed, falling back to local store", "error", err)
			return AuthResult{}, true
		}
		s.log.Error(ctx, "remote user lookup rejected", "error", err)
		return AuthResult{Outcome: RemoteUnavailable, Err: fmt.Errorf("user lookup: %w", err)}, false
	}

	var found *models.User
	for _, ru := range users {
		if ru.PIN == pin {
			u := ru.ToUser()
			found = &u
			break
		}
	}
	if found == nil {
		return AuthResult{Outcome: NotFound, Err: common.ErrAuth}, false
	}

	// The inactive flag is cached too, so a later offline login is refused
	// the same way.
	if err := s.store.SaveUser(ctx, *found); err != nil {
		s.log.Warn(ctx, "failed to cache user", "user_id", found.ID, "error", err)
	}

	if !found.IsActive {
		return AuthResult{Outcome: Inactive, Err: common.ErrInactive}, false
	}

	return AuthResult{
		Outcome: RemoteAuthenticated,
		Session: models.NewSession(*found, models.SessionOnline, s.now()),
	}, false
}

func (s *AuthService) loginLocal(ctx context.Context, pin string) AuthResult {
	u, ok, err := s.store.GetUserByCredential(ctx, pin)
	if err != nil {
		return AuthResult{Outcome: NotFound, Err: err}
	}
	if !ok {
		return AuthResult{Outcome: NotFound, Err: common.ErrAuth}
	}
	if !u.IsActive {
		return AuthResult{Outcome: Inactive, Err: common.ErrInactive}
	}

	return AuthResult{
		Outcome: LocalFallback,
		Session: models.NewSession(*u, models.SessionOffline, s.now()),
	}
}

func (s *AuthService) finish(ctx context.Context, res AuthResult) AuthResult {
	if !res.Authenticated() {
		s.log.Info(ctx, "login refused", "outcome", res.Outcome.String(), "error", res.Err)
		return res
	}

	s.log.Info(ctx, "login succeeded",
		"outcome", res.Outcome.String(),
		"user_id", res.Session.User.ID,
	)

	online := res.Session.Mode == models.SessionOnline
	userID := res.Session.User.ID
	res.LastLogin = s.detach(func(ctx context.Context) error {
		return s.updateLastLogin(ctx, userID, online)
	})

	if s.hook != nil {
		s.hook(ctx, res.Session)
	}
	return res
}

// detach runs fn off the caller's path. Its error is logged and also
// delivered on the returned channel; nothing on the login path waits for
// it.
func (s *AuthService) detach(fn func(ctx context.Context) error) <-chan error {
	errc := make(chan error, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(errc)

		ctx, cancel := context.WithTimeout(context.Background(), s.backgroundTimeout)
		defer cancel()

		err := fn(ctx)
		if err != nil {
			s.log.Warn(ctx, "background task failed", "error", err)
		}
		errc <- err
	}()

	return errc
}

// updateLastLogin sends the last-login stamp, or queues it for the next
// sync pass when the backend cannot take it now.
func (s *AuthService) updateLastLogin(ctx context.Context, userID string, online bool) error {
	at := s.now()
	payload := client.NewLastLoginPayload(at)

	if online {
		err := s.remote.Update(ctx, client.ObjectUser, userID, payload)
		if err == nil {
			return nil
		}
		s.log.Debug(ctx, "last login update failed, queueing", "user_id", userID, "error", err)
	}

	op, err := models.NewPendingUpdate(client.ObjectUser, userID, payload, at)
	if err != nil {
		return fmt.Errorf("build last login operation: %w", err)
	}
	if err := s.store.EnqueueOperation(ctx, op); err != nil {
		return fmt.Errorf("queue last login update: %w", err)
	}
	return nil
}

// Wait blocks until all background tasks started by Login have finished.
func (s *AuthService) Wait() {
	s.wg.Wait()
}
