package session

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/dmitrijs2005/fieldsync/internal/metrics"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	DefaultLifetime     = 2 * time.Hour
	DefaultSafetyMargin = 5 * time.Minute
)

// Credentials identify the engine to the backend's token endpoint.
type Credentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// TokenCache persists the last issued token.
type TokenCache interface {
	// Load returns nil, nil when nothing is cached.
	Load() (*models.CachedToken, error)
	Save(tok models.CachedToken) error
	Clear() error
}

type Manager struct {
	mu sync.Mutex

	creds    Credentials
	lifetime time.Duration
	margin   time.Duration
	http     *http.Client
	cache    TokenCache
	log      logging.Logger
	now      func() time.Time

	token *models.CachedToken
}

type Option func(*Manager)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.http = c }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLifetime overrides the assumed token lifetime and the safety margin
// subtracted from it. Zero values keep the defaults.
func WithLifetime(lifetime, margin time.Duration) Option {
	return func(m *Manager) {
		if lifetime > 0 {
			m.lifetime = lifetime
		}
		if margin > 0 {
			m.margin = margin
		}
	}
}

// NewManager builds a Manager and adopts a still-valid cached token, if
// any, without contacting the backend.
func NewManager(creds Credentials, cache TokenCache, log logging.Logger, opts ...Option) *Manager {
	m := &Manager{
		creds:    creds,
		lifetime: DefaultLifetime,
		margin:   DefaultSafetyMargin,
		http:     &http.Client{Timeout: 30 * time.Second},
		cache:    cache,
		log:      log.With("component", "session"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}

	m.loadCached()
	return m
}

func (m *Manager) loadCached() {
	ctx := context.Background()
	if m.cache == nil {
		return
	}

	tok, err := m.cache.Load()
	if err != nil {
		m.log.Warn(ctx, "ignoring unreadable token cache", "error", err)
		return
	}
	if tok == nil {
		return
	}
	if tok.TokenURL != m.creds.TokenURL || tok.ClientID != m.creds.ClientID {
		m.log.Info(ctx, "ignoring token cached for other credentials", "token_url", tok.TokenURL)
		return
	}
	if !tok.Valid(m.now()) {
		m.log.Debug(ctx, "cached token expired", "expires_at", tok.ExpiresAt)
		return
	}

	m.token = tok
	m.log.Info(ctx, "adopted cached token", "instance", tok.InstanceEndpoint, "expires_at", tok.ExpiresAt)
}

// EnsureAuthenticated authenticates only if there is no valid token.
func (m *Manager) EnsureAuthenticated(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token.Valid(m.now()) {
		return nil
	}
	return m.authenticateLocked(ctx)
}

// Authenticate always performs a new token exchange.
func (m *Manager) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.authenticateLocked(ctx)
}

// Token returns a valid token, authenticating first if needed.
func (m *Manager) Token(ctx context.Context) (models.CachedToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.token.Valid(m.now()) {
		if err := m.authenticateLocked(ctx); err != nil {
			return models.CachedToken{}, err
		}
	}
	return *m.token, nil
}

// Current returns the held token without contacting the backend. ok is
// false when there is no valid token.
func (m *Manager) Current() (tok models.CachedToken, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.token.Valid(m.now()) {
		return models.CachedToken{}, false
	}
	return *m.token, true
}

// Invalidate drops the current token in memory and in the cache.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = nil
	if m.cache != nil {
		if err := m.cache.Clear(); err != nil {
			m.log.Warn(context.Background(), "failed to clear token cache", "error", err)
		}
	}
}

func (m *Manager) authenticateLocked(ctx context.Context) error {
	cfg := clientcredentials.Config{
		ClientID:     m.creds.ClientID,
		ClientSecret: m.creds.ClientSecret,
		TokenURL:     m.creds.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.http)
	tok, err := cfg.Token(ctx)
	if err != nil {
		metrics.AuthRefreshes.WithLabelValues(metrics.OutcomeFailed).Inc()
		return m.mapError(err)
	}

	instance, _ := tok.Extra("instance_url").(string)
	if instance == "" {
		metrics.AuthRefreshes.WithLabelValues(metrics.OutcomeFailed).Inc()
		return &common.AuthError{Op: "authenticate", Err: errors.New("token response missing instance_url")}
	}

	issuedAt := parseIssuedAt(tok.Extra("issued_at"), m.now())
	idURL, _ := tok.Extra("id").(string)
	signature, _ := tok.Extra("signature").(string)

	ct := models.CachedToken{
		Value:            tok.AccessToken,
		TokenType:        tok.Type(),
		IssuedAt:         issuedAt,
		ExpiresAt:        issuedAt.Add(m.lifetime - m.margin),
		InstanceEndpoint: instance,
		IDURL:            idURL,
		Signature:        signature,
		TokenURL:         m.creds.TokenURL,
		ClientID:         m.creds.ClientID,
	}

	if m.cache != nil {
		if err := m.cache.Save(ct); err != nil {
			m.log.Warn(ctx, "failed to persist token cache", "error", err)
		}
	}

	m.token = &ct
	metrics.AuthRefreshes.WithLabelValues(metrics.OutcomeSucceeded).Inc()
	m.log.Info(ctx, "authenticated", "instance", instance, "expires_at", ct.ExpiresAt)
	return nil
}

func (m *Manager) mapError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		rej := &common.RemoteRejection{Body: string(re.Body)}
		if re.Response != nil {
			rej.Status = re.Response.StatusCode
		}
		if re.ErrorCode != "" {
			rej.Errors = []common.RemoteErrorItem{{ErrorCode: re.ErrorCode, Message: re.ErrorDescription}}
		}
		return &common.AuthError{Op: "authenticate", Err: rej}
	}

	var ue *url.Error
	if errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded) {
		return &common.AuthError{Op: "authenticate", Err: &common.NetworkError{Op: "token", Err: err}}
	}

	return &common.AuthError{Op: "authenticate", Err: err}
}

// parseIssuedAt reads the backend's issued_at, a millisecond epoch sent as
// a string or number. Anything else falls back to now.
func parseIssuedAt(v any, now time.Time) time.Time {
	switch x := v.(type) {
	case string:
		ms, err := strconv.ParseInt(x, 10, 64)
		if err == nil && ms > 0 {
			return time.UnixMilli(ms).UTC()
		}
	case float64:
		if x > 0 {
			return time.UnixMilli(int64(x)).UTC()
		}
	}
	return now.UTC()
}
