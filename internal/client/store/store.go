package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/pendingops"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/users"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Store struct {
	dsn     string
	log     logging.Logger
	now     func() time.Time
	migrate bool

	initMu sync.Mutex
	ready  bool
	db     *sql.DB
	ownDB  bool

	usersMu   sync.Mutex
	recordsMu sync.Mutex
	opsMu     sync.Mutex
	metaMu    sync.Mutex

	users    users.Repository
	records  records.Repository
	ops      pendingops.Repository
	metadata metadata.Repository
}

type Option func(*Store)

// WithClock overrides time.Now for sync and metadata timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDB uses an already opened database instead of opening dsn.
// The caller keeps ownership of db.
func WithDB(db *sql.DB) Option {
	return func(s *Store) { s.db = db }
}

// WithoutMigrations skips schema migrations during initialization.
func WithoutMigrations() Option {
	return func(s *Store) { s.migrate = false }
}

// New returns a Store for the SQLite database at dsn. Nothing is opened
// until the first operation.
func New(dsn string, log logging.Logger, opts ...Option) *Store {
	s := &Store{
		dsn:     dsn,
		log:     log.With("component", "store"),
		now:     time.Now,
		migrate: true,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// gooseUp is a seam for testing migration failures.
var gooseUp = func(ctx context.Context, db *sql.DB) error {
	p, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return err
	}
	_, err = p.Up(ctx)
	return err
}

// Init performs the one-time initialization. Every other method calls it.
func (s *Store) Init(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.ready {
		return nil
	}

	if err := s.open(ctx); err != nil {
		return common.NewStorageError("init", err)
	}

	s.users = users.NewSQLiteRepository(s.db)
	s.records = records.NewSQLiteRepository(s.db)
	s.ops = pendingops.NewSQLiteRepository(s.db)
	s.metadata = metadata.NewSQLiteRepository(s.db)
	s.ready = true

	s.log.Debug(ctx, "local store ready", "dsn", s.dsn)
	return nil
}

func (s *Store) open(ctx context.Context) (err error) {
	if s.db != nil {
		if s.migrate {
			return gooseUp(ctx, s.db)
		}
		return nil
	}

	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err != nil {
			_ = db.Close()
		}
	}()

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if s.migrate {
		if err := gooseUp(ctx, db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	s.db = db
	s.ownDB = true
	return nil
}

// Close releases the database if the store opened it.
func (s *Store) Close() error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.db == nil || !s.ownDB {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.ready = false
	return err
}

// guard runs fn after initialization while holding mu, wrapping any error.
func (s *Store) guard(ctx context.Context, mu *sync.Mutex, op string, fn func() error) error {
	if err := s.Init(ctx); err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if err := fn(); err != nil {
		var se *common.StorageError
		if errors.As(err, &se) {
			return err
		}
		return common.NewStorageError(op, err)
	}
	return nil
}
