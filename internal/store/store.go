package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrUnavailable wraps any failure to reach the underlying store.
var ErrUnavailable = errors.New("store unavailable")

const connectTimeout = 10 * time.Second

// OpenFunc establishes a database handle. Injected so tests can swap
// postgres for an in-memory database.
type OpenFunc func(ctx context.Context, dsn string) (*gorm.DB, error)

// Store is the process-wide lazily-connected database handle.
//
// Lifecycle: uninitialized -> connecting -> ready. Concurrent callers
// during "connecting" share a single attempt. A failed attempt resets
// the state to uninitialized so the next call dials fresh, and
// Invalidate drops a ready handle that turned out to be poisoned.
type Store struct {
	dsn  string
	open OpenFunc

	mu       sync.Mutex
	conn     *gorm.DB
	inflight *attempt
}

type attempt struct {
	done chan struct{}
	conn *gorm.DB
	err  error
}

func New(dsn string, open OpenFunc) *Store {
	if open == nil {
		open = Open
	}
	return &Store{dsn: dsn, open: open}
}

// DB returns the ready handle, dialing it on first use. The wait is
// bounded by the connect timeout and by ctx.
func (s *Store) DB(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	if s.conn != nil {
		conn := s.conn
		s.mu.Unlock()
		return conn, nil
	}
	a := s.inflight
	if a == nil {
		a = &attempt{done: make(chan struct{})}
		s.inflight = a
		go s.connect(a)
	}
	s.mu.Unlock()

	select {
	case <-a.done:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
	if a.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, a.err)
	}
	return a.conn, nil
}

func (s *Store) connect(a *attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	conn, err := s.open(ctx, s.dsn)

	s.mu.Lock()
	if err == nil {
		s.conn = conn
	}
	s.inflight = nil
	s.mu.Unlock()

	a.conn, a.err = conn, err
	close(a.done)
}

// Invalidate drops the cached handle so the next DB call reconnects.
// Called when an operation fails in a way that suggests the connection
// itself is broken.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
}

// Close shuts down the underlying pool if one was established.
func (s *Store) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

// Open dials postgres, tunes the pool and verifies the connection with
// a bounded ping.
func Open(ctx context.Context, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB handle: %w", err)
	}
	configurePool(sqlDB)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return db, nil
}
