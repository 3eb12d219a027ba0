package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/okiro/relais/internal/domain/review"
	"github.com/okiro/relais/internal/log"
)

const (
	// readTimeout bounds read-only queries.
	readTimeout = 2 * time.Second
	// writeTimeout bounds mutating transactions.
	writeTimeout = 5 * time.Second
)

// Publisher receives domain events produced by store writes.
// Events are delivered after the transaction that produced them commits,
// in commit order.
type Publisher interface {
	Publish(evt review.Event)
}

// querier is the subset of database operations shared by *sql.DB and *sql.Tx,
// so read helpers work both inside and outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store owns every task and reviewer state transition.
//
// SQLite serializes writers at the file level already; the store adds its own
// mutex so that each mutating transaction and the publication of the events it
// produced form one critical section. Subscribers therefore observe events in
// commit order.
type Store struct {
	conn *sql.DB
	mu   sync.Mutex
	pub  Publisher
	now  func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithNow overrides the store's time source. Tests use this to pin
// bookkeeping timestamps.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store over an open connection. pub may be nil, in which
// case events are dropped.
func NewStore(conn *sql.DB, pub Publisher, opts ...StoreOption) *Store {
	s := &Store{
		conn: conn,
		pub:  pub,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withWrite runs fn inside a serialized write transaction. Events returned by
// fn are published after commit, before the write lock is released. If fn
// returns an error the transaction is rolled back and nothing is published.
func (s *Store) withWrite(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) ([]review.Event, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	events, err := fn(ctx, tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.ErrorErr(log.CatStore, "Rollback failed", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if s.pub != nil {
		for _, evt := range events {
			s.pub.Publish(evt)
		}
	}
	return nil
}

// readCtx derives a bounded context for read-only queries.
func (s *Store) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, readTimeout)
}
