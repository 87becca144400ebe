// Package postgres implements the persistence ports on PostgreSQL.
// It replaces the original deployment's database-resident business logic
// (balance triggers, row-level policies) with explicit SQL the application
// owns: conditional updates guarded by affected-row counts and row locks
// taken inside a single transaction.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/infra/observability"
	"github.com/bmbank/bmbank-api/internal/infra/resilience"

	_ "github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

// Store implements port.Store on a PostgreSQL connection pool.
type Store struct {
	db      *sql.DB
	cb      *gobreaker.CircuitBreaker
	bh      *resilience.Bulkhead
	cfg     resilience.Config
	metrics *observability.Metrics
	logger  *zap.Logger
}

// Options configures the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Connect opens the pool, verifies connectivity and returns a Store.
func Connect(ctx context.Context, dsn string, opts Options, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("connected to postgres",
		zap.Int("max_open_conns", opts.MaxOpenConns),
		zap.Int("max_idle_conns", opts.MaxIdleConns),
		zap.Duration("conn_max_lifetime", opts.ConnMaxLifetime),
	)

	var bh *resilience.Bulkhead
	if cfg.MaxConcurrency > 0 {
		bh = resilience.NewBulkhead(cfg.MaxConcurrency)
	}

	return &Store{db: db, cb: cb, bh: bh, cfg: cfg, metrics: metrics, logger: logger}, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	s.logger.Info("closing postgres pool")
	return s.db.Close()
}

// Ping reports storage reachability, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// read runs a read-only query through the bulkhead and circuit breaker
// with retry + backoff. Domain errors are not retried. The bulkhead slot
// is held per attempt, not across backoff sleeps, so waiting retries do
// not starve healthy reads.
func (s *Store) read(ctx context.Context, fn func() error) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.cfg, func() error {
			if s.bh != nil {
				if err := s.bh.Acquire(ctx); err != nil {
					return err
				}
				defer s.bh.Release()
			}
			err := fn()
			if isDomainError(err) {
				// Terminal outcome, not a storage fault.
				return resilience.Permanent(err)
			}
			return err
		})
	})
	return s.unwrapOutcome("read", err)
}

// write runs a mutating statement through the circuit breaker only.
// Writes are never retried automatically: a timeout after the statement
// reached the server could otherwise double-apply.
func (s *Store) write(fn func() error) error {
	_, err := s.cb.Execute(func() (any, error) {
		err := fn()
		if isDomainError(err) {
			return nil, resilience.Permanent(err)
		}
		return nil, err
	})
	return s.unwrapOutcome("write", err)
}

// unwrapOutcome converts breaker/retry plumbing back into the caller-facing
// error: domain errors pass through, everything else becomes
// ErrStorageUnavailable.
func (s *Store) unwrapOutcome(operation string, err error) error {
	if err == nil {
		return nil
	}
	if inner, ok := resilience.AsPermanent(err); ok {
		return inner
	}
	s.metrics.IncrStorageError(operation)
	return &domain.ErrStorageUnavailable{Err: err}
}

// isDomainError reports whether err is a business outcome rather than a
// storage fault. Only storage faults should trip the breaker or retry.
func isDomainError(err error) bool {
	if err == nil {
		return false
	}
	switch err.(type) {
	case *domain.ErrNotFound,
		*domain.ErrValidation,
		*domain.ErrInsufficientFunds,
		*domain.ErrAlreadyProcessed,
		*domain.ErrConflict,
		*domain.ErrAccountLocked:
		return true
	}
	return false
}
