package postgres

import (
	"context"
	"fmt"
	"time"
)

// Dashboard aggregates. Each is an independent single-value query so the
// reporting service can fan them out and degrade per-counter.

func (s *Store) CountCustomers(ctx context.Context) (int, error) {
	return s.countQuery(ctx, "Store.CountCustomers",
		`SELECT COUNT(*) FROM customers`)
}

func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	return s.countQuery(ctx, "Store.CountAccounts",
		`SELECT COUNT(*) FROM accounts`)
}

func (s *Store) CountPendingTransactions(ctx context.Context) (int, error) {
	return s.countQuery(ctx, "Store.CountPendingTransactions",
		`SELECT COUNT(*) FROM transactions WHERE status = 'pending'`)
}

func (s *Store) CountEmployees(ctx context.Context) (int, error) {
	return s.countQuery(ctx, "Store.CountEmployees",
		`SELECT COUNT(*) FROM employees`)
}

func (s *Store) SumBalances(ctx context.Context) (float64, error) {
	ctx, span := tracer.Start(ctx, "Store.SumBalances")
	defer span.End()

	var sum float64
	err := s.read(ctx, func() error {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(balance), 0) FROM accounts`,
		).Scan(&sum); err != nil {
			return fmt.Errorf("sum balances: %w", err)
		}
		return nil
	})
	return sum, err
}

func (s *Store) CountTransactionsSince(ctx context.Context, dayStart time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Store.CountTransactionsSince")
	defer span.End()

	var n int
	err := s.read(ctx, func() error {
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE req_date >= $1`,
			dayStart,
		).Scan(&n); err != nil {
			return fmt.Errorf("count transactions since: %w", err)
		}
		return nil
	})
	return n, err
}

func (s *Store) countQuery(ctx context.Context, spanName, query string) (int, error) {
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	var n int
	err := s.read(ctx, func() error {
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return fmt.Errorf("count query: %w", err)
		}
		return nil
	})
	return n, err
}
