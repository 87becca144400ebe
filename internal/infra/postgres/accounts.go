package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bmbank/bmbank-api/internal/domain"

	"go.uber.org/zap"
)

// accountNumber derives the display number from the row id.
func accountNumber(id int64) string {
	return fmt.Sprintf("ACC%012d", id)
}

func (s *Store) ListAccountsByOwner(ctx context.Context, username string) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.ListAccountsByOwner")
	defer span.End()

	var out []domain.Account
	err := s.read(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, username, balance, status, created_at
			 FROM accounts
			 WHERE lower(username) = lower($1)
			 ORDER BY id ASC`,
			username,
		)
		if err != nil {
			return fmt.Errorf("query accounts: %w", err)
		}
		defer rows.Close()
		out, err = scanAccounts(rows, false)
		return err
	})
	return out, err
}

func (s *Store) ListAllAccounts(ctx context.Context, newestFirst bool) ([]domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.ListAllAccounts")
	defer span.End()

	order := "a.id ASC"
	if newestFirst {
		order = "a.created_at DESC"
	}

	var out []domain.Account
	err := s.read(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT a.id, a.username, a.balance, a.status, a.created_at, c.fullname
			 FROM accounts a
			 JOIN customers c ON lower(a.username) = lower(c.username)
			 ORDER BY `+order,
		)
		if err != nil {
			return fmt.Errorf("query accounts: %w", err)
		}
		defer rows.Close()
		out, err = scanAccounts(rows, true)
		return err
	})
	return out, err
}

// GetAccountByOwner fetches an account only if it belongs to username.
// An ownership mismatch is indistinguishable from a missing account.
func (s *Store) GetAccountByOwner(ctx context.Context, username string, accountID int64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.GetAccountByOwner")
	defer span.End()

	var a domain.Account
	err := s.read(ctx, func() error {
		return s.scanAccountRow(s.db.QueryRowContext(ctx,
			`SELECT id, username, balance, status, created_at
			 FROM accounts
			 WHERE id = $1 AND lower(username) = lower($2)`,
			accountID, username,
		), &a, accountID)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.GetAccount")
	defer span.End()

	var a domain.Account
	err := s.read(ctx, func() error {
		return s.scanAccountRow(s.db.QueryRowContext(ctx,
			`SELECT id, username, balance, status, created_at
			 FROM accounts
			 WHERE id = $1`,
			accountID,
		), &a, accountID)
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAccount opens an active account for an existing customer.
func (s *Store) CreateAccount(ctx context.Context, username string, initialBalance float64) (*domain.Account, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateAccount")
	defer span.End()

	var a domain.Account
	err := s.write(func() error {
		var owner string
		err := s.db.QueryRowContext(ctx,
			`SELECT username FROM customers WHERE lower(username) = lower($1)`,
			username,
		).Scan(&owner)
		if err == sql.ErrNoRows {
			return &domain.ErrNotFound{Resource: "customer", ID: username}
		}
		if err != nil {
			return fmt.Errorf("lookup customer: %w", err)
		}

		err = s.db.QueryRowContext(ctx,
			`INSERT INTO accounts (username, balance, status)
			 VALUES ($1, $2, 'active')
			 RETURNING id, username, balance, status, created_at`,
			owner, initialBalance,
		).Scan(&a.ID, &a.Username, &a.Balance, &a.Status, &a.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		a.AccountNumber = accountNumber(a.ID)
		a.AccountType = "CHECKING"
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created",
		zap.Int64("account_id", a.ID),
		zap.String("username", a.Username),
		zap.Float64("initial_balance", a.Balance),
	)
	return &a, nil
}

func (s *Store) SetLockStatus(ctx context.Context, accountID int64, locked bool) error {
	ctx, span := tracer.Start(ctx, "Store.SetLockStatus")
	defer span.End()

	status := domain.AccountActive
	if locked {
		status = domain.AccountLocked
	}

	err := s.write(func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE accounts SET status = $1 WHERE id = $2`,
			status, accountID,
		)
		if err != nil {
			return fmt.Errorf("update account status: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return &domain.ErrNotFound{Resource: "account", ID: fmt.Sprint(accountID)}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("account status changed",
		zap.Int64("account_id", accountID),
		zap.String("status", status),
	)
	return nil
}

func (s *Store) scanAccountRow(row *sql.Row, a *domain.Account, accountID int64) error {
	err := row.Scan(&a.ID, &a.Username, &a.Balance, &a.Status, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return &domain.ErrNotFound{Resource: "account", ID: fmt.Sprint(accountID)}
	}
	if err != nil {
		return fmt.Errorf("scan account: %w", err)
	}
	a.AccountNumber = accountNumber(a.ID)
	a.AccountType = "CHECKING"
	return nil
}

func scanAccounts(rows *sql.Rows, withFullname bool) ([]domain.Account, error) {
	var out []domain.Account
	for rows.Next() {
		var a domain.Account
		var err error
		if withFullname {
			err = rows.Scan(&a.ID, &a.Username, &a.Balance, &a.Status, &a.CreatedAt, &a.Fullname)
		} else {
			err = rows.Scan(&a.ID, &a.Username, &a.Balance, &a.Status, &a.CreatedAt)
		}
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.AccountNumber = accountNumber(a.ID)
		a.AccountType = "CHECKING"
		out = append(out, a)
	}
	return out, rows.Err()
}
