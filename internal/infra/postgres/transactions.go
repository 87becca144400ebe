package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bmbank/bmbank-api/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Transaction lifecycle — the two atomic mutations
// ============================================================

// CreateTransaction inserts a pending transaction request. The withdrawal
// gate (amount must not exceed the current balance) and the insert happen
// inside one transaction with the account row locked, so a request that
// fails the gate never creates a row. This is the explicit form of what
// the original deployment did in a BEFORE INSERT trigger.
func (s *Store) CreateTransaction(ctx context.Context, accountID int64, kind string, amount float64) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.CreateTransaction")
	defer span.End()

	var created *domain.Transaction
	err := s.write(func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		var (
			owner   string
			balance float64
			status  string
		)
		err = tx.QueryRowContext(ctx,
			`SELECT username, balance, status FROM accounts WHERE id = $1 FOR UPDATE`,
			accountID,
		).Scan(&owner, &balance, &status)
		if err == sql.ErrNoRows {
			return &domain.ErrNotFound{Resource: "account", ID: fmt.Sprint(accountID)}
		}
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		if status == domain.AccountLocked {
			return &domain.ErrValidation{Field: "account_id", Message: "account is locked"}
		}
		if kind == domain.KindWithdraw && amount > balance {
			return &domain.ErrInsufficientFunds{AccountID: accountID, Balance: balance, Requested: amount}
		}

		t := &domain.Transaction{
			AccountID: accountID,
			Username:  owner,
			Amount:    amount,
			Kind:      kind,
			Status:    domain.StatusPending,
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO transactions (account_id, username, amount, kind, status)
			 VALUES ($1, $2, $3, $4, 'pending')
			 RETURNING id, req_date`,
			accountID, owner, amount, kind,
		).Scan(&t.ID, &t.ReqDate)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction created",
		zap.Int64("transaction_id", created.ID),
		zap.Int64("account_id", accountID),
		zap.String("kind", kind),
		zap.Float64("amount", amount),
	)
	return created, nil
}

// ApproveTransaction performs the pending→accepted transition and the
// balance mutation as one unit. The conditional UPDATE on status is the
// compare-and-swap: under concurrent approvals exactly one caller sees
// an affected row; the other blocks on the row lock, re-evaluates the
// predicate after commit, matches nothing and fails with AlreadyProcessed.
// A withdrawal whose balance has shrunk since creation rolls the whole
// unit back, leaving the transaction pending.
func (s *Store) ApproveTransaction(ctx context.Context, transactionID int64) (*domain.ApprovalResult, error) {
	ctx, span := tracer.Start(ctx, "Store.ApproveTransaction")
	defer span.End()

	var result *domain.ApprovalResult
	err := s.write(func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		var (
			accountID int64
			amount    float64
			kind      string
		)
		err = tx.QueryRowContext(ctx,
			`UPDATE transactions SET status = 'accepted'
			 WHERE id = $1 AND status = 'pending'
			 RETURNING account_id, amount, kind`,
			transactionID,
		).Scan(&accountID, &amount, &kind)
		if err == sql.ErrNoRows {
			return s.classifyNonPending(ctx, transactionID)
		}
		if err != nil {
			return fmt.Errorf("claim transaction: %w", err)
		}

		var oldBalance float64
		err = tx.QueryRowContext(ctx,
			`SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`,
			accountID,
		).Scan(&oldBalance)
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		delta := amount
		if kind == domain.KindWithdraw {
			delta = -amount
		}
		newBalance := oldBalance + delta
		if newBalance < 0 {
			// Rolling back leaves the transaction pending, never half-applied.
			return &domain.ErrInsufficientFunds{AccountID: accountID, Balance: oldBalance, Requested: amount}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET balance = $1 WHERE id = $2`,
			newBalance, accountID,
		); err != nil {
			return fmt.Errorf("apply balance: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		result = &domain.ApprovalResult{
			TransactionID: transactionID,
			AccountID:     accountID,
			Kind:          kind,
			Amount:        amount,
			OldBalance:    oldBalance,
			NewBalance:    newBalance,
			Delta:         delta,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction approved",
		zap.Int64("transaction_id", transactionID),
		zap.Int64("account_id", result.AccountID),
		zap.Float64("old_balance", result.OldBalance),
		zap.Float64("new_balance", result.NewBalance),
	)
	return result, nil
}

// RejectTransaction performs the pending→cancel transition. No balance effect.
func (s *Store) RejectTransaction(ctx context.Context, transactionID int64) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.RejectTransaction")
	defer span.End()

	t := &domain.Transaction{ID: transactionID, Status: domain.StatusCancel}
	err := s.write(func() error {
		err := s.db.QueryRowContext(ctx,
			`UPDATE transactions SET status = 'cancel'
			 WHERE id = $1 AND status = 'pending'
			 RETURNING account_id, username, amount, kind, req_date`,
			transactionID,
		).Scan(&t.AccountID, &t.Username, &t.Amount, &t.Kind, &t.ReqDate)
		if err == sql.ErrNoRows {
			return s.classifyNonPending(ctx, transactionID)
		}
		if err != nil {
			return fmt.Errorf("cancel transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction rejected", zap.Int64("transaction_id", transactionID))
	return t, nil
}

// classifyNonPending distinguishes a missing transaction from one that has
// already reached a terminal state.
func (s *Store) classifyNonPending(ctx context.Context, transactionID int64) error {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM transactions WHERE id = $1`,
		transactionID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return &domain.ErrNotFound{Resource: "transaction", ID: fmt.Sprint(transactionID)}
	}
	if err != nil {
		return fmt.Errorf("lookup transaction status: %w", err)
	}
	return &domain.ErrAlreadyProcessed{TransactionID: transactionID, Status: status}
}

// ============================================================
// Transaction queries
// ============================================================

func (s *Store) ListTransactionsByOwner(ctx context.Context, username string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.ListTransactionsByOwner")
	defer span.End()

	var out []domain.Transaction
	err := s.read(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, account_id, username, amount, kind, status, req_date
			 FROM transactions
			 WHERE lower(username) = lower($1)
			 ORDER BY req_date DESC`,
			username,
		)
		if err != nil {
			return fmt.Errorf("query transactions: %w", err)
		}
		defer rows.Close()
		out, err = scanTransactions(rows, false)
		return err
	})
	return out, err
}

func (s *Store) ListAllTransactions(ctx context.Context) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.ListAllTransactions")
	defer span.End()

	var out []domain.Transaction
	err := s.read(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT t.id, t.account_id, t.username, t.amount, t.kind, t.status, t.req_date, c.fullname
			 FROM transactions t
			 JOIN customers c ON lower(t.username) = lower(c.username)
			 ORDER BY t.req_date DESC`,
		)
		if err != nil {
			return fmt.Errorf("query transactions: %w", err)
		}
		defer rows.Close()
		out, err = scanTransactions(rows, true)
		return err
	})
	return out, err
}

// ListPendingApprovals returns the director review queue, oldest first so
// the queue is worked in arrival order, joined with the current balance.
func (s *Store) ListPendingApprovals(ctx context.Context) ([]domain.PendingApproval, error) {
	ctx, span := tracer.Start(ctx, "Store.ListPendingApprovals")
	defer span.End()

	var out []domain.PendingApproval
	err := s.read(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT t.id, t.account_id, t.username, t.amount, t.kind, t.status, t.req_date,
			        c.fullname, a.balance
			 FROM transactions t
			 JOIN customers c ON lower(t.username) = lower(c.username)
			 JOIN accounts a ON t.account_id = a.id
			 WHERE t.status = 'pending'
			 ORDER BY t.req_date ASC`,
		)
		if err != nil {
			return fmt.Errorf("query pending approvals: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var p domain.PendingApproval
			if err := rows.Scan(&p.ID, &p.AccountID, &p.Username, &p.Amount, &p.Kind,
				&p.Status, &p.ReqDate, &p.Fullname, &p.CurrentBalance); err != nil {
				return fmt.Errorf("scan pending approval: %w", err)
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

func scanTransactions(rows *sql.Rows, withFullname bool) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var err error
		if withFullname {
			err = rows.Scan(&t.ID, &t.AccountID, &t.Username, &t.Amount, &t.Kind, &t.Status, &t.ReqDate, &t.Fullname)
		} else {
			err = rows.Scan(&t.ID, &t.AccountID, &t.Username, &t.Amount, &t.Kind, &t.Status, &t.ReqDate)
		}
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
