package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/port"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// isUniqueViolation reports a duplicate-key insert.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ============================================================
// Customers
// ============================================================

func (s *Store) GetCustomer(ctx context.Context, username string) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Store.GetCustomer")
	defer span.End()

	var c domain.Customer
	err := s.read(ctx, func() error {
		err := s.db.QueryRowContext(ctx,
			`SELECT username, fullname, national_id, phone, created_at
			 FROM customers
			 WHERE lower(username) = lower($1)`,
			username,
		).Scan(&c.Username, &c.Fullname, &c.NationalID, &c.Phone, &c.CreatedAt)
		if err == sql.ErrNoRows {
			return &domain.ErrNotFound{Resource: "customer", ID: username}
		}
		if err != nil {
			return fmt.Errorf("scan customer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCustomerSummaries returns the customer directory with per-customer
// account counts, as rendered by the staff and director listings.
func (s *Store) ListCustomerSummaries(ctx context.Context) ([]domain.CustomerSummary, error) {
	ctx, span := tracer.Start(ctx, "Store.ListCustomerSummaries")
	defer span.End()

	var out []domain.CustomerSummary
	err := s.read(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT c.username, c.fullname, c.national_id, c.phone,
			        COUNT(a.id),
			        COUNT(a.id) FILTER (WHERE a.status = 'active')
			 FROM customers c
			 LEFT JOIN accounts a ON lower(a.username) = lower(c.username)
			 GROUP BY c.username, c.fullname, c.national_id, c.phone
			 ORDER BY c.username ASC`,
		)
		if err != nil {
			return fmt.Errorf("query customers: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var c domain.CustomerSummary
			if err := rows.Scan(&c.Username, &c.Fullname, &c.NationalID, &c.Phone,
				&c.AccountCount, &c.ActiveAccountCount); err != nil {
				return fmt.Errorf("scan customer summary: %w", err)
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

// RegisterCustomer inserts the profile row and the login credential in
// one transaction. A failure on either insert rolls back both, so no
// orphaned profile without a credential can remain.
func (s *Store) RegisterCustomer(ctx context.Context, c *domain.Customer, passwordHash string) error {
	ctx, span := tracer.Start(ctx, "Store.RegisterCustomer")
	defer span.End()

	err := s.write(func() error {
		tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		err = tx.QueryRowContext(ctx,
			`INSERT INTO customers (username, fullname, national_id, phone)
			 VALUES ($1, $2, $3, $4)
			 RETURNING created_at`,
			c.Username, c.Fullname, c.NationalID, c.Phone,
		).Scan(&c.CreatedAt)
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: fmt.Sprintf("customer %q already exists", c.Username)}
		}
		if err != nil {
			return fmt.Errorf("insert customer: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (username, password_hash)
			 VALUES ($1, $2)`,
			c.Username, passwordHash,
		); err != nil {
			if isUniqueViolation(err) {
				return &domain.ErrConflict{Message: fmt.Sprintf("credential for %q already exists", c.Username)}
			}
			return fmt.Errorf("insert credential: %w", err)
		}

		return tx.Commit()
	})
	if err != nil {
		return err
	}

	s.logger.Info("customer registered", zap.String("username", c.Username))
	return nil
}

func (s *Store) UpdateCustomerProfile(ctx context.Context, username, fullname, phone string) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateCustomerProfile")
	defer span.End()

	return s.write(func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE customers SET fullname = $1, phone = $2
			 WHERE lower(username) = lower($3)`,
			fullname, phone, username,
		)
		if err != nil {
			return fmt.Errorf("update customer: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return &domain.ErrNotFound{Resource: "customer", ID: username}
		}
		return nil
	})
}

// ============================================================
// Employees
// ============================================================

func (s *Store) GetEmployee(ctx context.Context, username string) (*domain.Employee, error) {
	ctx, span := tracer.Start(ctx, "Store.GetEmployee")
	defer span.End()

	var e domain.Employee
	err := s.read(ctx, func() error {
		err := s.db.QueryRowContext(ctx,
			`SELECT username, position, salary, created_at
			 FROM employees
			 WHERE lower(username) = lower($1)`,
			username,
		).Scan(&e.Username, &e.Position, &e.Salary, &e.CreatedAt)
		if err == sql.ErrNoRows {
			return &domain.ErrNotFound{Resource: "employee", ID: username}
		}
		if err != nil {
			return fmt.Errorf("scan employee: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context) ([]domain.Employee, error) {
	ctx, span := tracer.Start(ctx, "Store.ListEmployees")
	defer span.End()

	var out []domain.Employee
	err := s.read(ctx, func() error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT username, position, salary, created_at
			 FROM employees
			 ORDER BY username ASC`,
		)
		if err != nil {
			return fmt.Errorf("query employees: %w", err)
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var e domain.Employee
			if err := rows.Scan(&e.Username, &e.Position, &e.Salary, &e.CreatedAt); err != nil {
				return fmt.Errorf("scan employee: %w", err)
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) CreateEmployee(ctx context.Context, username string, position domain.Role, salary float64) error {
	ctx, span := tracer.Start(ctx, "Store.CreateEmployee")
	defer span.End()

	err := s.write(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO employees (username, position, salary)
			 VALUES ($1, $2, $3)`,
			username, string(position), salary,
		)
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: fmt.Sprintf("employee %q already exists", username)}
		}
		if err != nil {
			return fmt.Errorf("insert employee: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("employee created",
		zap.String("username", username),
		zap.String("position", string(position)),
	)
	return nil
}

func (s *Store) UpdateEmployee(ctx context.Context, username string, salary float64, position domain.Role) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateEmployee")
	defer span.End()

	err := s.write(func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE employees SET salary = $1, position = $2
			 WHERE lower(username) = lower($3)`,
			salary, string(position), username,
		)
		if err != nil {
			return fmt.Errorf("update employee: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return &domain.ErrNotFound{Resource: "employee", ID: username}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("employee updated",
		zap.String("username", username),
		zap.String("position", string(position)),
	)
	return nil
}

// ============================================================
// Credentials
// ============================================================

func (s *Store) GetCredential(ctx context.Context, username string) (*port.Credential, error) {
	ctx, span := tracer.Start(ctx, "Store.GetCredential")
	defer span.End()

	var c port.Credential
	err := s.read(ctx, func() error {
		err := s.db.QueryRowContext(ctx,
			`SELECT username, password_hash, locked
			 FROM credentials
			 WHERE lower(username) = lower($1)`,
			username,
		).Scan(&c.Username, &c.PasswordHash, &c.Locked)
		if err == sql.ErrNoRows {
			return &domain.ErrNotFound{Resource: "credential", ID: username}
		}
		if err != nil {
			return fmt.Errorf("scan credential: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCredential(ctx context.Context, username, passwordHash string) error {
	ctx, span := tracer.Start(ctx, "Store.CreateCredential")
	defer span.End()

	return s.write(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO credentials (username, password_hash)
			 VALUES ($1, $2)`,
			username, passwordHash,
		)
		if isUniqueViolation(err) {
			return &domain.ErrConflict{Message: fmt.Sprintf("credential for %q already exists", username)}
		}
		if err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}
		return nil
	})
}
