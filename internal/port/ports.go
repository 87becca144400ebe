// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/bmbank/bmbank-api/internal/domain"
)

// Credential is a stored login secret. The storage layer is the
// credential collaborator: it verifies nothing itself, it only holds
// the bcrypt hash and the administrative lock flag.
type Credential struct {
	Username     string
	PasswordHash string
	Locked       bool
}

// CredentialStore holds login credentials.
type CredentialStore interface {
	GetCredential(ctx context.Context, username string) (*Credential, error)
	CreateCredential(ctx context.Context, username, passwordHash string) error
}

// CustomerStore holds customer profiles.
type CustomerStore interface {
	GetCustomer(ctx context.Context, username string) (*domain.Customer, error)
	ListCustomerSummaries(ctx context.Context) ([]domain.CustomerSummary, error)

	// RegisterCustomer creates the profile row and the login credential
	// as one unit: when either insert fails, neither row remains.
	RegisterCustomer(ctx context.Context, c *domain.Customer, passwordHash string) error

	UpdateCustomerProfile(ctx context.Context, username, fullname, phone string) error
}

// AccountStore holds accounts. Row-level visibility (customer sees only
// their own rows) is expressed by the ByOwner variants; callers pick the
// right one based on the session role.
type AccountStore interface {
	ListAccountsByOwner(ctx context.Context, username string) ([]domain.Account, error)
	ListAllAccounts(ctx context.Context, newestFirst bool) ([]domain.Account, error)
	GetAccountByOwner(ctx context.Context, username string, accountID int64) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	CreateAccount(ctx context.Context, username string, initialBalance float64) (*domain.Account, error)
	SetLockStatus(ctx context.Context, accountID int64, locked bool) error
}

// TransactionStore holds transaction requests and owns the two atomic
// mutations of the lifecycle: the insert-time withdrawal gate and the
// conditional pending→terminal transition with its balance effect.
type TransactionStore interface {
	// CreateTransaction inserts a pending transaction. For withdrawals it
	// checks the balance and the insert as one unit: on insufficient funds
	// no row is created and domain.ErrInsufficientFunds is returned.
	CreateTransaction(ctx context.Context, accountID int64, kind string, amount float64) (*domain.Transaction, error)

	// ApproveTransaction transitions pending→accepted and applies the
	// balance delta as one unit. Exactly one concurrent caller can win;
	// losers get domain.ErrAlreadyProcessed.
	ApproveTransaction(ctx context.Context, transactionID int64) (*domain.ApprovalResult, error)

	// RejectTransaction transitions pending→cancel with no balance effect
	// and returns the cancelled transaction.
	RejectTransaction(ctx context.Context, transactionID int64) (*domain.Transaction, error)

	ListTransactionsByOwner(ctx context.Context, username string) ([]domain.Transaction, error)
	ListAllTransactions(ctx context.Context) ([]domain.Transaction, error)
	ListPendingApprovals(ctx context.Context) ([]domain.PendingApproval, error)
}

// EmployeeStore holds employee records.
type EmployeeStore interface {
	GetEmployee(ctx context.Context, username string) (*domain.Employee, error)
	ListEmployees(ctx context.Context) ([]domain.Employee, error)
	CreateEmployee(ctx context.Context, username string, position domain.Role, salary float64) error
	UpdateEmployee(ctx context.Context, username string, salary float64, position domain.Role) error
}

// StatsStore answers the read-only dashboard aggregates.
type StatsStore interface {
	CountCustomers(ctx context.Context) (int, error)
	CountAccounts(ctx context.Context) (int, error)
	CountPendingTransactions(ctx context.Context) (int, error)
	CountEmployees(ctx context.Context) (int, error)
	SumBalances(ctx context.Context) (float64, error)
	CountTransactionsSince(ctx context.Context, dayStart time.Time) (int, error)
}

// AuditStore records and lists audit trail events.
type AuditStore interface {
	RecordEvent(ctx context.Context, e *domain.AuditEvent) error
	ListEvents(ctx context.Context, objectName string, limit int) ([]domain.AuditEvent, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Store is the full persistence surface, implemented by the Postgres adapter.
type Store interface {
	CredentialStore
	CustomerStore
	AccountStore
	TransactionStore
	EmployeeStore
	StatsStore
	AuditStore
}
