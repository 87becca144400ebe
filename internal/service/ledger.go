package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var ledgerTracer = otel.Tracer("service/ledger")

// LedgerService answers account queries with row-level scoping and
// handles account administration.
type LedgerService struct {
	store  port.Store
	logger *zap.Logger
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(store port.Store, logger *zap.Logger) *LedgerService {
	return &LedgerService{store: store, logger: logger}
}

// List returns the accounts visible to the session. Customers see their
// own accounts oldest first; the director view is newest first.
func (s *LedgerService) List(ctx context.Context, sess *domain.Session) ([]domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.List")
	defer span.End()

	if sess.Role == domain.RoleCustomer {
		return s.store.ListAccountsByOwner(ctx, sess.Username)
	}
	return s.store.ListAllAccounts(ctx, sess.Role == domain.RoleDirector)
}

// Get returns one account. For customers an account owned by someone
// else does not exist.
func (s *LedgerService) Get(ctx context.Context, sess *domain.Session, accountID int64) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Get")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", accountID))

	if sess.Role == domain.RoleCustomer {
		return s.store.GetAccountByOwner(ctx, sess.Username, accountID)
	}
	return s.store.GetAccount(ctx, accountID)
}

// ListByCustomer returns a named customer's accounts, for the staff
// customer detail view.
func (s *LedgerService) ListByCustomer(ctx context.Context, username string) ([]domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.ListByCustomer")
	defer span.End()

	if _, err := s.store.GetCustomer(ctx, username); err != nil {
		return nil, err
	}
	return s.store.ListAccountsByOwner(ctx, username)
}

// Create opens an account for an existing customer.
func (s *LedgerService) Create(ctx context.Context, sess *domain.Session, req *domain.CreateAccountRequest) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.Create")
	defer span.End()

	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, &domain.ErrValidation{Field: "username", Message: "username is required"}
	}
	if req.InitialBalance < 0 {
		return nil, &domain.ErrValidation{Field: "initial_balance", Message: "initial balance cannot be negative"}
	}

	a, err := s.store.CreateAccount(ctx, username, req.InitialBalance)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, sess.Username, "CREATE", "accounts",
		fmt.Sprintf("account %d opened for %s with balance %.2f", a.ID, a.Username, a.Balance))
	return a, nil
}

// SetLock locks or unlocks an account. A locked account rejects new
// transaction requests; already-pending ones still resolve.
func (s *LedgerService) SetLock(ctx context.Context, sess *domain.Session, accountID int64, locked bool) (*domain.Account, error) {
	ctx, span := ledgerTracer.Start(ctx, "LedgerService.SetLock")
	defer span.End()
	span.SetAttributes(attribute.Int64("account_id", accountID), attribute.Bool("locked", locked))

	if err := s.store.SetLockStatus(ctx, accountID, locked); err != nil {
		return nil, err
	}

	verb := "unlocked"
	if locked {
		verb = "locked"
	}
	s.audit(ctx, sess.Username, "UPDATE", "accounts",
		fmt.Sprintf("account %d %s", accountID, verb))

	return s.store.GetAccount(ctx, accountID)
}

func (s *LedgerService) audit(ctx context.Context, actor, action, object, detail string) {
	e := &domain.AuditEvent{Actor: actor, Action: action, ObjectName: object, Detail: detail}
	if err := s.store.RecordEvent(ctx, e); err != nil {
		s.logger.Error("audit event dropped",
			zap.String("action", action),
			zap.String("object", object),
			zap.Error(err),
		)
	}
}
