package service

import (
	"context"
	"fmt"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/infra/observability"
	"github.com/bmbank/bmbank-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var txTracer = otel.Tracer("service/transactions")

// TransactionService drives the transaction lifecycle: creation of
// pending requests and the single transition each request takes into a
// terminal state. All balance effects happen inside the store; this
// layer owns validation, row scoping and the audit trail.
type TransactionService struct {
	store   port.Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewTransactionService creates a new transaction service.
func NewTransactionService(store port.Store, metrics *observability.Metrics, logger *zap.Logger) *TransactionService {
	return &TransactionService{store: store, metrics: metrics, logger: logger}
}

// ============================================================
// Create — POST /api/staff/transactions
// ============================================================

func (s *TransactionService) Create(ctx context.Context, sess *domain.Session, req *domain.CreateTransactionRequest) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Create")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("account_id", req.AccountID),
		attribute.String("kind", req.Kind),
	)

	if req.AccountID <= 0 {
		return nil, &domain.ErrValidation{Field: "account_id", Message: "account_id is required"}
	}
	if req.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "amount must be positive"}
	}
	if req.Kind != domain.KindDeposit && req.Kind != domain.KindWithdraw {
		return nil, &domain.ErrValidation{Field: "type", Message: "type must be DEPOSIT or WITHDRAW"}
	}

	t, err := s.store.CreateTransaction(ctx, req.AccountID, req.Kind, req.Amount)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransaction(t.Kind, "created")
	s.audit(ctx, sess.Username, "CREATE", "transactions",
		fmt.Sprintf("transaction %d: %s %.2f on account %d", t.ID, t.Kind, t.Amount, t.AccountID))
	return t, nil
}

// ============================================================
// Approve / Reject — PUT /api/director/transactions/{id}
// ============================================================

// Approve moves a pending transaction to accepted and applies its
// balance effect. Exactly one of several concurrent calls can succeed.
func (s *TransactionService) Approve(ctx context.Context, sess *domain.Session, transactionID int64) (*domain.ApprovalResult, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Approve")
	defer span.End()
	span.SetAttributes(attribute.Int64("transaction_id", transactionID))

	result, err := s.store.ApproveTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransaction(result.Kind, "accepted")
	s.audit(ctx, sess.Username, "UPDATE", "transactions",
		fmt.Sprintf("transaction %d accepted: account %d balance %.2f -> %.2f",
			result.TransactionID, result.AccountID, result.OldBalance, result.NewBalance))
	return result, nil
}

// Reject moves a pending transaction to cancel. The balance is untouched.
func (s *TransactionService) Reject(ctx context.Context, sess *domain.Session, transactionID int64) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Reject")
	defer span.End()
	span.SetAttributes(attribute.Int64("transaction_id", transactionID))

	t, err := s.store.RejectTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransaction(t.Kind, "cancel")
	s.audit(ctx, sess.Username, "UPDATE", "transactions",
		fmt.Sprintf("transaction %d cancelled", transactionID))
	return t, nil
}

// ============================================================
// Queries
// ============================================================

// List returns the transactions visible to the session: customers get
// their own rows, every staff role gets all of them.
func (s *TransactionService) List(ctx context.Context, sess *domain.Session) ([]domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.List")
	defer span.End()

	if sess.Role == domain.RoleCustomer {
		return s.store.ListTransactionsByOwner(ctx, sess.Username)
	}
	return s.store.ListAllTransactions(ctx)
}

// PendingApprovals returns the director review queue, oldest first.
func (s *TransactionService) PendingApprovals(ctx context.Context) ([]domain.PendingApproval, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.PendingApprovals")
	defer span.End()

	return s.store.ListPendingApprovals(ctx)
}

// audit records a trail event. Audit failures are logged, never surfaced:
// the business outcome already committed.
func (s *TransactionService) audit(ctx context.Context, actor, action, object, detail string) {
	e := &domain.AuditEvent{Actor: actor, Action: action, ObjectName: object, Detail: detail}
	if err := s.store.RecordEvent(ctx, e); err != nil {
		s.logger.Error("audit event dropped",
			zap.String("action", action),
			zap.String("object", object),
			zap.Error(err),
		)
	}
}
