package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/infra/observability"
	"github.com/bmbank/bmbank-api/internal/service"

	"go.uber.org/zap"
)

func newTxService(store *fakeStore) *service.TransactionService {
	return service.NewTransactionService(store, observability.NewMetrics(), zap.NewNop())
}

func staffSession() *domain.Session {
	return &domain.Session{Username: "malee", Fullname: "Malee S", Role: domain.RoleStaff}
}

func directorSession() *domain.Session {
	return &domain.Session{Username: "prasert", Fullname: "Prasert W", Role: domain.RoleDirector}
}

func seedAccount(store *fakeStore, balance float64) *domain.Account {
	store.addCustomer("somchai", "Somchai Jaidee")
	return store.addAccount("somchai", balance)
}

func TestCreate_RejectsBadInput(t *testing.T) {
	store := newFakeStore()
	acct := seedAccount(store, 1000)
	svc := newTxService(store)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.CreateTransactionRequest
	}{
		{"zero amount", domain.CreateTransactionRequest{AccountID: acct.ID, Amount: 0, Kind: domain.KindDeposit}},
		{"negative amount", domain.CreateTransactionRequest{AccountID: acct.ID, Amount: -50, Kind: domain.KindDeposit}},
		{"unknown kind", domain.CreateTransactionRequest{AccountID: acct.ID, Amount: 100, Kind: "TRANSFER"}},
		{"missing account", domain.CreateTransactionRequest{Amount: 100, Kind: domain.KindDeposit}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, staffSession(), &tc.req)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCreate_WithdrawalGate(t *testing.T) {
	store := newFakeStore()
	acct := seedAccount(store, 100000)
	svc := newTxService(store)
	ctx := context.Background()

	// Over the balance: rejected, and no row is left behind.
	_, err := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 150000, Kind: domain.KindWithdraw,
	})
	var insufficient *domain.ErrInsufficientFunds
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if txs, _ := store.ListAllTransactions(ctx); len(txs) != 0 {
		t.Fatalf("rejected request must not create a row, found %d", len(txs))
	}

	// Exactly the balance: allowed.
	tx, err := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 100000, Kind: domain.KindWithdraw,
	})
	if err != nil {
		t.Fatalf("withdrawal equal to balance must pass, got %v", err)
	}
	if tx.Status != domain.StatusPending {
		t.Errorf("expected pending, got %s", tx.Status)
	}
}

func TestCreate_LockedAccountRejected(t *testing.T) {
	store := newFakeStore()
	acct := seedAccount(store, 1000)
	ctx := context.Background()
	if err := store.SetLockStatus(ctx, acct.ID, true); err != nil {
		t.Fatalf("lock: %v", err)
	}

	_, err := newTxService(store).Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 100, Kind: domain.KindDeposit,
	})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation for locked account, got %v", err)
	}
}

func TestApprove_AppliesBalanceOnce(t *testing.T) {
	store := newFakeStore()
	acct := seedAccount(store, 500000)
	svc := newTxService(store)
	ctx := context.Background()

	tx, err := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 500000, Kind: domain.KindWithdraw,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := svc.Approve(ctx, directorSession(), tx.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if result.NewBalance != 0 {
		t.Errorf("expected balance 0 after full withdrawal, got %f", result.NewBalance)
	}
	if result.Delta != -500000 {
		t.Errorf("expected delta -500000, got %f", result.Delta)
	}

	// A second approval of the same transaction must fail and leave the
	// balance untouched.
	_, err = svc.Approve(ctx, directorSession(), tx.ID)
	var already *domain.ErrAlreadyProcessed
	if !errors.As(err, &already) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	a, _ := store.GetAccount(ctx, acct.ID)
	if a.Balance != 0 {
		t.Errorf("balance must not change twice, got %f", a.Balance)
	}
}

func TestApprove_DepositCreditsBalance(t *testing.T) {
	store := newFakeStore()
	acct := seedAccount(store, 1000)
	svc := newTxService(store)
	ctx := context.Background()

	tx, err := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 250, Kind: domain.KindDeposit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	result, err := svc.Approve(ctx, directorSession(), tx.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if result.OldBalance != 1000 || result.NewBalance != 1250 || result.Delta != 250 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestApprove_StaleWithdrawalStaysPending(t *testing.T) {
	store := newFakeStore()
	acct := seedAccount(store, 1000)
	svc := newTxService(store)
	ctx := context.Background()

	// Both withdrawals pass the creation gate against the same balance;
	// only one can actually be funded.
	first, err := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 800, Kind: domain.KindWithdraw,
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 800, Kind: domain.KindWithdraw,
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	if _, err := svc.Approve(ctx, directorSession(), first.ID); err != nil {
		t.Fatalf("approve first: %v", err)
	}

	_, err = svc.Approve(ctx, directorSession(), second.ID)
	var funds *domain.ErrInsufficientFunds
	if !errors.As(err, &funds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The failed approval must leave the transaction pending and the
	// balance untouched.
	a, _ := store.GetAccount(ctx, acct.ID)
	if a.Balance != 200 {
		t.Errorf("expected balance 200, got %f", a.Balance)
	}
	pending, err := svc.PendingApprovals(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Errorf("second withdrawal must stay in the pending queue, got %+v", pending)
	}
}

func TestApprove_ConcurrentCallersExactlyOneWins(t *testing.T) {
	store := newFakeStore()
	acct := seedAccount(store, 1000)
	svc := newTxService(store)
	ctx := context.Background()

	tx, err := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 1000, Kind: domain.KindWithdraw,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Approve(ctx, directorSession(), tx.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		var already *domain.ErrAlreadyProcessed
		if !errors.As(err, &already) {
			t.Errorf("loser must see ErrAlreadyProcessed, got %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
	a, _ := store.GetAccount(ctx, acct.ID)
	if a.Balance != 0 {
		t.Errorf("expected balance applied exactly once, got %f", a.Balance)
	}
}

func TestReject_NoBalanceEffectAndTerminal(t *testing.T) {
	store := newFakeStore()
	acct := seedAccount(store, 700)
	svc := newTxService(store)
	ctx := context.Background()

	tx, err := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 700, Kind: domain.KindWithdraw,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cancelled, err := svc.Reject(ctx, directorSession(), tx.ID)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if cancelled.Status != domain.StatusCancel {
		t.Errorf("expected cancel, got %s", cancelled.Status)
	}

	a, _ := store.GetAccount(ctx, acct.ID)
	if a.Balance != 700 {
		t.Errorf("reject must not touch the balance, got %f", a.Balance)
	}

	// Terminal states are immutable in both directions.
	if _, err := svc.Approve(ctx, directorSession(), tx.ID); err == nil {
		t.Error("approving a cancelled transaction must fail")
	}
	if _, err := svc.Reject(ctx, directorSession(), tx.ID); err == nil {
		t.Error("rejecting a cancelled transaction must fail")
	}
}

func TestApproveReject_UnknownTransaction(t *testing.T) {
	store := newFakeStore()
	svc := newTxService(store)
	ctx := context.Background()

	var notFound *domain.ErrNotFound
	if _, err := svc.Approve(ctx, directorSession(), 999); !errors.As(err, &notFound) {
		t.Errorf("approve: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Reject(ctx, directorSession(), 999); !errors.As(err, &notFound) {
		t.Errorf("reject: expected ErrNotFound, got %v", err)
	}
}

func TestList_ScopedByRole(t *testing.T) {
	store := newFakeStore()
	store.addCustomer("somchai", "Somchai Jaidee")
	store.addCustomer("nok", "Nok T")
	a1 := store.addAccount("somchai", 1000)
	a2 := store.addAccount("nok", 2000)
	svc := newTxService(store)
	ctx := context.Background()

	for _, acct := range []int64{a1.ID, a2.ID} {
		if _, err := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
			AccountID: acct, Amount: 100, Kind: domain.KindDeposit,
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	own, err := svc.List(ctx, &domain.Session{Username: "somchai", Role: domain.RoleCustomer})
	if err != nil {
		t.Fatalf("list own: %v", err)
	}
	if len(own) != 1 || own[0].Username != "somchai" {
		t.Errorf("customer must see only their rows, got %+v", own)
	}

	all, err := svc.List(ctx, directorSession())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("director must see all rows, got %d", len(all))
	}
}

func TestPendingApprovals_OldestFirstWithBalance(t *testing.T) {
	store := newFakeStore()
	acct := seedAccount(store, 5000)
	svc := newTxService(store)
	ctx := context.Background()

	first, _ := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 10, Kind: domain.KindDeposit,
	})
	second, _ := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 20, Kind: domain.KindDeposit,
	})

	pending, err := svc.PendingApprovals(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Errorf("expected arrival order, got %d then %d", pending[0].ID, pending[1].ID)
	}
	if pending[0].CurrentBalance != 5000 {
		t.Errorf("expected current balance joined in, got %f", pending[0].CurrentBalance)
	}
}

func TestLifecycle_WritesAuditTrail(t *testing.T) {
	store := newFakeStore()
	acct := seedAccount(store, 1000)
	svc := newTxService(store)
	ctx := context.Background()

	tx, err := svc.Create(ctx, staffSession(), &domain.CreateTransactionRequest{
		AccountID: acct.ID, Amount: 500, Kind: domain.KindDeposit,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Approve(ctx, directorSession(), tx.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}

	events, err := store.ListEvents(ctx, "transactions", 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 audit events, got %d", len(events))
	}
	for _, e := range events {
		if e.EventID == "" {
			t.Error("audit events must carry an event id")
		}
	}
}
