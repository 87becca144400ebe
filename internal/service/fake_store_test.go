package service_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/port"

	"github.com/google/uuid"
)

// fakeStore is an in-memory port.Store with the same transition semantics
// as the real adapter: the withdrawal gate at insert time and a
// compare-and-swap on the pending status.
type fakeStore struct {
	mu           sync.Mutex
	credentials  map[string]*port.Credential
	customers    map[string]*domain.Customer
	accounts     map[int64]*domain.Account
	transactions map[int64]*domain.Transaction
	employees    map[string]*domain.Employee
	events       []domain.AuditEvent

	nextAccountID int64
	nextTxID      int64

	countErr    error // when set, every stats counter fails
	registerErr error // when set, RegisterCustomer fails atomically
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		credentials:  make(map[string]*port.Credential),
		customers:    make(map[string]*domain.Customer),
		accounts:     make(map[int64]*domain.Account),
		transactions: make(map[int64]*domain.Transaction),
		employees:    make(map[string]*domain.Employee),
	}
}

var _ port.Store = (*fakeStore)(nil)

func lower(s string) string { return strings.ToLower(s) }

// --- Seeding helpers ---

func (f *fakeStore) addCustomer(username, fullname string) {
	f.customers[lower(username)] = &domain.Customer{
		Username: username, Fullname: fullname, NationalID: "1234567890123",
		Phone: "0812345678", CreatedAt: time.Now(),
	}
}

func (f *fakeStore) addAccount(username string, balance float64) *domain.Account {
	f.nextAccountID++
	a := &domain.Account{
		ID: f.nextAccountID, Username: username, Balance: balance,
		AccountType: "CHECKING", Status: domain.AccountActive, CreatedAt: time.Now(),
	}
	a.AccountNumber = fmt.Sprintf("ACC%012d", a.ID)
	f.accounts[a.ID] = a
	return a
}

func (f *fakeStore) addEmployee(username string, position domain.Role, salary float64) {
	f.employees[lower(username)] = &domain.Employee{
		Username: username, Position: position, Salary: salary, CreatedAt: time.Now(),
	}
}

func (f *fakeStore) addCredential(username, passwordHash string, locked bool) {
	f.credentials[lower(username)] = &port.Credential{
		Username: username, PasswordHash: passwordHash, Locked: locked,
	}
}

// --- CredentialStore ---

func (f *fakeStore) GetCredential(_ context.Context, username string) (*port.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.credentials[lower(username)]
	if !ok {
		// Wrapped on purpose: callers must unwrap with errors.As.
		return nil, fmt.Errorf("get credential: %w", &domain.ErrNotFound{Resource: "credential", ID: username})
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) CreateCredential(_ context.Context, username, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.credentials[lower(username)]; ok {
		return &domain.ErrConflict{Message: fmt.Sprintf("credential for %q already exists", username)}
	}
	f.credentials[lower(username)] = &port.Credential{Username: username, PasswordHash: passwordHash}
	return nil
}

// --- CustomerStore ---

func (f *fakeStore) GetCustomer(_ context.Context, username string) (*domain.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[lower(username)]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: username}
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) ListCustomerSummaries(_ context.Context) ([]domain.CustomerSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CustomerSummary
	for _, c := range f.customers {
		s := domain.CustomerSummary{
			Username: c.Username, Fullname: c.Fullname,
			NationalID: c.NationalID, Phone: c.Phone,
		}
		for _, a := range f.accounts {
			if lower(a.Username) == lower(c.Username) {
				s.AccountCount++
				if a.Status == domain.AccountActive {
					s.ActiveAccountCount++
				}
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeStore) RegisterCustomer(_ context.Context, c *domain.Customer, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		// Both inserts roll back together, so nothing is written.
		return f.registerErr
	}
	if _, ok := f.customers[lower(c.Username)]; ok {
		return &domain.ErrConflict{Message: fmt.Sprintf("customer %q already exists", c.Username)}
	}
	c.CreatedAt = time.Now()
	cp := *c
	f.customers[lower(c.Username)] = &cp
	f.credentials[lower(c.Username)] = &port.Credential{Username: c.Username, PasswordHash: passwordHash}
	return nil
}

func (f *fakeStore) UpdateCustomerProfile(_ context.Context, username, fullname, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[lower(username)]
	if !ok {
		return &domain.ErrNotFound{Resource: "customer", ID: username}
	}
	c.Fullname = fullname
	c.Phone = phone
	return nil
}

// --- AccountStore ---

func (f *fakeStore) ListAccountsByOwner(_ context.Context, username string) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Account
	for _, a := range f.accounts {
		if lower(a.Username) == lower(username) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) ListAllAccounts(_ context.Context, newestFirst bool) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Account
	for _, a := range f.accounts {
		cp := *a
		if c, ok := f.customers[lower(a.Username)]; ok {
			cp.Fullname = c.Fullname
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (f *fakeStore) GetAccountByOwner(_ context.Context, username string, accountID int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok || lower(a.Username) != lower(username) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: fmt.Sprint(accountID)}
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) GetAccount(_ context.Context, accountID int64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: fmt.Sprint(accountID)}
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) CreateAccount(_ context.Context, username string, initialBalance float64) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[lower(username)]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "customer", ID: username}
	}
	f.nextAccountID++
	a := &domain.Account{
		ID: f.nextAccountID, Username: c.Username, Balance: initialBalance,
		AccountType: "CHECKING", Status: domain.AccountActive, CreatedAt: time.Now(),
	}
	a.AccountNumber = fmt.Sprintf("ACC%012d", a.ID)
	f.accounts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (f *fakeStore) SetLockStatus(_ context.Context, accountID int64, locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok {
		return &domain.ErrNotFound{Resource: "account", ID: fmt.Sprint(accountID)}
	}
	if locked {
		a.Status = domain.AccountLocked
	} else {
		a.Status = domain.AccountActive
	}
	return nil
}

// --- TransactionStore ---

func (f *fakeStore) CreateTransaction(_ context.Context, accountID int64, kind string, amount float64) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: fmt.Sprint(accountID)}
	}
	if a.Status == domain.AccountLocked {
		return nil, &domain.ErrValidation{Field: "account_id", Message: "account is locked"}
	}
	if kind == domain.KindWithdraw && amount > a.Balance {
		return nil, &domain.ErrInsufficientFunds{AccountID: accountID, Balance: a.Balance, Requested: amount}
	}
	f.nextTxID++
	t := &domain.Transaction{
		ID: f.nextTxID, AccountID: accountID, Username: a.Username,
		Amount: amount, Kind: kind, Status: domain.StatusPending, ReqDate: time.Now(),
	}
	f.transactions[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ApproveTransaction(_ context.Context, transactionID int64) (*domain.ApprovalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[transactionID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: fmt.Sprint(transactionID)}
	}
	if t.Status != domain.StatusPending {
		return nil, &domain.ErrAlreadyProcessed{TransactionID: transactionID, Status: t.Status}
	}
	a := f.accounts[t.AccountID]
	delta := t.Amount
	if t.Kind == domain.KindWithdraw {
		delta = -t.Amount
	}
	if a.Balance+delta < 0 {
		return nil, &domain.ErrInsufficientFunds{AccountID: a.ID, Balance: a.Balance, Requested: t.Amount}
	}
	old := a.Balance
	a.Balance += delta
	t.Status = domain.StatusAccepted
	return &domain.ApprovalResult{
		TransactionID: t.ID, AccountID: a.ID, Kind: t.Kind, Amount: t.Amount,
		OldBalance: old, NewBalance: a.Balance, Delta: delta,
	}, nil
}

func (f *fakeStore) RejectTransaction(_ context.Context, transactionID int64) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[transactionID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: fmt.Sprint(transactionID)}
	}
	if t.Status != domain.StatusPending {
		return nil, &domain.ErrAlreadyProcessed{TransactionID: transactionID, Status: t.Status}
	}
	t.Status = domain.StatusCancel
	cp := *t
	return &cp, nil
}

func (f *fakeStore) ListTransactionsByOwner(_ context.Context, username string) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, t := range f.transactions {
		if lower(t.Username) == lower(username) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) ListAllTransactions(_ context.Context) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, t := range f.transactions {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) ListPendingApprovals(_ context.Context) ([]domain.PendingApproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PendingApproval
	for _, t := range f.transactions {
		if t.Status != domain.StatusPending {
			continue
		}
		p := domain.PendingApproval{Transaction: *t}
		if a, ok := f.accounts[t.AccountID]; ok {
			p.CurrentBalance = a.Balance
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- EmployeeStore ---

func (f *fakeStore) GetEmployee(_ context.Context, username string) (*domain.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.employees[lower(username)]
	if !ok {
		// Wrapped on purpose: callers must unwrap with errors.As.
		return nil, fmt.Errorf("get employee: %w", &domain.ErrNotFound{Resource: "employee", ID: username})
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) ListEmployees(_ context.Context) ([]domain.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Employee
	for _, e := range f.employees {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeStore) CreateEmployee(_ context.Context, username string, position domain.Role, salary float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.employees[lower(username)]; ok {
		return &domain.ErrConflict{Message: fmt.Sprintf("employee %q already exists", username)}
	}
	f.employees[lower(username)] = &domain.Employee{
		Username: username, Position: position, Salary: salary, CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeStore) UpdateEmployee(_ context.Context, username string, salary float64, position domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.employees[lower(username)]
	if !ok {
		return &domain.ErrNotFound{Resource: "employee", ID: username}
	}
	e.Salary = salary
	e.Position = position
	return nil
}

// --- StatsStore ---

func (f *fakeStore) CountCustomers(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.customers), nil
}

func (f *fakeStore) CountAccounts(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.accounts), nil
}

func (f *fakeStore) CountPendingTransactions(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, t := range f.transactions {
		if t.Status == domain.StatusPending {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountEmployees(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.employees), nil
}

func (f *fakeStore) SumBalances(_ context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	sum := 0.0
	for _, a := range f.accounts {
		sum += a.Balance
	}
	return sum, nil
}

func (f *fakeStore) CountTransactionsSince(_ context.Context, dayStart time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, t := range f.transactions {
		if !t.ReqDate.Before(dayStart) {
			n++
		}
	}
	return n, nil
}

// --- AuditStore ---

func (f *fakeStore) RecordEvent(_ context.Context, e *domain.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	e.ID = int64(len(f.events) + 1)
	e.CreatedAt = time.Now()
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeStore) ListEvents(_ context.Context, objectName string, limit int) ([]domain.AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []domain.AuditEvent
	for i := len(f.events) - 1; i >= 0 && len(out) < limit; i-- {
		if objectName != "" && f.events[i].ObjectName != objectName {
			continue
		}
		out = append(out, f.events[i])
	}
	return out, nil
}
