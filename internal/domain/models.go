package domain

import "time"

// ============================================================
// Core entities — customers, accounts, transactions, employees
// ============================================================

// Customer is a bank customer profile. Usernames are matched
// case-insensitively everywhere.
type Customer struct {
	Username   string    `json:"username"`
	Fullname   string    `json:"fullname"`
	NationalID string    `json:"national_id"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
}

// CustomerSummary is a directory row with per-customer account counts,
// as shown on the staff and director customer listings.
type CustomerSummary struct {
	Username           string `json:"username"`
	Fullname           string `json:"fullname"`
	NationalID         string `json:"national_id"`
	Phone              string `json:"phone"`
	AccountCount       int    `json:"accountCount"`
	ActiveAccountCount int    `json:"activeAccountCount"`
}

// Account lifecycle statuses.
const (
	AccountActive = "active"
	AccountLocked = "locked"
)

// Account is a customer bank account. Balance is mutated only by a
// transaction transitioning into the accepted state, never directly.
type Account struct {
	ID            int64     `json:"id"`
	AccountNumber string    `json:"account_number"`
	Username      string    `json:"username"`
	Fullname      string    `json:"fullname,omitempty"`
	Balance       float64   `json:"balance"`
	AccountType   string    `json:"account_type"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Transaction kinds.
const (
	KindDeposit  = "DEPOSIT"
	KindWithdraw = "WITHDRAW"
)

// Transaction statuses. Pending is the only non-terminal state:
// pending → accepted applies the balance effect, pending → cancel does not.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusCancel   = "cancel"
)

// Transaction is a money-movement request against one account.
type Transaction struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Username  string    `json:"username"`
	Fullname  string    `json:"fullname,omitempty"`
	Amount    float64   `json:"amount"`
	Kind      string    `json:"type"`
	Status    string    `json:"status"`
	ReqDate   time.Time `json:"req_date"`
}

// PendingApproval is a pending transaction joined with the current balance
// of its account, for the director review queue.
type PendingApproval struct {
	Transaction
	CurrentBalance float64 `json:"current_balance"`
}

// ApprovalResult reports the balance effect of an accepted transaction.
type ApprovalResult struct {
	TransactionID int64   `json:"transaction_id"`
	AccountID     int64   `json:"account_id"`
	Kind          string  `json:"type"`
	Amount        float64 `json:"amount"`
	OldBalance    float64 `json:"old_balance"`
	NewBalance    float64 `json:"new_balance"`
	Delta         float64 `json:"balance_change"`
}

// Employee is a bank employee. Position doubles as the employee's role.
type Employee struct {
	Username  string    `json:"username"`
	Position  Role      `json:"position"`
	Salary    float64   `json:"salary"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats aggregates the director dashboard counters.
// "Today" uses the server-local calendar day.
type Stats struct {
	TotalCustomers      int     `json:"totalCustomers"`
	TotalAccounts       int     `json:"totalAccounts"`
	PendingTransactions int     `json:"pendingTransactions"`
	TotalEmployees      int     `json:"totalEmployees"`
	TotalBalance        float64 `json:"totalBalance"`
	TodayTransactions   int     `json:"todayTransactions"`
}

// MetricsSnapshot summarizes operational counters since process start.
type MetricsSnapshot struct {
	TransactionsCreated  int64   `json:"transactions_created"`
	TransactionsAccepted int64   `json:"transactions_accepted"`
	TransactionsCancel   int64   `json:"transactions_cancelled"`
	LoginSuccesses       int64   `json:"login_successes"`
	LoginFailures        int64   `json:"login_failures"`
	CacheHitRate         float64 `json:"cache_hit_rate"`
	Period               string  `json:"period"`
}

// AuditEvent is one row of the application-written audit trail.
type AuditEvent struct {
	ID         int64     `json:"id"`
	EventID    string    `json:"event_id"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	ObjectName string    `json:"object"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"timestamp"`
}
