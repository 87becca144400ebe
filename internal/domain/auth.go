package domain

import "time"

// ============================================================
// Auth — request / response types (matches frontend API contract)
// ============================================================

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionUser is the authenticated identity embedded in the token and
// echoed back to the client, with role-specific profile data attached.
type SessionUser struct {
	Username string `json:"username"`
	Fullname string `json:"fullname"`
	Role     Role   `json:"role"`

	// Customer-only: owned accounts at login time.
	Accounts []Account `json:"accounts,omitempty"`

	// Employee-only.
	Salary   float64 `json:"salary,omitempty"`
	Position Role    `json:"position,omitempty"`
}

// LoginResponse is the body for 200 from POST /api/auth/login.
type LoginResponse struct {
	Success bool         `json:"success"`
	Token   string       `json:"token"`
	User    *SessionUser `json:"user"`
}

// VerifyRequest is the body for POST /api/auth/verify.
type VerifyRequest struct {
	Token string `json:"token"`
}

// Session is the verified credential extracted from a bearer token.
// It is ephemeral: created at login, checked on every request, and
// discarded at expiry. There is no server-side revocation list.
type Session struct {
	Username  string
	Fullname  string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// UpdateProfileRequest is the body for PUT /api/customer/profile.
// Customers may change their display name and phone only.
type UpdateProfileRequest struct {
	Fullname string `json:"fullname"`
	Phone    string `json:"phone"`
}

// CreateCustomerRequest is the body for POST /api/staff/customers.
type CreateCustomerRequest struct {
	Username   string `json:"username"`
	Fullname   string `json:"fullname"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
}

// CreateAccountRequest is the body for POST /api/staff/accounts.
type CreateAccountRequest struct {
	Username       string  `json:"username"`
	InitialBalance float64 `json:"initial_balance"`
}

// CreateTransactionRequest is the body for POST /api/staff/transactions.
type CreateTransactionRequest struct {
	AccountID int64   `json:"account_id"`
	Amount    float64 `json:"amount"`
	Kind      string  `json:"type"`
}

// UpdateEmployeeRequest is the body for PUT /api/director/employees/{username}.
type UpdateEmployeeRequest struct {
	Salary   float64 `json:"salary"`
	Position Role    `json:"position"`
}
