package domain

import "fmt"

// Error types for consistent error handling across the API.
// Handlers map these to HTTP statuses in one place; services never
// return raw storage errors to the boundary.

// ErrNotFound indicates a resource was not found — or exists but is
// invisible to the caller. The two cases are deliberately identical.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrInvalidCredentials indicates login was rejected. It never reveals
// whether the username or the password was wrong.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "invalid username or password"
}

// ErrAccountLocked indicates an administrative lockout on the login
// credential or the target account.
type ErrAccountLocked struct {
	Username string
}

func (e *ErrAccountLocked) Error() string {
	return fmt.Sprintf("account locked: %s", e.Username)
}

// ErrUnauthorized indicates a missing, invalid or expired session credential.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrForbidden indicates a valid session whose role may not perform the action.
type ErrForbidden struct {
	Required []Role
	Current  Role
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("insufficient permissions: have %s, need one of %v", e.Current, e.Required)
}

// ErrInsufficientFunds indicates a withdrawal exceeding the balance.
// It carries enough context for the caller to display the shortfall.
type ErrInsufficientFunds struct {
	AccountID int64
	Balance   float64
	Requested float64
}

func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds on account %d: balance=%.2f requested=%.2f", e.AccountID, e.Balance, e.Requested)
}

// ErrAlreadyProcessed indicates an approval or rejection attempted on a
// transaction no longer in the pending state.
type ErrAlreadyProcessed struct {
	TransactionID int64
	Status        string
}

func (e *ErrAlreadyProcessed) Error() string {
	return fmt.Sprintf("transaction %d already processed: status=%s", e.TransactionID, e.Status)
}

// ErrConflict indicates a resource already exists (e.g. duplicate username).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrStorageUnavailable indicates a transient storage failure.
// Safe to retry with backoff; details stay out of client responses.
type ErrStorageUnavailable struct {
	Err error
}

func (e *ErrStorageUnavailable) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Err)
}

func (e *ErrStorageUnavailable) Unwrap() error {
	return e.Err
}
