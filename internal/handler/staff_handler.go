package handler

import (
	"net/http"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GET /api/staff/customers
func listCustomersHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := dir.ListCustomers(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, customers)
	}
}

// POST /api/staff/customers
func createCustomerHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.CreateCustomerRequest
		if !decodeBody(w, r, &req) {
			return
		}

		sess, _ := SessionFromContext(r.Context())
		customer, err := dir.CreateCustomer(r.Context(), sess, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, customer)
	}
}

// GET /api/staff/customers/{username}/accounts
func customerAccountsByUsernameHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := chi.URLParam(r, "username")
		accounts, err := ledger.ListByCustomer(r.Context(), username)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

// GET /api/staff/accounts
func listAccountsHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		accounts, err := ledger.List(r.Context(), sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

// POST /api/staff/accounts
func createAccountHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.CreateAccountRequest
		if !decodeBody(w, r, &req) {
			return
		}

		sess, _ := SessionFromContext(r.Context())
		account, err := ledger.Create(r.Context(), sess, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, account)
	}
}

// POST /api/staff/transactions
func createTransactionHandler(txSvc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.CreateTransactionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		sess, _ := SessionFromContext(r.Context())
		tx, err := txSvc.Create(r.Context(), sess, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, tx)
	}
}

// GET /api/staff/transactions
func listTransactionsHandler(txSvc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		txs, err := txSvc.List(r.Context(), sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, txs)
	}
}

// GET /api/staff/profile
func staffProfileHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		emp, err := dir.SelfEmployee(r.Context(), sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, emp)
	}
}
