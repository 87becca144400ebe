package handler

import (
	"net/http"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/service"

	"go.uber.org/zap"
)

// GET /api/customer/accounts
func customerAccountsHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
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

// GET /api/customer/accounts/{accountID}
func customerAccountHandler(ledger *service.LedgerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "accountID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid account id")
			return
		}

		sess, _ := SessionFromContext(r.Context())
		account, err := ledger.Get(r.Context(), sess, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

// GET /api/customer/transactions
func customerTransactionsHandler(txSvc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
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

// GET /api/customer/profile
func customerProfileHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, _ := SessionFromContext(r.Context())
		profile, err := dir.GetProfile(r.Context(), sess)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// PUT /api/customer/profile
func updateProfileHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.UpdateProfileRequest
		if !decodeBody(w, r, &req) {
			return
		}

		sess, _ := SessionFromContext(r.Context())
		profile, err := dir.UpdateProfile(r.Context(), sess, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}
