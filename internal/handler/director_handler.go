package handler

import (
	"net/http"
	"strconv"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// GET /api/director/stats
func statsHandler(reports *service.ReportingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := reports.Stats(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// GET /api/director/transactions/pending
func pendingApprovalsHandler(txSvc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := txSvc.PendingApprovals(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, pending)
	}
}

// PUT /api/director/transactions/{transactionID}/approve
func approveTransactionHandler(txSvc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "transactionID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid transaction id")
			return
		}

		sess, _ := SessionFromContext(r.Context())
		result, err := txSvc.Approve(r.Context(), sess, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// PUT /api/director/transactions/{transactionID}/reject
func rejectTransactionHandler(txSvc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "transactionID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid transaction id")
			return
		}

		sess, _ := SessionFromContext(r.Context())
		tx, err := txSvc.Reject(r.Context(), sess, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

// PUT /api/director/accounts/{accountID}/lock and /unlock
func setAccountLockHandler(ledger *service.LedgerService, locked bool, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "accountID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid account id")
			return
		}

		sess, _ := SessionFromContext(r.Context())
		account, err := ledger.SetLock(r.Context(), sess, id, locked)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, account)
	}
}

// GET /api/director/employees
func listEmployeesHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employees, err := dir.ListEmployees(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, employees)
	}
}

// PUT /api/director/employees/{username}
func updateEmployeeHandler(dir *service.DirectoryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.UpdateEmployeeRequest
		if !decodeBody(w, r, &req) {
			return
		}

		sess, _ := SessionFromContext(r.Context())
		emp, err := dir.UpdateEmployee(r.Context(), sess, chi.URLParam(r, "username"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, emp)
	}
}

// GET /api/director/audit?object=transactions&limit=50
func auditTrailHandler(reports *service.ReportingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		events, err := reports.AuditTrail(r.Context(), r.URL.Query().Get("object"), limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

// GET /api/director/metrics
func opsSnapshotHandler(reports *service.ReportingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reports.OpsSnapshot())
	}
}
