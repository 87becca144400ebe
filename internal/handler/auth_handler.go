package handler

import (
	"net/http"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/service"

	"go.uber.org/zap"
)

// POST /api/auth/login
func loginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.LoginRequest
		if !decodeBody(w, r, &req) {
			return
		}

		resp, err := authSvc.Login(r.Context(), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// POST /api/auth/verify
func verifyHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.VerifyRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Token == "" {
			writeError(w, http.StatusBadRequest, "token is required")
			return
		}

		user, err := authSvc.Verify(r.Context(), req.Token)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"valid": true, "user": user})
	}
}
