package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/bundlemart/internal/service"
)

type adminLoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type adminLoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// AdminLogin выдаёт токен администратора по логину и паролю.
func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	token, expiresAt, err := h.service.AuthenticateAdmin(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			httpError(w, http.StatusUnauthorized)
			return
		}
		h.logger.Error("admin login error", zap.Error(err))
		httpError(w, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, adminLoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}
