package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/bundlemart/internal/middleware"
	"github.com/mmeshcher/bundlemart/internal/model"
	"github.com/mmeshcher/bundlemart/internal/repository"
	"github.com/mmeshcher/bundlemart/internal/service"
	"github.com/mmeshcher/bundlemart/internal/validation"
)

type purchaseRequest struct {
	Network string `json:"network"`
	Bundle  string `json:"bundle"`
	Mobile  string `json:"mobile"`
}

type purchaseCreatedResponse struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id"`
}

type insufficientFundsResponse struct {
	Error   string  `json:"error"`
	Balance float64 `json:"balance"`
}

type purchaseResponse struct {
	ID        int64                                   `json:"id"`
	Email     string                                  `json:"email,omitempty"`
	Provider  string                                  `json:"provider"`
	Bundle    string                                  `json:"bundle"`
	Number    string                                  `json:"number"`
	Amount    float64                                 `json:"amount"`
	Status    string                                  `json:"status"`
	CreatedAt string                                  `json:"created_at"`
	Stages    map[model.PurchaseStage]model.StageMark `json:"stages"`
}

func newPurchaseResponses(purchases []model.Purchase) []purchaseResponse {
	resp := make([]purchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		resp = append(resp, purchaseResponse{
			ID:        p.ID,
			Email:     p.Email,
			Provider:  p.Provider,
			Bundle:    p.Bundle,
			Number:    p.Number,
			Amount:    p.Amount.InexactFloat64(),
			Status:    string(p.Status),
			CreatedAt: p.CreatedAt.Format(time.RFC3339),
			Stages:    p.Stages(),
		})
	}
	return resp
}

// CreatePurchase покупает пакет за счёт кошелька текущего пользователя.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	p, err := h.service.CreatePurchase(r.Context(), userID, service.PurchaseInput{
		Network: req.Network,
		Bundle:  req.Bundle,
		Mobile:  req.Mobile,
	})
	if err != nil {
		var fundsErr *repository.InsufficientFundsError
		switch {
		case errors.Is(err, validation.ErrInvalidBundleFormat):
			writeJSON(w, http.StatusUnprocessableEntity, messageResponse{Error: "Invalid bundle format."})
		case errors.Is(err, service.ErrValidation):
			httpError(w, http.StatusBadRequest)
		case errors.As(err, &fundsErr):
			writeJSON(w, http.StatusPaymentRequired, insufficientFundsResponse{
				Error:   "Insufficient wallet balance",
				Balance: amount(fundsErr.Balance),
			})
		case errors.Is(err, repository.ErrUserNotFound):
			httpError(w, http.StatusNotFound)
		default:
			h.logger.Error("create purchase error", zap.Error(err), zap.Int64("userID", userID), zap.String("bundle", req.Bundle))
			httpError(w, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, purchaseCreatedResponse{OK: true, ID: p.ID})
}

// GetPurchases возвращает покупки текущего пользователя.
func (h *Handler) GetPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	purchases, err := h.service.GetPurchasesByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get purchases error", zap.Error(err), zap.Int64("userID", userID))
		httpError(w, http.StatusInternalServerError)
		return
	}

	if len(purchases) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, newPurchaseResponses(purchases))
}

// ListAllPurchases возвращает все покупки для администратора.
func (h *Handler) ListAllPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.service.ListAllPurchases(r.Context())
	if err != nil {
		h.logger.Error("list purchases error", zap.Error(err))
		httpError(w, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, newPurchaseResponses(purchases))
}

type okResponse struct {
	OK bool `json:"ok"`
}

// ConfirmPurchase отмечает покупку выполненной.
func (h *Handler) ConfirmPurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || purchaseID <= 0 {
		httpError(w, http.StatusBadRequest)
		return
	}

	if err := h.service.ConfirmPurchase(r.Context(), purchaseID); err != nil {
		switch {
		case errors.Is(err, repository.ErrPurchaseNotFound):
			writeJSON(w, http.StatusNotFound, messageResponse{Error: "Purchase not found"})
		case errors.Is(err, service.ErrValidation):
			httpError(w, http.StatusBadRequest)
		default:
			h.logger.Error("confirm purchase error", zap.Error(err), zap.Int64("purchaseID", purchaseID))
			httpError(w, http.StatusInternalServerError)
		}
		return
	}

	admin, _ := middleware.GetAdminLoginFromContext(r.Context())
	h.logger.Info("purchase credited", zap.Int64("purchaseID", purchaseID), zap.String("admin", admin))

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}
