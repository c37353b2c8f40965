package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/bundlemart/internal/middleware"
	"github.com/mmeshcher/bundlemart/internal/paystack"
	"github.com/mmeshcher/bundlemart/internal/repository"
	"github.com/mmeshcher/bundlemart/internal/service"
)

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

// GetBalance возвращает баланс кошелька текущего пользователя.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			httpError(w, http.StatusNotFound)
			return
		}
		h.logger.Error("get balance error", zap.Error(err), zap.Int64("userID", userID))
		httpError(w, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{Balance: amount(balance)})
}

type transactionResponse struct {
	Amount    float64 `json:"amount"`
	Provider  string  `json:"provider"`
	Number    string  `json:"number"`
	Reference string  `json:"reference"`
	Status    string  `json:"status"`
	At        string  `json:"at"`
}

type walletResponse struct {
	Balance      float64               `json:"balance"`
	Transactions []transactionResponse `json:"transactions"`
}

// GetWallet возвращает баланс и историю пополнений текущего пользователя.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			httpError(w, http.StatusNotFound)
			return
		}
		h.logger.Error("get wallet error", zap.Error(err), zap.Int64("userID", userID))
		httpError(w, http.StatusInternalServerError)
		return
	}

	resp := walletResponse{
		Balance:      amount(wallet.Balance),
		Transactions: make([]transactionResponse, 0, len(wallet.Transactions)),
	}
	for _, t := range wallet.Transactions {
		resp.Transactions = append(resp.Transactions, transactionResponse{
			Amount:    amount(t.Amount),
			Provider:  t.Provider,
			Number:    t.Number,
			Reference: t.Reference,
			Status:    t.Status,
			At:        t.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

type topUpRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Provider string          `json:"provider"`
	Number   string          `json:"number"`
}

type topUpResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// InitiateTopUp начинает пополнение кошелька и возвращает ссылку на оплату в шлюзе.
func (h *Handler) InitiateTopUp(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	topUp, err := h.service.InitiateTopUp(r.Context(), userID, service.TopUpInput{
		Amount:   req.Amount,
		Provider: req.Provider,
		Number:   req.Number,
	})
	if err != nil {
		var gwErr *paystack.GatewayError
		switch {
		case errors.Is(err, service.ErrValidation):
			httpError(w, http.StatusBadRequest)
		case errors.Is(err, repository.ErrUserNotFound):
			httpError(w, http.StatusNotFound)
		case errors.Is(err, service.ErrGatewayNotConfigured):
			httpError(w, http.StatusServiceUnavailable)
		case errors.As(err, &gwErr):
			h.logger.Warn("payment initialization rejected", zap.Error(err), zap.Int64("userID", userID))
			writeJSON(w, http.StatusBadGateway, messageResponse{Error: "Error initializing payment: " + gatewayMessage(gwErr)})
		case errors.Is(err, paystack.ErrTransport):
			h.logger.Error("payment gateway unavailable", zap.Error(err), zap.Int64("userID", userID))
			httpError(w, http.StatusBadGateway)
		default:
			h.logger.Error("initiate top-up error", zap.Error(err), zap.Int64("userID", userID))
			httpError(w, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, topUpResponse{
		Reference:        topUp.Reference,
		AuthorizationURL: topUp.AuthorizationURL,
	})
}

func gatewayMessage(err *paystack.GatewayError) string {
	if err.Message == "" {
		return "Unknown error"
	}
	return err.Message
}

type verifyResponse struct {
	Status    string  `json:"status"`
	Reference string  `json:"reference"`
	Amount    float64 `json:"amount"`
	Balance   float64 `json:"balance"`
}

// VerifyPayment обрабатывает возврат из шлюза: проверяет оплату и зачисляет пополнение.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Error: "Missing payment reference."})
		return
	}

	txn, balance, err := h.service.VerifyTopUp(r.Context(), reference)
	if err != nil {
		var gwErr *paystack.GatewayError
		switch {
		case errors.Is(err, service.ErrValidation):
			writeJSON(w, http.StatusBadRequest, messageResponse{Error: "Missing payment reference."})
		case errors.Is(err, service.ErrNoMatchingPendingPayment):
			writeJSON(w, http.StatusNotFound, messageResponse{Error: "No matching pending payment found."})
		case errors.Is(err, service.ErrVerificationInProgress):
			writeJSON(w, http.StatusConflict, messageResponse{Error: "Payment verification in progress."})
		case errors.Is(err, service.ErrPaymentNotSuccessful):
			writeJSON(w, http.StatusUnprocessableEntity, messageResponse{Error: "Payment verification failed."})
		case errors.Is(err, service.ErrGatewayNotConfigured):
			httpError(w, http.StatusServiceUnavailable)
		case errors.As(err, &gwErr):
			h.logger.Warn("payment verification rejected", zap.Error(err), zap.String("reference", reference))
			writeJSON(w, http.StatusBadGateway, messageResponse{Error: "Payment verification failed."})
		case errors.Is(err, paystack.ErrTransport):
			h.logger.Error("payment gateway unavailable", zap.Error(err), zap.String("reference", reference))
			httpError(w, http.StatusBadGateway)
		default:
			h.logger.Error("verify payment error", zap.Error(err), zap.String("reference", reference))
			httpError(w, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{
		Status:    txn.Status,
		Reference: txn.Reference,
		Amount:    amount(txn.Amount),
		Balance:   amount(balance),
	})
}
