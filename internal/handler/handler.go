// Package handler содержит HTTP-обработчики API магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/bundlemart/internal/middleware"
	"github.com/mmeshcher/bundlemart/internal/model"
	"github.com/mmeshcher/bundlemart/internal/repository"
	"github.com/mmeshcher/bundlemart/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, in service.RegisterInput) (int64, error)
	AuthenticateUser(ctx context.Context, email, password string) (int64, error)
	AuthenticateAdmin(ctx context.Context, login, password string) (string, time.Time, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	UpdateProfile(ctx context.Context, userID int64, in service.ProfileInput) (*model.User, error)
	DeleteUser(ctx context.Context, userID int64) error
	Dashboard(ctx context.Context, userID int64) (*model.Dashboard, error)
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	GetWallet(ctx context.Context, userID int64) (*model.Wallet, error)
	CreatePurchase(ctx context.Context, userID int64, in service.PurchaseInput) (*model.Purchase, error)
	GetPurchasesByUser(ctx context.Context, userID int64) ([]model.Purchase, error)
	ListAllPurchases(ctx context.Context) ([]model.Purchase, error)
	ConfirmPurchase(ctx context.Context, purchaseID int64) error
	InitiateTopUp(ctx context.Context, userID int64, in service.TopUpInput) (*model.TopUp, error)
	VerifyTopUp(ctx context.Context, reference string) (*model.Transaction, decimal.Decimal, error)
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	adminTokens    middleware.TokenParser
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, adminTokens middleware.TokenParser) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		adminTokens:    adminTokens,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Mobile          string `json:"mobile"`
	Gender          string `json:"gender"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type messageResponse struct {
	Error string `json:"error"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Mobile:          req.Mobile,
		Gender:          req.Gender,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordMismatch):
			writeJSON(w, http.StatusBadRequest, messageResponse{Error: "Passwords do not match"})
		case errors.Is(err, service.ErrValidation):
			httpError(w, http.StatusBadRequest)
		case errors.Is(err, repository.ErrUserExists):
			writeJSON(w, http.StatusConflict, messageResponse{Error: "Email already registered"})
		default:
			h.logger.Error("register user error", zap.Error(err))
			httpError(w, http.StatusInternalServerError)
		}
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		httpError(w, http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeJSON(w, http.StatusUnauthorized, messageResponse{Error: "Invalid email or password"})
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		httpError(w, http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Logout завершает сессию пользователя.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type profileResponse struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	Mobile       string  `json:"mobile"`
	Gender       string  `json:"gender"`
	ProfileImage string  `json:"profile_image,omitempty"`
	Balance      float64 `json:"wallet_balance"`
	CreatedAt    string  `json:"created_at"`
}

func newProfileResponse(u *model.User) profileResponse {
	return profileResponse{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Mobile:       u.Mobile,
		Gender:       u.Gender,
		ProfileImage: u.ProfileImage,
		Balance:      amount(u.Balance),
		CreatedAt:    u.CreatedAt.Format(time.RFC3339),
	}
}

// GetProfile возвращает профиль текущего пользователя.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	u, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			httpError(w, http.StatusNotFound)
			return
		}
		h.logger.Error("get profile error", zap.Error(err), zap.Int64("userID", userID))
		httpError(w, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, newProfileResponse(u))
}

type profileRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Mobile          string `json:"mobile"`
	Gender          string `json:"gender"`
	ProfileImage    string `json:"profile_image"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// UpdateProfile обновляет профиль текущего пользователя.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest)
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), userID, service.ProfileInput{
		Username:        req.Username,
		Email:           req.Email,
		Mobile:          req.Mobile,
		Gender:          req.Gender,
		ProfileImage:    req.ProfileImage,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPasswordMismatch):
			writeJSON(w, http.StatusBadRequest, messageResponse{Error: "Passwords do not match"})
		case errors.Is(err, service.ErrValidation):
			httpError(w, http.StatusBadRequest)
		case errors.Is(err, repository.ErrUserExists):
			writeJSON(w, http.StatusConflict, messageResponse{Error: "This email is already in use"})
		case errors.Is(err, repository.ErrUserNotFound):
			httpError(w, http.StatusNotFound)
		default:
			h.logger.Error("update profile error", zap.Error(err), zap.Int64("userID", userID))
			httpError(w, http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, newProfileResponse(u))
}

// DeleteAccount удаляет аккаунт текущего пользователя и завершает сессию.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			httpError(w, http.StatusNotFound)
			return
		}
		h.logger.Error("delete user error", zap.Error(err), zap.Int64("userID", userID))
		httpError(w, http.StatusInternalServerError)
		return
	}

	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

type dashboardResponse struct {
	Username  string             `json:"username"`
	Balance   float64            `json:"balance"`
	Purchases []purchaseResponse `json:"purchases"`
}

// Dashboard возвращает имя, баланс и покупки текущего пользователя.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httpError(w, http.StatusUnauthorized)
		return
	}

	d, err := h.service.Dashboard(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			httpError(w, http.StatusNotFound)
			return
		}
		h.logger.Error("get dashboard error", zap.Error(err), zap.Int64("userID", userID))
		httpError(w, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{
		Username:  d.Username,
		Balance:   amount(d.Balance),
		Purchases: newPurchaseResponses(d.Purchases),
	})
}
