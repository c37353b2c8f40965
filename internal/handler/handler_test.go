package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/bundlemart/internal/ledger"
	"github.com/mmeshcher/bundlemart/internal/middleware"
	"github.com/mmeshcher/bundlemart/internal/model"
	"github.com/mmeshcher/bundlemart/internal/paystack"
	"github.com/mmeshcher/bundlemart/internal/repository"
	"github.com/mmeshcher/bundlemart/internal/security"
	"github.com/mmeshcher/bundlemart/internal/service"
	"github.com/mmeshcher/bundlemart/internal/validation"
)

type stubService struct {
	registerUserID int64
	registerErr    error

	authUserID int64
	authErr    error

	adminToken string
	adminErr   error

	user    *model.User
	userErr error

	deleteErr error

	balance    decimal.Decimal
	balanceErr error

	wallet    *model.Wallet
	walletErr error

	purchase    *model.Purchase
	purchaseErr error

	purchasesResp []model.Purchase
	purchasesErr  error

	confirmErr error
	confirmed  int64

	topUp    *model.TopUp
	topUpErr error

	verifyTxn     *model.Transaction
	verifyBalance decimal.Decimal
	verifyErr     error
}

func (s *stubService) RegisterUser(ctx context.Context, in service.RegisterInput) (int64, error) {
	return s.registerUserID, s.registerErr
}

func (s *stubService) AuthenticateUser(ctx context.Context, email, password string) (int64, error) {
	return s.authUserID, s.authErr
}

func (s *stubService) AuthenticateAdmin(ctx context.Context, login, password string) (string, time.Time, error) {
	return s.adminToken, time.Now().Add(time.Hour), s.adminErr
}

func (s *stubService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) UpdateProfile(ctx context.Context, userID int64, in service.ProfileInput) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) DeleteUser(ctx context.Context, userID int64) error {
	return s.deleteErr
}

func (s *stubService) Dashboard(ctx context.Context, userID int64) (*model.Dashboard, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	return &model.Dashboard{Username: s.user.Username, Balance: s.user.Balance, Purchases: s.purchasesResp}, nil
}

func (s *stubService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.balance, s.balanceErr
}

func (s *stubService) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	return s.wallet, s.walletErr
}

func (s *stubService) CreatePurchase(ctx context.Context, userID int64, in service.PurchaseInput) (*model.Purchase, error) {
	return s.purchase, s.purchaseErr
}

func (s *stubService) GetPurchasesByUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
	return s.purchasesResp, s.purchasesErr
}

func (s *stubService) ListAllPurchases(ctx context.Context) ([]model.Purchase, error) {
	return s.purchasesResp, s.purchasesErr
}

func (s *stubService) ConfirmPurchase(ctx context.Context, purchaseID int64) error {
	s.confirmed = purchaseID
	return s.confirmErr
}

func (s *stubService) InitiateTopUp(ctx context.Context, userID int64, in service.TopUpInput) (*model.TopUp, error) {
	return s.topUp, s.topUpErr
}

func (s *stubService) VerifyTopUp(ctx context.Context, reference string) (*model.Transaction, decimal.Decimal, error) {
	return s.verifyTxn, s.verifyBalance, s.verifyErr
}

const testSecret = "test-secret"

func newTestHandler(t *testing.T, svc Service) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware(testSecret)
	tokens := security.NewTokenManager(testSecret, time.Hour)

	return NewHandler(svc, logger, auth, tokens)
}

func authCookie(t *testing.T, h *Handler, userID int64) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	h.authMiddleware.SetAuthCookie(rec, userID)
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("auth cookie was not set")
	}
	return cookies[0]
}

func serve(h *Handler, req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec.Result()
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()

	body, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(body)
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{
		registerUserID: 42,
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", jsonBody(t, registerRequest{
		Email:           "ama@example.com",
		Password:        "pass",
		ConfirmPassword: "pass",
	}))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	if len(res.Cookies()) == 0 {
		t.Fatal("expected session cookie")
	}
}

func TestRegister_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "password mismatch", err: service.ErrPasswordMismatch, want: http.StatusBadRequest},
		{name: "validation", err: service.ErrValidation, want: http.StatusBadRequest},
		{name: "duplicate email", err: repository.ErrUserExists, want: http.StatusConflict},
		{name: "storage failure", err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{registerErr: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/user/register", jsonBody(t, registerRequest{
				Email:    "ama@example.com",
				Password: "pass",
			}))
			rec := httptest.NewRecorder()

			h.Register(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestRegister_BadJSON(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodPost, "/api/user/register", strings.NewReader("{"))
	rec := httptest.NewRecorder()

	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLogin_UnauthorizedOnInvalidCredentials(t *testing.T) {
	svc := &stubService{
		authErr: service.ErrInvalidCredentials,
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodPost, "/api/user/login", jsonBody(t, loginRequest{
		Email:    "ama@example.com",
		Password: "wrong",
	}))
	rec := httptest.NewRecorder()

	h.Login(rec, req)

	res := rec.Result()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusUnauthorized)
	}
}

func TestLogout_ClearsCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	res := serve(h, httptest.NewRequest(http.MethodPost, "/api/user/logout", nil))

	require.Equal(t, http.StatusOK, res.StatusCode)
	cookies := res.Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/user/dashboard"},
		{http.MethodGet, "/api/user/profile"},
		{http.MethodPost, "/api/user/purchases"},
		{http.MethodGet, "/api/user/purchases"},
		{http.MethodGet, "/api/user/balance"},
		{http.MethodGet, "/api/user/wallet"},
		{http.MethodPost, "/api/user/wallet/topup"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			res := serve(h, httptest.NewRequest(rt.method, rt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		})
	}
}

func TestCreatePurchase(t *testing.T) {
	tests := []struct {
		name     string
		svc      *stubService
		want     int
		wantBody map[string]any
	}{
		{
			name: "created",
			svc: &stubService{
				purchase: &model.Purchase{ID: 7, Status: model.PurchaseStatusPaymentCompleted},
			},
			want:     http.StatusOK,
			wantBody: map[string]any{"ok": true, "id": float64(7)},
		},
		{
			name: "insufficient balance",
			svc: &stubService{
				purchaseErr: &repository.InsufficientFundsError{Balance: decimal.RequireFromString("5.00")},
			},
			want:     http.StatusPaymentRequired,
			wantBody: map[string]any{"error": "Insufficient wallet balance", "balance": float64(5)},
		},
		{
			name: "invalid bundle",
			svc: &stubService{
				purchaseErr: validation.ErrInvalidBundleFormat,
			},
			want:     http.StatusUnprocessableEntity,
			wantBody: map[string]any{"error": "Invalid bundle format."},
		},
		{
			name: "missing fields",
			svc: &stubService{
				purchaseErr: service.ErrValidation,
			},
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.svc)

			req := httptest.NewRequest(http.MethodPost, "/api/user/purchases", jsonBody(t, purchaseRequest{
				Network: "MTN",
				Bundle:  "1GB - GHS 5.00",
				Mobile:  "0241234567",
			}))
			req.AddCookie(authCookie(t, h, 1))

			res := serve(h, req)
			defer res.Body.Close()

			require.Equal(t, tt.want, res.StatusCode)
			if tt.wantBody == nil {
				return
			}

			var got map[string]any
			require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
			assert.Equal(t, tt.wantBody, got)
		})
	}
}

func TestGetPurchases_NoContent(t *testing.T) {
	svc := &stubService{
		purchasesResp: []model.Purchase{},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/user/purchases", nil)
	req.AddCookie(authCookie(t, h, 1))
	respRec := httptest.NewRecorder()

	handlerWithAuth := h.authMiddleware.Middleware(http.HandlerFunc(h.GetPurchases))
	handlerWithAuth.ServeHTTP(respRec, req)

	res := respRec.Result()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
}

func TestGetPurchases_JSONResponseWithStages(t *testing.T) {
	now := time.Now().UTC()
	svc := &stubService{
		purchasesResp: []model.Purchase{
			{
				ID:        3,
				Provider:  "MTN",
				Bundle:    "1GB - GHS 5.00",
				Number:    "0241234567",
				Amount:    decimal.RequireFromString("5.00"),
				Status:    model.PurchaseStatusPaymentCompleted,
				CreatedAt: now,
				PaidAt:    &now,
			},
		},
	}
	h := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/user/purchases", nil)
	req.AddCookie(authCookie(t, h, 1))

	res := serve(h, req)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var got []purchaseResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "payment_completed", got[0].Status)
	assert.Equal(t, 5.0, got[0].Amount)
	assert.True(t, got[0].Stages[model.StageRequestCreated].Done)
	assert.True(t, got[0].Stages[model.StagePaymentCompleted].Done)
	assert.False(t, got[0].Stages[model.StageCredited].Done)
}

func TestGetBalance(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		h := newTestHandler(t, &stubService{balance: decimal.RequireFromString("12.50")})

		req := httptest.NewRequest(http.MethodGet, "/api/user/balance", nil)
		req.AddCookie(authCookie(t, h, 1))

		res := serve(h, req)
		defer res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)
		var got balanceResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
		assert.Equal(t, 12.5, got.Balance)
	})

	t.Run("unknown user", func(t *testing.T) {
		h := newTestHandler(t, &stubService{balanceErr: repository.ErrUserNotFound})

		req := httptest.NewRequest(http.MethodGet, "/api/user/balance", nil)
		req.AddCookie(authCookie(t, h, 1))

		res := serve(h, req)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})
}

func TestGetWallet(t *testing.T) {
	now := time.Now().UTC()
	h := newTestHandler(t, &stubService{wallet: &model.Wallet{
		Balance: decimal.RequireFromString("50.00"),
		Transactions: []model.Transaction{
			{Amount: decimal.RequireFromString("50.00"), Reference: "ref-1", Status: model.TransactionStatusSuccess, CreatedAt: now},
		},
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/user/wallet", nil)
	req.AddCookie(authCookie(t, h, 1))

	res := serve(h, req)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	var got walletResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, 50.0, got.Balance)
	require.Len(t, got.Transactions, 1)
	assert.Equal(t, "ref-1", got.Transactions[0].Reference)
	assert.Equal(t, "success", got.Transactions[0].Status)
}

func TestInitiateTopUp(t *testing.T) {
	t.Run("authorization url", func(t *testing.T) {
		h := newTestHandler(t, &stubService{topUp: &model.TopUp{
			Reference:        "ref-1",
			AuthorizationURL: "https://checkout.example/ref-1",
		}})

		req := httptest.NewRequest(http.MethodPost, "/api/user/wallet/topup", strings.NewReader(`{"amount":50,"provider":"MTN","number":"0241234567"}`))
		req.AddCookie(authCookie(t, h, 1))

		res := serve(h, req)
		defer res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)
		var got topUpResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
		assert.Equal(t, "ref-1", got.Reference)
		assert.Equal(t, "https://checkout.example/ref-1", got.AuthorizationURL)
	})

	t.Run("gateway rejected", func(t *testing.T) {
		h := newTestHandler(t, &stubService{
			topUpErr: &paystack.GatewayError{Message: "Invalid key"},
		})

		req := httptest.NewRequest(http.MethodPost, "/api/user/wallet/topup", strings.NewReader(`{"amount":50}`))
		req.AddCookie(authCookie(t, h, 1))

		res := serve(h, req)
		defer res.Body.Close()

		require.Equal(t, http.StatusBadGateway, res.StatusCode)
		var got messageResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
		assert.Equal(t, "Error initializing payment: Invalid key", got.Error)
	})

	t.Run("gateway unreachable", func(t *testing.T) {
		h := newTestHandler(t, &stubService{
			topUpErr: fmt.Errorf("initialize payment: %w", fmt.Errorf("%w: do request: timeout", paystack.ErrTransport)),
		})

		req := httptest.NewRequest(http.MethodPost, "/api/user/wallet/topup", strings.NewReader(`{"amount":50}`))
		req.AddCookie(authCookie(t, h, 1))

		res := serve(h, req)
		assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	})

	t.Run("storage failure", func(t *testing.T) {
		h := newTestHandler(t, &stubService{
			topUpErr: errors.New("insert pending payment: conn closed"),
		})

		req := httptest.NewRequest(http.MethodPost, "/api/user/wallet/topup", strings.NewReader(`{"amount":50}`))
		req.AddCookie(authCookie(t, h, 1))

		res := serve(h, req)
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	})

	t.Run("amount out of range", func(t *testing.T) {
		h := newTestHandler(t, &stubService{
			topUpErr: fmt.Errorf("%w: %w", service.ErrValidation, ledger.ErrAmountOutOfRange),
		})

		req := httptest.NewRequest(http.MethodPost, "/api/user/wallet/topup", strings.NewReader(`{"amount":184467440737095516.17}`))
		req.AddCookie(authCookie(t, h, 1))

		res := serve(h, req)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("invalid amount", func(t *testing.T) {
		h := newTestHandler(t, &stubService{topUpErr: service.ErrValidation})

		req := httptest.NewRequest(http.MethodPost, "/api/user/wallet/topup", strings.NewReader(`{"amount":0}`))
		req.AddCookie(authCookie(t, h, 1))

		res := serve(h, req)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}

func TestVerifyPayment(t *testing.T) {
	tests := []struct {
		name string
		path string
		svc  *stubService
		want int
	}{
		{
			name: "missing reference",
			path: "/api/payments/verify",
			svc:  &stubService{},
			want: http.StatusBadRequest,
		},
		{
			name: "no pending payment",
			path: "/api/payments/verify?reference=unknown",
			svc:  &stubService{verifyErr: service.ErrNoMatchingPendingPayment},
			want: http.StatusNotFound,
		},
		{
			name: "in progress",
			path: "/api/payments/verify?reference=ref-1",
			svc:  &stubService{verifyErr: service.ErrVerificationInProgress},
			want: http.StatusConflict,
		},
		{
			name: "not successful",
			path: "/api/payments/verify?reference=ref-1",
			svc:  &stubService{verifyErr: service.ErrPaymentNotSuccessful},
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "gateway rejected",
			path: "/api/payments/verify?reference=ref-1",
			svc:  &stubService{verifyErr: &paystack.GatewayError{Message: "Transaction reference not found"}},
			want: http.StatusBadGateway,
		},
		{
			name: "gateway unreachable",
			path: "/api/payments/verify?reference=ref-1",
			svc:  &stubService{verifyErr: fmt.Errorf("verify payment: %w", fmt.Errorf("%w: unexpected status: 503", paystack.ErrTransport))},
			want: http.StatusBadGateway,
		},
		{
			name: "storage failure",
			path: "/api/payments/verify?reference=ref-1",
			svc:  &stubService{verifyErr: errors.New("consume pending payment: conn closed")},
			want: http.StatusInternalServerError,
		},
		{
			name: "credited",
			path: "/api/payments/verify?trxref=ref-1&reference=ref-1",
			svc: &stubService{
				verifyTxn: &model.Transaction{
					Amount:    decimal.RequireFromString("50.00"),
					Reference: "ref-1",
					Status:    model.TransactionStatusSuccess,
				},
				verifyBalance: decimal.RequireFromString("50.00"),
			},
			want: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.svc)

			res := serve(h, httptest.NewRequest(http.MethodGet, tt.path, nil))
			defer res.Body.Close()

			require.Equal(t, tt.want, res.StatusCode)
			if tt.want != http.StatusOK {
				return
			}

			var got verifyResponse
			require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
			assert.Equal(t, "success", got.Status)
			assert.Equal(t, 50.0, got.Balance)
		})
	}
}

func TestAdminLogin(t *testing.T) {
	t.Run("token issued", func(t *testing.T) {
		h := newTestHandler(t, &stubService{adminToken: "signed"})

		res := serve(h, httptest.NewRequest(http.MethodPost, "/api/admin/login", jsonBody(t, adminLoginRequest{Login: "admin", Password: "secret"})))
		defer res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)
		var got adminLoginResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
		assert.Equal(t, "signed", got.Token)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		h := newTestHandler(t, &stubService{adminErr: service.ErrInvalidCredentials})

		res := serve(h, httptest.NewRequest(http.MethodPost, "/api/admin/login", jsonBody(t, adminLoginRequest{Login: "admin", Password: "bad"})))
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})
}

func TestAdminRoutes(t *testing.T) {
	tokens := security.NewTokenManager(testSecret, time.Hour)
	token, _, err := tokens.Issue("admin")
	require.NoError(t, err)

	t.Run("missing token", func(t *testing.T) {
		h := newTestHandler(t, &stubService{})

		res := serve(h, httptest.NewRequest(http.MethodGet, "/api/admin/purchases", nil))
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("user session is not enough", func(t *testing.T) {
		h := newTestHandler(t, &stubService{})

		req := httptest.NewRequest(http.MethodPost, "/api/admin/purchases/1/confirm", nil)
		req.AddCookie(authCookie(t, h, 1))

		res := serve(h, req)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	})

	t.Run("list purchases", func(t *testing.T) {
		h := newTestHandler(t, &stubService{purchasesResp: []model.Purchase{
			{ID: 1, Email: "ama@example.com", Amount: decimal.RequireFromString("5.00"), Status: model.PurchaseStatusPaymentCompleted},
		}})

		req := httptest.NewRequest(http.MethodGet, "/api/admin/purchases", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		res := serve(h, req)
		defer res.Body.Close()

		require.Equal(t, http.StatusOK, res.StatusCode)
		var got []purchaseResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Equal(t, "ama@example.com", got[0].Email)
	})

	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{name: "confirmed", path: "/api/admin/purchases/9/confirm", want: http.StatusOK},
		{name: "not found", path: "/api/admin/purchases/9/confirm", err: repository.ErrPurchaseNotFound, want: http.StatusNotFound},
		{name: "bad id", path: "/api/admin/purchases/abc/confirm", want: http.StatusBadRequest},
		{name: "zero id", path: "/api/admin/purchases/0/confirm", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{confirmErr: tt.err}
			h := newTestHandler(t, svc)

			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+token)

			res := serve(h, req)
			assert.Equal(t, tt.want, res.StatusCode)
			if tt.want == http.StatusOK {
				assert.Equal(t, int64(9), svc.confirmed)
			}
		})
	}
}

func TestDeleteAccount_ClearsCookie(t *testing.T) {
	h := newTestHandler(t, &stubService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/user", nil)
	req.AddCookie(authCookie(t, h, 1))

	res := serve(h, req)

	require.Equal(t, http.StatusOK, res.StatusCode)
	cookies := res.Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "", cookies[0].Value)
}

func TestDashboard(t *testing.T) {
	h := newTestHandler(t, &stubService{
		user: &model.User{Username: "ama", Balance: decimal.RequireFromString("20.00")},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/user/dashboard", nil)
	req.AddCookie(authCookie(t, h, 1))

	res := serve(h, req)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	var got dashboardResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, "ama", got.Username)
	assert.Equal(t, 20.0, got.Balance)
	assert.Empty(t, got.Purchases)
}
