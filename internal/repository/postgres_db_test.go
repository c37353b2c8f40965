package repository

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/bundlemart/internal/model"
)

// newTestRepository подключается к БД из DATABASE_URI; без неё тесты пропускаются.
func newTestRepository(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("DATABASE_URI")
	if dsn == "" {
		t.Skip("DATABASE_URI is not set")
	}

	repo, err := NewPostgresRepository(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func createTestUser(t *testing.T, repo *PostgresRepository) int64 {
	t.Helper()

	id, err := repo.CreateUser(context.Background(), NewUser{
		Email:        uuid.NewString() + "@example.com",
		Username:     "ama",
		PasswordHash: []byte("hash"),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		err := repo.DeleteUser(context.Background(), id)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			t.Errorf("cleanup user %d: %v", id, err)
		}
	})

	return id
}

func topUp(t *testing.T, repo *PostgresRepository, userID int64, amount string) string {
	t.Helper()
	ctx := context.Background()

	ref := uuid.NewString()
	require.NoError(t, repo.CreatePendingPayment(ctx, model.PendingPayment{
		Reference: ref,
		UserID:    userID,
		Email:     "ama@example.com",
		Amount:    decimal.RequireFromString(amount),
		Provider:  "MTN",
		Number:    "0241234567",
	}))

	_, _, err := repo.CompletePendingPayment(ctx, ref)
	require.NoError(t, err)

	return ref
}

func TestPostgres_TopUpThenPurchase(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	userID := createTestUser(t, repo)

	ref := uuid.NewString()
	require.NoError(t, repo.CreatePendingPayment(ctx, model.PendingPayment{
		Reference: ref,
		UserID:    userID,
		Email:     "ama@example.com",
		Amount:    decimal.RequireFromString("10.00"),
	}))

	txn, balance, err := repo.CompletePendingPayment(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "10.00", balance.StringFixed(2))
	assert.Equal(t, model.TransactionStatusSuccess, txn.Status)

	// reference зачисляется один раз
	_, _, err = repo.CompletePendingPayment(ctx, ref)
	assert.ErrorIs(t, err, ErrPendingPaymentNotFound)
	_, err = repo.GetPendingPayment(ctx, ref)
	assert.ErrorIs(t, err, ErrPendingPaymentNotFound)

	p, err := repo.CreatePurchase(ctx, userID, NewPurchase{
		Provider: "MTN",
		Bundle:   "1 GB - 5.40 GHS",
		Number:   "0241234567",
		Amount:   decimal.RequireFromString("5.40"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusPaymentCompleted, p.Status)
	require.NotNil(t, p.PaidAt)

	_, err = repo.CreatePurchase(ctx, userID, NewPurchase{
		Provider: "MTN",
		Bundle:   "1 GB - 5.40 GHS",
		Number:   "0241234567",
		Amount:   decimal.RequireFromString("5.40"),
	})
	var fundsErr *InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, "4.60", fundsErr.Balance.StringFixed(2))

	got, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "4.60", got.StringFixed(2))

	purchases, err := repo.GetPurchasesByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, purchases, 1)

	require.NoError(t, repo.CreditPurchase(ctx, p.ID, time.Now().UTC()))
	purchases, err = repo.GetPurchasesByUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, model.PurchaseStatusCredited, purchases[0].Status)
	assert.NotNil(t, purchases[0].CreditedAt)

	txs, err := repo.GetTransactionsByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, ref, txs[0].Reference)
}

func TestPostgres_ConcurrentPurchasesDoNotOverdraw(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	userID := createTestUser(t, repo)
	topUp(t, repo, userID, "10.00")

	var succeeded, rejected atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, err := repo.CreatePurchase(gctx, userID, NewPurchase{
				Provider: "MTN",
				Bundle:   "2 GB - 5.00 GHS",
				Number:   "0241234567",
				Amount:   decimal.RequireFromString("5.00"),
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrInsufficientBalance):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(2), succeeded.Load())
	assert.Equal(t, int32(3), rejected.Load())

	balance, err := repo.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "balance = %s", balance)
}

func TestPostgres_ProfileUpdateAndCascade(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	userID := createTestUser(t, repo)
	topUp(t, repo, userID, "5.00")

	require.NoError(t, repo.UpdateUserProfile(ctx, userID, ProfileUpdate{
		Email:    uuid.NewString() + "@example.com",
		Username: "ama-updated",
	}))

	u, err := repo.GetUserByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "ama-updated", u.Username)
	assert.Equal(t, []byte("hash"), u.PasswordHash, "nil hash keeps the old password")

	_, err = repo.CreatePurchase(ctx, userID, NewPurchase{
		Provider: "MTN",
		Bundle:   "500 MB - 3 GHS",
		Number:   "0241234567",
		Amount:   decimal.RequireFromString("3"),
	})
	require.NoError(t, err)

	pendingRef := uuid.NewString()
	require.NoError(t, repo.CreatePendingPayment(ctx, model.PendingPayment{
		Reference: pendingRef,
		UserID:    userID,
		Email:     u.Email,
		Amount:    decimal.RequireFromString("1"),
	}))

	require.NoError(t, repo.DeleteUser(ctx, userID))

	purchases, err := repo.GetPurchasesByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, purchases)

	txs, err := repo.GetTransactionsByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, txs)

	_, err = repo.GetPendingPayment(ctx, pendingRef)
	assert.ErrorIs(t, err, ErrPendingPaymentNotFound)

	assert.ErrorIs(t, repo.DeleteUser(ctx, userID), ErrUserNotFound)
}
