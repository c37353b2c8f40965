package service

import (
	"context"
	"strings"

	"github.com/mmeshcher/bundlemart/internal/model"
	"github.com/mmeshcher/bundlemart/internal/repository"
	"github.com/mmeshcher/bundlemart/internal/validation"
)

// PurchaseInput содержит данные заявки на покупку пакета.
type PurchaseInput struct {
	Network string
	Bundle  string
	Mobile  string
}

// CreatePurchase покупает пакет за счёт кошелька. Списание считается оплатой,
// поэтому покупка сразу получает статус payment_completed.
func (s *Service) CreatePurchase(ctx context.Context, userID int64, in PurchaseInput) (*model.Purchase, error) {
	network := strings.TrimSpace(in.Network)
	mobile, ok := validation.NormalizePhoneNumber(in.Mobile)
	if network == "" || !ok {
		return nil, ErrValidation
	}

	price, err := validation.ParseBundlePrice(in.Bundle)
	if err != nil {
		return nil, err
	}

	return s.repo.CreatePurchase(ctx, userID, repository.NewPurchase{
		Provider: network,
		Bundle:   in.Bundle,
		Number:   mobile,
		Amount:   price,
	})
}

// GetPurchasesByUser возвращает покупки пользователя.
func (s *Service) GetPurchasesByUser(ctx context.Context, userID int64) ([]model.Purchase, error) {
	return s.repo.GetPurchasesByUser(ctx, userID)
}

// ListAllPurchases возвращает все покупки для администратора.
func (s *Service) ListAllPurchases(ctx context.Context) ([]model.Purchase, error) {
	return s.repo.GetAllPurchases(ctx)
}

// ConfirmPurchase отмечает покупку выполненной (credited). Баланс не меняется.
func (s *Service) ConfirmPurchase(ctx context.Context, purchaseID int64) error {
	if purchaseID <= 0 {
		return ErrValidation
	}
	return s.repo.CreditPurchase(ctx, purchaseID, s.now().UTC())
}
