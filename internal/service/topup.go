package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/bundlemart/internal/ledger"
	"github.com/mmeshcher/bundlemart/internal/model"
	"github.com/mmeshcher/bundlemart/internal/paystack"
	"github.com/mmeshcher/bundlemart/internal/repository"
)

var (
	// ErrNoMatchingPendingPayment возвращается, если reference не соответствует ни одному ожидающему пополнению.
	ErrNoMatchingPendingPayment = errors.New("no matching pending payment")
	// ErrPaymentNotSuccessful возвращается, если шлюз не подтвердил оплату.
	ErrPaymentNotSuccessful = errors.New("payment verification failed")
	// ErrVerificationInProgress возвращается, если тот же reference проверяется параллельно.
	ErrVerificationInProgress = errors.New("payment verification in progress")
	// ErrGatewayNotConfigured возвращается, если платёжный шлюз не подключён.
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
)

// TopUpInput содержит данные заявки на пополнение кошелька.
type TopUpInput struct {
	Amount   decimal.Decimal
	Provider string
	Number   string
}

// InitiateTopUp регистрирует пополнение в шлюзе и сохраняет его как ожидающее.
// При отказе шлюза ничего не сохраняется, а ошибка содержит сообщение шлюза.
func (s *Service) InitiateTopUp(ctx context.Context, userID int64, in TopUpInput) (*model.TopUp, error) {
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	amount := ledger.Round(in.Amount)
	if !amount.IsPositive() {
		return nil, ErrValidation
	}

	minor, err := ledger.ToMinor(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if minor <= 0 {
		return nil, ErrValidation
	}

	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Оплаченное пополнение должно поместиться в баланс, иначе его не зачислить
	if !ledger.InRange(u.Balance.Add(amount)) {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ledger.ErrAmountOutOfRange)
	}

	res, err := s.gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       u.Email,
		Amount:      minor,
		CallbackURL: s.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize payment: %w", err)
	}

	err = s.repo.CreatePendingPayment(ctx, model.PendingPayment{
		Reference: res.Reference,
		UserID:    u.ID,
		Email:     u.Email,
		Amount:    amount,
		Provider:  strings.TrimSpace(in.Provider),
		Number:    strings.TrimSpace(in.Number),
	})
	if err != nil {
		return nil, err
	}

	return &model.TopUp{
		Reference:        res.Reference,
		AuthorizationURL: res.AuthorizationURL,
	}, nil
}

// VerifyTopUp проверяет пополнение в шлюзе и при успехе зачисляет его на кошелёк.
// Каждый reference зачисляется не более одного раза: повторная проверка
// возвращает ErrNoMatchingPendingPayment.
func (s *Service) VerifyTopUp(ctx context.Context, reference string) (*model.Transaction, decimal.Decimal, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, decimal.Zero, ErrValidation
	}
	if s.gateway == nil {
		return nil, decimal.Zero, ErrGatewayNotConfigured
	}

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, "verify:"+reference)
		if err != nil {
			// Повторное зачисление отсекает транзакция БД
			s.logger.Warn("verification lock unavailable", zap.Error(err), zap.String("reference", reference))
		} else if !ok {
			return nil, decimal.Zero, ErrVerificationInProgress
		} else {
			defer release()
		}
	}

	if _, err := s.repo.GetPendingPayment(ctx, reference); err != nil {
		if errors.Is(err, repository.ErrPendingPaymentNotFound) {
			return nil, decimal.Zero, ErrNoMatchingPendingPayment
		}
		return nil, decimal.Zero, err
	}

	res, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("verify payment: %w", err)
	}
	if !res.Successful() {
		return nil, decimal.Zero, ErrPaymentNotSuccessful
	}

	txn, balance, err := s.repo.CompletePendingPayment(ctx, reference)
	if err != nil {
		if errors.Is(err, repository.ErrPendingPaymentNotFound) {
			return nil, decimal.Zero, ErrNoMatchingPendingPayment
		}
		return nil, decimal.Zero, err
	}

	s.logger.Info("wallet topped up",
		zap.Int64("userID", txn.UserID),
		zap.String("reference", reference),
		zap.String("amount", txn.Amount.StringFixed(ledger.Precision)),
	)

	return txn, balance, nil
}
