// Package service реализует бизнес-логику магазина: кошелёк, покупки пакетов и пополнения.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/bundlemart/internal/model"
	"github.com/mmeshcher/bundlemart/internal/paystack"
	"github.com/mmeshcher/bundlemart/internal/repository"
	"github.com/mmeshcher/bundlemart/internal/security"
)

var (
	// ErrValidation возвращается для некорректных входных данных.
	ErrValidation = errors.New("validation error")
	// ErrPasswordMismatch возвращается, если пароль и подтверждение не совпадают.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrInvalidCredentials возвращается при неверном email или пароле.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, u repository.NewUser) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	UpdateUserProfile(ctx context.Context, userID int64, p repository.ProfileUpdate) error
	DeleteUser(ctx context.Context, userID int64) error
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	CreatePurchase(ctx context.Context, userID int64, p repository.NewPurchase) (*model.Purchase, error)
	GetPurchasesByUser(ctx context.Context, userID int64) ([]model.Purchase, error)
	GetAllPurchases(ctx context.Context) ([]model.Purchase, error)
	CreditPurchase(ctx context.Context, purchaseID int64, at time.Time) error
	CreatePendingPayment(ctx context.Context, p model.PendingPayment) error
	GetPendingPayment(ctx context.Context, reference string) (*model.PendingPayment, error)
	CompletePendingPayment(ctx context.Context, reference string) (*model.Transaction, decimal.Decimal, error)
	DeletePendingPaymentsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetTransactionsByUser(ctx context.Context, userID int64) ([]model.Transaction, error)
}

// Gateway описывает платёжный шлюз для пополнения кошелька.
type Gateway interface {
	Initialize(ctx context.Context, in paystack.InitializeRequest) (*paystack.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*paystack.VerifyResult, error)
}

// Locker выдаёт краткоживущие блокировки по ключу.
type Locker interface {
	TryLock(ctx context.Context, key string) (func(), bool, error)
}

// AdminCredentials содержит логин и bcrypt-хеш пароля администратора.
type AdminCredentials struct {
	Login        string
	PasswordHash []byte
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo        Repository
	gateway     Gateway
	locker      Locker
	logger      *zap.Logger
	callbackURL string
	admin       AdminCredentials
	tokens      *security.TokenManager
	now         func() time.Time
}

// NewService создаёт сервис с указанным репозиторием, платёжным шлюзом и адресом возврата из шлюза.
func NewService(repo Repository, gateway Gateway, logger *zap.Logger, callbackURL string) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		repo:        repo,
		gateway:     gateway,
		logger:      logger,
		callbackURL: callbackURL,
		now:         time.Now,
	}
}

// AttachLocker подключает блокировки для проверки платежей.
func (s *Service) AttachLocker(locker Locker) {
	s.locker = locker
}

// AttachAdmin подключает учётные данные администратора и выпуск токенов.
func (s *Service) AttachAdmin(creds AdminCredentials, tokens *security.TokenManager) {
	s.admin = creds
	s.tokens = tokens
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterInput содержит данные формы регистрации.
type RegisterInput struct {
	Username        string
	Email           string
	Mobile          string
	Gender          string
	Password        string
	ConfirmPassword string
}

// RegisterUser регистрирует нового пользователя с пустым кошельком.
func (s *Service) RegisterUser(ctx context.Context, in RegisterInput) (int64, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return 0, ErrValidation
	}
	if in.Password != in.ConfirmPassword {
		return 0, ErrPasswordMismatch
	}

	hashed, err := security.HashPassword(in.Password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, repository.NewUser{
		Email:        email,
		Username:     strings.TrimSpace(in.Username),
		Mobile:       strings.TrimSpace(in.Mobile),
		Gender:       strings.TrimSpace(in.Gender),
		PasswordHash: hashed,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет email и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (int64, error) {
	u, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

// AuthenticateAdmin проверяет учётные данные администратора и выпускает токен.
func (s *Service) AuthenticateAdmin(ctx context.Context, login, password string) (string, time.Time, error) {
	if s.tokens == nil || s.admin.Login == "" || len(s.admin.PasswordHash) == 0 {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if login != s.admin.Login {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := security.CheckPassword(s.admin.PasswordHash, password); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	return s.tokens.Issue(login)
}

// GetProfile возвращает профиль пользователя.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// ProfileInput содержит данные формы профиля. Пустой Password оставляет пароль прежним.
type ProfileInput struct {
	Username        string
	Email           string
	Mobile          string
	Gender          string
	ProfileImage    string
	Password        string
	ConfirmPassword string
}

// UpdateProfile обновляет профиль пользователя.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, ErrValidation
	}
	if in.Password != "" && in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	update := repository.ProfileUpdate{
		Email:        email,
		Username:     strings.TrimSpace(in.Username),
		Mobile:       strings.TrimSpace(in.Mobile),
		Gender:       strings.TrimSpace(in.Gender),
		ProfileImage: strings.TrimSpace(in.ProfileImage),
	}

	if in.Password != "" {
		hashed, err := security.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		update.PasswordHash = hashed
	}

	if err := s.repo.UpdateUserProfile(ctx, userID, update); err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, repository.ErrUserExists
		}
		return nil, err
	}

	return s.repo.GetUserByID(ctx, userID)
}

// DeleteUser удаляет аккаунт пользователя.
func (s *Service) DeleteUser(ctx context.Context, userID int64) error {
	return s.repo.DeleteUser(ctx, userID)
}

// GetBalance возвращает баланс кошелька пользователя.
func (s *Service) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return s.repo.GetBalance(ctx, userID)
}

// GetWallet возвращает баланс и историю пополнений пользователя.
func (s *Service) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	balance, err := s.repo.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	txs, err := s.repo.GetTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.Wallet{Balance: balance, Transactions: txs}, nil
}

// Dashboard возвращает имя, баланс и покупки пользователя.
func (s *Service) Dashboard(ctx context.Context, userID int64) (*model.Dashboard, error) {
	u, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	purchases, err := s.repo.GetPurchasesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.Dashboard{
		Username:  u.Username,
		Balance:   u.Balance,
		Purchases: purchases,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
