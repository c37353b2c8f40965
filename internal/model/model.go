// Package model содержит доменные сущности магазина пакетов мобильных данных.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Email        string
	Username     string
	Mobile       string
	Gender       string
	PasswordHash []byte
	Balance      decimal.Decimal
	ProfileImage string
	CreatedAt    time.Time
}

// PurchaseStatus описывает статус покупки пакета.
type PurchaseStatus string

const (
	PurchaseStatusPaymentCompleted PurchaseStatus = "payment_completed"
	PurchaseStatusCredited         PurchaseStatus = "credited"
)

// PurchaseStage называет этап жизненного цикла покупки.
type PurchaseStage string

const (
	StageRequestCreated   PurchaseStage = "request_created"
	StagePaymentCompleted PurchaseStage = "payment_completed"
	StageCredited         PurchaseStage = "credited"
)

// StageMark отмечает, пройден ли этап и когда.
type StageMark struct {
	Done bool       `json:"done"`
	At   *time.Time `json:"at"`
}

// Purchase описывает покупку пакета за счёт кошелька пользователя.
type Purchase struct {
	ID         int64
	UserID     int64
	Email      string
	Provider   string
	Bundle     string
	Number     string
	Amount     decimal.Decimal
	Status     PurchaseStatus
	CreatedAt  time.Time
	PaidAt     *time.Time
	CreditedAt *time.Time
}

// Stages возвращает карту этапов покупки с отметками времени.
func (p Purchase) Stages() map[PurchaseStage]StageMark {
	created := p.CreatedAt
	return map[PurchaseStage]StageMark{
		StageRequestCreated:   {Done: true, At: &created},
		StagePaymentCompleted: {Done: p.PaidAt != nil, At: p.PaidAt},
		StageCredited:         {Done: p.CreditedAt != nil, At: p.CreditedAt},
	}
}

// PendingPayment описывает пополнение, ожидающее подтверждения платёжного шлюза.
type PendingPayment struct {
	Reference string
	UserID    int64
	Email     string
	Amount    decimal.Decimal
	Provider  string
	Number    string
	CreatedAt time.Time
}

// TransactionStatusSuccess обозначает зачисленное пополнение.
const TransactionStatusSuccess = "success"

// Transaction описывает завершённое пополнение кошелька.
type Transaction struct {
	ID        int64
	UserID    int64
	Amount    decimal.Decimal
	Provider  string
	Number    string
	Reference string
	Status    string
	CreatedAt time.Time
}

// Wallet содержит баланс пользователя и историю пополнений.
type Wallet struct {
	Balance      decimal.Decimal
	Transactions []Transaction
}

// Dashboard объединяет данные для главной страницы пользователя.
type Dashboard struct {
	Username  string
	Balance   decimal.Decimal
	Purchases []Purchase
}

// TopUp описывает инициированное пополнение, которое нужно оплатить на стороне шлюза.
type TopUp struct {
	Reference        string
	AuthorizationURL string
}
