// Package ledger реализует арифметику кошелька: списания, зачисления и округление до копеек.
package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Precision задаёт число знаков после запятой у баланса кошелька.
const Precision = 2

var (
	// ErrInsufficientFunds возвращается, если баланса не хватает для списания.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAmountOutOfRange возвращается для отрицательной суммы или суммы больше MaxAmount.
	ErrAmountOutOfRange = errors.New("amount out of range")
)

// MaxAmount задаёт наибольший баланс, который помещается в колонку NUMERIC(14,2).
var MaxAmount = decimal.RequireFromString("999999999999.99")

var hundred = decimal.NewFromInt(100)

// Round округляет сумму до двух знаков.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(Precision)
}

// Debit списывает amount с баланса. При нехватке средств баланс не меняется.
func Debit(balance, amount decimal.Decimal) (decimal.Decimal, error) {
	if balance.LessThan(amount) {
		return balance, ErrInsufficientFunds
	}
	return Round(balance.Sub(amount)), nil
}

// Credit зачисляет amount на баланс.
func Credit(balance, amount decimal.Decimal) decimal.Decimal {
	return Round(balance.Add(amount))
}

// InRange сообщает, помещается ли неотрицательная сумма в баланс кошелька.
func InRange(amount decimal.Decimal) bool {
	return !amount.IsNegative() && amount.LessThanOrEqual(MaxAmount)
}

// ToMinor переводит сумму в минорные единицы шлюза с отбрасыванием дробной части.
// Суммы вне [0, MaxAmount] не переводятся, чтобы не переполнить int64.
func ToMinor(amount decimal.Decimal) (int64, error) {
	if !InRange(amount) {
		return 0, ErrAmountOutOfRange
	}
	return amount.Mul(hundred).IntPart(), nil
}

// FromMinor переводит минорные единицы обратно в сумму.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Precision)
}
