// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/bundlemart/internal/ledger"
)

// ErrInvalidBundleFormat возвращается, если из названия пакета не удаётся извлечь цену.
var ErrInvalidBundleFormat = errors.New("invalid bundle format")

const currencyCode = "GHS"

// ParseBundlePrice извлекает цену из названия пакета вида "1 GB - 5.40 GHS".
// Цену берём из части после первого '-', удалив код валюты.
func ParseBundlePrice(bundle string) (decimal.Decimal, error) {
	parts := strings.Split(bundle, "-")
	if len(parts) < 2 {
		return decimal.Zero, ErrInvalidBundleFormat
	}

	priceStr := strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(parts[1]), currencyCode, ""))
	if priceStr == "" {
		return decimal.Zero, ErrInvalidBundleFormat
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, ErrInvalidBundleFormat
	}

	// Цена хранится с точностью баланса
	price = ledger.Round(price)
	if !price.IsPositive() {
		return decimal.Zero, ErrInvalidBundleFormat
	}

	return price, nil
}

const phoneSeparators = " -().\t"

// NormalizePhoneNumber убирает из номера пробелы, дефисы, точки и скобки и проверяет,
// что остались только цифры (7-15) с необязательным ведущим '+'.
func NormalizePhoneNumber(number string) (string, bool) {
	normalized := strings.Map(func(ch rune) rune {
		if strings.ContainsRune(phoneSeparators, ch) {
			return -1
		}
		return ch
	}, strings.TrimSpace(number))

	digits := strings.TrimPrefix(normalized, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", false
	}

	for _, ch := range digits {
		if !unicode.IsDigit(ch) {
			return "", false
		}
	}

	return normalized, true
}
