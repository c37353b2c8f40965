// Package security содержит хеширование паролей и выпуск токенов администратора.
package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidPassword возвращается, если пароль не совпадает с хешем.
var ErrInvalidPassword = errors.New("invalid password")

// HashPassword возвращает bcrypt-хеш пароля.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// CheckPassword сравнивает пароль с bcrypt-хешем.
func CheckPassword(hash []byte, password string) error {
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}
