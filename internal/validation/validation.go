// Package validation содержит функции валидации входных данных.
package validation

import (
	"math"
	"net/mail"
	"unicode"
	"unicode/utf8"
)

const (
	maxUsernameLen = 30
	maxEmailLen    = 100
	minPasswordLen = 6
	// bcrypt учитывает только первые 72 байта пароля.
	maxPasswordLen = 72
)

// IsValidQuantity проверяет, что количество пицц положительно и помещается в INTEGER колонки orders.quantity.
func IsValidQuantity(quantity int) bool {
	return quantity > 0 && quantity <= math.MaxInt32
}

// IsValidUsername проверяет имя пользователя: непустое, не длиннее 30 символов,
// только буквы, цифры, '_', '-' и '.'.
func IsValidUsername(username string) bool {
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLen {
		return false
	}

	for _, ch := range username {
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			continue
		}
		switch ch {
		case '_', '-', '.':
			continue
		}
		return false
	}

	return true
}

// IsValidEmail проверяет адрес электронной почты.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > maxEmailLen {
		return false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}

	// Отсекаем формы вида "Name <addr>".
	return addr.Address == email
}

// IsValidPassword проверяет длину пароля.
func IsValidPassword(password string) bool {
	return len(password) >= minPasswordLen && len(password) <= maxPasswordLen
}
