// Package validation содержит функции валидации входных данных.
package validation

import "regexp"

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValidEmail проверяет синтаксическую корректность email-адреса.
// Адрес не нормализуется: сравнение при хранении остаётся чувствительным к регистру.
func IsValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	return emailRe.MatchString(email)
}
