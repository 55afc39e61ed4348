// Package validation содержит проверки входных данных HTTP API.
package validation

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/c3smembership/dues/internal/dues"
)

// ErrInvalidYears возвращается при некорректном списке годов.
var ErrInvalidYears = errors.New("invalid years list")

// IsValidToken проверяет, что токен счёта состоит из TokenLength заглавных латинских букв.
func IsValidToken(token string) bool {
	if len(token) != dues.TokenLength {
		return false
	}
	for _, r := range token {
		if !strings.ContainsRune(dues.TokenAlphabet, r) {
			return false
		}
	}
	return true
}

// IsValidEmail проверяет адрес без отображаемого имени.
func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}

// ParseYears разбирает список годов через запятую. Пустая строка означает все годы.
func ParseYears(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	years := make([]int, 0, len(parts))
	for _, p := range parts {
		year, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || year < 1000 || year > 9999 {
			return nil, ErrInvalidYears
		}
		years = append(years, year)
	}
	return years, nil
}
