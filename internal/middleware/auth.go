// Package middleware содержит HTTP middleware сервиса членских взносов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const staffLoginKey contextKey = "staffLogin"

const (
	authCookieName = "dues_staff"
	authCookieTTL  = 12 * time.Hour
)

// AuthMiddleware пропускает к служебному API только запросы с подписанным
// cookie сотрудника.
type AuthMiddleware struct {
	secretKey []byte
	now       func() time.Time
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
// При пустом ключе генерируется случайный, и сессии не переживают перезапуск.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
		now:       time.Now,
	}
}

// Middleware проверяет cookie сотрудника и добавляет его логин в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		login, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), staffLoginKey, login)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetAuthCookie устанавливает cookie сессии для сотрудника.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, login string) {
	expires := a.now().Add(authCookieTTL)

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    a.sign(login, expires.Unix()),
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearAuthCookie завершает сессию сотрудника.
func (a *AuthMiddleware) ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Значение cookie: hex(login).expiry.signature. Логин кодируется, чтобы точка
// в нём не ломала разбор.
func (a *AuthMiddleware) sign(login string, expiry int64) string {
	payload := hex.EncodeToString([]byte(login)) + "." + strconv.FormatInt(expiry, 10)
	return payload + "." + a.signature(payload)
}

func (a *AuthMiddleware) signature(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (string, bool) {
	parts := strings.Split(cookieValue, ".")
	if len(parts) != 3 {
		return "", false
	}

	payload := parts[0] + "." + parts[1]
	if !hmac.Equal([]byte(parts[2]), []byte(a.signature(payload))) {
		return "", false
	}

	expiry, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || a.now().Unix() > expiry {
		return "", false
	}

	login, err := hex.DecodeString(parts[0])
	if err != nil || len(login) == 0 {
		return "", false
	}

	return string(login), true
}

// StaffFromContext извлекает логин сотрудника из контекста запроса.
func StaffFromContext(ctx context.Context) (string, bool) {
	login, ok := ctx.Value(staffLoginKey).(string)
	return login, ok
}
