package dues

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// TokenLength задаёт длину токена доступа к счёту.
	TokenLength = 10
	// TokenAlphabet содержит допустимые символы токена.
	TokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// TokenGenerator создаёт токены доступа к счетам.
type TokenGenerator func() (string, error)

// NewToken генерирует случайный токен из TokenAlphabet длиной TokenLength.
func NewToken() (string, error) {
	alphabetSize := big.NewInt(int64(len(TokenAlphabet)))
	buf := make([]byte, TokenLength)

	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		buf[i] = TokenAlphabet[n.Int64()]
	}

	return string(buf), nil
}
