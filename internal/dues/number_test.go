package dues

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "C3S-dues2018-0007", FormatInvoiceNumber(2018, 7))
	assert.Equal(t, "C3S-dues2020-0123", FormatInvoiceNumber(2020, 123))
	assert.Equal(t, "C3S-dues2015-12345", FormatInvoiceNumber(2015, 12345))
}

func TestInvoiceFileName(t *testing.T) {
	assert.Equal(t, "C3S-dues18-0007.pdf", InvoiceFileName(2018, 7, false))
	assert.Equal(t, "C3S-dues20-0042-S.pdf", InvoiceFileName(2020, 42, true))
}

func TestParseInvoiceFileName(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		yy       string
		number   int64
		reversal bool
		wantErr  bool
	}{
		{name: "invoice", file: "C3S-dues18-0007.pdf", yy: "18", number: 7},
		{name: "reversal", file: "C3S-dues19-0100-S.pdf", yy: "19", number: 100, reversal: true},
		{name: "five digits", file: "C3S-dues19-10000.pdf", yy: "19", number: 10000},
		{name: "missing prefix", file: "dues18-0007.pdf", wantErr: true},
		{name: "missing extension", file: "C3S-dues18-0007", wantErr: true},
		{name: "short number", file: "C3S-dues18-7.pdf", wantErr: true},
		{name: "four digit year", file: "C3S-dues2018-0007.pdf", wantErr: true},
		{name: "zero number", file: "C3S-dues18-0000.pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yy, number, reversal, err := ParseInvoiceFileName(tt.file)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidFileName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.yy, yy)
			assert.Equal(t, tt.number, number)
			assert.Equal(t, tt.reversal, reversal)
		})
	}
}

func TestNewToken(t *testing.T) {
	seen := make(map[string]struct{})

	for i := 0; i < 100; i++ {
		token, err := NewToken()
		require.NoError(t, err)
		require.Len(t, token, TokenLength)

		for _, r := range token {
			require.True(t, strings.ContainsRune(TokenAlphabet, r), "unexpected rune %q in %q", r, token)
		}

		seen[token] = struct{}{}
	}

	// 26^10 вариантов: совпадение среди сотни токенов практически исключено.
	assert.Len(t, seen, 100)
}
