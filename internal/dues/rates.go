package dues

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultBaseRate задаёт годовую ставку взноса по умолчанию.
var DefaultBaseRate = decimal.NewFromInt(50)

// RateTable хранит годовую ставку взноса с переопределениями по годам.
type RateTable struct {
	base      decimal.Decimal
	overrides map[int]decimal.Decimal
}

// NewRateTable создаёт таблицу ставок с базовой ставкой для всех годов.
func NewRateTable(base decimal.Decimal) RateTable {
	return RateTable{base: base, overrides: map[int]decimal.Decimal{}}
}

// WithRate возвращает копию таблицы с особой ставкой для года.
func (t RateTable) WithRate(year int, rate decimal.Decimal) RateTable {
	overrides := make(map[int]decimal.Decimal, len(t.overrides)+1)
	for y, r := range t.overrides {
		overrides[y] = r
	}
	overrides[year] = rate
	return RateTable{base: t.base, overrides: overrides}
}

// Rate возвращает годовую ставку для года.
func (t RateTable) Rate(year int) decimal.Decimal {
	if r, ok := t.overrides[year]; ok {
		return r
	}
	return t.base
}

// ParseRateTable разбирает строку вида "2019=50,2024=60.5" поверх базовой ставки.
func ParseRateTable(base decimal.Decimal, overrides string) (RateTable, error) {
	table := NewRateTable(base)

	for _, item := range strings.Split(overrides, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		yearStr, rateStr, ok := strings.Cut(item, "=")
		if !ok {
			return RateTable{}, fmt.Errorf("%w: rate entry %q", ErrInvalidArgument, item)
		}

		year, err := strconv.Atoi(strings.TrimSpace(yearStr))
		if err != nil {
			return RateTable{}, fmt.Errorf("%w: rate year %q", ErrInvalidArgument, yearStr)
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(rateStr))
		if err != nil || rate.IsNegative() {
			return RateTable{}, fmt.Errorf("%w: rate %q", ErrInvalidArgument, rateStr)
		}

		table = table.WithRate(year, rate)
	}

	return table, nil
}
