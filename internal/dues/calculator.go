// Package dues реализует расчёт членских взносов с поквартальной разбивкой.
package dues

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/c3smembership/dues/internal/model"
)

var (
	// ErrInvalidArgument возвращается при некорректном квартале или неподдерживаемой локали.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMembershipNotAccepted возвращается для заявок без даты принятия в члены.
	ErrMembershipNotAccepted = errors.New("membership not accepted")
	// ErrNotMemberInYear возвращается, если член принят после расчётного года.
	ErrNotMemberInYear = errors.New("member joined after dues year")
)

const quartersPerYear = 4

// Calculation содержит результат расчёта взносов.
type Calculation struct {
	Amount  decimal.Decimal
	Code    string
	Quarter int
}

// Calculator описывает расчёт взносов члена за год.
type Calculator interface {
	Calculate(member model.Member, year int) (Calculation, error)
	Quarter(member model.Member, year int) (int, error)
	Description(quarter int, locale string) (string, error)
}

// QuarterlyCalculator начисляет взносы за кварталы, начиная с квартала вступления.
type QuarterlyCalculator struct {
	rates RateTable
}

// NewQuarterlyCalculator создаёт калькулятор с указанной таблицей ставок.
func NewQuarterlyCalculator(rates RateTable) *QuarterlyCalculator {
	return &QuarterlyCalculator{rates: rates}
}

// Quarter возвращает квартал года, с которого начисляются взносы.
func (c *QuarterlyCalculator) Quarter(member model.Member, year int) (int, error) {
	if member.MembershipDate == nil {
		return 0, ErrMembershipNotAccepted
	}

	joined := member.MembershipDate
	switch {
	case joined.Year() < year:
		return 1, nil
	case joined.Year() > year:
		return 0, fmt.Errorf("%w: joined %d, dues year %d", ErrNotMemberInYear, joined.Year(), year)
	}

	return (int(joined.Month())-1)/3 + 1, nil
}

// Calculate рассчитывает сумму и код взносов члена за год.
func (c *QuarterlyCalculator) Calculate(member model.Member, year int) (Calculation, error) {
	quarter, err := c.Quarter(member, year)
	if err != nil {
		return Calculation{}, err
	}

	owed := decimal.NewFromInt(int64(quartersPerYear - quarter + 1))
	amount := c.rates.Rate(year).
		Mul(owed).
		Div(decimal.NewFromInt(quartersPerYear)).
		Round(2)

	return Calculation{
		Amount:  amount,
		Code:    fmt.Sprintf("q%d_%d", quarter, year),
		Quarter: quarter,
	}, nil
}

var quarterDescriptions = map[string][quartersPerYear]string{
	"de": {"ganzes Jahr", "ab Quartal 2", "ab Quartal 3", "ab Quartal 4"},
	"en": {"whole year", "from 2nd quarter", "from 3rd quarter", "from 4th quarter"},
}

// Description возвращает описание начального квартала на языке локали.
func (c *QuarterlyCalculator) Description(quarter int, locale string) (string, error) {
	if quarter < 1 || quarter > quartersPerYear {
		return "", fmt.Errorf("%w: quarter %d", ErrInvalidArgument, quarter)
	}

	texts, ok := quarterDescriptions[NormalizeLocale(locale)]
	if !ok {
		return "", fmt.Errorf("%w: locale %q", ErrInvalidArgument, locale)
	}

	return texts[quarter-1], nil
}

// NormalizeLocale сводит локаль вида "de_DE" или "en-GB" к коду языка.
func NormalizeLocale(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "_-"); i >= 0 {
		locale = locale[:i]
	}
	return locale
}
