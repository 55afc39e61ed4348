package dues

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FormatInvoiceNumber возвращает номер счёта в виде C3S-dues2018-0007.
func FormatInvoiceNumber(year int, number int64) string {
	return fmt.Sprintf("C3S-dues%d-%s", year, PadNumber(number))
}

// PadNumber дополняет номер счёта нулями до четырёх знаков.
func PadNumber(number int64) string {
	return fmt.Sprintf("%04d", number)
}

// ShortYear возвращает год двумя цифрами, как в адресах счетов.
func ShortYear(year int) string {
	return fmt.Sprintf("%02d", year%100)
}

// ErrInvalidFileName возвращается для имени файла счёта неизвестного вида.
var ErrInvalidFileName = errors.New("invalid invoice file name")

// InvoiceFileName возвращает имя PDF-файла счёта: C3S-dues18-0007.pdf,
// для сторнирующего счёта C3S-dues18-0007-S.pdf.
func InvoiceFileName(year int, number int64, reversal bool) string {
	name := fmt.Sprintf("C3S-dues%s-%s", ShortYear(year), PadNumber(number))
	if reversal {
		name += "-S"
	}
	return name + ".pdf"
}

// ParseInvoiceFileName разбирает имя файла счёта и возвращает двузначный год,
// номер счёта и признак сторно.
func ParseInvoiceFileName(name string) (string, int64, bool, error) {
	rest, ok := strings.CutPrefix(name, "C3S-dues")
	if !ok {
		return "", 0, false, ErrInvalidFileName
	}
	rest, ok = strings.CutSuffix(rest, ".pdf")
	if !ok {
		return "", 0, false, ErrInvalidFileName
	}
	rest, reversal := strings.CutSuffix(rest, "-S")

	yy, num, ok := strings.Cut(rest, "-")
	if !ok || len(yy) != 2 || len(num) < 4 {
		return "", 0, false, ErrInvalidFileName
	}
	if _, err := strconv.Atoi(yy); err != nil {
		return "", 0, false, ErrInvalidFileName
	}

	number, err := strconv.ParseInt(num, 10, 64)
	if err != nil || number <= 0 {
		return "", 0, false, ErrInvalidFileName
	}

	return yy, number, reversal, nil
}
