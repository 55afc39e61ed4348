package service

import (
	"net/url"
	"strings"

	"github.com/c3smembership/dues/internal/dues"
)

// URLBuilder строит абсолютные ссылки на PDF счетов.
type URLBuilder struct {
	base string
}

// NewURLBuilder создаёт URLBuilder с базовым адресом сервиса.
func NewURLBuilder(base string) URLBuilder {
	return URLBuilder{base: strings.TrimRight(base, "/")}
}

// InvoiceURL возвращает ссылку вида /dues19_invoice_no/{token}/C3S-dues19-0007.pdf.
func (b URLBuilder) InvoiceURL(year int, token string, number int64) string {
	return b.base + InvoicePath(year, token, number)
}

// ReversalURL возвращает ссылку на сторнирующий счёт.
func (b URLBuilder) ReversalURL(year int, token string, number int64) string {
	return b.base + ReversalPath(year, token, number)
}

// InvoicePath возвращает путь к PDF счёта без базового адреса.
func InvoicePath(year int, token string, number int64) string {
	return "/dues" + dues.ShortYear(year) + "_invoice_no/" + url.PathEscape(token) + "/" +
		dues.InvoiceFileName(year, number, false)
}

// ReversalPath возвращает путь к PDF сторнирующего счёта без базового адреса.
func ReversalPath(year int, token string, number int64) string {
	return "/dues" + dues.ShortYear(year) + "_reversal/" + url.PathEscape(token) + "/" +
		dues.InvoiceFileName(year, number, true)
}
