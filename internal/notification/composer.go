// Package notification формирует тексты писем о членских взносах.
package notification

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/c3smembership/dues/internal/dues"
	"github.com/c3smembership/dues/internal/model"
)

// Mail содержит тему и текст письма.
type Mail struct {
	Subject string
	Body    string
}

// InvoiceData содержит данные для письма со счётом.
type InvoiceData struct {
	Year         int
	Member       model.Member
	Invoice      model.Invoice
	InvoiceURL   string
	StartQuarter string
}

// ReversalData содержит данные для письма об уменьшении взноса.
type ReversalData struct {
	Year        int
	Member      model.Member
	Reversal    model.Invoice
	ReversalURL string
	Invoice     *model.Invoice
	InvoiceURL  string
}

const defaultLocale = "en"

type localized struct {
	invoiceSubject   *template.Template
	invoiceBody      *template.Template
	investingSubject *template.Template
	investingBody    *template.Template
	legalEntityBody  *template.Template
	reversalSubject  *template.Template
	reversalBody     *template.Template
}

// Composer формирует письма по году, виду членства и локали члена.
type Composer struct {
	templates map[string]localized
}

// NewComposer создаёт Composer со встроенными шаблонами на немецком и английском.
func NewComposer() *Composer {
	return &Composer{
		templates: map[string]localized{
			"de": parseLocalized("de", germanTexts),
			"en": parseLocalized("en", englishTexts),
		},
	}
}

func parseLocalized(name string, t texts) localized {
	parse := func(part, text string) *template.Template {
		return template.Must(template.New(name + "." + part).Parse(text))
	}
	return localized{
		invoiceSubject:   parse("invoice_subject", t.invoiceSubject),
		invoiceBody:      parse("invoice_body", t.invoiceBody),
		investingSubject: parse("investing_subject", t.investingSubject),
		investingBody:    parse("investing_body", t.investingBody),
		legalEntityBody:  parse("legalentity_body", t.legalEntityBody),
		reversalSubject:  parse("reversal_subject", t.reversalSubject),
		reversalBody:     parse("reversal_body", t.reversalBody),
	}
}

func (c *Composer) forLocale(locale string) localized {
	if t, ok := c.templates[dues.NormalizeLocale(locale)]; ok {
		return t
	}
	return c.templates[defaultLocale]
}

// Invoice формирует письмо со ссылкой на счёт для обычного члена.
func (c *Composer) Invoice(data InvoiceData) (Mail, error) {
	t := c.forLocale(data.Member.Locale)
	view := struct {
		InvoiceData
		Name   string
		Amount string
	}{
		InvoiceData: data,
		Name:        data.Member.FullName(),
		Amount:      data.Invoice.Amount.StringFixed(2),
	}
	return render(t.invoiceSubject, t.invoiceBody, view)
}

// Recommendation формирует письмо с рекомендацией взноса для инвестирующего
// члена или юридического лица. Счёт к письму не прилагается.
func (c *Composer) Recommendation(member model.Member, year int) (Mail, error) {
	t := c.forLocale(member.Locale)
	body := t.investingBody
	if member.IsLegalEntity || member.MembershipType == model.MembershipTypeLegalEntity {
		body = t.legalEntityBody
	}
	view := struct {
		Year int
		Name string
	}{Year: year, Name: member.FullName()}
	return render(t.investingSubject, body, view)
}

// Reversal формирует письмо о сторнировании счёта после уменьшения взноса.
func (c *Composer) Reversal(data ReversalData) (Mail, error) {
	t := c.forLocale(data.Member.Locale)
	view := struct {
		ReversalData
		Name      string
		NewAmount string
	}{
		ReversalData: data,
		Name:         data.Member.FullName(),
	}
	if data.Invoice != nil {
		view.NewAmount = data.Invoice.Amount.StringFixed(2)
	}
	return render(t.reversalSubject, t.reversalBody, view)
}

func render(subject, body *template.Template, data any) (Mail, error) {
	var s, b bytes.Buffer
	if err := subject.Execute(&s, data); err != nil {
		return Mail{}, fmt.Errorf("render subject: %w", err)
	}
	if err := body.Execute(&b, data); err != nil {
		return Mail{}, fmt.Errorf("render body: %w", err)
	}
	return Mail{Subject: s.String(), Body: b.String()}, nil
}
