// Package invoicepdf формирует PDF счетов и сторнирующих счетов на взносы.
package invoicepdf

import (
	"errors"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/c3smembership/dues/internal/dues"
	"github.com/c3smembership/dues/internal/model"
)

// ErrEmptyInvoice возвращается, если у счёта нет номера.
var ErrEmptyInvoice = errors.New("invoice has no number")

// Issuer описывает реквизиты организации, выставляющей счёт.
type Issuer struct {
	Name        string
	Address     string
	Email       string
	BankDetails string
}

// DefaultIssuer содержит реквизиты C3S SCE.
var DefaultIssuer = Issuer{
	Name:        "Cultural Commons Collecting Society SCE mbH",
	Address:     "Heyestraße 194, 40625 Düsseldorf",
	Email:       "yes@c3s.cc",
	BankDetails: "EthikBank eG, IBAN DE79 8309 4495 0003 2643 78, BIC GENODEF1ETK",
}

type labels struct {
	invoice     string
	reversal    string
	number      string
	date        string
	membership  string
	description string
	amount      string
	total       string
	reverses    string
	dues        string
	payment     string
	page        string
}

var localizedLabels = map[string]labels{
	"de": {
		invoice:     "Rechnung",
		reversal:    "Stornorechnung",
		number:      "Rechnungsnummer",
		date:        "Rechnungsdatum",
		membership:  "Mitgliedsnummer",
		description: "Beschreibung",
		amount:      "Betrag",
		total:       "Gesamtbetrag",
		reverses:    "Storniert Rechnung",
		dues:        "Mitgliedsbeitrag",
		payment:     "Bitte überweise den Betrag unter Angabe der Rechnungsnummer auf folgendes Konto:",
		page:        "Seite {current} von {total}",
	},
	"en": {
		invoice:     "Invoice",
		reversal:    "Reversal invoice",
		number:      "Invoice number",
		date:        "Invoice date",
		membership:  "Membership number",
		description: "Description",
		amount:      "Amount",
		total:       "Total",
		reverses:    "Reverses invoice",
		dues:        "Membership dues",
		payment:     "Please transfer the amount to the following account quoting the invoice number:",
		page:        "Page {current} of {total}",
	},
}

// Renderer формирует PDF документов о взносах.
type Renderer struct {
	issuer Issuer
	calc   dues.Calculator
}

// NewRenderer создаёт Renderer. calc используется для описания периода взноса.
func NewRenderer(issuer Issuer, calc dues.Calculator) *Renderer {
	return &Renderer{issuer: issuer, calc: calc}
}

// Render возвращает PDF счёта или сторнирующего счёта для члена.
func (r *Renderer) Render(inv model.Invoice, member model.Member) ([]byte, error) {
	if inv.Number <= 0 {
		return nil, ErrEmptyInvoice
	}

	l := labelsFor(member.Locale)

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: l.page,
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	title := l.invoice
	if inv.IsReversal {
		title = l.reversal
	}

	m.AddRow(12,
		text.NewCol(8, r.issuer.Name, props.Text{Size: 11, Style: fontstyle.Bold}),
		text.NewCol(4, title, props.Text{Size: 16, Style: fontstyle.Bold, Align: align.Right}),
	)
	m.AddRow(6, text.NewCol(12, r.issuer.Address, props.Text{Size: 9}))
	m.AddRow(10, text.NewCol(12, r.issuer.Email, props.Text{Size: 9}))

	numberString := inv.NumberString
	if numberString == "" {
		numberString = dues.FormatInvoiceNumber(inv.Year, inv.Number)
	}

	meta := []core.Component{
		text.New(l.number+": "+numberString, props.Text{Top: 0}),
		text.New(l.date+": "+inv.Date.Format("02.01.2006"), props.Text{Top: 5}),
		text.New(fmt.Sprintf("%s: %d", l.membership, inv.MembershipNumber), props.Text{Top: 10}),
	}
	if inv.IsReversal && inv.PrecedingNumber != nil {
		meta = append(meta, text.New(
			l.reverses+": "+dues.FormatInvoiceNumber(inv.Year, *inv.PrecedingNumber),
			props.Text{Top: 15},
		))
	}

	m.AddRow(25,
		col.New(6).Add(
			text.New(member.FullName(), props.Text{Style: fontstyle.Bold}),
			text.New(inv.Email, props.Text{Top: 5}),
		),
		col.New(6).Add(meta...),
	)

	m.AddRow(10,
		text.NewCol(9, l.description, props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, l.amount, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	amount := inv.Amount.StringFixed(2) + " EUR"
	m.AddRow(10,
		text.NewCol(9, r.describe(inv, member, l), props.Text{Size: 9}),
		text.NewCol(3, amount, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))
	m.AddRow(10,
		col.New(6),
		text.NewCol(3, l.total, props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, amount, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if !inv.IsReversal {
		m.AddRow(8, text.NewCol(12, l.payment, props.Text{Size: 9, Top: 4}))
		m.AddRow(8, text.NewCol(12, r.issuer.BankDetails, props.Text{Size: 9}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}

	return doc.GetBytes(), nil
}

func (r *Renderer) describe(inv model.Invoice, member model.Member, l labels) string {
	desc := fmt.Sprintf("%s %d", l.dues, inv.Year)
	if r.calc == nil || inv.IsReversal || inv.PrecedingNumber != nil {
		return desc
	}

	quarter, err := r.calc.Quarter(member, inv.Year)
	if err != nil {
		return desc
	}
	period, err := r.calc.Description(quarter, member.Locale)
	if err != nil {
		return desc
	}
	return desc + " (" + period + ")"
}

func labelsFor(locale string) labels {
	if l, ok := localizedLabels[dues.NormalizeLocale(locale)]; ok {
		return l
	}
	return localizedLabels["en"]
}
