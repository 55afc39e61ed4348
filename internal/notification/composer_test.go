package notification

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3smembership/dues/internal/model"
)

func testInvoice() model.Invoice {
	return model.Invoice{
		Year:         2019,
		Number:       7,
		NumberString: "C3S-dues2019-0007",
		Date:         time.Date(2019, 3, 1, 10, 0, 0, 0, time.UTC),
		Amount:       decimal.RequireFromString("37.5"),
		Token:        "ABCDEFGHIJ",
	}
}

func TestComposer_Invoice(t *testing.T) {
	c := NewComposer()

	tests := []struct {
		name        string
		locale      string
		subject     string
		bodyContain []string
	}{
		{
			name:    "german",
			locale:  "de",
			subject: "C3S: Rechnung für deinen Mitgliedsbeitrag 2019",
			bodyContain: []string{
				"Hallo Ada Lovelace",
				"ab Quartal 2",
				"37.50 Euro",
				"C3S-dues2019-0007",
				"https://example.org/dues19_invoice_no/ABCDEFGHIJ/C3S-dues19-0007.pdf",
			},
		},
		{
			name:        "english",
			locale:      "en_GB",
			subject:     "C3S: invoice for your membership dues 2019",
			bodyContain: []string{"Hello Ada Lovelace", "37.50 Euro", "C3S-dues2019-0007"},
		},
		{
			name:        "unknown locale falls back to english",
			locale:      "fr",
			subject:     "C3S: invoice for your membership dues 2019",
			bodyContain: []string{"Hello Ada Lovelace"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mail, err := c.Invoice(InvoiceData{
				Year:         2019,
				Member:       model.Member{FirstName: "Ada", LastName: "Lovelace", Locale: tt.locale},
				Invoice:      testInvoice(),
				InvoiceURL:   "https://example.org/dues19_invoice_no/ABCDEFGHIJ/C3S-dues19-0007.pdf",
				StartQuarter: "ab Quartal 2",
			})
			require.NoError(t, err)

			assert.Equal(t, tt.subject, mail.Subject)
			for _, s := range tt.bodyContain {
				assert.Contains(t, mail.Body, s)
			}
		})
	}
}

func TestComposer_Recommendation(t *testing.T) {
	c := NewComposer()

	investing := model.Member{FirstName: "Grace", LastName: "Hopper", Locale: "en", MembershipType: model.MembershipTypeInvesting}
	mail, err := c.Recommendation(investing, 2020)
	require.NoError(t, err)
	assert.Equal(t, "C3S: membership dues 2020", mail.Subject)
	assert.Contains(t, mail.Body, "we recommend 50 Euro")
	assert.NotContains(t, mail.Body, "organisation")

	legal := model.Member{FirstName: "ACME", Locale: "de", MembershipType: model.MembershipTypeLegalEntity}
	mail, err = c.Recommendation(legal, 2020)
	require.NoError(t, err)
	assert.Equal(t, "C3S: Mitgliedsbeitrag 2020", mail.Subject)
	assert.Contains(t, mail.Body, "Ihrer Organisation")
}

func TestComposer_Reversal(t *testing.T) {
	c := NewComposer()

	reversal := testInvoice()
	reversal.Number = 9
	reversal.NumberString = "C3S-dues2019-0009"
	reversal.IsReversal = true

	mail, err := c.Reversal(ReversalData{
		Year:        2019,
		Member:      model.Member{FirstName: "Ada", Locale: "en"},
		Reversal:    reversal,
		ReversalURL: "https://example.org/rev",
	})
	require.NoError(t, err)
	assert.Contains(t, mail.Body, "C3S-dues2019-0009")
	assert.NotContains(t, mail.Body, "new invoice")

	newInvoice := testInvoice()
	newInvoice.Number = 10
	newInvoice.NumberString = "C3S-dues2019-0010"
	newInvoice.Amount = decimal.RequireFromString("20")

	mail, err = c.Reversal(ReversalData{
		Year:        2019,
		Member:      model.Member{FirstName: "Ada", Locale: "en"},
		Reversal:    reversal,
		ReversalURL: "https://example.org/rev",
		Invoice:     &newInvoice,
		InvoiceURL:  "https://example.org/new",
	})
	require.NoError(t, err)
	assert.Contains(t, mail.Body, "20.00 Euro")
	assert.Contains(t, mail.Body, "https://example.org/new")
}
