package invoicepdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3smembership/dues/internal/dues"
	"github.com/c3smembership/dues/internal/model"
)

func testMember() model.Member {
	joined := time.Date(2019, time.August, 1, 0, 0, 0, 0, time.UTC)
	return model.Member{
		ID:               1,
		MembershipNumber: 1001,
		FirstName:        "Ada",
		LastName:         "Lovelace",
		Email:            "ada@example.org",
		Locale:           "de",
		MembershipType:   model.MembershipTypeNormal,
		MembershipDate:   &joined,
	}
}

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer(DefaultIssuer, dues.NewQuarterlyCalculator(dues.NewRateTable(dues.DefaultBaseRate)))
	preceding := int64(7)

	tests := []struct {
		name string
		inv  model.Invoice
	}{
		{
			name: "invoice",
			inv: model.Invoice{
				Year: 2019, Number: 7, NumberString: "C3S-dues2019-0007",
				Date: time.Date(2019, 9, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("25"),
				MembershipNumber: 1001, Email: "ada@example.org",
			},
		},
		{
			name: "reversal without number string",
			inv: model.Invoice{
				Year: 2019, Number: 8, IsReversal: true, PrecedingNumber: &preceding,
				Date: time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC), Amount: decimal.RequireFromString("-25"),
				MembershipNumber: 1001, Email: "ada@example.org",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdf, err := r.Render(tt.inv, testMember())
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
		})
	}
}

func TestRenderer_RenderRejectsEmptyInvoice(t *testing.T) {
	r := NewRenderer(DefaultIssuer, nil)

	_, err := r.Render(model.Invoice{Year: 2019}, testMember())
	require.ErrorIs(t, err, ErrEmptyInvoice)
}

func TestRenderer_Describe(t *testing.T) {
	r := NewRenderer(DefaultIssuer, dues.NewQuarterlyCalculator(dues.NewRateTable(dues.DefaultBaseRate)))
	member := testMember()

	got := r.describe(model.Invoice{Year: 2019, Number: 1}, member, labelsFor(member.Locale))
	assert.Equal(t, "Mitgliedsbeitrag 2019 (ab Quartal 3)", got)

	preceding := int64(2)
	got = r.describe(model.Invoice{Year: 2019, Number: 3, PrecedingNumber: &preceding}, member, labelsFor("fr"))
	assert.Equal(t, "Membership dues 2019", got)
}
