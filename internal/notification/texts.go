package notification

type texts struct {
	invoiceSubject   string
	invoiceBody      string
	investingSubject string
	investingBody    string
	legalEntityBody  string
	reversalSubject  string
	reversalBody     string
}

var germanTexts = texts{
	invoiceSubject: `C3S: Rechnung für deinen Mitgliedsbeitrag {{.Year}}`,
	invoiceBody: `Hallo {{.Name}},

die Cultural Commons Collecting Society SCE mit beschränkter Haftung (C3S SCE)
erhebt von ihren ordentlichen Mitgliedern einen Mitgliedsbeitrag.

Für das Jahr {{.Year}} ({{.StartQuarter}}) beträgt dein Beitrag {{.Amount}} Euro.
Die Rechnung {{.Invoice.NumberString}} kannst du hier herunterladen:

  {{.InvoiceURL}}

Bitte gib bei der Überweisung die Rechnungsnummer als Verwendungszweck an.

Viele Grüße
Das C3S-Team
`,
	investingSubject: `C3S: Mitgliedsbeitrag {{.Year}}`,
	investingBody: `Hallo {{.Name}},

als investierendes Mitglied der C3S SCE bist du nicht beitragspflichtig.
Wir freuen uns aber über einen freiwilligen Beitrag für das Jahr {{.Year}};
wir empfehlen 50 Euro.

Viele Grüße
Das C3S-Team
`,
	legalEntityBody: `Hallo {{.Name}},

als investierendes Mitglied der C3S SCE ist Ihre Organisation nicht
beitragspflichtig. Wir freuen uns aber über einen freiwilligen Beitrag für
das Jahr {{.Year}}, dessen Höhe sich an der Größe Ihrer Organisation orientiert.

Viele Grüße
Das C3S-Team
`,
	reversalSubject: `C3S: Stornorechnung für deinen Mitgliedsbeitrag {{.Year}}`,
	reversalBody: `Hallo {{.Name}},

dein Mitgliedsbeitrag für das Jahr {{.Year}} wurde reduziert.
Die Stornorechnung {{.Reversal.NumberString}} findest du hier:

  {{.ReversalURL}}
{{if .Invoice}}
Dein neuer Beitrag beträgt {{.NewAmount}} Euro. Die neue Rechnung
{{.Invoice.NumberString}} findest du hier:

  {{.InvoiceURL}}
{{end}}
Viele Grüße
Das C3S-Team
`,
}

var englishTexts = texts{
	invoiceSubject: `C3S: invoice for your membership dues {{.Year}}`,
	invoiceBody: `Hello {{.Name}},

the Cultural Commons Collecting Society SCE mit beschränkter Haftung (C3S SCE)
collects membership dues from its regular members.

For the year {{.Year}} ({{.StartQuarter}}) your dues amount to {{.Amount}} Euro.
You can download invoice {{.Invoice.NumberString}} here:

  {{.InvoiceURL}}

Please use the invoice number as the reference of your bank transfer.

Best regards
The C3S team
`,
	investingSubject: `C3S: membership dues {{.Year}}`,
	investingBody: `Hello {{.Name}},

as an investing member of C3S SCE you are not obliged to pay membership dues.
Nevertheless we appreciate a voluntary contribution for the year {{.Year}};
we recommend 50 Euro.

Best regards
The C3S team
`,
	legalEntityBody: `Hello {{.Name}},

as an investing member of C3S SCE your organisation is not obliged to pay
membership dues. Nevertheless we appreciate a voluntary contribution for the
year {{.Year}} scaled to the size of your organisation.

Best regards
The C3S team
`,
	reversalSubject: `C3S: reversal invoice for your membership dues {{.Year}}`,
	reversalBody: `Hello {{.Name}},

your membership dues for the year {{.Year}} have been reduced.
You can find reversal invoice {{.Reversal.NumberString}} here:

  {{.ReversalURL}}
{{if .Invoice}}
Your new dues amount to {{.NewAmount}} Euro. You can find the new invoice
{{.Invoice.NumberString}} here:

  {{.InvoiceURL}}
{{end}}
Best regards
The C3S team
`,
}
