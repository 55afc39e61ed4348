// Package model содержит доменные сущности сервиса членских взносов.
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MembershipType описывает вид членства.
type MembershipType string

const (
	MembershipTypeNormal      MembershipType = "normal"
	MembershipTypeInvesting   MembershipType = "investing"
	MembershipTypeLegalEntity MembershipType = "legalentity"
)

// ParseMembershipType приводит строку к виду членства. Второе значение false,
// если вид членства не распознан.
func ParseMembershipType(s string) (MembershipType, bool) {
	switch t := MembershipType(strings.ToLower(strings.TrimSpace(s))); t {
	case MembershipTypeNormal, MembershipTypeInvesting, MembershipTypeLegalEntity:
		return t, true
	default:
		return t, false
	}
}

// Member представляет члена кооператива.
type Member struct {
	ID               int64
	MembershipNumber int64
	FirstName        string
	LastName         string
	Email            string
	Locale           string
	MembershipType   MembershipType
	IsLegalEntity    bool
	// MembershipDate: дата принятия в члены, nil для непринятых заявок.
	MembershipDate *time.Time
	CreatedAt      time.Time
}

// FullName возвращает имя и фамилию члена.
func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// ReceivesInvoice сообщает, выставляется ли члену счёт на взносы.
// Инвестирующие члены и юридические лица получают только рекомендацию.
func (m Member) ReceivesInvoice() bool {
	return m.MembershipType == MembershipTypeNormal
}

// DuesState описывает состояние взносов члена за год.
type DuesState string

const (
	DuesStateNoInvoice  DuesState = "NO_INVOICE"
	DuesStateCalculated DuesState = "CALCULATED"
	DuesStateEmailSent  DuesState = "EMAIL_SENT"
)

// MemberDues хранит сведения о взносах члена за один год.
type MemberDues struct {
	MemberID      int64
	Year          int
	Amount        decimal.Decimal
	Code          string
	InvoiceNumber *int64
	Token         string
	InvoiceSent   bool
	InvoiceSentAt *time.Time
	IsReduced     bool
	ReducedAmount *decimal.Decimal
	CalculatedAt  *time.Time
	// EmailFailedAt: время последней неудачной попытки рассылки.
	EmailFailedAt *time.Time
	EmailAttempts int
}

// State возвращает состояние взносов. Пустое значение означает отсутствие счёта.
func (d *MemberDues) State() DuesState {
	switch {
	case d == nil:
		return DuesStateNoInvoice
	case d.InvoiceSent:
		return DuesStateEmailSent
	case d.InvoiceNumber != nil:
		return DuesStateCalculated
	default:
		return DuesStateNoInvoice
	}
}

// Invoice описывает счёт на членские взносы за год.
type Invoice struct {
	ID               int64
	Year             int
	Number           int64
	NumberString     string
	Date             time.Time
	Amount           decimal.Decimal
	MemberID         int64
	MembershipNumber int64
	Email            string
	Token            string
	IsReversal       bool
	IsCancelled      bool
	PrecedingNumber  *int64
	SucceedingNumber *int64
}
