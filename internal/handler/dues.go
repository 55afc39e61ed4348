package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/c3smembership/dues/internal/model"
	"github.com/c3smembership/dues/internal/service"
	"github.com/c3smembership/dues/internal/validation"
)

type invoiceResponse struct {
	Year             int    `json:"year"`
	Number           int64  `json:"number"`
	NumberString     string `json:"number_string"`
	Date             string `json:"date"`
	Amount           string `json:"amount"`
	MemberID         int64  `json:"member_id"`
	MembershipNumber int64  `json:"membership_number"`
	Email            string `json:"email"`
	Token            string `json:"token"`
	IsReversal       bool   `json:"is_reversal"`
	IsCancelled      bool   `json:"is_cancelled"`
	PrecedingNumber  *int64 `json:"preceding_number,omitempty"`
	SucceedingNumber *int64 `json:"succeeding_number,omitempty"`
}

func toInvoiceResponse(inv model.Invoice) invoiceResponse {
	return invoiceResponse{
		Year:             inv.Year,
		Number:           inv.Number,
		NumberString:     inv.NumberString,
		Date:             inv.Date.Format(time.RFC3339),
		Amount:           inv.Amount.StringFixed(2),
		MemberID:         inv.MemberID,
		MembershipNumber: inv.MembershipNumber,
		Email:            inv.Email,
		Token:            inv.Token,
		IsReversal:       inv.IsReversal,
		IsCancelled:      inv.IsCancelled,
		PrecedingNumber:  inv.PrecedingNumber,
		SucceedingNumber: inv.SucceedingNumber,
	}
}

func toInvoicesResponse(invoices []model.Invoice) []invoiceResponse {
	resp := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		resp = append(resp, toInvoiceResponse(inv))
	}
	return resp
}

type duesResponse struct {
	Year          int              `json:"year"`
	MemberID      int64            `json:"member_id"`
	State         string           `json:"state"`
	Amount        *string          `json:"amount,omitempty"`
	Code          string           `json:"code,omitempty"`
	IsReduced     bool             `json:"is_reduced"`
	ReducedAmount *string          `json:"reduced_amount,omitempty"`
	EmailSentAt   *string          `json:"email_sent_at,omitempty"`
	Created       bool             `json:"created"`
	Invoice       *invoiceResponse `json:"invoice,omitempty"`
	Reversal      *invoiceResponse `json:"reversal,omitempty"`
}

func toDuesResponse(year int, res *service.Result) duesResponse {
	resp := duesResponse{
		Year:     year,
		MemberID: res.Member.ID,
		State:    string(res.State()),
		Created:  res.Created,
	}

	if d := res.Dues; d != nil {
		resp.Code = d.Code
		resp.IsReduced = d.IsReduced
		if d.Code != "" {
			amount := d.Amount.StringFixed(2)
			resp.Amount = &amount
		}
		if d.ReducedAmount != nil {
			reduced := d.ReducedAmount.StringFixed(2)
			resp.ReducedAmount = &reduced
		}
		if d.InvoiceSentAt != nil {
			sentAt := d.InvoiceSentAt.Format(time.RFC3339)
			resp.EmailSentAt = &sentAt
		}
	}
	if res.Invoice != nil {
		inv := toInvoiceResponse(*res.Invoice)
		resp.Invoice = &inv
	}
	if res.Reversal != nil {
		rev := toInvoiceResponse(*res.Reversal)
		resp.Reversal = &rev
	}
	return resp
}

type duesAction func(r *http.Request, year int, memberID int64) (*service.Result, error)

// duesHandler разбирает год и идентификатор члена и отдаёт результат операции.
func (h *Handler) duesHandler(op string, status int, action duesAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		year, ok := yearParam(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		memberID, ok := int64Param(r, "memberID")
		if !ok {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		res, err := action(r, year, memberID)
		if err != nil {
			h.writeError(w, op, err, zap.Int("year", year), zap.Int64("memberID", memberID), staffField(r))
			return
		}

		if r.Method != http.MethodGet {
			h.logger.Info(op,
				zap.Int("year", year),
				zap.Int64("memberID", memberID),
				staffField(r),
			)
		}
		writeJSON(w, status, toDuesResponse(year, res))
	}
}

// GetMemberDues возвращает состояние взносов члена за год.
func (h *Handler) GetMemberDues(w http.ResponseWriter, r *http.Request) {
	h.duesHandler("get member dues", http.StatusOK, func(r *http.Request, year int, memberID int64) (*service.Result, error) {
		return h.service.GetMemberDues(r.Context(), year, memberID)
	})(w, r)
}

// CalculateInvoice рассчитывает взнос и выставляет счёт.
func (h *Handler) CalculateInvoice(w http.ResponseWriter, r *http.Request) {
	h.duesHandler("calculate invoice", http.StatusOK, func(r *http.Request, year int, memberID int64) (*service.Result, error) {
		return h.service.CalculateAndStore(r.Context(), year, memberID)
	})(w, r)
}

// SendEmail отправляет члену письмо о взносах.
func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	h.duesHandler("send dues email", http.StatusOK, func(r *http.Request, year int, memberID int64) (*service.Result, error) {
		return h.service.SendEmail(r.Context(), year, memberID)
	})(w, r)
}

type reductionRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// ReduceDues уменьшает взнос члена за год.
func (h *Handler) ReduceDues(w http.ResponseWriter, r *http.Request) {
	var req reductionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.duesHandler("reduce dues", http.StatusOK, func(r *http.Request, year int, memberID int64) (*service.Result, error) {
		return h.service.ReduceDues(r.Context(), year, memberID, req.Amount)
	})(w, r)
}

// SendBatch отправляет письма о взносах очередной группе членов.
func (h *Handler) SendBatch(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		limit = v
	}

	report, err := h.service.SendBatch(r.Context(), year, limit)
	if err != nil {
		h.writeError(w, "send dues batch", err, zap.Int("year", year), staffField(r))
		return
	}

	h.logger.Info("send dues batch",
		zap.Int("year", year),
		zap.Int("sent", len(report.Sent)),
		zap.Int("failed", len(report.Failed)),
		staffField(r),
	)
	writeJSON(w, http.StatusOK, report)
}

type yearsResponse struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// SupportedYears возвращает диапазон годов, за которые рассчитываются взносы.
func (h *Handler) SupportedYears(w http.ResponseWriter, r *http.Request) {
	first, last := h.service.SupportedYears()
	writeJSON(w, http.StatusOK, yearsResponse{First: first, Last: last})
}

// ListInvoices возвращает счета за годы из параметра years, по всем годам без него.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	years, err := validation.ParseYears(r.URL.Query().Get("years"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	invoices, err := h.service.ListInvoices(r.Context(), years)
	if err != nil {
		h.writeError(w, "list invoices", err)
		return
	}

	writeJSON(w, http.StatusOK, toInvoicesResponse(invoices))
}

// ListYearInvoices возвращает счета одного года.
func (h *Handler) ListYearInvoices(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	invoices, err := h.service.ListInvoices(r.Context(), []int{year})
	if err != nil {
		h.writeError(w, "list invoices", err, zap.Int("year", year))
		return
	}

	writeJSON(w, http.StatusOK, toInvoicesResponse(invoices))
}

// GetInvoice возвращает счёт года по номеру.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	number, ok := int64Param(r, "number")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	inv, err := h.service.GetInvoice(r.Context(), year, number)
	if err != nil {
		h.writeError(w, "get invoice", err, zap.Int("year", year), zap.Int64("number", number))
		return
	}

	writeJSON(w, http.StatusOK, toInvoiceResponse(*inv))
}

// GetMemberInvoices возвращает счета члена по номеру членства.
func (h *Handler) GetMemberInvoices(w http.ResponseWriter, r *http.Request) {
	membershipNumber, ok := int64Param(r, "membershipNumber")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	years, err := validation.ParseYears(r.URL.Query().Get("years"))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	invoices, err := h.service.GetMemberInvoices(r.Context(), membershipNumber, years)
	if err != nil {
		h.writeError(w, "get member invoices", err, zap.Int64("membershipNumber", membershipNumber))
		return
	}

	writeJSON(w, http.StatusOK, toInvoicesResponse(invoices))
}
