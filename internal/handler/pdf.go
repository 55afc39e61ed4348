package handler

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/c3smembership/dues/internal/dues"
	"github.com/c3smembership/dues/internal/model"
	"github.com/c3smembership/dues/internal/repository"
	"github.com/c3smembership/dues/internal/validation"
)

// Первый сегмент публичной ссылки: dues19_invoice_no или dues19_reversal.
var documentSegment = regexp.MustCompile(`^dues(\d{2})_(invoice_no|reversal)$`)

const kindReversal = "reversal"

type documentRequest struct {
	year     int
	number   int64
	reversal bool
	token    string
	email    string
}

// parseDocumentRequest проверяет согласованность сегментов пути. Любое
// несоответствие возвращает false и отдаётся клиенту как 404.
func parseDocumentRequest(r *http.Request) (documentRequest, bool) {
	m := documentSegment.FindStringSubmatch(chi.URLParam(r, "document"))
	if m == nil {
		return documentRequest{}, false
	}

	yy, number, reversal, err := dues.ParseInvoiceFileName(chi.URLParam(r, "file"))
	if err != nil || yy != m[1] || reversal != (m[2] == kindReversal) {
		return documentRequest{}, false
	}

	token := chi.URLParam(r, "token")
	if !validation.IsValidToken(token) {
		return documentRequest{}, false
	}

	short, _ := strconv.Atoi(yy)

	return documentRequest{
		year:     2000 + short,
		number:   number,
		reversal: reversal,
		token:    token,
		email:    chi.URLParam(r, "email"),
	}, true
}

// DownloadInvoice отдаёт PDF счёта или сторнирующего счёта по ссылке из письма.
// Поддерживается и старый вид ссылки с адресом члена в пути.
func (h *Handler) DownloadInvoice(w http.ResponseWriter, r *http.Request) {
	req, ok := parseDocumentRequest(r)
	if !ok {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	doc, err := h.service.InvoiceForDownload(r.Context(), req.year, req.number, req.token, req.reversal)
	if err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) || errors.Is(err, repository.ErrMemberNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("download invoice error", zap.Error(err), zap.Int("year", req.year), zap.Int64("number", req.number))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if req.email != "" && !strings.EqualFold(req.email, doc.Invoice.Email) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	h.writePDF(w, doc.Invoice, doc.Member)
}

// StaffInvoicePDF отдаёт PDF счёта сотруднику без токена.
func (h *Handler) StaffInvoicePDF(w http.ResponseWriter, r *http.Request) {
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
		h.writeError(w, "staff invoice pdf", err, zap.Int("year", year), zap.Int64("number", number))
		return
	}

	member, err := h.service.GetMember(r.Context(), inv.MemberID)
	if err != nil {
		h.writeError(w, "staff invoice pdf", err, zap.Int64("memberID", inv.MemberID))
		return
	}

	h.writePDF(w, *inv, *member)
}

func (h *Handler) writePDF(w http.ResponseWriter, inv model.Invoice, member model.Member) {
	pdf, err := h.renderer.Render(inv, member)
	if err != nil {
		h.logger.Error("render invoice pdf error", zap.Error(err), zap.String("invoice", inv.NumberString))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		`inline; filename="`+dues.InvoiceFileName(inv.Year, inv.Number, inv.IsReversal)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
