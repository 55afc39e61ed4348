package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/c3smembership/dues/internal/model"
	"github.com/c3smembership/dues/internal/validation"
)

const dateLayout = "2006-01-02"

type memberRequest struct {
	MembershipNumber int64  `json:"membership_number"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Email            string `json:"email"`
	Locale           string `json:"locale"`
	MembershipType   string `json:"membership_type"`
	IsLegalEntity    bool   `json:"is_legal_entity"`
	MembershipDate   string `json:"membership_date,omitempty"`
}

type memberResponse struct {
	ID               int64   `json:"id"`
	MembershipNumber int64   `json:"membership_number"`
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	Email            string  `json:"email"`
	Locale           string  `json:"locale"`
	MembershipType   string  `json:"membership_type"`
	IsLegalEntity    bool    `json:"is_legal_entity"`
	MembershipDate   *string `json:"membership_date,omitempty"`
}

func toMemberResponse(m model.Member) memberResponse {
	resp := memberResponse{
		ID:               m.ID,
		MembershipNumber: m.MembershipNumber,
		FirstName:        m.FirstName,
		LastName:         m.LastName,
		Email:            m.Email,
		Locale:           m.Locale,
		MembershipType:   string(m.MembershipType),
		IsLegalEntity:    m.IsLegalEntity,
	}
	if m.MembershipDate != nil {
		d := m.MembershipDate.Format(dateLayout)
		resp.MembershipDate = &d
	}
	return resp
}

// CreateMember добавляет члена кооператива.
func (h *Handler) CreateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !validation.IsValidEmail(req.Email) || req.MembershipNumber <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	m := model.Member{
		MembershipNumber: req.MembershipNumber,
		FirstName:        strings.TrimSpace(req.FirstName),
		LastName:         strings.TrimSpace(req.LastName),
		Email:            req.Email,
		Locale:           req.Locale,
		MembershipType:   model.MembershipType(req.MembershipType),
		IsLegalEntity:    req.IsLegalEntity,
	}

	if req.MembershipDate != "" {
		d, err := time.Parse(dateLayout, req.MembershipDate)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		m.MembershipDate = &d
	}

	created, err := h.service.CreateMember(r.Context(), m)
	if err != nil {
		h.writeError(w, "create member", err, zap.Int64("membershipNumber", req.MembershipNumber))
		return
	}

	writeJSON(w, http.StatusCreated, toMemberResponse(*created))
}

// GetMember возвращает члена по идентификатору.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(r, "memberID")
	if !ok {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	m, err := h.service.GetMember(r.Context(), id)
	if err != nil {
		h.writeError(w, "get member", err, zap.Int64("memberID", id))
		return
	}

	writeJSON(w, http.StatusOK, toMemberResponse(*m))
}
