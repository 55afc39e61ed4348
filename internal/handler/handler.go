// Package handler содержит HTTP-обработчики API сервиса членских взносов.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/c3smembership/dues/internal/dues"
	"github.com/c3smembership/dues/internal/middleware"
	"github.com/c3smembership/dues/internal/model"
	"github.com/c3smembership/dues/internal/repository"
	"github.com/c3smembership/dues/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateMember(ctx context.Context, m model.Member) (*model.Member, error)
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	GetMemberDues(ctx context.Context, year int, memberID int64) (*service.Result, error)
	SupportedYears() (int, int)

	CalculateAndStore(ctx context.Context, year int, memberID int64) (*service.Result, error)
	SendEmail(ctx context.Context, year int, memberID int64) (*service.Result, error)
	ReduceDues(ctx context.Context, year int, memberID int64, amount decimal.Decimal) (*service.Result, error)
	SendBatch(ctx context.Context, year, limit int) (*service.BatchReport, error)

	GetInvoice(ctx context.Context, year int, number int64) (*model.Invoice, error)
	ListInvoices(ctx context.Context, years []int) ([]model.Invoice, error)
	GetMemberInvoices(ctx context.Context, membershipNumber int64, years []int) ([]model.Invoice, error)
	InvoiceForDownload(ctx context.Context, year int, number int64, token string, reversal bool) (*service.Document, error)
}

// Renderer формирует PDF счёта.
type Renderer interface {
	Render(inv model.Invoice, member model.Member) ([]byte, error)
}

// MetricsExporter учитывает запросы и отдаёт метрики по /metrics.
type MetricsExporter interface {
	middleware.RequestObserver
	Handler() http.Handler
}

// Credentials содержит логин и пароль сотрудника.
type Credentials struct {
	Login    string
	Password string
}

// Handler реализует HTTP-обработчики API сервиса членских взносов.
type Handler struct {
	service        Service
	renderer       Renderer
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	staff          Credentials
	metrics        MetricsExporter
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(
	s Service,
	renderer Renderer,
	logger *zap.Logger,
	auth *middleware.AuthMiddleware,
	staff Credentials,
) *Handler {
	return &Handler{
		service:        s,
		renderer:       renderer,
		logger:         logger,
		authMiddleware: auth,
		staff:          staff,
	}
}

// WithMetrics подключает экспорт метрик.
func (h *Handler) WithMetrics(m MetricsExporter) *Handler {
	h.metrics = m
	return h
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Login проверяет учётные данные сотрудника и устанавливает cookie сессии.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !h.checkCredentials(req.Login, req.Password) {
		h.logger.Warn("staff login rejected", zap.String("login", req.Login))
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	h.authMiddleware.SetAuthCookie(w, req.Login)
	w.WriteHeader(http.StatusOK)
}

// Logout завершает сессию сотрудника.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) checkCredentials(login, password string) bool {
	if h.staff.Login == "" || h.staff.Password == "" {
		return false
	}
	loginOK := subtle.ConstantTimeCompare([]byte(login), []byte(h.staff.Login)) == 1
	passwordOK := subtle.ConstantTimeCompare([]byte(password), []byte(h.staff.Password)) == 1
	return loginOK && passwordOK
}

// writeError переводит ошибку бизнес-логики в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrUnsupportedYear),
		errors.Is(err, service.ErrInvalidMember),
		errors.Is(err, dues.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, repository.ErrMemberNotFound),
		errors.Is(err, repository.ErrInvoiceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateMember),
		errors.Is(err, repository.ErrDuplicateInvoiceNumber),
		errors.Is(err, repository.ErrDuplicateToken),
		errors.Is(err, service.ErrInvoiceNotCalculated):
		status = http.StatusConflict
	case errors.Is(err, service.ErrUnknownMembershipType),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, dues.ErrMembershipNotAccepted),
		errors.Is(err, dues.ErrNotMemberInYear):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrDeliveryFailure):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		http.Error(w, http.StatusText(status), status)
		return
	}

	http.Error(w, err.Error(), status)
}

// staffField возвращает поле журнала с логином сотрудника текущей сессии.
func staffField(r *http.Request) zap.Field {
	login, _ := middleware.StaffFromContext(r.Context())
	return zap.String("staff", login)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func int64Param(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func yearParam(r *http.Request) (int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}
