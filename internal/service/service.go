// Package service реализует бизнес-логику выставления счетов на членские взносы.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/c3smembership/dues/internal/dues"
	"github.com/c3smembership/dues/internal/mailer"
	"github.com/c3smembership/dues/internal/model"
	"github.com/c3smembership/dues/internal/notification"
	"github.com/c3smembership/dues/internal/repository"
)

var (
	// ErrUnsupportedYear возвращается для года вне настроенного диапазона.
	ErrUnsupportedYear = errors.New("unsupported dues year")
	// ErrUnknownMembershipType возвращается для нераспознанного вида членства.
	ErrUnknownMembershipType = errors.New("unknown membership type")
	// ErrDeliveryFailure возвращается, если почтовый сервер не принял письмо.
	ErrDeliveryFailure = errors.New("email delivery failed")
	// ErrInvalidAmount возвращается при недопустимой сумме уменьшения взноса.
	ErrInvalidAmount = errors.New("invalid dues amount")
	// ErrInvoiceNotCalculated возвращается, если счёт за год ещё не выставлен.
	ErrInvoiceNotCalculated = errors.New("dues invoice not calculated")
	// ErrInvalidMember возвращается при некорректных данных нового члена.
	ErrInvalidMember = errors.New("invalid member")
	// ErrTokenExhausted возвращается, если не удалось подобрать свободный токен.
	ErrTokenExhausted = errors.New("could not generate unique invoice token")
)

const (
	maxInvoiceAttempts = 3
	maxTokenAttempts   = 5
)

// Store описывает контракт хранилища, используемый сервисом.
type Store interface {
	Close() error
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateMember(ctx context.Context, m model.Member) (*model.Member, error)
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	ListMembersAwaitingDuesEmail(ctx context.Context, year, limit int, retryBefore time.Time) ([]model.Member, error)

	GetMemberDues(ctx context.Context, memberID int64, year int) (*model.MemberDues, error)
	SaveMemberDues(ctx context.Context, d model.MemberDues) error
	MarkDuesEmailSent(ctx context.Context, memberID int64, year int, sentAt time.Time) error
	RecordDuesEmailFailure(ctx context.Context, memberID int64, year int, failedAt time.Time) error

	CreateInvoice(ctx context.Context, inv model.Invoice) (*model.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, year int, number int64) (*model.Invoice, error)
	GetInvoices(ctx context.Context, years []int) ([]model.Invoice, error)
	GetInvoicesByMembershipNumber(ctx context.Context, membershipNumber int64, years []int) ([]model.Invoice, error)
	GetMaxInvoiceNumber(ctx context.Context, year int) (int64, error)
	TokenExists(ctx context.Context, token string, year int) (bool, error)
	LockInvoiceYear(ctx context.Context, year int) error
	MarkInvoiceCancelled(ctx context.Context, year int, number int64, succeeding *int64) error
}

// Metrics принимает события сервиса для учёта.
type Metrics interface {
	InvoiceIssued(year int, reversal bool)
	EmailSent(year int, kind string)
	EmailFailed(year int)
}

type noopMetrics struct{}

func (noopMetrics) InvoiceIssued(int, bool) {}
func (noopMetrics) EmailSent(int, string)   {}
func (noopMetrics) EmailFailed(int)         {}

// Config содержит параметры сервиса.
type Config struct {
	FirstYear int
	LastYear  int
	Rates     dues.RateTable
	Sender    string
	BaseURL   string

	DispatchYear     int
	DispatchInterval time.Duration
	DispatchBatch    int
	// DispatchRetryAfter: пауза перед повторной рассылкой члену после неудачи.
	DispatchRetryAfter time.Duration
}

// Result описывает состояние взносов члена за год после операции.
// Invoice равен nil для членов, которым счёт не выставляется.
type Result struct {
	Member   model.Member
	Dues     *model.MemberDues
	Invoice  *model.Invoice
	Reversal *model.Invoice
	Created  bool
}

// State возвращает состояние взносов за год.
func (r *Result) State() model.DuesState {
	return r.Dues.State()
}

// Service содержит бизнес-логику выставления счетов на взносы.
type Service struct {
	store     Store
	calc      dues.Calculator
	allocator *NumberAllocator
	composer  *notification.Composer
	mailer    mailer.Mailer
	urls      URLBuilder
	metrics   Metrics
	logger    *zap.Logger
	cfg       Config

	newToken dues.TokenGenerator
	now      func() time.Time
}

// NewService создаёт сервис с указанными хранилищем, почтовым транспортом и настройками.
func NewService(store Store, m mailer.Mailer, logger *zap.Logger, cfg Config) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		calc:      dues.NewQuarterlyCalculator(cfg.Rates),
		allocator: NewNumberAllocator(store),
		composer:  notification.NewComposer(),
		mailer:    m,
		urls:      NewURLBuilder(cfg.BaseURL),
		metrics:   noopMetrics{},
		logger:    logger,
		cfg:       cfg,
		newToken:  dues.NewToken,
		now:       time.Now,
	}
}

// WithMetrics подключает учёт событий сервиса.
func (s *Service) WithMetrics(m Metrics) *Service {
	if m != nil {
		s.metrics = m
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// SupportedYears возвращает диапазон годов, за которые рассчитываются взносы.
func (s *Service) SupportedYears() (int, int) {
	return s.cfg.FirstYear, s.cfg.LastYear
}

func (s *Service) checkYear(year int) error {
	if year < s.cfg.FirstYear || year > s.cfg.LastYear {
		return fmt.Errorf("%w: %d not in %d..%d", ErrUnsupportedYear, year, s.cfg.FirstYear, s.cfg.LastYear)
	}
	return nil
}

func checkMembershipType(m *model.Member) error {
	if _, ok := model.ParseMembershipType(string(m.MembershipType)); !ok {
		return fmt.Errorf("%w: %q (member %d)", ErrUnknownMembershipType, m.MembershipType, m.ID)
	}
	return nil
}

// CreateMember сохраняет нового члена.
func (s *Service) CreateMember(ctx context.Context, m model.Member) (*model.Member, error) {
	t, ok := model.ParseMembershipType(string(m.MembershipType))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMembershipType, m.MembershipType)
	}
	m.MembershipType = t

	if m.Email == "" || m.MembershipNumber <= 0 {
		return nil, fmt.Errorf("%w: email and membership number are required", ErrInvalidMember)
	}
	if m.Locale == "" {
		m.Locale = "de"
	}
	m.Locale = dues.NormalizeLocale(m.Locale)

	return s.store.CreateMember(ctx, m)
}

// GetMember возвращает члена по идентификатору.
func (s *Service) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	return s.store.GetMember(ctx, id)
}

// GetMemberDues возвращает состояние взносов члена за год.
func (s *Service) GetMemberDues(ctx context.Context, year int, memberID int64) (*Result, error) {
	if err := s.checkYear(year); err != nil {
		return nil, err
	}

	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	d, err := s.loadDues(ctx, memberID, year)
	if err != nil {
		return nil, err
	}

	res := &Result{Member: *member, Dues: d}
	if d != nil && d.InvoiceNumber != nil {
		inv, err := s.store.GetInvoiceByNumber(ctx, year, *d.InvoiceNumber)
		if err != nil {
			return nil, err
		}
		res.Invoice = inv
	}
	return res, nil
}

func (s *Service) loadDues(ctx context.Context, memberID int64, year int) (*model.MemberDues, error) {
	d, err := s.store.GetMemberDues(ctx, memberID, year)
	if errors.Is(err, repository.ErrDuesNotFound) {
		return nil, nil
	}
	return d, err
}
