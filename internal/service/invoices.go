package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/c3smembership/dues/internal/dues"
	"github.com/c3smembership/dues/internal/model"
	"github.com/c3smembership/dues/internal/repository"
)

// CalculateAndStore рассчитывает взносы члена за год и выставляет счёт.
//
// Если счёт за год уже выставлен, возвращается сохранённый счёт без повторного
// расчёта, в том числе до отправки письма. Инвестирующим членам и юридическим
// лицам счёт не выставляется: Result.Invoice равен nil.
func (s *Service) CalculateAndStore(ctx context.Context, year int, memberID int64) (*Result, error) {
	if err := s.checkYear(year); err != nil {
		return nil, err
	}

	var res *Result
	err := s.withInvoiceRetry(ctx, year, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context) error {
			r, err := s.calculateAndStore(ctx, year, memberID)
			res = r
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if res.Created {
		s.metrics.InvoiceIssued(year, false)
		s.logger.Info("dues invoice created",
			zap.Int("year", year),
			zap.Int64("memberID", memberID),
			zap.String("invoice", res.Invoice.NumberString),
			zap.String("amount", res.Invoice.Amount.StringFixed(2)),
		)
	}
	return res, nil
}

func (s *Service) calculateAndStore(ctx context.Context, year int, memberID int64) (*Result, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if err := checkMembershipType(member); err != nil {
		return nil, err
	}

	// Проверка существующего счёта выполняется под блокировкой года, иначе
	// параллельные запросы по одному члену выставят два счёта.
	if err := s.store.LockInvoiceYear(ctx, year); err != nil {
		return nil, err
	}

	existing, err := s.loadDues(ctx, memberID, year)
	if err != nil {
		return nil, err
	}

	res := &Result{Member: *member, Dues: existing}

	if existing != nil && existing.InvoiceNumber != nil {
		inv, err := s.store.GetInvoiceByNumber(ctx, year, *existing.InvoiceNumber)
		if err != nil {
			return nil, fmt.Errorf("load existing invoice: %w", err)
		}
		res.Invoice = inv
		return res, nil
	}

	if !member.ReceivesInvoice() {
		return res, nil
	}

	calc, err := s.calc.Calculate(*member, year)
	if err != nil {
		return nil, err
	}

	inv, err := s.issueInvoice(ctx, member, year, calc.Amount, nil)
	if err != nil {
		return nil, err
	}

	now := s.now()
	d := model.MemberDues{
		MemberID:      member.ID,
		Year:          year,
		Amount:        calc.Amount,
		Code:          calc.Code,
		InvoiceNumber: &inv.Number,
		Token:         inv.Token,
		CalculatedAt:  &now,
	}
	if existing != nil {
		d.InvoiceSent = existing.InvoiceSent
		d.InvoiceSentAt = existing.InvoiceSentAt
	}

	if err := s.store.SaveMemberDues(ctx, d); err != nil {
		return nil, err
	}

	res.Dues = &d
	res.Invoice = inv
	res.Created = true
	return res, nil
}

// issueInvoice выделяет номер и токен и сохраняет счёт. prepare может
// дополнить счёт перед вставкой.
func (s *Service) issueInvoice(
	ctx context.Context,
	member *model.Member,
	year int,
	amount decimal.Decimal,
	prepare func(inv *model.Invoice),
) (*model.Invoice, error) {
	number, err := s.allocator.Next(ctx, year)
	if err != nil {
		return nil, err
	}

	return s.insertInvoice(ctx, member, year, number, amount, prepare)
}

func (s *Service) insertInvoice(
	ctx context.Context,
	member *model.Member,
	year int,
	number int64,
	amount decimal.Decimal,
	prepare func(inv *model.Invoice),
) (*model.Invoice, error) {
	token, err := s.uniqueToken(ctx, year)
	if err != nil {
		return nil, err
	}

	inv := model.Invoice{
		Year:             year,
		Number:           number,
		NumberString:     dues.FormatInvoiceNumber(year, number),
		Date:             s.now(),
		Amount:           amount,
		MemberID:         member.ID,
		MembershipNumber: member.MembershipNumber,
		Email:            member.Email,
		Token:            token,
	}
	if prepare != nil {
		prepare(&inv)
	}

	return s.store.CreateInvoice(ctx, inv)
}

func (s *Service) uniqueToken(ctx context.Context, year int) (string, error) {
	for i := 0; i < maxTokenAttempts; i++ {
		token, err := s.newToken()
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}

		exists, err := s.store.TokenExists(ctx, token, year)
		if err != nil {
			return "", err
		}
		if !exists {
			return token, nil
		}
		s.logger.Warn("invoice token collision, regenerating", zap.Int("year", year))
	}
	return "", ErrTokenExhausted
}

// withInvoiceRetry повторяет транзакцию при конфликте номера или токена счёта.
func (s *Service) withInvoiceRetry(ctx context.Context, year int, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxInvoiceAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, repository.ErrDuplicateInvoiceNumber) && !errors.Is(err, repository.ErrDuplicateToken) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.Warn("invoice conflict, retrying",
			zap.Int("year", year),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return err
}

// ReduceDues уменьшает взнос члена за год: текущий счёт отменяется, выставляется
// сторнирующий счёт и, если новая сумма больше нуля, новый счёт на эту сумму.
// Признак отправки письма сбрасывается, чтобы член получил уведомление.
func (s *Service) ReduceDues(ctx context.Context, year int, memberID int64, amount decimal.Decimal) (*Result, error) {
	if err := s.checkYear(year); err != nil {
		return nil, err
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, amount)
	}
	amount = amount.Round(2)

	var res *Result
	err := s.withInvoiceRetry(ctx, year, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context) error {
			r, err := s.reduceDues(ctx, year, memberID, amount)
			res = r
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.InvoiceIssued(year, true)
	if res.Invoice != nil && !res.Invoice.IsReversal {
		s.metrics.InvoiceIssued(year, false)
	}
	s.logger.Info("dues reduced",
		zap.Int("year", year),
		zap.Int64("memberID", memberID),
		zap.String("reversal", res.Reversal.NumberString),
		zap.String("amount", amount.StringFixed(2)),
	)
	return res, nil
}

func (s *Service) reduceDues(ctx context.Context, year int, memberID int64, amount decimal.Decimal) (*Result, error) {
	member, err := s.store.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}

	if err := s.store.LockInvoiceYear(ctx, year); err != nil {
		return nil, err
	}

	d, err := s.loadDues(ctx, memberID, year)
	if err != nil {
		return nil, err
	}
	if d == nil || d.InvoiceNumber == nil {
		return nil, fmt.Errorf("%w: member %d, year %d", ErrInvoiceNotCalculated, memberID, year)
	}

	current, err := s.store.GetInvoiceByNumber(ctx, year, *d.InvoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("load current invoice: %w", err)
	}
	if current.IsReversal {
		return nil, fmt.Errorf("%w: dues already reduced to zero", ErrInvalidAmount)
	}
	if !amount.LessThan(current.Amount) {
		return nil, fmt.Errorf("%w: %s is not below %s", ErrInvalidAmount, amount.StringFixed(2), current.Amount.StringFixed(2))
	}

	reversalNumber, err := s.allocator.Next(ctx, year)
	if err != nil {
		return nil, err
	}
	withNewInvoice := amount.IsPositive()
	newNumber := reversalNumber + 1

	reversal, err := s.insertInvoice(ctx, member, year, reversalNumber, current.Amount.Neg(), func(inv *model.Invoice) {
		inv.IsReversal = true
		inv.PrecedingNumber = &current.Number
		if withNewInvoice {
			inv.SucceedingNumber = &newNumber
		}
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkInvoiceCancelled(ctx, year, current.Number, &reversal.Number); err != nil {
		return nil, err
	}

	latest := reversal
	if withNewInvoice {
		latest, err = s.insertInvoice(ctx, member, year, newNumber, amount, func(inv *model.Invoice) {
			inv.PrecedingNumber = &reversal.Number
		})
		if err != nil {
			return nil, err
		}
	}

	reduced := *d
	reduced.IsReduced = true
	reduced.ReducedAmount = &amount
	reduced.InvoiceNumber = &latest.Number
	reduced.Token = latest.Token
	reduced.InvoiceSent = false
	reduced.InvoiceSentAt = nil

	if err := s.store.SaveMemberDues(ctx, reduced); err != nil {
		return nil, err
	}

	return &Result{
		Member:   *member,
		Dues:     &reduced,
		Invoice:  latest,
		Reversal: reversal,
		Created:  true,
	}, nil
}

// GetInvoice возвращает счёт года по номеру.
func (s *Service) GetInvoice(ctx context.Context, year int, number int64) (*model.Invoice, error) {
	return s.store.GetInvoiceByNumber(ctx, year, number)
}

// ListInvoices возвращает счета за годы, по всем годам при пустом списке.
func (s *Service) ListInvoices(ctx context.Context, years []int) ([]model.Invoice, error) {
	return s.store.GetInvoices(ctx, years)
}

// GetMemberInvoices возвращает счета члена по номеру членства.
func (s *Service) GetMemberInvoices(ctx context.Context, membershipNumber int64, years []int) ([]model.Invoice, error) {
	return s.store.GetInvoicesByMembershipNumber(ctx, membershipNumber, years)
}

// Document содержит счёт и члена для формирования PDF.
type Document struct {
	Invoice model.Invoice
	Member  model.Member
}

// InvoiceForDownload возвращает счёт для скачивания по токену. Несовпадение
// токена или вида счёта неотличимо от отсутствия счёта.
func (s *Service) InvoiceForDownload(ctx context.Context, year int, number int64, token string, reversal bool) (*Document, error) {
	if err := s.checkYear(year); err != nil {
		return nil, repository.ErrInvoiceNotFound
	}

	inv, err := s.store.GetInvoiceByNumber(ctx, year, number)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(inv.Token), []byte(token)) != 1 || inv.IsReversal != reversal {
		return nil, repository.ErrInvoiceNotFound
	}

	member, err := s.store.GetMember(ctx, inv.MemberID)
	if err != nil {
		return nil, err
	}

	return &Document{Invoice: *inv, Member: *member}, nil
}
