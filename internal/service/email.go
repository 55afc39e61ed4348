package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/c3smembership/dues/internal/mailer"
	"github.com/c3smembership/dues/internal/model"
	"github.com/c3smembership/dues/internal/notification"
)

// Виды писем о взносах.
const (
	EmailKindInvoice        = "invoice"
	EmailKindReversal       = "reversal"
	EmailKindRecommendation = "recommendation"
)

// SendEmail отправляет члену письмо о взносах за год. Обычные члены получают
// ссылку на счёт (счёт выставляется, если его ещё нет), инвестирующие члены и
// юридические лица получают рекомендацию без счёта. Отметка об отправке
// сохраняется только после того, как почтовый сервер принял письмо.
func (s *Service) SendEmail(ctx context.Context, year int, memberID int64) (*Result, error) {
	res, err := s.CalculateAndStore(ctx, year, memberID)
	if err != nil {
		return nil, err
	}

	kind, mail, err := s.composeEmail(ctx, year, res)
	if err != nil {
		return nil, err
	}

	msg := mailer.Message{
		Subject:    mail.Subject,
		Sender:     s.cfg.Sender,
		Recipients: []string{res.Member.Email},
		Body:       mail.Body,
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.EmailFailed(year)
		s.logger.Error("dues email delivery failed",
			zap.Int("year", year),
			zap.Int64("memberID", memberID),
			zap.Error(err),
		)
		return res, fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}

	sentAt := s.now()
	if err := s.store.MarkDuesEmailSent(ctx, memberID, year, sentAt); err != nil {
		return res, fmt.Errorf("record dues email: %w", err)
	}

	sent := model.MemberDues{MemberID: memberID, Year: year}
	if res.Dues != nil {
		sent = *res.Dues
	}
	sent.InvoiceSent = true
	sent.InvoiceSentAt = &sentAt
	res.Dues = &sent

	s.metrics.EmailSent(year, kind)
	s.logger.Info("dues email sent",
		zap.Int("year", year),
		zap.Int64("memberID", memberID),
		zap.String("kind", kind),
	)
	return res, nil
}

func (s *Service) composeEmail(ctx context.Context, year int, res *Result) (string, notification.Mail, error) {
	member := res.Member

	if !member.ReceivesInvoice() {
		mail, err := s.composer.Recommendation(member, year)
		return EmailKindRecommendation, mail, err
	}

	inv := res.Invoice
	if inv == nil {
		return "", notification.Mail{}, fmt.Errorf("%w: member %d, year %d", ErrInvoiceNotCalculated, member.ID, year)
	}

	if inv.IsReversal {
		mail, err := s.composer.Reversal(notification.ReversalData{
			Year:        year,
			Member:      member,
			Reversal:    *inv,
			ReversalURL: s.urls.ReversalURL(year, inv.Token, inv.Number),
		})
		return EmailKindReversal, mail, err
	}

	if inv.PrecedingNumber != nil {
		preceding, err := s.store.GetInvoiceByNumber(ctx, year, *inv.PrecedingNumber)
		if err != nil {
			return "", notification.Mail{}, fmt.Errorf("load preceding invoice: %w", err)
		}
		if preceding.IsReversal {
			mail, err := s.composer.Reversal(notification.ReversalData{
				Year:        year,
				Member:      member,
				Reversal:    *preceding,
				ReversalURL: s.urls.ReversalURL(year, preceding.Token, preceding.Number),
				Invoice:     inv,
				InvoiceURL:  s.urls.InvoiceURL(year, inv.Token, inv.Number),
			})
			return EmailKindReversal, mail, err
		}
	}

	mail, err := s.composer.Invoice(notification.InvoiceData{
		Year:         year,
		Member:       member,
		Invoice:      *inv,
		InvoiceURL:   s.urls.InvoiceURL(year, inv.Token, inv.Number),
		StartQuarter: s.startQuarter(member, year),
	})
	return EmailKindInvoice, mail, err
}

func (s *Service) startQuarter(member model.Member, year int) string {
	quarter, err := s.calc.Quarter(member, year)
	if err != nil {
		quarter = 1
	}

	desc, err := s.calc.Description(quarter, member.Locale)
	if err != nil {
		desc, _ = s.calc.Description(quarter, "en")
	}
	return desc
}

// BatchReport описывает итог пакетной рассылки.
type BatchReport struct {
	Year   int              `json:"year"`
	Sent   []int64          `json:"sent"`
	Failed map[int64]string `json:"failed,omitempty"`
}

const (
	defaultBatchLimit         = 10
	defaultDispatchRetryAfter = time.Hour
)

// SendBatch отправляет письма о взносах за год не более чем limit членам,
// которым письмо ещё не отправлено. Ошибка по одному члену не прерывает
// рассылку: неудача записывается, и член не выбирается повторно в течение
// Config.DispatchRetryAfter, чтобы очередь продвигалась дальше.
func (s *Service) SendBatch(ctx context.Context, year, limit int) (*BatchReport, error) {
	if err := s.checkYear(year); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultBatchLimit
	}

	retryAfter := s.cfg.DispatchRetryAfter
	if retryAfter <= 0 {
		retryAfter = defaultDispatchRetryAfter
	}

	members, err := s.store.ListMembersAwaitingDuesEmail(ctx, year, limit, s.now().Add(-retryAfter))
	if err != nil {
		return nil, err
	}

	report := &BatchReport{Year: year, Sent: []int64{}, Failed: map[int64]string{}}
	for _, m := range members {
		if _, err := s.SendEmail(ctx, year, m.ID); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			report.Failed[m.ID] = err.Error()
			if recErr := s.store.RecordDuesEmailFailure(ctx, m.ID, year, s.now()); recErr != nil {
				s.logger.Error("record dues email failure",
					zap.Int("year", year),
					zap.Int64("memberID", m.ID),
					zap.Error(recErr),
				)
			}
			continue
		}
		report.Sent = append(report.Sent, m.ID)
	}

	return report, nil
}

// StartDuesDispatch периодически рассылает письма о взносах за настроенный год
// до отмены контекста. Без настроенного года возвращается сразу.
func (s *Service) StartDuesDispatch(ctx context.Context) {
	if s.cfg.DispatchYear == 0 {
		return
	}

	interval := s.cfg.DispatchInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processDispatchBatch(ctx)
		}
	}
}

func (s *Service) processDispatchBatch(ctx context.Context) {
	report, err := s.SendBatch(ctx, s.cfg.DispatchYear, s.cfg.DispatchBatch)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("dues dispatch failed", zap.Int("year", s.cfg.DispatchYear), zap.Error(err))
		}
		return
	}

	if len(report.Sent) > 0 || len(report.Failed) > 0 {
		s.logger.Info("dues dispatch batch",
			zap.Int("year", report.Year),
			zap.Int("sent", len(report.Sent)),
			zap.Int("failed", len(report.Failed)),
		)
	}
}
