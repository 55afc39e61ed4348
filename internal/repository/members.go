package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/c3smembership/dues/internal/model"
)

const memberColumns = `id, membership_number, first_name, last_name, email, locale,
	membership_type, is_legal_entity, membership_date, created_at`

func scanMember(row pgx.Row) (*model.Member, error) {
	var (
		m              model.Member
		membershipType string
	)
	err := row.Scan(
		&m.ID, &m.MembershipNumber, &m.FirstName, &m.LastName, &m.Email, &m.Locale,
		&membershipType, &m.IsLegalEntity, &m.MembershipDate, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.MembershipType = model.MembershipType(membershipType)
	return &m, nil
}

// CreateMember сохраняет нового члена и возвращает его с присвоенным идентификатором.
func (r *PostgresRepository) CreateMember(ctx context.Context, m model.Member) (*model.Member, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO members (membership_number, first_name, last_name, email, locale,
			membership_type, is_legal_entity, membership_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+memberColumns,
		m.MembershipNumber, m.FirstName, m.LastName, m.Email, m.Locale,
		string(m.MembershipType), m.IsLegalEntity, m.MembershipDate,
	)

	created, err := scanMember(row)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateMember, m.MembershipNumber)
		}
		return nil, fmt.Errorf("create member: %w", err)
	}
	return created, nil
}

// GetMember возвращает члена по идентификатору.
func (r *PostgresRepository) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`,
		id,
	)

	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// ListMembersAwaitingDuesEmail возвращает принятых к концу года членов,
// которым письмо о взносах за год ещё не отправлено. Члены, попытка рассылки
// которым не удалась после retryBefore, пропускаются.
func (r *PostgresRepository) ListMembersAwaitingDuesEmail(ctx context.Context, year, limit int, retryBefore time.Time) ([]model.Member, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+memberColumns+`
		 FROM members m
		 WHERE m.membership_date IS NOT NULL
		   AND m.membership_date < make_date($1 + 1, 1, 1)
		   AND NOT EXISTS (
		       SELECT 1 FROM member_dues d
		       WHERE d.member_id = m.id AND d.year = $1
		         AND (d.invoice_sent OR d.email_failed_at > $3)
		   )
		 ORDER BY m.membership_number
		 LIMIT $2`,
		year, limit, retryBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("select members awaiting dues email: %w", err)
	}
	defer rows.Close()

	var res []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		res = append(res, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetMemberDues возвращает взносы члена за год.
func (r *PostgresRepository) GetMemberDues(ctx context.Context, memberID int64, year int) (*model.MemberDues, error) {
	var (
		d            model.MemberDues
		amountCents  int64
		reducedCents *int64
	)
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT member_id, year, amount, code, invoice_no, token, invoice_sent,
		        invoice_sent_at, is_reduced, reduced_amount, calculated_at,
		        email_failed_at, email_attempts
		 FROM member_dues
		 WHERE member_id = $1 AND year = $2`,
		memberID, year,
	).Scan(
		&d.MemberID, &d.Year, &amountCents, &d.Code, &d.InvoiceNumber, &d.Token, &d.InvoiceSent,
		&d.InvoiceSentAt, &d.IsReduced, &reducedCents, &d.CalculatedAt,
		&d.EmailFailedAt, &d.EmailAttempts,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDuesNotFound
		}
		return nil, fmt.Errorf("get member dues: %w", err)
	}

	d.Amount = fromCents(amountCents)
	if reducedCents != nil {
		v := fromCents(*reducedCents)
		d.ReducedAmount = &v
	}
	return &d, nil
}

// SaveMemberDues сохраняет состояние взносов члена за год. Сведения о
// неудачных попытках рассылки не изменяются.
func (r *PostgresRepository) SaveMemberDues(ctx context.Context, d model.MemberDues) error {
	var reducedCents *int64
	if d.ReducedAmount != nil {
		v := toCents(*d.ReducedAmount)
		reducedCents = &v
	}

	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO member_dues (member_id, year, amount, code, invoice_no, token,
			invoice_sent, invoice_sent_at, is_reduced, reduced_amount, calculated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (member_id, year) DO UPDATE SET
			amount = EXCLUDED.amount,
			code = EXCLUDED.code,
			invoice_no = EXCLUDED.invoice_no,
			token = EXCLUDED.token,
			invoice_sent = EXCLUDED.invoice_sent,
			invoice_sent_at = EXCLUDED.invoice_sent_at,
			is_reduced = EXCLUDED.is_reduced,
			reduced_amount = EXCLUDED.reduced_amount,
			calculated_at = EXCLUDED.calculated_at`,
		d.MemberID, d.Year, toCents(d.Amount), d.Code, d.InvoiceNumber, d.Token,
		d.InvoiceSent, d.InvoiceSentAt, d.IsReduced, reducedCents, d.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("save member dues: %w", err)
	}
	return nil
}

// MarkDuesEmailSent отмечает отправку письма о взносах за год.
func (r *PostgresRepository) MarkDuesEmailSent(ctx context.Context, memberID int64, year int, sentAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO member_dues (member_id, year, amount, code, invoice_sent, invoice_sent_at)
		 VALUES ($1, $2, 0, '', TRUE, $3)
		 ON CONFLICT (member_id, year) DO UPDATE SET
			invoice_sent = TRUE,
			invoice_sent_at = EXCLUDED.invoice_sent_at,
			email_failed_at = NULL`,
		memberID, year, sentAt,
	)
	if err != nil {
		return fmt.Errorf("mark dues email sent: %w", err)
	}
	return nil
}

// RecordDuesEmailFailure учитывает неудачную попытку рассылки письма о взносах за год.
func (r *PostgresRepository) RecordDuesEmailFailure(ctx context.Context, memberID int64, year int, failedAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO member_dues (member_id, year, amount, code, email_attempts, email_failed_at)
		 VALUES ($1, $2, 0, '', 1, $3)
		 ON CONFLICT (member_id, year) DO UPDATE SET
			email_attempts = member_dues.email_attempts + 1,
			email_failed_at = EXCLUDED.email_failed_at`,
		memberID, year, failedAt,
	)
	if err != nil {
		return fmt.Errorf("record dues email failure: %w", err)
	}
	return nil
}
