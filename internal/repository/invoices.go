package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/c3smembership/dues/internal/model"
)

// invoiceLockNamespace задаёт первый ключ advisory-блокировки нумерации счетов, вторым служит год.
const invoiceLockNamespace = 0x44554553

var invoiceColumns = []string{
	"i.id", "i.year", "i.invoice_no", "i.invoice_no_string", "i.invoice_date", "i.amount",
	"i.member_id", "i.membership_no", "i.email", "i.token", "i.is_reversal", "i.is_cancelled",
	"i.preceding_no", "i.succeeding_no",
}

func selectInvoices() sq.SelectBuilder {
	return sq.Select(invoiceColumns...).From("dues_invoices i").PlaceholderFormat(sq.Dollar)
}

// InvoiceFilter ограничивает выборку счетов. Пустой Years означает все годы.
type InvoiceFilter struct {
	Years            []int
	MembershipNumber *int64
}

func buildInvoicesQuery(f InvoiceFilter) (string, []any, error) {
	stmt := selectInvoices()

	if f.MembershipNumber != nil {
		stmt = stmt.
			Join("members m ON m.id = i.member_id").
			Where(sq.Eq{"m.membership_number": *f.MembershipNumber})
	}
	if len(f.Years) > 0 {
		stmt = stmt.Where(sq.Eq{"i.year": f.Years})
	}

	return stmt.OrderBy("i.year", "i.invoice_no").ToSql()
}

func scanInvoice(row pgx.Row) (*model.Invoice, error) {
	var (
		inv         model.Invoice
		amountCents int64
	)
	err := row.Scan(
		&inv.ID, &inv.Year, &inv.Number, &inv.NumberString, &inv.Date, &amountCents,
		&inv.MemberID, &inv.MembershipNumber, &inv.Email, &inv.Token, &inv.IsReversal, &inv.IsCancelled,
		&inv.PrecedingNumber, &inv.SucceedingNumber,
	)
	if err != nil {
		return nil, err
	}
	inv.Amount = fromCents(amountCents)
	return &inv, nil
}

// CreateInvoice сохраняет счёт. Номер и токен должны быть уникальны в пределах года.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, inv model.Invoice) (*model.Invoice, error) {
	err := r.conn(ctx).QueryRow(ctx,
		`INSERT INTO dues_invoices (year, invoice_no, invoice_no_string, invoice_date, amount,
			member_id, membership_no, email, token, is_reversal, is_cancelled, preceding_no, succeeding_no)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		inv.Year, inv.Number, inv.NumberString, inv.Date, toCents(inv.Amount),
		inv.MemberID, inv.MembershipNumber, inv.Email, inv.Token, inv.IsReversal, inv.IsCancelled,
		inv.PrecedingNumber, inv.SucceedingNumber,
	).Scan(&inv.ID)
	if err != nil {
		if pgErr, ok := uniqueViolation(err); ok {
			if pgErr.ConstraintName == "dues_invoices_year_token_key" {
				return nil, fmt.Errorf("%w: year %d", ErrDuplicateToken, inv.Year)
			}
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInvoiceNumber, inv.NumberString)
		}
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return &inv, nil
}

// GetInvoiceByNumber возвращает счёт года по номеру.
func (r *PostgresRepository) GetInvoiceByNumber(ctx context.Context, year int, number int64) (*model.Invoice, error) {
	query, args, err := selectInvoices().
		Where(sq.Eq{"i.year": year, "i.invoice_no": number}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

// GetInvoices возвращает счета за указанные годы, по всем годам при пустом списке.
func (r *PostgresRepository) GetInvoices(ctx context.Context, years []int) ([]model.Invoice, error) {
	return r.findInvoices(ctx, InvoiceFilter{Years: years})
}

// GetInvoicesByMembershipNumber возвращает счета члена за указанные годы.
func (r *PostgresRepository) GetInvoicesByMembershipNumber(ctx context.Context, membershipNumber int64, years []int) ([]model.Invoice, error) {
	return r.findInvoices(ctx, InvoiceFilter{Years: years, MembershipNumber: &membershipNumber})
}

func (r *PostgresRepository) findInvoices(ctx context.Context, f InvoiceFilter) ([]model.Invoice, error) {
	query, args, err := buildInvoicesQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var res []model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		res = append(res, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetMaxInvoiceNumber возвращает наибольший номер счёта года или 0, если счетов нет.
func (r *PostgresRepository) GetMaxInvoiceNumber(ctx context.Context, year int) (int64, error) {
	var maxNumber int64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COALESCE(MAX(invoice_no), 0) FROM dues_invoices WHERE year = $1`,
		year,
	).Scan(&maxNumber)
	if err != nil {
		return 0, fmt.Errorf("max invoice number: %w", err)
	}
	return maxNumber, nil
}

// TokenExists сообщает, использован ли токен в счетах года.
func (r *PostgresRepository) TokenExists(ctx context.Context, token string, year int) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM dues_invoices WHERE year = $1 AND token = $2)`,
		year, token,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("token exists: %w", err)
	}
	return exists, nil
}

// LockInvoiceYear блокирует нумерацию счетов года до конца текущей транзакции.
// Повторный вызов в той же транзакции не ждёт: блокировка уже удерживается.
func (r *PostgresRepository) LockInvoiceYear(ctx context.Context, year int) error {
	if !inTx(ctx) {
		return ErrNoTransaction
	}

	if _, err := r.conn(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock($1, $2)`,
		int32(invoiceLockNamespace), int32(year),
	); err != nil {
		return fmt.Errorf("lock invoice year: %w", err)
	}
	return nil
}

// MarkInvoiceCancelled отмечает счёт отменённым и связывает его с последующим счётом.
func (r *PostgresRepository) MarkInvoiceCancelled(ctx context.Context, year int, number int64, succeeding *int64) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE dues_invoices SET is_cancelled = TRUE, succeeding_no = $3
		 WHERE year = $1 AND invoice_no = $2`,
		year, number, succeeding,
	)
	if err != nil {
		return fmt.Errorf("cancel invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}
