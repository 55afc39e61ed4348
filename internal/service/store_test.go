package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/c3smembership/dues/internal/model"
	"github.com/c3smembership/dues/internal/repository"
)

type duesKey struct {
	memberID int64
	year     int
}

// memStore хранит данные в памяти. Блокировка года, как и advisory lock в
// Postgres, удерживается до конца транзакции; один замок общий для всех лет.
// При ошибке транзакция откатывает изменения, сделанные после блокировки.
type memStore struct {
	mu     sync.Mutex
	txLock sync.Mutex

	members  map[int64]model.Member
	dues     map[duesKey]model.MemberDues
	invoices []model.Invoice
	nextID   int64

	createErrs  []error
	markSentErr error
	lockCalls   int
	// unlockedDuesReads считает чтения взносов внутри транзакции до блокировки года.
	unlockedDuesReads int
}

type memTxKey struct{}

type memTx struct {
	locked   bool
	dues     map[duesKey]model.MemberDues
	invoices []model.Invoice
}

func txFromContext(ctx context.Context) (*memTx, bool) {
	tx, ok := ctx.Value(memTxKey{}).(*memTx)
	return tx, ok
}

func newMemStore() *memStore {
	return &memStore{
		members: map[int64]model.Member{},
		dues:    map[duesKey]model.MemberDues{},
	}
}

func (s *memStore) Close() error { return nil }

func (s *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx := &memTx{}
	err := fn(context.WithValue(ctx, memTxKey{}, tx))

	if tx.locked {
		s.mu.Lock()
		if err != nil {
			s.dues = tx.dues
			s.invoices = tx.invoices
		}
		s.mu.Unlock()
		s.txLock.Unlock()
	}
	return err
}

func (s *memStore) addMember(m model.Member) model.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if m.ID == 0 {
		m.ID = s.nextID
	}
	if m.MembershipNumber == 0 {
		m.MembershipNumber = 1000 + m.ID
	}
	s.members[m.ID] = m
	return m
}

func (s *memStore) CreateMember(_ context.Context, m model.Member) (*model.Member, error) {
	s.mu.Lock()
	for _, existing := range s.members {
		if existing.MembershipNumber == m.MembershipNumber {
			s.mu.Unlock()
			return nil, repository.ErrDuplicateMember
		}
	}
	s.mu.Unlock()

	created := s.addMember(m)
	return &created, nil
}

func (s *memStore) GetMember(_ context.Context, id int64) (*model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[id]
	if !ok {
		return nil, repository.ErrMemberNotFound
	}
	return &m, nil
}

func (s *memStore) ListMembersAwaitingDuesEmail(_ context.Context, year, limit int, retryBefore time.Time) ([]model.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []model.Member
	for _, m := range s.members {
		if m.MembershipDate == nil || m.MembershipDate.Year() > year {
			continue
		}
		if d, ok := s.dues[duesKey{m.ID, year}]; ok {
			if d.InvoiceSent || (d.EmailFailedAt != nil && d.EmailFailedAt.After(retryBefore)) {
				continue
			}
		}
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].MembershipNumber < res[j].MembershipNumber })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *memStore) GetMemberDues(ctx context.Context, memberID int64, year int) (*model.MemberDues, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx, ok := txFromContext(ctx); ok && !tx.locked {
		s.unlockedDuesReads++
	}
	d, ok := s.dues[duesKey{memberID, year}]
	if !ok {
		return nil, repository.ErrDuesNotFound
	}
	return &d, nil
}

func (s *memStore) SaveMemberDues(_ context.Context, d model.MemberDues) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := duesKey{d.MemberID, d.Year}
	existing := s.dues[key]
	d.EmailFailedAt = existing.EmailFailedAt
	d.EmailAttempts = existing.EmailAttempts
	s.dues[key] = d
	return nil
}

func (s *memStore) MarkDuesEmailSent(_ context.Context, memberID int64, year int, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markSentErr != nil {
		return s.markSentErr
	}
	d, ok := s.dues[duesKey{memberID, year}]
	if !ok {
		d = model.MemberDues{MemberID: memberID, Year: year}
	}
	d.InvoiceSent = true
	d.InvoiceSentAt = &sentAt
	d.EmailFailedAt = nil
	s.dues[duesKey{memberID, year}] = d
	return nil
}

func (s *memStore) RecordDuesEmailFailure(_ context.Context, memberID int64, year int, failedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dues[duesKey{memberID, year}]
	if !ok {
		d = model.MemberDues{MemberID: memberID, Year: year}
	}
	d.EmailAttempts++
	d.EmailFailedAt = &failedAt
	s.dues[duesKey{memberID, year}] = d
	return nil
}

func (s *memStore) CreateInvoice(_ context.Context, inv model.Invoice) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.createErrs) > 0 {
		err := s.createErrs[0]
		s.createErrs = s.createErrs[1:]
		return nil, err
	}

	for _, existing := range s.invoices {
		if existing.Year != inv.Year {
			continue
		}
		if existing.Number == inv.Number {
			return nil, repository.ErrDuplicateInvoiceNumber
		}
		if existing.Token == inv.Token {
			return nil, repository.ErrDuplicateToken
		}
	}

	inv.ID = int64(len(s.invoices) + 1)
	s.invoices = append(s.invoices, inv)
	return &inv, nil
}

func (s *memStore) GetInvoiceByNumber(_ context.Context, year int, number int64) (*model.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.Year == year && inv.Number == number {
			return &inv, nil
		}
	}
	return nil, repository.ErrInvoiceNotFound
}

func (s *memStore) GetInvoices(_ context.Context, years []int) ([]model.Invoice, error) {
	return s.filterInvoices(func(inv model.Invoice) bool { return yearIn(inv.Year, years) }), nil
}

func (s *memStore) GetInvoicesByMembershipNumber(_ context.Context, membershipNumber int64, years []int) ([]model.Invoice, error) {
	return s.filterInvoices(func(inv model.Invoice) bool {
		return inv.MembershipNumber == membershipNumber && yearIn(inv.Year, years)
	}), nil
}

func (s *memStore) filterInvoices(keep func(model.Invoice) bool) []model.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.Invoice
	for _, inv := range s.invoices {
		if keep(inv) {
			res = append(res, inv)
		}
	}
	return res
}

func yearIn(year int, years []int) bool {
	if len(years) == 0 {
		return true
	}
	for _, y := range years {
		if y == year {
			return true
		}
	}
	return false
}

func (s *memStore) GetMaxInvoiceNumber(_ context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var highest int64
	for _, inv := range s.invoices {
		if inv.Year == year && inv.Number > highest {
			highest = inv.Number
		}
	}
	return highest, nil
}

func (s *memStore) TokenExists(_ context.Context, token string, year int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.Year == year && inv.Token == token {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) LockInvoiceYear(ctx context.Context, _ int) error {
	tx, ok := txFromContext(ctx)
	if !ok {
		return repository.ErrNoTransaction
	}

	if !tx.locked {
		s.txLock.Lock()
		tx.locked = true

		s.mu.Lock()
		tx.dues = make(map[duesKey]model.MemberDues, len(s.dues))
		for k, v := range s.dues {
			tx.dues[k] = v
		}
		tx.invoices = append([]model.Invoice(nil), s.invoices...)
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.lockCalls++
	s.mu.Unlock()
	return nil
}

func (s *memStore) MarkInvoiceCancelled(_ context.Context, year int, number int64, succeeding *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.invoices {
		if s.invoices[i].Year == year && s.invoices[i].Number == number {
			s.invoices[i].IsCancelled = true
			s.invoices[i].SucceedingNumber = succeeding
			return nil
		}
	}
	return repository.ErrInvoiceNotFound
}

func (s *memStore) invoiceCount(year int) int {
	return len(s.filterInvoices(func(inv model.Invoice) bool { return inv.Year == year }))
}
