package service

import (
	"context"
	"fmt"
)

type numberStore interface {
	LockInvoiceYear(ctx context.Context, year int) error
	GetMaxInvoiceNumber(ctx context.Context, year int) (int64, error)
}

// NumberAllocator выдаёт следующий номер счёта года.
type NumberAllocator struct {
	store numberStore
}

// NewNumberAllocator создаёт NumberAllocator поверх хранилища.
func NewNumberAllocator(store numberStore) *NumberAllocator {
	return &NumberAllocator{store: store}
}

// Next блокирует нумерацию года до конца транзакции и возвращает максимальный
// номер плюс один. Вызывается только внутри Store.WithinTx, в той же
// транзакции, что и вставка счёта.
func (a *NumberAllocator) Next(ctx context.Context, year int) (int64, error) {
	if err := a.store.LockInvoiceYear(ctx, year); err != nil {
		return 0, err
	}

	current, err := a.store.GetMaxInvoiceNumber(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("allocate invoice number: %w", err)
	}
	return current + 1, nil
}
