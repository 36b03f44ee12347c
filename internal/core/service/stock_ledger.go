package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/storefront/internal/port"
)

// StockLedger is the single authority for a product's sellable quantity.
type StockLedger struct {
	stock    port.StockRepository
	notifier port.Notifier
	timeout  time.Duration
}

func NewStockLedger(stock port.StockRepository, notifier port.Notifier, timeout time.Duration) *StockLedger {
	return &StockLedger{
		stock:    stock,
		notifier: notifier,
		timeout:  timeout,
	}
}

// CheckStock reports whether a product can cover the requested quantity.
// Any read failure, an unknown product included, reads as unavailable.
func (l *StockLedger) CheckStock(ctx context.Context, productID int64, quantity int) bool {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	stock, err := l.stock.GetStock(ctx, productID)
	if err != nil {
		return false
	}
	return stock >= quantity
}

// SetStock overwrites a product's stock level. Callers clamp relative
// adjustments before calling; the ledger only refuses outright negative input.
func (l *StockLedger) SetStock(ctx context.Context, productID int64, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeStock, quantity)
	}

	tctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.stock.SetStock(tctx, productID, quantity); err != nil {
		if errors.Is(err, port.ErrProductNotFound) {
			return err
		}
		wrapped := classify(err, ErrPersistFailed)
		l.notifier.Notify(ctx, port.NotifyError, fmt.Sprintf("stock update failed for product %d: %v", productID, err))
		return wrapped
	}

	l.notifier.Notify(ctx, port.NotifySuccess, fmt.Sprintf("stock for product %d set to %d", productID, quantity))
	return nil
}

// AdjustStock applies a relative delta, clamped so stock never goes below zero,
// and returns the resulting level.
func (l *StockLedger) AdjustStock(ctx context.Context, productID int64, delta int) (int, error) {
	tctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	current, err := l.stock.GetStock(tctx, productID)
	if err != nil {
		if errors.Is(err, port.ErrProductNotFound) {
			return 0, err
		}
		return 0, classify(err, ErrPersistFailed)
	}

	next := max(0, current+delta)
	if err := l.SetStock(ctx, productID, next); err != nil {
		return 0, err
	}
	return next, nil
}

// DeductStock atomically lowers stock by quantity, failing without a write if
// the product cannot cover it. The conditional write closes the gap between
// read and write, so concurrent deductions can never oversubscribe a product.
func (l *StockLedger) DeductStock(ctx context.Context, productID int64, quantity int) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	remaining, err := l.stock.DeductStock(ctx, productID, quantity)
	if err != nil {
		if errors.Is(err, port.ErrInsufficientStock) {
			return 0, err
		}
		return 0, classify(err, ErrPersistFailed)
	}
	return remaining, nil
}
