package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/metrics"
	"github.com/rl1809/storefront/internal/port"
)

const (
	idempotencyKeyPrefix = "checkout:req:"
	maxNumberAttempts    = 5
)

// CheckoutForm carries the customer, shipping and payment fields collected by
// the storefront checkout page.
type CheckoutForm struct {
	RequestID     string
	CustomerName  string
	Email         string
	Phone         string
	Address       string
	City          string
	PostalCode    string
	PaymentMethod domain.PaymentMethod
	ShippingCost  decimal.Decimal
}

// CheckoutService turns a cart into a persisted order: validate stock, persist
// the header and line-item snapshots in one transaction, then deduct stock.
// A deduction shortfall after persist does not fail the order; it is reported
// as a warning for manual reconciliation, because a recorded order must not be
// silently lost once the customer has committed.
type CheckoutService struct {
	ledger   *StockLedger
	orders   port.OrderRepository
	cache    port.CacheRepository
	notifier port.Notifier
	timeout  time.Duration
}

func NewCheckoutService(
	ledger *StockLedger,
	orders port.OrderRepository,
	cache port.CacheRepository,
	notifier port.Notifier,
	timeout time.Duration,
) *CheckoutService {
	return &CheckoutService{
		ledger:   ledger,
		orders:   orders,
		cache:    cache,
		notifier: notifier,
		timeout:  timeout,
	}
}

// PlaceOrder runs the placement pipeline and returns the persisted order.
// Blocking failures (shortfall, persist rejection, duplicate submit) return an
// error and leave no order behind; a post-persist deduction shortfall still
// returns the order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, cart []domain.CartLine, form CheckoutForm) (*domain.Order, error) {
	if err := validateCheckout(cart, form); err != nil {
		return nil, err
	}

	idempotencyKey := idempotencyKeyPrefix + form.RequestID

	ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return nil, ErrDuplicateRequest
	}

	if short := s.checkStockAll(ctx, cart); len(short) > 0 {
		s.release(ctx, idempotencyKey)
		err := &StockShortfallError{Items: short}
		s.notifier.Notify(ctx, port.NotifyError, err.Error())
		return nil, err
	}

	number, err := s.allocateOrderNumber(ctx)
	if err != nil {
		s.release(ctx, idempotencyKey)
		s.notifier.Notify(ctx, port.NotifyError, fmt.Sprintf("order number allocation failed: %v", err))
		return nil, err
	}

	order := buildOrder(number, cart, form)

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.orders.CreateOrder(tctx, order)
	cancel()
	if err != nil {
		s.release(ctx, idempotencyKey)
		wrapped := classify(err, ErrPersistFailed)
		s.notifier.Notify(ctx, port.NotifyError, fmt.Sprintf("order %s not saved: %v", number, err))
		return nil, wrapped
	}

	// The order is committed from here on; deduction failures only degrade it
	// to a warning.
	if failed := s.deductStockAll(ctx, cart); len(failed) > 0 {
		metrics.StockDeductionShortfalls.Inc()
		s.notifier.Notify(ctx, port.NotifyWarning, fmt.Sprintf(
			"order %s placed, but stock update needs verification for: %s",
			number, strings.Join(failed, ", "),
		))
		return order, nil
	}

	s.notifier.Notify(ctx, port.NotifySuccess, fmt.Sprintf("order %s placed", number))
	return order, nil
}

// checkStockAll fans out one availability check per cart line and returns the
// names of every line that cannot be fulfilled.
func (s *CheckoutService) checkStockAll(ctx context.Context, cart []domain.CartLine) []string {
	results := make([]bool, len(cart))

	var wg sync.WaitGroup
	for i, line := range cart {
		wg.Add(1)
		go func(i int, line domain.CartLine) {
			defer wg.Done()
			results[i] = s.ledger.CheckStock(ctx, line.ProductID, line.Quantity)
		}(i, line)
	}
	wg.Wait()

	var short []string
	for i, ok := range results {
		if !ok {
			short = append(short, cart[i].Name)
		}
	}
	return short
}

// deductStockAll fans out one deduction per cart line and returns the names of
// every line whose deduction failed.
func (s *CheckoutService) deductStockAll(ctx context.Context, cart []domain.CartLine) []string {
	errs := make([]error, len(cart))

	var wg sync.WaitGroup
	for i, line := range cart {
		wg.Add(1)
		go func(i int, line domain.CartLine) {
			defer wg.Done()
			_, errs[i] = s.ledger.DeductStock(ctx, line.ProductID, line.Quantity)
		}(i, line)
	}
	wg.Wait()

	var failed []string
	for i, err := range errs {
		if err != nil {
			failed = append(failed, cart[i].Name)
		}
	}
	return failed
}

// allocateOrderNumber draws candidates until one is unused. The random suffix
// space is small enough that same-day collisions happen in practice.
func (s *CheckoutService) allocateOrderNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		candidate := domain.NewOrderNumber(time.Now())

		tctx, cancel := context.WithTimeout(ctx, s.timeout)
		exists, err := s.orders.OrderNumberExists(tctx, candidate)
		cancel()
		if err != nil {
			return "", classify(err, ErrPersistFailed)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrOrderNumberSpace
}

func (s *CheckoutService) release(ctx context.Context, key string) {
	// Best effort: a leftover key only costs the customer a fresh request ID.
	_ = s.cache.ReleaseIdempotency(ctx, key)
}

func buildOrder(number string, cart []domain.CartLine, form CheckoutForm) *domain.Order {
	subtotal := decimal.Zero
	items := make([]domain.OrderItem, 0, len(cart))
	for _, line := range cart {
		lineSubtotal := line.Subtotal()
		items = append(items, domain.OrderItem{
			ProductID:    line.ProductID,
			ProductName:  line.Name,
			ProductImage: line.Image,
			Price:        line.Price,
			Variant:      line.Variant,
			Quantity:     line.Quantity,
			Subtotal:     lineSubtotal,
		})
		subtotal = subtotal.Add(lineSubtotal)
	}

	now := time.Now()
	return &domain.Order{
		ID:            uuid.New().String(),
		Number:        number,
		CustomerName:  form.CustomerName,
		Email:         form.Email,
		Phone:         form.Phone,
		Address:       form.Address,
		City:          form.City,
		PostalCode:    form.PostalCode,
		Subtotal:      subtotal,
		ShippingCost:  form.ShippingCost,
		Total:         subtotal.Add(form.ShippingCost),
		Status:        domain.OrderStatusPending,
		PaymentMethod: form.PaymentMethod,
		Items:         items,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func validateCheckout(cart []domain.CartLine, form CheckoutForm) error {
	if len(cart) == 0 {
		return fmt.Errorf("%w: empty cart", ErrInvalidCheckout)
	}
	for _, line := range cart {
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive for %q", ErrInvalidCheckout, line.Name)
		}
		if line.Price.IsNegative() {
			return fmt.Errorf("%w: negative price for %q", ErrInvalidCheckout, line.Name)
		}
	}
	if form.RequestID == "" {
		return fmt.Errorf("%w: missing request ID", ErrInvalidCheckout)
	}
	if !form.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidCheckout, form.PaymentMethod)
	}
	if form.ShippingCost.IsNegative() {
		return fmt.Errorf("%w: negative shipping cost", ErrInvalidCheckout)
	}
	return nil
}
