package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const defaultPageSize = 50

// OrderQueryService serves the customer tracking page and the admin order
// dashboard: reads by number or ID, newest-first listing, status transitions.
type OrderQueryService struct {
	orders   port.OrderRepository
	notifier port.Notifier
	timeout  time.Duration
}

func NewOrderQueryService(orders port.OrderRepository, notifier port.Notifier, timeout time.Duration) *OrderQueryService {
	return &OrderQueryService{
		orders:   orders,
		notifier: notifier,
		timeout:  timeout,
	}
}

// GetOrderByNumber retrieves one order with its items by order number.
func (s *OrderQueryService) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	order, err := s.orders.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, classify(err, ErrPersistFailed)
	}
	if order == nil {
		return nil, port.ErrOrderNotFound
	}
	return order, nil
}

// GetOrderByID retrieves one order with its items by internal ID.
func (s *OrderQueryService) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	order, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return nil, classify(err, ErrPersistFailed)
	}
	if order == nil {
		return nil, port.ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns orders newest-first. A non-positive limit falls back to
// the default page size.
func (s *OrderQueryService) ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	orders, err := s.orders.ListOrders(ctx, limit, offset)
	if err != nil {
		return nil, classify(err, ErrPersistFailed)
	}
	return orders, nil
}

// UpdateOrderStatus moves an order along the status machine
// pending -> processing -> shipped -> delivered, with cancellation allowed
// from any non-terminal state. Anything else is rejected.
func (s *OrderQueryService) UpdateOrderStatus(ctx context.Context, orderID string, next domain.OrderStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, next)
	}

	order, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}

	if !order.Status.CanTransitionTo(next) {
		err := fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, next)
		s.notifier.Notify(ctx, port.NotifyError, fmt.Sprintf("order %s: %v", order.Number, err))
		return err
	}

	tctx, cancel := context.WithTimeout(ctx, s.timeout)
	err = s.orders.UpdateOrderStatus(tctx, orderID, next)
	cancel()
	if err != nil {
		wrapped := err
		if !errors.Is(err, port.ErrOrderNotFound) {
			wrapped = classify(err, ErrPersistFailed)
		}
		s.notifier.Notify(ctx, port.NotifyError, fmt.Sprintf("order %s status update failed: %v", order.Number, err))
		return wrapped
	}

	s.notifier.Notify(ctx, port.NotifySuccess, fmt.Sprintf("order %s status: %s -> %s", order.Number, order.Status, next))
	return nil
}
