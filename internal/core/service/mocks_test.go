package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// Mock StockRepository
type mockStockRepo struct {
	mu         sync.Mutex
	stock      map[int64]int
	getErr     error
	deductErrs map[int64]error
}

func newMockStockRepo(stock map[int64]int) *mockStockRepo {
	if stock == nil {
		stock = make(map[int64]int)
	}
	return &mockStockRepo{
		stock:      stock,
		deductErrs: make(map[int64]error),
	}
}

func (m *mockStockRepo) GetStock(ctx context.Context, productID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return 0, m.getErr
	}
	stock, ok := m.stock[productID]
	if !ok {
		return 0, port.ErrProductNotFound
	}
	return stock, nil
}

func (m *mockStockRepo) SetStock(ctx context.Context, productID int64, stock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stock[productID]; !ok {
		return port.ErrProductNotFound
	}
	m.stock[productID] = stock
	return nil
}

func (m *mockStockRepo) DeductStock(ctx context.Context, productID int64, quantity int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.deductErrs[productID]; err != nil {
		return 0, err
	}
	stock, ok := m.stock[productID]
	if !ok || stock < quantity {
		return 0, port.ErrInsufficientStock
	}
	m.stock[productID] = stock - quantity
	return m.stock[productID], nil
}

func (m *mockStockRepo) stockOf(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID]
}

// Mock OrderRepository
type mockOrderRepo struct {
	mu           sync.Mutex
	orders       map[string]*domain.Order
	createErr    error
	createDelay  time.Duration
	collideFirst int
	numberChecks int
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*domain.Order)}
}

func (m *mockOrderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	if m.createDelay > 0 {
		select {
		case <-time.After(m.createDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	clone := *order
	clone.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &clone
	return nil
}

func (m *mockOrderRepo) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.Number == number {
			clone := *o
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *mockOrderRepo) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *o
	return &clone, nil
}

func (m *mockOrderRepo) ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		all = append(all, *o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (m *mockOrderRepo) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return port.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (m *mockOrderRepo) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.numberChecks++
	if m.numberChecks <= m.collideFirst {
		return true, nil
	}
	for _, o := range m.orders {
		if o.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOrderRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// Mock CacheRepository
type mockCacheRepo struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{keys: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)
	return nil
}

func (m *mockCacheRepo) held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key]
}

// Mock Notifier
type notification struct {
	kind    port.NotificationKind
	message string
}

type mockNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (m *mockNotifier) Notify(ctx context.Context, kind port.NotificationKind, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, notification{kind: kind, message: message})
}

func (m *mockNotifier) last() (notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) == 0 {
		return notification{}, false
	}
	return m.events[len(m.events)-1], true
}
