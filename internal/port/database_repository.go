package port

import (
	"context"
	"errors"

	"github.com/rl1809/storefront/internal/core/domain"
)

var (
	// ErrProductNotFound is returned by stock operations for an unknown product ID.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is returned by DeductStock when the write would drive
	// stock negative; no write happens in that case.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrOrderNotFound is returned by order lookups and updates matching no row.
	ErrOrderNotFound = errors.New("order not found")
)

type StockRepository interface {
	// GetStock retrieves the current stock level for a product
	GetStock(ctx context.Context, productID int64) (int, error)

	// SetStock unconditionally overwrites a product's stock level
	SetStock(ctx context.Context, productID int64, stock int) error

	// DeductStock atomically decreases stock with a floor at zero, returning the
	// remaining stock; fails with ErrInsufficientStock and performs no write if
	// the deduction would go negative
	DeductStock(ctx context.Context, productID int64, quantity int) (int, error)
}

type OrderRepository interface {
	// CreateOrder persists the order header and all line items in one transaction
	CreateOrder(ctx context.Context, order *domain.Order) error

	// GetOrderByNumber retrieves an order with its items by order number
	GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error)

	// GetOrderByID retrieves an order with its items by internal ID
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)

	// ListOrders retrieves orders newest-first with their items
	ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error)

	// UpdateOrderStatus sets the status column of a single order
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error

	// OrderNumberExists reports whether an order number is already in use
	OrderNumberExists(ctx context.Context, number string) (bool, error)
}
