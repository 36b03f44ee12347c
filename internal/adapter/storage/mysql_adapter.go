package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// MySQLAdapter implements port.StockRepository and port.OrderRepository over
// the products, orders and order_items tables.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetStock(ctx context.Context, productID int64) (int, error) {
	var stock int
	err := m.db.QueryRowContext(ctx,
		`SELECT stock FROM products WHERE id = ?`, productID,
	).Scan(&stock)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, port.ErrProductNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query stock: %w", err)
	}
	return stock, nil
}

func (m *MySQLAdapter) SetStock(ctx context.Context, productID int64, stock int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET stock = ?, updated_at = NOW()
		WHERE id = ?`,
		stock, productID,
	)
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// MySQL reports 0 affected rows when the value is unchanged too, so
		// distinguish a missing product from a no-op write.
		var exists int
		if scanErr := m.db.QueryRowContext(ctx,
			`SELECT 1 FROM products WHERE id = ?`, productID,
		).Scan(&exists); errors.Is(scanErr, sql.ErrNoRows) {
			return port.ErrProductNotFound
		}
	}
	return nil
}

func (m *MySQLAdapter) DeductStock(ctx context.Context, productID int64, quantity int) (int, error) {
	result, err := m.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, updated_at = NOW()
		WHERE id = ? AND stock >= ?`,
		quantity, productID, quantity,
	)
	if err != nil {
		return 0, fmt.Errorf("deduct stock: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Missing product and short stock look the same here; either way the
		// deduction did not happen and nothing was written.
		return 0, port.ErrInsufficientStock
	}

	return m.GetStock(ctx, productID)
}

func (m *MySQLAdapter) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, number, customer_name, email, phone, address, city,
			postal_code, subtotal, shipping_cost, total, status, payment_method,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Number, order.CustomerName, order.Email, order.Phone,
		order.Address, order.City, nullable(order.PostalCode), order.Subtotal,
		order.ShippingCost, order.Total, order.Status, order.PaymentMethod,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if len(order.Items) > 0 {
		query, args := buildItemsInsert(order.ID, order.Items)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}
	}

	return tx.Commit()
}

// buildItemsInsert assembles one multi-row insert so the line items land as a
// single batch.
func buildItemsInsert(orderID string, items []domain.OrderItem) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO order_items (order_id, product_id, product_name,
		product_image, price, variant, quantity, subtotal) VALUES `)

	args := make([]any, 0, len(items)*8)
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, orderID, item.ProductID, item.ProductName,
			item.ProductImage, item.Price, nullable(item.Variant),
			item.Quantity, item.Subtotal)
	}
	return b.String(), args
}

const orderColumns = `id, number, customer_name, email, phone, address, city,
	postal_code, subtotal, shipping_cost, total, status, payment_method,
	created_at, updated_at`

func (m *MySQLAdapter) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE number = ?`, number)
	return m.scanOrderWithItems(ctx, row)
}

func (m *MySQLAdapter) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	return m.scanOrderWithItems(ctx, row)
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, number DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	for i := range orders {
		items, err := m.getOrderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (m *MySQLAdapter) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, updated_at = NOW()
		WHERE id = ?`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		if scanErr := m.db.QueryRowContext(ctx,
			`SELECT 1 FROM orders WHERE id = ?`, id,
		).Scan(&exists); errors.Is(scanErr, sql.ErrNoRows) {
			return port.ErrOrderNotFound
		}
	}
	return nil
}

func (m *MySQLAdapter) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var one int
	err := m.db.QueryRowContext(ctx,
		`SELECT 1 FROM orders WHERE number = ?`, number,
	).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query order number: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order      domain.Order
		postalCode sql.NullString
	)
	err := row.Scan(
		&order.ID, &order.Number, &order.CustomerName, &order.Email, &order.Phone,
		&order.Address, &order.City, &postalCode, &order.Subtotal,
		&order.ShippingCost, &order.Total, &order.Status, &order.PaymentMethod,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.PostalCode = postalCode.String
	return &order, nil
}

func (m *MySQLAdapter) scanOrderWithItems(ctx context.Context, row rowScanner) (*domain.Order, error) {
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	items, err := m.getOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (m *MySQLAdapter) getOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_image, price,
			variant, quantity, subtotal
		FROM order_items WHERE order_id = ? ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var (
			item    domain.OrderItem
			variant sql.NullString
		)
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.ProductName,
			&item.ProductImage, &item.Price, &variant, &item.Quantity,
			&item.Subtotal,
		); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.Variant = variant.String
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
