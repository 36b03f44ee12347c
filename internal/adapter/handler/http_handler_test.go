package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-\d{4}$`)

// In-memory fakes for the repository ports.

type memStock struct {
	mu    sync.Mutex
	stock map[int64]int
}

func (m *memStock) GetStock(ctx context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[id]
	if !ok {
		return 0, port.ErrProductNotFound
	}
	return s, nil
}

func (m *memStock) SetStock(ctx context.Context, id int64, stock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stock[id]; !ok {
		return port.ErrProductNotFound
	}
	m.stock[id] = stock
	return nil
}

func (m *memStock) DeductStock(ctx context.Context, id int64, quantity int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[id]
	if !ok || s < quantity {
		return 0, port.ErrInsufficientStock
	}
	m.stock[id] = s - quantity
	return m.stock[id], nil
}

type memOrders struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func (m *memOrders) CreateOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *order
	m.orders[order.ID] = &clone
	return nil
}

func (m *memOrders) GetOrderByNumber(ctx context.Context, number string) (*domain.Order, error) {
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

func (m *memOrders) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	clone := *o
	return &clone, nil
}

func (m *memOrders) ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error) {
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

func (m *memOrders) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return port.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (m *memOrders) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.Number == number {
			return true, nil
		}
	}
	return false, nil
}

type memCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memCache) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, port.NotificationKind, string) {}

type testEnv struct {
	router *gin.Engine
	stock  *memStock
	orders *memOrders
}

func newTestEnv(stock map[int64]int) *testEnv {
	gin.SetMode(gin.TestMode)

	stockRepo := &memStock{stock: stock}
	orderRepo := &memOrders{orders: make(map[string]*domain.Order)}
	cache := &memCache{keys: make(map[string]bool)}
	sink := nopNotifier{}

	ledger := service.NewStockLedger(stockRepo, sink, time.Second)
	checkout := service.NewCheckoutService(ledger, orderRepo, cache, sink, time.Second)
	orders := service.NewOrderQueryService(orderRepo, sink, time.Second)

	router := gin.New()
	NewHTTPHandler(checkout, orders, ledger).Register(router)

	return &testEnv{router: router, stock: stockRepo, orders: orderRepo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func checkoutBody(requestID string, items []map[string]any) map[string]any {
	return map[string]any{
		"request_id":     requestID,
		"items":          items,
		"customer_name":  "Dana Reyes",
		"email":          "dana@example.com",
		"phone":          "+63-900-555-0101",
		"address":        "12 Mabini St",
		"city":           "Quezon City",
		"payment_method": "cod",
	}
}

func toteItem(quantity int) map[string]any {
	return map[string]any{
		"product_id": 2,
		"name":       "Linen Tote Bag",
		"price":      "850",
		"quantity":   quantity,
	}
}

func TestCheckoutEndpoint_Success(t *testing.T) {
	env := newTestEnv(map[int64]int{2: 10})

	w := env.do(t, http.MethodPost, "/api/checkout", checkoutBody("req-1", []map[string]any{toteItem(2)}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Regexp(t, orderNumberPattern, resp.OrderNumber)

	env.stock.mu.Lock()
	assert.Equal(t, 8, env.stock.stock[2])
	env.stock.mu.Unlock()
}

func TestCheckoutEndpoint_ShortfallListsEveryItem(t *testing.T) {
	env := newTestEnv(map[int64]int{2: 1, 3: 0})
	items := []map[string]any{
		toteItem(5),
		{"product_id": 3, "name": "Walnut Desk Organizer", "price": "1800", "quantity": 1},
	}

	w := env.do(t, http.MethodPost, "/api/checkout", checkoutBody("req-1", items))
	require.Equal(t, http.StatusConflict, w.Code)

	var resp CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "Linen Tote Bag")
	assert.Contains(t, resp.Message, "Walnut Desk Organizer")
}

func TestCheckoutEndpoint_DuplicateRequest(t *testing.T) {
	env := newTestEnv(map[int64]int{2: 10})
	body := checkoutBody("req-1", []map[string]any{toteItem(1)})

	w := env.do(t, http.MethodPost, "/api/checkout", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/checkout", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCheckoutEndpoint_BadRequest(t *testing.T) {
	env := newTestEnv(map[int64]int{2: 10})

	body := checkoutBody("req-1", []map[string]any{toteItem(1)})
	delete(body, "email")

	w := env.do(t, http.MethodPost, "/api/checkout", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown payment methods are rejected by binding as well.
	body = checkoutBody("req-2", []map[string]any{toteItem(1)})
	body["payment_method"] = "credit_card"
	w = env.do(t, http.MethodPost, "/api/checkout", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrderByNumber(t *testing.T) {
	env := newTestEnv(map[int64]int{2: 10})

	w := env.do(t, http.MethodPost, "/api/checkout", checkoutBody("req-1", []map[string]any{toteItem(2)}))
	require.Equal(t, http.StatusOK, w.Code)

	var placed CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placed))

	w = env.do(t, http.MethodGet, "/api/orders/"+placed.OrderNumber, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var order domain.Order
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	assert.Equal(t, placed.OrderNumber, order.Number)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Linen Tote Bag", order.Items[0].ProductName)
}

func TestGetOrderByNumber_NotFound(t *testing.T) {
	env := newTestEnv(nil)

	w := env.do(t, http.MethodGet, "/api/orders/ORD-19700101-0000", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(map[int64]int{2: 10})

	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/api/checkout",
			checkoutBody(fmt.Sprintf("req-%d", i), []map[string]any{toteItem(1)}))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodGet, "/admin/orders?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Orders []domain.Order `json:"orders"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Orders, 2)
}

func TestUpdateOrderStatus(t *testing.T) {
	env := newTestEnv(map[int64]int{2: 10})

	w := env.do(t, http.MethodPost, "/api/checkout", checkoutBody("req-1", []map[string]any{toteItem(1)}))
	require.Equal(t, http.StatusOK, w.Code)

	var placed CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &placed))

	order, err := env.orders.GetOrderByNumber(context.Background(), placed.OrderNumber)
	require.NoError(t, err)
	require.NotNil(t, order)

	w = env.do(t, http.MethodPatch, "/admin/orders/"+order.ID+"/status", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Backward transition is rejected.
	w = env.do(t, http.MethodPatch, "/admin/orders/"+order.ID+"/status", map[string]string{"status": "pending"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Unknown status value.
	w = env.do(t, http.MethodPatch, "/admin/orders/"+order.ID+"/status", map[string]string{"status": "refunded"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Unknown order.
	w = env.do(t, http.MethodPatch, "/admin/orders/no-such-order/status", map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetStock_ClampsNegativeToZero(t *testing.T) {
	env := newTestEnv(map[int64]int{2: 10})

	w := env.do(t, http.MethodPut, "/admin/products/2/stock", map[string]int{"stock": -5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Stock int `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Stock)
}

func TestAdjustStock(t *testing.T) {
	env := newTestEnv(map[int64]int{2: 10})

	w := env.do(t, http.MethodPost, "/admin/products/2/stock/adjust", map[string]int{"delta": -4})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Stock int `json:"stock"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 6, resp.Stock)

	// Clamped at zero.
	w = env.do(t, http.MethodPost, "/admin/products/2/stock/adjust", map[string]int{"delta": -100})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Stock)
}

func TestSetStock_UnknownProduct(t *testing.T) {
	env := newTestEnv(nil)

	w := env.do(t, http.MethodPut, "/admin/products/42/stock", map[string]int{"stock": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(nil)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
