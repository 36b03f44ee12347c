package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/metrics"
	"github.com/rl1809/storefront/internal/port"
)

type HTTPHandler struct {
	checkout *service.CheckoutService
	orders   *service.OrderQueryService
	ledger   *service.StockLedger
}

func NewHTTPHandler(
	checkout *service.CheckoutService,
	orders *service.OrderQueryService,
	ledger *service.StockLedger,
) *HTTPHandler {
	return &HTTPHandler{
		checkout: checkout,
		orders:   orders,
		ledger:   ledger,
	}
}

// Register mounts every route on the router.
func (h *HTTPHandler) Register(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.POST("/checkout", h.Checkout)
	api.GET("/orders/:number", h.GetOrderByNumber)

	admin := r.Group("/admin")
	admin.GET("/orders", h.ListOrders)
	admin.GET("/orders/:id", h.GetOrderByID)
	admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)
	admin.PUT("/products/:id/stock", h.SetStock)
	admin.POST("/products/:id/stock/adjust", h.AdjustStock)
}

type CheckoutItemRequest struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Name      string          `json:"name" binding:"required"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Variant   string          `json:"variant"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
}

type CheckoutRequest struct {
	RequestID     string                `json:"request_id" binding:"required"`
	Items         []CheckoutItemRequest `json:"items" binding:"required,min=1,dive"`
	CustomerName  string                `json:"customer_name" binding:"required"`
	Email         string                `json:"email" binding:"required,email"`
	Phone         string                `json:"phone" binding:"required"`
	Address       string                `json:"address" binding:"required"`
	City          string                `json:"city" binding:"required"`
	PostalCode    string                `json:"postal_code"`
	PaymentMethod string                `json:"payment_method" binding:"required,oneof=cod bank_transfer"`
	ShippingCost  decimal.Decimal       `json:"shipping_cost"`
}

type CheckoutResponse struct {
	Success     bool   `json:"success"`
	OrderNumber string `json:"order_number,omitempty"`
	Message     string `json:"message,omitempty"`
}

func (h *HTTPHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.OrdersTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		c.JSON(http.StatusBadRequest, CheckoutResponse{
			Success: false,
			Message: "invalid request body: " + err.Error(),
		})
		return
	}

	cart := make([]domain.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		cart = append(cart, domain.CartLine{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Image:     item.Image,
			Variant:   item.Variant,
			Quantity:  item.Quantity,
		})
	}

	form := service.CheckoutForm{
		RequestID:     req.RequestID,
		CustomerName:  req.CustomerName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		City:          req.City,
		PostalCode:    req.PostalCode,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		ShippingCost:  req.ShippingCost,
	}

	order, err := h.checkout.PlaceOrder(c.Request.Context(), cart, form)
	if err != nil {
		status := http.StatusInternalServerError
		outcome := metrics.OutcomeFailed

		var shortfall *service.StockShortfallError
		switch {
		case errors.As(err, &shortfall):
			status = http.StatusConflict
			outcome = metrics.OutcomeShortfall
		case errors.Is(err, service.ErrDuplicateRequest):
			status = http.StatusConflict
			outcome = metrics.OutcomeDuplicate
		case errors.Is(err, service.ErrInvalidCheckout):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, service.ErrTimeout):
			status = http.StatusGatewayTimeout
		}

		metrics.OrdersTotal.WithLabelValues(outcome).Inc()
		c.JSON(status, CheckoutResponse{
			Success: false,
			Message: err.Error(),
		})
		return
	}

	metrics.OrdersTotal.WithLabelValues(metrics.OutcomePlaced).Inc()
	c.JSON(http.StatusOK, CheckoutResponse{
		Success:     true,
		OrderNumber: order.Number,
	})
}

func (h *HTTPHandler) GetOrderByNumber(c *gin.Context) {
	order, err := h.orders.GetOrderByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *HTTPHandler) GetOrderByID(c *gin.Context) {
	order, err := h.orders.GetOrderByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.orders.ListOrders(c.Request.Context(), limit, offset)
	if err != nil {
		h.orderError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *HTTPHandler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return
	}

	err := h.orders.UpdateOrderStatus(c.Request.Context(), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownStatus):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		case errors.Is(err, service.ErrIllegalTransition):
			c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
		default:
			h.orderError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": req.Status})
}

type SetStockRequest struct {
	Stock int `json:"stock"`
}

func (h *HTTPHandler) SetStock(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid product id"})
		return
	}

	var req SetStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return
	}

	// The ledger rejects negatives outright; clamping is this caller's job.
	stock := max(0, req.Stock)
	if err := h.ledger.SetStock(c.Request.Context(), productID, stock); err != nil {
		h.stockError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stock": stock})
}

type AdjustStockRequest struct {
	Delta int `json:"delta" binding:"required"`
}

func (h *HTTPHandler) AdjustStock(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid product id"})
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body: " + err.Error()})
		return
	}

	stock, err := h.ledger.AdjustStock(c.Request.Context(), productID, req.Delta)
	if err != nil {
		h.stockError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "stock": stock})
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) orderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, port.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "order not found"})
	case errors.Is(err, service.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
	}
}

func (h *HTTPHandler) stockError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, port.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "product not found"})
	case errors.Is(err, service.ErrNegativeStock):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
	case errors.Is(err, service.ErrTimeout):
		c.JSON(http.StatusGatewayTimeout, gin.H{"message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
	}
}
