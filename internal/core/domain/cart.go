package domain

import "github.com/shopspring/decimal"

// CartLine is one entry of the customer's cart as submitted at checkout. The
// name, price and image travel with the line and become the order item snapshot.
type CartLine struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Variant   string          `json:"variant,omitempty"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is price times quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
