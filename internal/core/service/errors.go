package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInvalidCheckout   = errors.New("invalid checkout request")
	ErrPersistFailed     = errors.New("order persist failed")
	ErrTimeout           = errors.New("storage deadline exceeded")
	ErrOrderNumberSpace  = errors.New("could not allocate an unused order number")
	ErrNegativeStock     = errors.New("stock must not be negative")
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// StockShortfallError reports every cart line that cannot be fulfilled, not
// just the first, so the customer can fix the whole cart in one pass.
type StockShortfallError struct {
	Items []string
}

func (e *StockShortfallError) Error() string {
	return "insufficient stock for: " + strings.Join(e.Items, ", ")
}

// classify wraps a storage failure, surfacing the store's own message, and
// maps a blown deadline to ErrTimeout so callers can tell a hung store from a
// rejected write.
func classify(err, fallback error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", fallback, err)
}
