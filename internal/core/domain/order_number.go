package domain

import (
	"fmt"
	"math/rand"
	"time"
)

const orderNumberPrefix = "ORD"

// NewOrderNumber produces a human-readable, date-scoped order number of the
// form ORD-YYYYMMDD-NNNN, where NNNN is uniformly random in [1000, 9999].
// Uniqueness is not guaranteed here; callers check the store for collisions
// and the orders table carries a unique index as the hard backstop.
func NewOrderNumber(t time.Time) string {
	suffix := 1000 + rand.Intn(9000)
	return fmt.Sprintf("%s-%s-%04d", orderNumberPrefix, t.Format("20060102"), suffix)
}
