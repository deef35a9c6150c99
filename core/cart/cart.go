package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrLineNotFound reports a decrement or removal aimed at a line the
	// cart does not hold. It is a client error, never a silent success.
	ErrLineNotFound = errors.New("cart line not found")

	// ErrEmptyCart reports a checkout attempted against a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrInvariant reports state that contradicts a cart invariant, such as
	// a non-positive persisted quantity or a negative price. It should never
	// occur; when it does the operation fails loudly instead of patching up.
	ErrInvariant = errors.New("cart invariant violated")
)

// Cart is the per-user container of lines. One row per user, created lazily
// on first use and kept across checkouts; only its lines come and go.
type Cart struct {
	ID        string          `json:"-" db:"cart_id"`
	UserID    string          `json:"-" db:"user_id"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
	Lines     []Line          `json:"lines" db:"-"`
	Total     decimal.Decimal `json:"total" db:"-"`
}

// Line pairs a product with a quantity. At most one line exists per
// (cart, product); a persisted quantity is always at least 1. The product
// columns are joined in on read so callers always see authoritative state.
type Line struct {
	CartID    string          `json:"-" db:"cart_id"`
	ProductID string          `json:"productId" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	ImageURL  string          `json:"imageUrl" db:"image_url"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// DeltaNew is the payload of a quantity adjustment. Delta is signed:
// positive adds, negative decreases, zero reads back the current cart.
type DeltaNew struct {
	ProductID string `json:"productId" validate:"required"`
	Delta     int    `json:"delta"`
}

// Total sums price times quantity over the lines, rounded to two decimals
// half away from zero. An empty line set totals 0.00. A line carrying a
// negative price or a quantity below 1 means an upstream invariant broke,
// so the computation fails with ErrInvariant rather than produce a number.
func Total(lines []Line) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity < 1 || l.Price.IsNegative() {
			return decimal.Zero, fmt.Errorf("line for product[%s] carries quantity[%d] price[%s]: %w",
				l.ProductID, l.Quantity, l.Price, ErrInvariant)
		}
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total.Round(2), nil
}
