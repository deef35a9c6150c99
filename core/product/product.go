package product

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("product not found")

// Product is catalog reference data: the cart reads it, never writes it.
// Prices are fixed-precision decimals kept to the cent.
type Product struct {
	ID          string          `json:"id" db:"product_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	ImageURL    string          `json:"imageUrl" db:"image_url"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

type ProductNew struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description" validate:"required"`
	ImageURL    string          `json:"imageUrl" validate:"required"`
	Price       decimal.Decimal `json:"price"`
}

type ProductUp struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	ImageURL    *string          `json:"imageUrl"`
	Price       *decimal.Decimal `json:"price"`
}
