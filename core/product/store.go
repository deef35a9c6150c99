package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Filter narrows and pages a catalog listing. Page numbering starts at 1.
type Filter struct {
	Search  string
	Page    int
	PerPage int
}

func Fetch(ctx context.Context, db sqlx.ExtContext, productID string) (Product, error) {
	const q = `
	SELECT product_id, name, description, image_url, price, created_at, updated_at
	FROM products
	WHERE product_id = $1`

	var prd Product
	if err := sqlx.GetContext(ctx, db, &prd, q, productID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("selecting product[%s]: %w", productID, err)
	}

	return prd, nil
}

func List(ctx context.Context, db sqlx.ExtContext, flt Filter) ([]Product, error) {
	const q = `
	SELECT product_id, name, description, image_url, price, created_at, updated_at
	FROM products
	WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%')
	ORDER BY name, product_id
	LIMIT $2 OFFSET $3`

	offset := (flt.Page - 1) * flt.PerPage

	products := []Product{}
	if err := sqlx.SelectContext(ctx, db, &products, q, flt.Search, flt.PerPage, offset); err != nil {
		return nil, fmt.Errorf("selecting products: %w", err)
	}

	return products, nil
}

func Create(ctx context.Context, db sqlx.ExtContext, prd Product) error {
	const q = `
	INSERT INTO products
		(product_id, name, description, image_url, price, created_at, updated_at)
	VALUES
		(:product_id, :name, :description, :image_url, :price, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, prd); err != nil {
		return fmt.Errorf("inserting product: %w", err)
	}

	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, prd Product) error {
	const q = `
	UPDATE products
	SET
		name = :name,
		description = :description,
		image_url = :image_url,
		price = :price,
		updated_at = :updated_at
	WHERE product_id = :product_id`

	res, err := sqlx.NamedExecContext(ctx, db, q, prd)
	if err != nil {
		return fmt.Errorf("updating product[%s]: %w", prd.ID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}
