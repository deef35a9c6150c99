package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/ecomoro/storefront/validate"
	"github.com/jmoiron/sqlx"
)

// Resolve returns the user's cart, creating it on first use. Creation rides
// the unique constraint on user_id: two concurrent first calls race on the
// insert, the loser hits DO NOTHING and both read back the same single row.
func Resolve(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	const ins = `
	INSERT INTO carts
		(cart_id, user_id, created_at, updated_at)
	VALUES
		(:cart_id, :user_id, :created_at, :updated_at)
	ON CONFLICT (user_id) DO NOTHING`

	now := time.Now().UTC()
	crt := Cart{
		ID:        validate.GenerateID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := sqlx.NamedExecContext(ctx, db, ins, crt); err != nil {
		return Cart{}, fmt.Errorf("inserting cart for user[%s]: %w", userID, err)
	}

	const sel = `
	SELECT cart_id, user_id, created_at, updated_at
	FROM carts
	WHERE user_id = $1`

	if err := sqlx.GetContext(ctx, db, &crt, sel, userID); err != nil {
		return Cart{}, fmt.Errorf("selecting cart for user[%s]: %w", userID, err)
	}

	return crt, nil
}

// Lock takes a row lock on the cart for the rest of the transaction, so
// mutations and checkout on the same cart serialize at the store.
func Lock(ctx context.Context, tx sqlx.ExtContext, cartID string) error {
	const q = `SELECT user_id FROM carts WHERE cart_id = $1 FOR UPDATE`

	var owner string
	if err := sqlx.GetContext(ctx, tx, &owner, q, cartID); err != nil {
		return fmt.Errorf("locking cart[%s]: %w", cartID, err)
	}

	return nil
}

// FetchLines reads the full line set joined against the catalog, ordered by
// creation so snapshots are stable across reads.
func FetchLines(ctx context.Context, db sqlx.ExtContext, cartID string) ([]Line, error) {
	const q = `
	SELECT l.cart_id, l.product_id, l.quantity, l.created_at, l.updated_at,
	       p.name, p.price, p.image_url
	FROM cart_lines AS l
	JOIN products AS p ON p.product_id = l.product_id
	WHERE l.cart_id = $1
	ORDER BY l.created_at, l.product_id`

	lines := []Line{}
	if err := sqlx.SelectContext(ctx, db, &lines, q, cartID); err != nil {
		return nil, fmt.Errorf("selecting lines of cart[%s]: %w", cartID, err)
	}

	return lines, nil
}

// AddQuantity applies a positive delta as a single atomic statement: the
// line is created with the delta as quantity, or incremented in place at
// the store. There is no application-side read-modify-write to lose.
func AddQuantity(ctx context.Context, db sqlx.ExtContext, cartID string, productID string, qty int) error {
	const q = `
	INSERT INTO cart_lines
		(line_id, cart_id, product_id, quantity, created_at, updated_at)
	VALUES
		($1, $2, $3, $4, $5, $5)
	ON CONFLICT (cart_id, product_id) DO UPDATE
	SET quantity = cart_lines.quantity + EXCLUDED.quantity,
	    updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, q, validate.GenerateID(), cartID, productID, qty, now); err != nil {
		return fmt.Errorf("upserting line of cart[%s] product[%s]: %w", cartID, productID, err)
	}

	return nil
}

// ReduceQuantity applies a negative delta. The update only lands while the
// resulting quantity stays positive; an exhausted line is deleted instead,
// so a quantity of zero or below is never persisted. An absent line fails
// with ErrLineNotFound. Run it inside a transaction holding Lock.
func ReduceQuantity(ctx context.Context, tx sqlx.ExtContext, cartID string, productID string, qty int) error {
	if qty >= 0 {
		return fmt.Errorf("reduction with non-negative delta[%d]: %w", qty, ErrInvariant)
	}

	const upd = `
	UPDATE cart_lines
	SET quantity = quantity + $3, updated_at = $4
	WHERE cart_id = $1 AND product_id = $2 AND quantity + $3 > 0`

	res, err := tx.ExecContext(ctx, upd, cartID, productID, qty, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reducing line of cart[%s] product[%s]: %w", cartID, productID, err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("reducing line of cart[%s] product[%s]: %w", cartID, productID, err)
	} else if n > 0 {
		return nil
	}

	// The delta exhausts the line, or the line does not exist.
	return DeleteLine(ctx, tx, cartID, productID)
}

// DeleteLine removes the line unconditionally, failing with ErrLineNotFound
// when there is nothing to remove.
func DeleteLine(ctx context.Context, db sqlx.ExtContext, cartID string, productID string) error {
	const q = `DELETE FROM cart_lines WHERE cart_id = $1 AND product_id = $2`

	res, err := db.ExecContext(ctx, q, cartID, productID)
	if err != nil {
		return fmt.Errorf("deleting line of cart[%s] product[%s]: %w", cartID, productID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrLineNotFound
	}

	return nil
}

// DeleteAllLines clears the cart's lines and leaves the cart row in place.
func DeleteAllLines(ctx context.Context, db sqlx.ExtContext, cartID string) error {
	const q = `DELETE FROM cart_lines WHERE cart_id = $1`

	if _, err := db.ExecContext(ctx, q, cartID); err != nil {
		return fmt.Errorf("deleting lines of cart[%s]: %w", cartID, err)
	}

	return nil
}
