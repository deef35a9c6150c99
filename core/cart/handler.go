package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ecomoro/storefront/api/web"
	"github.com/ecomoro/storefront/api/weberr"
	"github.com/ecomoro/storefront/core/claims"
	"github.com/ecomoro/storefront/core/product"
	"github.com/ecomoro/storefront/database"
	"github.com/ecomoro/storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// load resolves the user's cart and re-reads its authoritative snapshot.
func load(ctx context.Context, db sqlx.ExtContext, userID string) (Cart, error) {
	crt, err := Resolve(ctx, db, userID)
	if err != nil {
		return Cart{}, fmt.Errorf("resolving cart: %w", err)
	}

	lines, err := FetchLines(ctx, db, crt.ID)
	if err != nil {
		return Cart{}, fmt.Errorf("fetching lines: %w", err)
	}

	total, err := Total(lines)
	if err != nil {
		return Cart{}, fmt.Errorf("computing total: %w", err)
	}

	crt.Lines = lines
	crt.Total = total
	return crt, nil
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crt, err := load(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("loading cart of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

func HandleApplyDelta(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var dn DeltaNew
		if err := web.Decode(w, r, &dn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(dn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if err := validate.CheckID(dn.ProductID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		if _, err := product.Fetch(ctx, db, dn.ProductID); err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product[%s]: %w", dn.ProductID, err)
		}

		crt, err := Resolve(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("resolving cart of user[%s]: %w", clm.UserID, err)
		}

		// A zero delta is a read: respond with the current snapshot.
		if dn.Delta != 0 {
			err = database.Transaction(db, func(tx sqlx.ExtContext) error {
				if err := Lock(ctx, tx, crt.ID); err != nil {
					return err
				}
				if dn.Delta > 0 {
					return AddQuantity(ctx, tx, crt.ID, dn.ProductID, dn.Delta)
				}
				return ReduceQuantity(ctx, tx, crt.ID, dn.ProductID, dn.Delta)
			})
			if err != nil {
				if errors.Is(err, ErrLineNotFound) {
					return weberr.NotFound(err)
				}
				return fmt.Errorf("applying delta[%d] on cart[%s] product[%s]: %w", dn.Delta, crt.ID, dn.ProductID, err)
			}
		}

		crt, err = load(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("loading cart of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

func HandleRemoveLine(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		productID := web.Param(r, "product_id")
		if err := validate.CheckID(productID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		crt, err := Resolve(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("resolving cart of user[%s]: %w", clm.UserID, err)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := Lock(ctx, tx, crt.ID); err != nil {
				return err
			}
			return DeleteLine(ctx, tx, crt.ID, productID)
		})
		if err != nil {
			if errors.Is(err, ErrLineNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("removing line of cart[%s] product[%s]: %w", crt.ID, productID, err)
		}

		crt, err = load(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("loading cart of user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, crt, http.StatusOK)
	}
}

// HandleCheckout finalizes the cart: the total is computed and the lines
// are deleted inside one transaction, holding the cart's row lock, so a
// concurrent mutation is either reflected in the total or applies to the
// next, already empty, cart. No durable order record is written here.
func HandleCheckout(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		crt, err := Resolve(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("resolving cart of user[%s]: %w", clm.UserID, err)
		}

		var total decimal.Decimal
		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := Lock(ctx, tx, crt.ID); err != nil {
				return err
			}

			lines, err := FetchLines(ctx, tx, crt.ID)
			if err != nil {
				return err
			}

			if len(lines) == 0 {
				return ErrEmptyCart
			}

			if total, err = Total(lines); err != nil {
				return err
			}

			return DeleteAllLines(ctx, tx, crt.ID)
		})
		if err != nil {
			if errors.Is(err, ErrEmptyCart) {
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
			return fmt.Errorf("checking out cart[%s]: %w", crt.ID, err)
		}

		out := struct {
			Total decimal.Decimal `json:"total"`
		}{Total: total}

		return web.Respond(ctx, w, out, http.StatusOK)
	}
}
