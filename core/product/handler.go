package product

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ecomoro/storefront/api/web"
	"github.com/ecomoro/storefront/api/weberr"
	"github.com/ecomoro/storefront/validate"
	"github.com/jmoiron/sqlx"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		flt := Filter{
			Search:  web.Query(r, "search"),
			Page:    1,
			PerPage: defaultPerPage,
		}

		if raw := web.Query(r, "page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				return weberr.BadRequest(fmt.Errorf("invalid page %q", raw))
			}
			flt.Page = n
		}

		if raw := web.Query(r, "per_page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxPerPage {
				return weberr.BadRequest(fmt.Errorf("invalid per_page %q", raw))
			}
			flt.PerPage = n
		}

		products, err := List(ctx, db, flt)
		if err != nil {
			return fmt.Errorf("listing products: %w", err)
		}

		return web.Respond(ctx, w, products, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		productID := web.Param(r, "id")

		if err := validate.CheckID(productID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		prd, err := Fetch(ctx, db, productID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product[%s]: %w", productID, err)
		}

		return web.Respond(ctx, w, prd, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var pn ProductNew
		if err := web.Decode(w, r, &pn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(pn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if pn.Price.IsNegative() {
			err := errors.New("price must not be negative")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		prd := Product{
			ID:          validate.GenerateID(),
			Name:        pn.Name,
			Description: pn.Description,
			ImageURL:    pn.ImageURL,
			Price:       pn.Price,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := Create(ctx, db, prd); err != nil {
			return fmt.Errorf("creating product: %w", err)
		}

		return web.Respond(ctx, w, prd, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		productID := web.Param(r, "id")

		if err := validate.CheckID(productID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusBadRequest)
		}

		var up ProductUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if up.Price != nil && up.Price.IsNegative() {
			err := errors.New("price must not be negative")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		prd, err := Fetch(ctx, db, productID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching product[%s]: %w", productID, err)
		}

		if up.Name != nil {
			prd.Name = *up.Name
		}
		if up.Description != nil {
			prd.Description = *up.Description
		}
		if up.ImageURL != nil {
			prd.ImageURL = *up.ImageURL
		}
		if up.Price != nil {
			prd.Price = *up.Price
		}
		prd.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, prd); err != nil {
			return fmt.Errorf("updating product[%s]: %w", productID, err)
		}

		return web.Respond(ctx, w, prd, http.StatusOK)
	}
}
