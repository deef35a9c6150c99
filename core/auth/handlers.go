package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ecomoro/storefront/api/web"
	"github.com/ecomoro/storefront/api/weberr"
	"github.com/ecomoro/storefront/core/claims"
	"github.com/ecomoro/storefront/core/user"
	"github.com/ecomoro/storefront/rate"
	"github.com/ecomoro/storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

const uniqueViolation = "23505"

func HandleSignup(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var us user.UserSignup
		if err := web.Decode(w, r, &us); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(us); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(us.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		now := time.Now().UTC()
		usr := user.User{
			ID:           validate.GenerateID(),
			Name:         us.Name,
			Email:        us.Email,
			Role:         claims.RoleUser,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := user.Create(ctx, db, usr); err != nil {
			var pqerr *pq.Error
			if errors.As(err, &pqerr) && pqerr.Code == uniqueViolation {
				msg := "a user with this email already exists"
				return weberr.NewError(err, msg, http.StatusConflict)
			}
			return fmt.Errorf("creating user: %w", err)
		}

		if err := open(ctx, session, usr); err != nil {
			return fmt.Errorf("opening session: %w", err)
		}

		return web.Respond(ctx, w, usr, http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, session *scs.SessionManager, limiter *rate.Limiter) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ul user.UserLogin
		if err := web.Decode(w, r, &ul); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ul); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if !limiter.Check(ul.Email) {
			err := errors.New("too many login attempts")
			return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
		}

		usr, err := user.FetchByEmail(ctx, db, ul.Email)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return weberr.NotAuthorized(err)
			}
			return fmt.Errorf("fetching user by email: %w", err)
		}

		if err := bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(ul.Password)); err != nil {
			return weberr.NotAuthorized(fmt.Errorf("comparing passwords: %w", err))
		}

		if err := open(ctx, session, usr); err != nil {
			return fmt.Errorf("opening session: %w", err)
		}

		return web.Respond(ctx, w, usr, http.StatusOK)
	}
}

func HandleLogout(session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := session.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// open renews the session token against fixation and binds the identity.
func open(ctx context.Context, session *scs.SessionManager, usr user.User) error {
	if err := session.RenewToken(ctx); err != nil {
		return err
	}

	session.Put(ctx, userIDKey, usr.ID)
	session.Put(ctx, userRoleKey, usr.Role)
	return nil
}
