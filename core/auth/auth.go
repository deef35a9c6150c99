package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/ecomoro/storefront/api/web"
	"github.com/ecomoro/storefront/api/weberr"
	"github.com/ecomoro/storefront/core/claims"
)

// Session keys. The session is the only carrier of identity between
// requests; handlers read it exclusively through the claims middleware.
const (
	userIDKey   = "user_id"
	userRoleKey = "user_role"
	oauthKey    = "oauth_state"
)

// LoadAndSave adapts the scs middleware to the web.Handler signature. It is
// the outermost middleware so every other layer sees the loaded session.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error
			sh := session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			}))
			sh.ServeHTTP(w, r.WithContext(ctx))
			return err
		}
		return h
	}
	return m
}

// Authenticate rejects requests without a signed-in session and projects
// the session identity into typed claims for the rest of the chain.
func Authenticate(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			userID := session.GetString(ctx, userIDKey)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			clm := claims.Claims{
				UserID: userID,
				Role:   session.GetString(ctx, userRoleKey),
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}

// Admin allows only sessions carrying the admin role.
func Admin(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			userID := session.GetString(ctx, userIDKey)
			if userID == "" {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			clm := claims.Claims{
				UserID: userID,
				Role:   session.GetString(ctx, userRoleKey),
			}

			if clm.Role != claims.RoleAdmin {
				return weberr.NotAuthorized(errors.New("user is not an admin"))
			}

			return handler(claims.Set(ctx, clm), w, r)
		}
		return h
	}
	return m
}
