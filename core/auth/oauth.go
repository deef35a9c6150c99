package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/ecomoro/storefront/api/web"
	"github.com/ecomoro/storefront/api/weberr"
	"github.com/ecomoro/storefront/core/claims"
	"github.com/ecomoro/storefront/core/user"
	"github.com/ecomoro/storefront/random"
	"github.com/ecomoro/storefront/validate"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

type ProviderConfig struct {
	Name        string
	Client      string
	Secret      string
	URL         string
	RedirectURL string
}

// Provider couples the oauth2 flow config with the OIDC token verifier of
// one identity provider.
type Provider struct {
	cfg      oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// MakeProviders runs OIDC discovery for each configured provider. Discovery
// happens once at startup; a provider that cannot be discovered is fatal.
func MakeProviders(ctx context.Context, cfgs []ProviderConfig) (map[string]Provider, error) {
	provs := make(map[string]Provider, len(cfgs))
	for _, c := range cfgs {
		p, err := oidc.NewProvider(ctx, c.URL)
		if err != nil {
			return nil, fmt.Errorf("discovering provider[%s]: %w", c.Name, err)
		}

		provs[c.Name] = Provider{
			cfg: oauth2.Config{
				ClientID:     c.Client,
				ClientSecret: c.Secret,
				Endpoint:     p.Endpoint(),
				RedirectURL:  c.RedirectURL,
				Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			},
			verifier: p.Verifier(&oidc.Config{ClientID: c.Client}),
		}
	}
	return provs, nil
}

func HandleOauthLogin(session *scs.SessionManager, provs map[string]Provider) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		name := web.Param(r, "provider")
		prov, ok := provs[name]
		if !ok {
			return weberr.NotFound(fmt.Errorf("unknown oauth provider[%s]", name))
		}

		state, err := random.StringSecure(32)
		if err != nil {
			return fmt.Errorf("generating oauth state: %w", err)
		}

		session.Put(ctx, oauthKey, state)

		http.Redirect(w, r, prov.cfg.AuthCodeURL(state), http.StatusFound)
		return nil
	}
}

func HandleOauthCallback(db *sqlx.DB, session *scs.SessionManager, provs map[string]Provider, redirectURL string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		name := web.Param(r, "provider")
		prov, ok := provs[name]
		if !ok {
			return weberr.NotFound(fmt.Errorf("unknown oauth provider[%s]", name))
		}

		state := session.PopString(ctx, oauthKey)
		if state == "" || state != r.URL.Query().Get("state") {
			return weberr.BadRequest(errors.New("oauth state mismatch"))
		}

		tok, err := prov.cfg.Exchange(ctx, r.URL.Query().Get("code"))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("exchanging oauth code: %w", err))
		}

		raw, ok := tok.Extra("id_token").(string)
		if !ok {
			return weberr.BadRequest(errors.New("token response carries no id_token"))
		}

		idt, err := prov.verifier.Verify(ctx, raw)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("verifying id_token: %w", err))
		}

		var profile struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := idt.Claims(&profile); err != nil {
			return fmt.Errorf("decoding id_token claims: %w", err)
		}

		usr, err := fetchOrCreate(ctx, db, profile.Email, profile.Name)
		if err != nil {
			return fmt.Errorf("resolving user[%s]: %w", profile.Email, err)
		}

		if err := open(ctx, session, usr); err != nil {
			return fmt.Errorf("opening session: %w", err)
		}

		http.Redirect(w, r, redirectURL, http.StatusFound)
		return nil
	}
}

// fetchOrCreate resolves the stable local identity of an external account,
// creating the user on first sign-in. The generated password is thrown
// away: an oauth-born account authenticates through its provider.
func fetchOrCreate(ctx context.Context, db *sqlx.DB, email string, name string) (user.User, error) {
	usr, err := user.FetchByEmail(ctx, db, email)
	if err == nil {
		return usr, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, err
	}

	pass, err := random.StringSecure(32)
	if err != nil {
		return user.User{}, fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	usr = user.User{
		ID:           validate.GenerateID(),
		Name:         name,
		Email:        email,
		Role:         claims.RoleUser,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := user.Create(ctx, db, usr); err != nil {
		return user.User{}, err
	}

	return usr, nil
}
