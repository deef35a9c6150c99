package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ecomoro/storefront/api"
	"github.com/ecomoro/storefront/config"
	"github.com/ecomoro/storefront/core/claims"
	"github.com/ecomoro/storefront/core/user"
	"github.com/ecomoro/storefront/database"
	"github.com/ecomoro/storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// TestEnv spins up a throwaway postgres container, migrates it and serves
// the whole API over httptest. Each test owns its environment; nothing is
// shared across packages of tests.
type TestEnv struct {
	Server *httptest.Server
	URL    string
	DB     *sqlx.DB
	client *http.Client

	AdminEmail string
	AdminPass  string
	UserEmail  string
	UserPass   string
}

func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not reachable: %v", err)
	}

	res, err := pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_USER=postgres",
		"POSTGRES_PASSWORD=postgres",
		"POSTGRES_DB=" + name,
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}
	t.Cleanup(func() { _ = pool.Purge(res) })

	cfg := config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       res.GetHostPort("5432/tcp"),
		Name:       name,
		DisableTLS: true,
	}

	var db *sqlx.DB
	pool.MaxWait = time.Minute
	err = pool.Retry(func() error {
		db, err = database.Open(cfg)
		if err != nil {
			return err
		}
		return db.Ping()
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres container: %w", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating test database: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	session := scs.New()
	session.Lifetime = time.Hour

	srv := httptest.NewServer(api.APIMux(api.APIConfig{
		Log:     logger,
		DB:      db,
		Session: session,
	}))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}

	env := &TestEnv{
		Server: srv,
		URL:    srv.URL,
		DB:     db,
		client: &http.Client{Jar: jar},

		AdminEmail: "admin@example.com",
		AdminPass:  "admin-password",
		UserEmail:  "shopper@example.com",
		UserPass:   "shopper-password",
	}

	if err := env.seedUser(env.AdminEmail, env.AdminPass, claims.RoleAdmin); err != nil {
		return nil, fmt.Errorf("seeding admin: %w", err)
	}
	if err := env.seedUser(env.UserEmail, env.UserPass, claims.RoleUser); err != nil {
		return nil, fmt.Errorf("seeding shopper: %w", err)
	}

	return env, nil
}

func (e *TestEnv) Client() *http.Client { return e.client }

func (e *TestEnv) seedUser(email string, pass string, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.MinCost)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	usr := user.User{
		ID:           validate.GenerateID(),
		Name:         "Test " + role,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return user.Create(context.Background(), e.DB, usr)
}

func (e *TestEnv) Login(email string, pass string) error {
	body := map[string]string{"email": email, "password": pass}

	code, err := e.do(http.MethodPost, "/auth/login", body, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("login as %s: status code %d", email, code)
	}
	return nil
}

func (e *TestEnv) Logout() error {
	code, err := e.do(http.MethodPost, "/auth/logout", nil, nil)
	if err != nil {
		return err
	}
	if code != http.StatusNoContent {
		return fmt.Errorf("logout: status code %d", code)
	}
	return nil
}

// do sends a JSON request through the shared cookie jar and decodes the
// JSON answer into out when a destination is given.
func (e *TestEnv) do(method string, path string, body any, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(raw)
	}

	r, err := http.NewRequest(method, e.URL+path, rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	w, err := e.client.Do(r)
	if err != nil {
		return 0, err
	}
	defer w.Body.Close()

	if out != nil && w.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			return w.StatusCode, fmt.Errorf("decoding response of %s %s: %w", method, path, err)
		}
	}

	return w.StatusCode, nil
}
