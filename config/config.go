package config

import (
	"time"

	"github.com/ardanlabs/conf/v3"
)

// Config collects every knob of the storefront process. Values are parsed
// from the environment with the STORE prefix; defaults suit local runs.
type Config struct {
	conf.Version
	Web   Web
	DB    DB
	Cors  Cors
	Oauth Oauth
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:storefront"`
	MaxIdleConns int    `conf:"default:2"`
	MaxOpenConns int    `conf:"default:0"`
	DisableTLS   bool   `conf:"default:true"`
}

type Cors struct {
	Origin string `conf:"default:"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:/"`
	Google           Provider
}

type Provider struct {
	Client      string `conf:"default:"`
	Secret      string `conf:"default:,mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string `conf:"default:http://localhost:8000/auth/oauth-callback/google"`
}
