// Command authcove-server wires the full stack: Postgres user store,
// Redis session store, the engine, an optional external identity
// provider, and the HTTP API.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"

	authcove "github.com/authcove/authcove"
	"github.com/authcove/authcove/httpapi"
	"github.com/authcove/authcove/provider"
	"github.com/authcove/authcove/store/postgres"
)

type serverEnv struct {
	ListenAddr  string `env:"AUTHCOVE_LISTEN_ADDR" envDefault:":8080"`
	RedisAddr   string `env:"AUTHCOVE_REDIS_ADDR" envDefault:"localhost:6379"`
	PostgresDSN string `env:"AUTHCOVE_POSTGRES_DSN,required"`

	Issuer        string        `env:"AUTHCOVE_JWT_ISSUER" envDefault:"authcove"`
	Audience      string        `env:"AUTHCOVE_JWT_AUDIENCE" envDefault:"authcove"`
	SigningMethod string        `env:"AUTHCOVE_JWT_SIGNING_METHOD" envDefault:"hs256"`
	SigningSecret string        `env:"AUTHCOVE_JWT_SECRET,required"`
	PublicKeyHex  string        `env:"AUTHCOVE_JWT_PUBLIC_KEY_HEX"`
	AccessTTL     time.Duration `env:"AUTHCOVE_ACCESS_TTL" envDefault:"5m"`
	RefreshTTL    time.Duration `env:"AUTHCOVE_REFRESH_TTL" envDefault:"168h"`

	CookieDomain string `env:"AUTHCOVE_COOKIE_DOMAIN"`
	CookieSecure bool   `env:"AUTHCOVE_COOKIE_SECURE" envDefault:"true"`

	ProviderName         string `env:"AUTHCOVE_PROVIDER_NAME"`
	ProviderClientID     string `env:"AUTHCOVE_PROVIDER_CLIENT_ID"`
	ProviderClientSecret string `env:"AUTHCOVE_PROVIDER_CLIENT_SECRET"`
	ProviderRedirectURL  string `env:"AUTHCOVE_PROVIDER_REDIRECT_URL"`
	ProviderAuthURL      string `env:"AUTHCOVE_PROVIDER_AUTH_URL"`
	ProviderTokenURL     string `env:"AUTHCOVE_PROVIDER_TOKEN_URL"`
	ProviderUserInfoURL  string `env:"AUTHCOVE_PROVIDER_USERINFO_URL"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	var cfg serverEnv
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer users.Close()
	if err := users.Migrate(ctx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	engineCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}

	engine, err := authcove.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserStore(users).
		WithAuditSink(authcove.NewJSONWriterSink(os.Stdout)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	idp, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	apiCfg := httpapi.DefaultConfig()
	apiCfg.CookieDomain = cfg.CookieDomain
	apiCfg.CookieSecure = cfg.CookieSecure
	apiCfg.AccessTTL = cfg.AccessTTL
	apiCfg.RefreshTTL = cfg.RefreshTTL

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewServer(engine, idp, apiCfg).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func engineConfig(cfg serverEnv) (authcove.Config, error) {
	out := authcove.DefaultConfig()
	out.JWT.Issuer = cfg.Issuer
	out.JWT.Audience = cfg.Audience
	out.JWT.SigningMethod = cfg.SigningMethod
	out.JWT.AccessTTL = cfg.AccessTTL
	out.JWT.RefreshTTL = cfg.RefreshTTL
	out.Audit.Enabled = true

	switch cfg.SigningMethod {
	case "hs256":
		out.JWT.PrivateKey = []byte(cfg.SigningSecret)
	case "ed25519":
		priv, err := hex.DecodeString(cfg.SigningSecret)
		if err != nil {
			return authcove.Config{}, fmt.Errorf("decode AUTHCOVE_JWT_SECRET: %w", err)
		}
		pub, err := hex.DecodeString(cfg.PublicKeyHex)
		if err != nil {
			return authcove.Config{}, fmt.Errorf("decode AUTHCOVE_JWT_PUBLIC_KEY_HEX: %w", err)
		}
		out.JWT.PrivateKey = priv
		out.JWT.PublicKey = pub
	default:
		return authcove.Config{}, fmt.Errorf("unsupported signing method %q", cfg.SigningMethod)
	}

	return out, nil
}

// buildProvider returns nil when no provider is configured. Partial
// provider configuration is a deployment mistake and aborts startup.
func buildProvider(cfg serverEnv) (provider.Provider, error) {
	fields := []string{
		cfg.ProviderName, cfg.ProviderClientID, cfg.ProviderClientSecret,
		cfg.ProviderRedirectURL, cfg.ProviderAuthURL, cfg.ProviderTokenURL,
		cfg.ProviderUserInfoURL,
	}
	allEmpty := true
	for _, f := range fields {
		if f != "" {
			allEmpty = false
			break
		}
	}
	if allEmpty {
		return nil, nil
	}
	for _, f := range fields {
		if f == "" {
			return nil, errors.New("incomplete AUTHCOVE_PROVIDER_* configuration")
		}
	}

	return provider.NewOIDC(provider.OIDCConfig{
		Name:         cfg.ProviderName,
		ClientID:     cfg.ProviderClientID,
		ClientSecret: cfg.ProviderClientSecret,
		RedirectURL:  cfg.ProviderRedirectURL,
		AuthURL:      cfg.ProviderAuthURL,
		TokenURL:     cfg.ProviderTokenURL,
		UserInfoURL:  cfg.ProviderUserInfoURL,
	})
}
