package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
)

// OIDCConfig configures a generic OpenID Connect style provider. The
// endpoint URLs are overridable so tests can point them at a local
// server.
type OIDCConfig struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// OIDC implements [Provider] against any endpoint trio that speaks the
// authorization-code flow and serves a standard userinfo document.
type OIDC struct {
	name        string
	oauth       oauth2.Config
	userInfoURL string
}

// NewOIDC validates the configuration and returns a ready provider.
func NewOIDC(cfg OIDCConfig) (*OIDC, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("provider: Name is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("provider %s: client credentials are required", cfg.Name)
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("provider %s: RedirectURL is required", cfg.Name)
	}
	if cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, fmt.Errorf("provider %s: endpoint URLs are required", cfg.Name)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email"}
	}

	return &OIDC{
		name: cfg.Name,
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
	}, nil
}

func (p *OIDC) Name() string { return p.name }

func (p *OIDC) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// userInfo mirrors the standard OIDC userinfo claims this package needs.
type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func (p *OIDC) Exchange(ctx context.Context, code string) (Identity, error) {
	if code == "" {
		return Identity{}, fmt.Errorf("%w: empty code", ErrExchangeFailed)
	}

	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	info, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if info.Sub == "" {
		return Identity{}, fmt.Errorf("%w: userinfo response missing sub", ErrExchangeFailed)
	}

	return Identity{
		Provider:      p.name,
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
	}, nil
}

func (p *OIDC) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read userinfo response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, string(body))
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse userinfo response: %w", err)
	}
	return &info, nil
}

var _ Provider = (*OIDC)(nil)
