package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	authcove "github.com/authcove/authcove"
)

type singleUserStore struct {
	user authcove.UserRecord
}

func (s *singleUserStore) CreateUser(context.Context, authcove.CreateUserInput) (authcove.UserRecord, error) {
	return s.user, nil
}

func (s *singleUserStore) GetUserByEmail(_ context.Context, email string) (authcove.UserRecord, error) {
	if email != s.user.Email {
		return authcove.UserRecord{}, authcove.ErrUserNotFound
	}
	return s.user, nil
}

func (s *singleUserStore) GetUserByID(_ context.Context, id string) (authcove.UserRecord, error) {
	if id != s.user.UserID {
		return authcove.UserRecord{}, authcove.ErrUserNotFound
	}
	return s.user, nil
}

func (s *singleUserStore) UpdatePasswordHash(context.Context, string, string) error {
	return nil
}

func (s *singleUserStore) GetUserByExternalIdentity(context.Context, string, string) (authcove.UserRecord, error) {
	return authcove.UserRecord{}, authcove.ErrUserNotFound
}

func (s *singleUserStore) LinkExternalIdentity(context.Context, string, string, string) error {
	return nil
}

func newGuardTestEngine(t *testing.T) (*authcove.Engine, string, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := authcove.DefaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	user := authcove.UserRecord{
		UserID:        uuid.NewString(),
		Email:         "guard@example.com",
		EmailVerified: true,
	}
	engine, err := authcove.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(&singleUserStore{user: user}).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("build: %v", err)
	}

	access, _, err := engine.LoginExternal(context.Background(), authcove.ExternalClaim{
		Provider:      "test",
		Subject:       user.UserID,
		Email:         user.Email,
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("session bootstrap: %v", err)
	}

	return engine, access, func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	}
}

func TestGuardAcceptsCookieAndBearer(t *testing.T) {
	engine, access, done := newGuardTestEngine(t)
	defer done()

	var seen *authcove.AuthResult
	handler := RequireAuth(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = AuthResultFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: DefaultAccessCookie, Value: access})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("cookie auth: expected 204, got %d", rec.Code)
	}
	if seen == nil || seen.Email != "guard@example.com" {
		t.Fatalf("context identity missing or wrong: %+v", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("bearer auth: expected 204, got %d", rec.Code)
	}
}

func TestGuardRejectsMissingAndBadTokens(t *testing.T) {
	engine, _, done := newGuardTestEngine(t)
	defer done()

	handler := RequireAuth(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a valid token")
	}))

	for _, setup := range []func(*http.Request){
		func(r *http.Request) {},
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") },
		func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: DefaultAccessCookie, Value: "garbage"})
		},
		func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") },
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		setup(req)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	}
}
