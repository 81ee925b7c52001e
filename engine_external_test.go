package authcove

import (
	"context"
	"errors"
	"testing"
)

func TestExternalLoginCreatesPasswordlessUser(t *testing.T) {
	users := newMemUserStore()
	engine, _, done := newTestEngine(t, engineTestConfig(), users)
	defer done()
	ctx := context.Background()

	access, refresh, err := engine.LoginExternal(ctx, ExternalClaim{
		Provider:      "idp",
		Subject:       "sub-1",
		Email:         "Judy@Example.com",
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("LoginExternal: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected tokens")
	}

	user, err := users.GetUserByEmail(ctx, "judy@example.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if user.PasswordHash != "" {
		t.Fatal("external-only user must have no password credential")
	}
	if !user.EmailVerified {
		t.Fatal("verified provider email should mark the account verified")
	}
}

func TestExternalLoginReusesProviderLink(t *testing.T) {
	users := newMemUserStore()
	engine, _, done := newTestEngine(t, engineTestConfig(), users)
	defer done()
	ctx := context.Background()

	claim := ExternalClaim{
		Provider:      "idp",
		Subject:       "sub-2",
		Email:         "kay@example.com",
		EmailVerified: true,
	}
	if _, _, err := engine.LoginExternal(ctx, claim); err != nil {
		t.Fatalf("first login: %v", err)
	}

	// Provider may report a changed email later; the (provider, subject)
	// link still wins and no second account appears.
	claim.Email = "kay-renamed@example.com"
	if _, _, err := engine.LoginExternal(ctx, claim); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if _, err := users.GetUserByEmail(ctx, "kay-renamed@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatal("renamed provider email must not create a new account")
	}
}

func TestExternalLoginLinksVerifiedEmail(t *testing.T) {
	users := newMemUserStore()
	engine, _, done := newTestEngine(t, engineTestConfig(), users)
	defer done()
	ctx := context.Background()

	res, err := engine.Register(ctx, "leo@example.com", "Str0ng!Passphrase")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, err = engine.LoginExternal(ctx, ExternalClaim{
		Provider:      "idp",
		Subject:       "sub-3",
		Email:         "LEO@example.com",
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("LoginExternal: %v", err)
	}

	linked, err := users.GetUserByExternalIdentity(ctx, "idp", "sub-3")
	if err != nil {
		t.Fatalf("link lookup: %v", err)
	}
	if linked.UserID != res.UserID {
		t.Fatalf("expected link to existing account %s, got %s", res.UserID, linked.UserID)
	}
}

func TestExternalLoginRejectsUnverifiedEmailMatch(t *testing.T) {
	users := newMemUserStore()
	engine, _, done := newTestEngine(t, engineTestConfig(), users)
	defer done()
	ctx := context.Background()

	if _, err := engine.Register(ctx, "mallory@example.com", "Str0ng!Passphrase"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, err := engine.LoginExternal(ctx, ExternalClaim{
		Provider:      "idp",
		Subject:       "sub-4",
		Email:         "mallory@example.com",
		EmailVerified: false,
	})
	if !errors.Is(err, ErrEmailConflict) {
		t.Fatalf("unverified email overlap must fail with ErrEmailConflict, got %v", err)
	}
	if _, err := users.GetUserByExternalIdentity(ctx, "idp", "sub-4"); !errors.Is(err, ErrUserNotFound) {
		t.Fatal("rejected claim must not leave a link behind")
	}
}

func TestExternalLoginRejectsUnverifiedNewUser(t *testing.T) {
	users := newMemUserStore()
	engine, _, done := newTestEngine(t, engineTestConfig(), users)
	defer done()
	ctx := context.Background()

	_, _, err := engine.LoginExternal(ctx, ExternalClaim{
		Provider:      "idp",
		Subject:       "sub-5",
		Email:         "fresh@example.com",
		EmailVerified: false,
	})
	if !errors.Is(err, ErrEmailConflict) {
		t.Fatalf("unverified claim must not create an account, got %v", err)
	}
	if _, err := users.GetUserByEmail(ctx, "fresh@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatal("no account may exist for a rejected claim")
	}
}

// racingLinkStore lands a competing link for the same (provider, subject)
// right before the delegated link attempt, reproducing two concurrent
// callbacks for one external identity.
type racingLinkStore struct {
	*memUserStore
	winnerID string
	raced    bool
}

func (s *racingLinkStore) LinkExternalIdentity(ctx context.Context, userID, provider, subject string) error {
	if !s.raced {
		s.raced = true
		if err := s.memUserStore.LinkExternalIdentity(ctx, s.winnerID, provider, subject); err != nil {
			return err
		}
	}
	return s.memUserStore.LinkExternalIdentity(ctx, userID, provider, subject)
}

func TestExternalLoginLostLinkRaceFollowsRecordedLink(t *testing.T) {
	base := newMemUserStore()
	ctx := context.Background()

	winner, err := base.CreateUser(ctx, CreateUserInput{Email: "winner@example.com", EmailVerified: true})
	if err != nil {
		t.Fatalf("create winner: %v", err)
	}

	store := &racingLinkStore{memUserStore: base, winnerID: winner.UserID}
	engine, _, done := newTestEngine(t, engineTestConfig(), store)
	defer done()

	if _, err := engine.Register(ctx, "shared@example.com", "Str0ng!Passphrase"); err != nil {
		t.Fatalf("register: %v", err)
	}

	access, _, err := engine.LoginExternal(ctx, ExternalClaim{
		Provider:      "idp",
		Subject:       "raced-sub",
		Email:         "shared@example.com",
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("losing the link race must still log in: %v", err)
	}

	auth, err := engine.ValidateAccess(ctx, access)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if auth.UserID != winner.UserID {
		t.Fatalf("session must belong to the link on record: got %s want %s", auth.UserID, winner.UserID)
	}

	linked, err := base.GetUserByExternalIdentity(ctx, "idp", "raced-sub")
	if err != nil || linked.UserID != winner.UserID {
		t.Fatalf("recorded link must stay with the race winner: %v %+v", err, linked)
	}
}

func TestExternalLoginRejectsIncompleteClaim(t *testing.T) {
	users := newMemUserStore()
	engine, _, done := newTestEngine(t, engineTestConfig(), users)
	defer done()
	ctx := context.Background()

	cases := []ExternalClaim{
		{Provider: "", Subject: "sub", Email: "a@b.com", EmailVerified: true},
		{Provider: "idp", Subject: "", Email: "a@b.com", EmailVerified: true},
		{Provider: "idp", Subject: "sub", Email: "", EmailVerified: true},
	}
	for i, claim := range cases {
		_, _, err := engine.LoginExternal(ctx, claim)
		if !errors.Is(err, ErrExternalAuthFailed) {
			t.Fatalf("case %d: expected ErrExternalAuthFailed, got %v", i, err)
		}
	}
}
