package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	authcove "github.com/authcove/authcove"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewStore(db), mock, db
}

const insertUserQ = `(?s)^INSERT INTO users`

func TestCreateUser(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	created := time.Now().UTC()
	mock.ExpectQuery(insertUserQ).
		WithArgs(sqlmock.AnyArg(), "alice@example.com", false, "phc-hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	user, err := store.CreateUser(context.Background(), authcove.CreateUserInput{
		Email:        "alice@example.com",
		PasswordHash: "phc-hash",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.UserID == "" {
		t.Fatal("expected generated user id")
	}
	if !user.CreatedAt.Equal(created) {
		t.Fatalf("created_at not captured: %v", user.CreatedAt)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertUserQ).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_idx"})

	_, err := store.CreateUser(context.Background(), authcove.CreateUserInput{
		Email:        "alice@example.com",
		PasswordHash: "phc-hash",
	})
	if !errors.Is(err, authcove.ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}

func TestCreateUserBackendFailure(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertUserQ).WillReturnError(errors.New("connection refused"))

	_, err := store.CreateUser(context.Background(), authcove.CreateUserInput{
		Email: "alice@example.com",
	})
	if !errors.Is(err, authcove.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestGetUserByEmail(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	cols := []string{"id", "email", "email_verified", "password_hash", "created_at"}
	mock.ExpectQuery(`(?s)^SELECT .* FROM users.*lower\(email\)`).
		WithArgs("Bob@Example.com").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("uid-1", "bob@example.com", true, "phc", time.Now()))

	user, err := store.GetUserByEmail(context.Background(), "Bob@Example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if user.UserID != "uid-1" || !user.EmailVerified {
		t.Fatalf("unexpected record: %+v", user)
	}
}

func TestGetUserByEmailNotFound(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT .* FROM users`).
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetUserByEmail(context.Background(), "ghost@example.com")
	if !errors.Is(err, authcove.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE users SET password_hash`).
		WithArgs("uid-1", "new-phc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.UpdatePasswordHash(context.Background(), "uid-1", "new-phc"); err != nil {
		t.Fatalf("UpdatePasswordHash: %v", err)
	}
}

func TestUpdatePasswordHashMissingUser(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE users SET password_hash`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdatePasswordHash(context.Background(), "uid-ghost", "new-phc")
	if !errors.Is(err, authcove.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetUserByExternalIdentity(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	cols := []string{"id", "email", "email_verified", "password_hash", "created_at"}
	mock.ExpectQuery(`(?s)^SELECT .* JOIN external_identities`).
		WithArgs("idp", "sub-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("uid-2", "carol@example.com", true, "", time.Now()))

	user, err := store.GetUserByExternalIdentity(context.Background(), "idp", "sub-1")
	if err != nil {
		t.Fatalf("GetUserByExternalIdentity: %v", err)
	}
	if user.UserID != "uid-2" || user.PasswordHash != "" {
		t.Fatalf("unexpected record: %+v", user)
	}
}

func TestLinkExternalIdentity(t *testing.T) {
	store, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^INSERT INTO external_identities`).
		WithArgs("idp", "sub-1", "uid-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.LinkExternalIdentity(context.Background(), "uid-2", "idp", "sub-1"); err != nil {
		t.Fatalf("LinkExternalIdentity: %v", err)
	}

	mock.ExpectExec(`(?s)^INSERT INTO external_identities`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := store.LinkExternalIdentity(context.Background(), "uid-3", "idp", "sub-1")
	if !errors.Is(err, authcove.ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}
}
