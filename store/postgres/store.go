package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	authcove "github.com/authcove/authcove"
	"github.com/authcove/authcove/store/postgres/migrations"
)

const uniqueViolation = "23505"

// Store implements authcove.UserStore on a Postgres database. All
// failures that are not semantic (duplicate, not found) are wrapped in
// authcove.ErrStoreUnavailable so the engine reports them uniformly.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres via the pgx stdlib driver and verifies the
// connection. The caller owns the returned store and must Close it.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle. Useful for tests and callers that
// manage the pool themselves.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate applies the embedded schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, input authcove.CreateUserInput) (authcove.UserRecord, error) {
	user := authcove.UserRecord{
		UserID:        uuid.NewString(),
		Email:         input.Email,
		EmailVerified: input.EmailVerified,
		PasswordHash:  input.PasswordHash,
	}

	const query = `INSERT INTO users (id, email, email_verified, password_hash)
	 VALUES ($1, $2, $3, $4)
	 RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		user.UserID, user.Email, user.EmailVerified, user.PasswordHash).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return authcove.UserRecord{}, authcove.ErrDuplicateAccount
		}
		return authcove.UserRecord{}, storeErr(err)
	}

	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (authcove.UserRecord, error) {
	const query = `SELECT id, email, email_verified, password_hash, created_at
	 FROM users
	 WHERE lower(email) = lower($1)`

	return s.scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (authcove.UserRecord, error) {
	const query = `SELECT id, email, email_verified, password_hash, created_at
	 FROM users
	 WHERE id = $1`

	return s.scanUser(s.db.QueryRowContext(ctx, query, userID))
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	const query = `UPDATE users SET password_hash = $2 WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query, userID, newHash)
	if err != nil {
		return storeErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr(err)
	}
	if affected == 0 {
		return authcove.ErrUserNotFound
	}
	return nil
}

func (s *Store) GetUserByExternalIdentity(ctx context.Context, provider, subject string) (authcove.UserRecord, error) {
	const query = `SELECT u.id, u.email, u.email_verified, u.password_hash, u.created_at
	 FROM users u
	 JOIN external_identities e ON e.user_id = u.id
	 WHERE e.provider = $1 AND e.subject = $2`

	return s.scanUser(s.db.QueryRowContext(ctx, query, provider, subject))
}

func (s *Store) LinkExternalIdentity(ctx context.Context, userID, provider, subject string) error {
	const query = `INSERT INTO external_identities (provider, subject, user_id)
	 VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, provider, subject, userID); err != nil {
		if isUniqueViolation(err) {
			return authcove.ErrDuplicateAccount
		}
		return storeErr(err)
	}
	return nil
}

func (s *Store) scanUser(row *sql.Row) (authcove.UserRecord, error) {
	var user authcove.UserRecord
	err := row.Scan(&user.UserID, &user.Email, &user.EmailVerified, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return authcove.UserRecord{}, authcove.ErrUserNotFound
		}
		return authcove.UserRecord{}, storeErr(err)
	}
	return user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", authcove.ErrStoreUnavailable, err)
}

var _ authcove.UserStore = (*Store)(nil)
