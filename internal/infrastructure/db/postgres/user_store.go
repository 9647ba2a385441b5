package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/99minutos/auth-service/internal/core/domain"
	"github.com/99minutos/auth-service/internal/core/ports"
)

const (
	uniqueViolation = "23505"

	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

const userColumns = `id, username, email, password_hash, full_name, phone_number, enabled, created_at, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserStore implements ports.UserStore with Postgres. The users table carries
// unique constraints on username and email.
type UserStore struct {
	db   querier
	pool *pgxpool.Pool // nil when scoped to a transaction
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{db: pool, pool: pool}
}

func (r *UserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username)
}

func (r *UserStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, domain.NormalizeEmail(email))
}

func (r *UserStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

// FindByUsernameOrEmail prefers a username match when the value matches one
// user's username and another user's email.
func (r *UserStore) FindByUsernameOrEmail(ctx context.Context, value string) (*domain.User, error) {
	return r.findOne(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE username = $1 OR email = $2
		 ORDER BY (username = $1) DESC
		 LIMIT 1`,
		value, domain.NormalizeEmail(value))
}

func (r *UserStore) Save(ctx context.Context, user *domain.User) (*domain.User, error) {
	email := domain.NormalizeEmail(user.Email)

	if user.ID == "" {
		query := `
			INSERT INTO users (username, email, password_hash, full_name, phone_number, enabled, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING ` + userColumns
		u, err := scanUser(r.db.QueryRow(ctx, query,
			user.Username, email, user.PasswordHash, user.FullName, user.PhoneNumber,
			user.Enabled, user.CreatedAt, user.UpdatedAt))
		if err != nil {
			return nil, mapWriteError("insert user", err)
		}
		return u, nil
	}

	id, err := strconv.ParseInt(user.ID, 10, 64)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	query := `
		UPDATE users
		SET username = $2, email = $3, password_hash = $4, full_name = $5,
		    phone_number = $6, enabled = $7, updated_at = $8
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.db.QueryRow(ctx, query,
		id, user.Username, email, user.PasswordHash, user.FullName, user.PhoneNumber,
		user.Enabled, user.UpdatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, mapWriteError("update user", err)
	}
	return u, nil
}

// Atomically runs fn inside a transaction. The unique constraints still
// decide races between concurrent transactions; the loser's violation is
// mapped to the matching conflict error.
func (r *UserStore) Atomically(ctx context.Context, fn func(ctx context.Context, store ports.UserStore) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &UserStore{db: tx})
	})
}

func (r *UserStore) exists(ctx context.Context, query string, arg string) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, query, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *UserStore) findOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u  domain.User
		id int64
	)
	err := row.Scan(&id, &u.Username, &u.Email, &u.PasswordHash, &u.FullName,
		&u.PhoneNumber, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.ID = strconv.FormatInt(id, 10)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// mapWriteError reports unique violations (code 23505) as conflicts.
func mapWriteError(op string, err error) error {
	var pge *pgconn.PgError
	if errors.As(err, &pge) && pge.Code == uniqueViolation {
		if pge.ConstraintName == emailConstraint {
			return domain.ErrEmailInUse
		}
		return domain.ErrUsernameTaken
	}
	return fmt.Errorf("%s: %w", op, err)
}
