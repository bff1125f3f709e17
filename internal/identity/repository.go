package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// ErrTokenTaken signals an access token unique violation at the store
// level. The issuer's pre-insert uniqueness check makes a collision rare;
// the store surfaces it rather than retrying the write.
var ErrTokenTaken = errors.New("identity: access token already taken")

// Repository defines persistence operations for user accounts. Email lookups
// are byte-exact: the store neither folds nor trims, matching the uniqueness
// constraint it enforces.
type Repository interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	UpdateAccessToken(ctx context.Context, id int64, token string) error
	Delete(ctx context.Context, id int64) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByAccessToken(ctx context.Context, token string) (*User, error)
	List(ctx context.Context) ([]User, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, name, email, language, COALESCE(image, ''), password_hash, COALESCE(auth_key, ''), COALESCE(access_token, ''), created_at, updated_at`

// Create inserts a new user and fills the generated ID and timestamps.
// A duplicate email surfaces as a ValidationErrors value; the unique index
// is the real race guard behind the service's advisory existence check.
func (r *PGRepository) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, language, image, password_hash, auth_key, access_token, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), $8, $8)
		RETURNING id, created_at, updated_at`,
		user.Name, user.Email, user.Language, user.Image, user.PasswordHash, user.AuthKey, user.AccessToken, now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return translateUniqueViolation(err)
	}
	return nil
}

// Update persists all mutable fields of an existing user.
func (r *PGRepository) Update(ctx context.Context, user *User) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE users
		SET name = $2, email = $3, language = $4, image = NULLIF($5, ''),
		    password_hash = $6, auth_key = NULLIF($7, ''), access_token = NULLIF($8, ''),
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		user.ID, user.Name, user.Email, user.Language, user.Image, user.PasswordHash, user.AuthKey, user.AccessToken,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shared.ErrNotFound
		}
		return translateUniqueViolation(err)
	}
	return nil
}

// UpdateAccessToken replaces only the access token, without re-running any
// field validation. Used for token rotation at login.
func (r *PGRepository) UpdateAccessToken(ctx context.Context, id int64, token string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET access_token = NULLIF($2, ''), updated_at = now() WHERE id = $1`, id, token)
	if err != nil {
		return translateUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes the user row. Role assignments go with it via the
// user_roles cascade.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID fetches a user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByEmail fetches a user by exact email equality.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// FindByAccessToken fetches a user by exact token equality. No prefix or
// partial matching.
func (r *PGRepository) FindByAccessToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, shared.ErrNotFound
	}
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE access_token = $1`, token))
}

// List returns all users ordered by id.
func (r *PGRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Language, &user.Image, &user.PasswordHash, &user.AuthKey, &user.AccessToken, &user.CreatedAt, &user.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *PGRepository) scanOne(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Language, &user.Image, &user.PasswordHash, &user.AuthKey, &user.AccessToken, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// translateUniqueViolation maps PostgreSQL unique-constraint violations to
// domain errors so concurrent writes never surface as infrastructure faults.
func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_email_key":
		return shared.ValidationErrors{"email": "This email address has already been taken."}
	case "users_access_token_key":
		return ErrTokenTaken
	}
	return err
}

var _ Repository = (*PGRepository)(nil)
