package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/fulfillment/internal/domain/user"
)

const (
	findUserSQL = `SELECT id, name, email, age, gender, phone_number, password_hash
		FROM users WHERE id = $1`

	upsertUserSQL = `INSERT INTO users (id, name, email, age, gender, phone_number, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET
			name = EXCLUDED.name, age = EXCLUDED.age, gender = EXCLUDED.gender,
			phone_number = EXCLUDED.phone_number, password_hash = EXCLUDED.password_hash
		RETURNING id`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindUser returns the user with the given id. Password holds the stored hash.
func (r *UserRepository) FindUser(ctx context.Context, id uuid.UUID) (*user.User, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, findUserSQL, id)
	if err != nil {
		return nil, fmt.Errorf("finding user %s: %w", id, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding user %s: %w", id, err)
	}
	return &u, nil
}

// Upsert stores u keyed by email and returns the id of the stored row, which
// differs from u.ID when the email was already registered. u.Password must
// already be hashed.
func (r *UserRepository) Upsert(ctx context.Context, u *user.User) (uuid.UUID, error) {
	var id uuid.UUID
	err := conn(ctx, r.pool).QueryRow(ctx, upsertUserSQL,
		u.ID, u.Name, u.Email, u.Age, string(u.Gender), u.PhoneNumber, u.Password,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upserting user %q: %w", u.Email, err)
	}
	return id, nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var (
		u      user.User
		gender string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Age, &gender, &u.PhoneNumber, &u.Password)
	u.Gender = user.Gender(gender)
	return u, err
}
