package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lotvend/lotvend/internal/domain"
)

// AdminRepository owns the admins table: configured operator usernames and
// the numeric user ids they get bound to on first promotion.
type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func (r *AdminRepository) Get(ctx context.Context, username string) (*domain.Admin, error) {
	var a domain.Admin
	err := r.pool.QueryRow(ctx,
		`SELECT username, user_id FROM admins WHERE username = $1`,
		strings.ToLower(username),
	).Scan(&a.Username, &a.UserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &a, nil
}

func (r *AdminRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Admin, error) {
	var a domain.Admin
	err := r.pool.QueryRow(ctx,
		`SELECT username, user_id FROM admins WHERE user_id = $1`, userID,
	).Scan(&a.Username, &a.UserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get admin by user id: %w", err)
	}
	return &a, nil
}

// Upsert registers a username, keeping any user id already bound.
func (r *AdminRepository) Upsert(ctx context.Context, username string) error {
	_, err := r.pool.Exec(ctx, `
INSERT INTO admins (username, user_id) VALUES ($1, 0)
ON CONFLICT (username) DO NOTHING`, strings.ToLower(username))
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	return nil
}

// BindUserID attaches a numeric user id to a registered username. Re-binding
// the same id is a no-op, so promotion stays idempotent.
func (r *AdminRepository) BindUserID(ctx context.Context, username string, userID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE admins SET user_id = $2 WHERE username = $1`,
		strings.ToLower(username), userID)
	if err != nil {
		return false, fmt.Errorf("bind admin user id: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
