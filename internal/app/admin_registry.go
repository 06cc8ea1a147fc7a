package app

import (
	"context"
	"strings"

	"github.com/lotvend/lotvend/internal/domain"
)

// AdminStore keeps the operator roster.
type AdminStore interface {
	Get(ctx context.Context, username string) (*domain.Admin, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Admin, error)
	Upsert(ctx context.Context, username string) error
	BindUserID(ctx context.Context, username string, userID int64) (bool, error)
}

// AdminRegistry answers "is this caller an operator". Operators are seeded
// by username; the numeric user id is learned on first authenticated call.
type AdminRegistry struct {
	store AdminStore
}

func NewAdminRegistry(store AdminStore) *AdminRegistry {
	return &AdminRegistry{store: store}
}

// Seed registers the given usernames as operators. Already-known names are
// left untouched, so repeated seeding on startup is harmless.
func (r *AdminRegistry) Seed(ctx context.Context, usernames []string) error {
	for _, name := range usernames {
		name = normalizeHandle(name)
		if name == "" {
			continue
		}
		if err := r.store.Upsert(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// IsAdmin reports whether the caller is an operator, matching by user id
// first and falling back to username. A username match binds the user id for
// subsequent calls.
func (r *AdminRegistry) IsAdmin(ctx context.Context, userID int64, username string) (bool, error) {
	if userID != 0 {
		admin, err := r.store.GetByUserID(ctx, userID)
		if err != nil {
			return false, err
		}
		if admin != nil {
			return true, nil
		}
	}
	username = normalizeHandle(username)
	if username == "" {
		return false, nil
	}
	admin, err := r.store.Get(ctx, username)
	if err != nil {
		return false, err
	}
	if admin == nil {
		return false, nil
	}
	if userID != 0 && admin.UserID == 0 {
		if _, err := r.store.BindUserID(ctx, username, userID); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Promote grants operator rights to a username. Idempotent.
func (r *AdminRegistry) Promote(ctx context.Context, username string) error {
	username = normalizeHandle(username)
	if username == "" {
		return domain.ErrUnknownAdmin
	}
	return r.store.Upsert(ctx, username)
}

func normalizeHandle(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
