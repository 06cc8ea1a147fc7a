package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lotvend/lotvend/internal/domain"
)

// GiftRepository owns gift_requests and the single current gift asset.
type GiftRepository struct {
	pool *pgxpool.Pool
}

func NewGiftRepository(pool *pgxpool.Pool) *GiftRepository {
	return &GiftRepository{pool: pool}
}

func (r *GiftRepository) CreateRequest(ctx context.Context, req domain.GiftRequest) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
INSERT INTO gift_requests (user_id, username, links, status, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		req.BuyerID, req.Username, req.Links, string(req.Status), req.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create gift request: %w", err)
	}
	return id, nil
}

func (r *GiftRepository) GetRequest(ctx context.Context, id int64) (domain.GiftRequest, error) {
	var req domain.GiftRequest
	var status string
	err := r.pool.QueryRow(ctx, `
SELECT id, user_id, COALESCE(username, ''), links, status, created_at, processed_at, processed_by
FROM gift_requests WHERE id = $1`, id).Scan(
		&req.ID, &req.BuyerID, &req.Username, &req.Links, &status,
		&req.CreatedAt, &req.ProcessedAt, &req.ProcessedBy,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.GiftRequest{}, domain.ErrGiftRequestNotFound
		}
		return domain.GiftRequest{}, fmt.Errorf("get gift request: %w", err)
	}
	req.Status = domain.GiftRequestStatus(status)
	return req, nil
}

func (r *GiftRepository) PendingRequests(ctx context.Context) ([]domain.GiftRequest, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, COALESCE(username, ''), links, created_at
FROM gift_requests WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("pending gift requests: %w", err)
	}
	defer rows.Close()

	var reqs []domain.GiftRequest
	for rows.Next() {
		req := domain.GiftRequest{Status: domain.GiftRequestPending}
		if err := rows.Scan(&req.ID, &req.BuyerID, &req.Username, &req.Links, &req.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gift request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ProcessRequest records the review decision; only pending requests move.
func (r *GiftRepository) ProcessRequest(ctx context.Context, id int64, status domain.GiftRequestStatus, adminID int64, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE gift_requests SET status = $2, processed_at = $3, processed_by = $4
WHERE id = $1 AND status = 'pending'`, id, string(status), now, adminID)
	if err != nil {
		return false, fmt.Errorf("process gift request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SaveGift replaces the current gift asset with a new one.
func (r *GiftRepository) SaveGift(ctx context.Context, asset domain.GiftAsset, now time.Time) error {
	return withTx(ctx, r.pool, func(txCtx context.Context) error {
		tx := txFromContext(txCtx)
		if _, err := tx.Exec(txCtx, `DELETE FROM gifts`); err != nil {
			return fmt.Errorf("clear gifts: %w", err)
		}
		var fileRef *string
		if asset.FileRef != "" {
			fileRef = &asset.FileRef
		}
		if _, err := tx.Exec(txCtx, `
INSERT INTO gifts (gift_type, content, file_id, created_at)
VALUES ($1, $2, $3, $4)`, string(asset.Kind), asset.Body, fileRef, now); err != nil {
			return fmt.Errorf("save gift: %w", err)
		}
		return nil
	})
}

func (r *GiftRepository) CurrentGift(ctx context.Context) (*domain.GiftAsset, error) {
	var kind, body string
	var fileRef *string
	err := r.pool.QueryRow(ctx,
		`SELECT gift_type, content, file_id FROM gifts ORDER BY created_at DESC LIMIT 1`,
	).Scan(&kind, &body, &fileRef)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("current gift: %w", err)
	}
	asset := domain.GiftAsset{Kind: domain.GiftKind(kind), Body: body}
	if fileRef != nil {
		asset.FileRef = *fileRef
	}
	return &asset, nil
}
