package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lotvend/lotvend/internal/domain"
)

// LedgerRepository owns the lots, credentials and orders tables. It provides
// the single atomic claim primitive everything else is built on.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// ClaimCredential atomically takes the oldest unsold credential of the lot,
// marks it sold to the buyer, and records the order row. The lot row is
// locked first so concurrent claims on the same lot serialize; claims on
// different lots do not contend. Returns ok=false with no side effects when
// the lot has no unsold credential left.
func (r *LedgerRepository) ClaimCredential(ctx context.Context, lotID, buyerID int64, now time.Time) (domain.Claim, bool, error) {
	var claim domain.Claim
	claimed := false

	err := r.WithTx(ctx, func(txCtx context.Context) error {
		var price float64
		err := r.queryRow(txCtx, `SELECT price FROM lots WHERE id = $1 FOR UPDATE`, lotID).Scan(&price)
		if err != nil {
			if err == pgx.ErrNoRows {
				return domain.ErrLotNotFound
			}
			return fmt.Errorf("lock lot: %w", err)
		}

		var credentialID int64
		var details string
		err = r.queryRow(txCtx, `
SELECT id, details FROM credentials
WHERE lot_id = $1 AND sold = FALSE
ORDER BY id
LIMIT 1`, lotID).Scan(&credentialID, &details)
		if err != nil {
			if err == pgx.ErrNoRows {
				// Out of stock: expected, not an error.
				return nil
			}
			return fmt.Errorf("select credential: %w", err)
		}

		if _, err := r.exec(txCtx, `
UPDATE credentials SET sold = TRUE, sold_at = $2, sold_to = $3
WHERE id = $1`, credentialID, now, buyerID); err != nil {
			return fmt.Errorf("mark credential sold: %w", err)
		}

		if _, err := r.exec(txCtx, `
INSERT INTO orders (user_id, lot_id, credential_id, price, created_at)
VALUES ($1, $2, $3, $4, $5)`, buyerID, lotID, credentialID, price, now); err != nil {
			// orders.credential_id is UNIQUE: a violation means the
			// credential already has an order despite being marked unsold.
			if isUniqueViolation(err) {
				return domain.ErrAlreadyFulfilled
			}
			return fmt.Errorf("insert order: %w", err)
		}

		var remaining int
		if err := r.queryRow(txCtx,
			`SELECT COUNT(*) FROM credentials WHERE lot_id = $1 AND sold = FALSE`, lotID,
		).Scan(&remaining); err != nil {
			return fmt.Errorf("count remaining: %w", err)
		}

		emptied := remaining == 0
		if emptied {
			if _, err := r.exec(txCtx, `UPDATE lots SET available = FALSE WHERE id = $1`, lotID); err != nil {
				return fmt.Errorf("mark lot unavailable: %w", err)
			}
		}

		claim = domain.Claim{
			CredentialID: credentialID,
			Details:      details,
			Price:        price,
			LotEmptied:   emptied,
		}
		claimed = true
		return nil
	})
	if err != nil {
		return domain.Claim{}, false, err
	}
	return claim, claimed, nil
}

func (r *LedgerRepository) CreateLot(ctx context.Context, details string, price float64) (int64, error) {
	var id int64
	err := r.queryRow(ctx,
		`INSERT INTO lots (details, price, available) VALUES ($1, $2, FALSE) RETURNING id`,
		details, price,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create lot: %w", err)
	}
	return id, nil
}

// AddCredential inserts one credential and flips the lot's derived
// availability back on, in one transaction.
func (r *LedgerRepository) AddCredential(ctx context.Context, lotID int64, details string) (int64, error) {
	var id int64
	err := r.WithTx(ctx, func(txCtx context.Context) error {
		tag, err := r.exec(txCtx, `UPDATE lots SET available = TRUE WHERE id = $1`, lotID)
		if err != nil {
			return fmt.Errorf("mark lot available: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrLotNotFound
		}
		if err := r.queryRow(txCtx,
			`INSERT INTO credentials (lot_id, details) VALUES ($1, $2) RETURNING id`,
			lotID, details,
		).Scan(&id); err != nil {
			return fmt.Errorf("insert credential: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *LedgerRepository) CountUnclaimed(ctx context.Context, lotID int64) (int, error) {
	var count int
	err := r.queryRow(ctx,
		`SELECT COUNT(*) FROM credentials WHERE lot_id = $1 AND sold = FALSE`, lotID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unclaimed: %w", err)
	}
	return count, nil
}

func (r *LedgerRepository) GetLot(ctx context.Context, lotID int64) (domain.Lot, error) {
	var lot domain.Lot
	err := r.queryRow(ctx,
		`SELECT id, details, price, available FROM lots WHERE id = $1`, lotID,
	).Scan(&lot.ID, &lot.Details, &lot.Price, &lot.Available)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Lot{}, domain.ErrLotNotFound
		}
		return domain.Lot{}, fmt.Errorf("get lot: %w", err)
	}
	return lot, nil
}

func (r *LedgerRepository) ListLots(ctx context.Context) ([]domain.Lot, error) {
	rows, err := r.query(ctx, `SELECT id, details, price, available FROM lots ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list lots: %w", err)
	}
	defer rows.Close()

	var lots []domain.Lot
	for rows.Next() {
		var lot domain.Lot
		if err := rows.Scan(&lot.ID, &lot.Details, &lot.Price, &lot.Available); err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}

// DeleteLot removes the lot; credentials and queue entries cascade. Returns
// the number of still-waiting queue entries that were dropped with it.
func (r *LedgerRepository) DeleteLot(ctx context.Context, lotID int64) (int, error) {
	dropped := 0
	err := r.WithTx(ctx, func(txCtx context.Context) error {
		if err := r.queryRow(txCtx, `
SELECT COUNT(*) FROM purchase_queue
WHERE lot_id = $1 AND payment_status IN ('pending', 'paid')`, lotID).Scan(&dropped); err != nil {
			return fmt.Errorf("count queued: %w", err)
		}
		tag, err := r.exec(txCtx, `DELETE FROM lots WHERE id = $1`, lotID)
		if err != nil {
			return fmt.Errorf("delete lot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrLotNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return dropped, nil
}

func (r *LedgerRepository) UpdatePrice(ctx context.Context, lotID int64, price float64) error {
	tag, err := r.exec(ctx, `UPDATE lots SET price = $2 WHERE id = $1`, lotID, price)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLotNotFound
	}
	return nil
}

func (r *LedgerRepository) LotStats(ctx context.Context, lotID int64) (domain.LotStats, error) {
	lot, err := r.GetLot(ctx, lotID)
	if err != nil {
		return domain.LotStats{}, err
	}

	stats := domain.LotStats{Lot: lot}
	err = r.queryRow(ctx, `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE sold),
	COUNT(*) FILTER (WHERE NOT sold)
FROM credentials WHERE lot_id = $1`, lotID).Scan(&stats.Total, &stats.Sold, &stats.Unclaimed)
	if err != nil {
		return domain.LotStats{}, fmt.Errorf("credential counts: %w", err)
	}

	err = r.queryRow(ctx,
		`SELECT COALESCE(SUM(price), 0) FROM orders WHERE lot_id = $1`, lotID,
	).Scan(&stats.Revenue)
	if err != nil {
		return domain.LotStats{}, fmt.Errorf("sum revenue: %w", err)
	}
	return stats, nil
}

func (r *LedgerRepository) AllStats(ctx context.Context) ([]domain.LotStats, error) {
	lots, err := r.ListLots(ctx)
	if err != nil {
		return nil, err
	}
	stats := make([]domain.LotStats, 0, len(lots))
	for _, lot := range lots {
		s, err := r.LotStats(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func (r *LedgerRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *LedgerRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *LedgerRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
