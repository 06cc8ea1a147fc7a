package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lotvend/lotvend/internal/domain"
)

// QueueRepository owns the purchase_queue table.
type QueueRepository struct {
	pool *pgxpool.Pool
}

func NewQueueRepository(pool *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

const queueColumns = `id, user_id, lot_id, payment_type, price_usdt, price_rub, username, COALESCE(invoice_id, ''), payment_status, created_at`

func (r *QueueRepository) Insert(ctx context.Context, e domain.QueueEntry) (int64, error) {
	var invoiceID *string
	if e.InvoiceID != "" {
		invoiceID = &e.InvoiceID
	}
	var id int64
	err := r.queryRow(ctx, `
INSERT INTO purchase_queue
	(user_id, lot_id, payment_type, price_usdt, price_rub, username, invoice_id, payment_status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`,
		e.BuyerID, e.LotID, string(e.Method), e.PriceUSDT, e.PriceRUB, e.Username, invoiceID, string(e.Status), e.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert queue entry: %w", err)
	}
	return id, nil
}

func (r *QueueRepository) Get(ctx context.Context, id int64) (domain.QueueEntry, error) {
	row := r.queryRow(ctx, `SELECT `+queueColumns+` FROM purchase_queue WHERE id = $1`, id)
	e, err := scanQueueEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.QueueEntry{}, domain.ErrQueueEntryNotFound
		}
		return domain.QueueEntry{}, fmt.Errorf("get queue entry: %w", err)
	}
	return e, nil
}

// FindByInvoice returns the entry carrying the payment reference, or nil.
func (r *QueueRepository) FindByInvoice(ctx context.Context, invoiceID string) (*domain.QueueEntry, error) {
	row := r.queryRow(ctx,
		`SELECT `+queueColumns+` FROM purchase_queue WHERE invoice_id = $1 ORDER BY id LIMIT 1`, invoiceID)
	e, err := scanQueueEntry(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find queue entry by invoice: %w", err)
	}
	return &e, nil
}

// MarkPaid flips a pending entry matched by (buyer, lot, reference) to paid.
// Already-paid and fulfilled entries are left alone: the second confirmation
// of the same reference reports false.
func (r *QueueRepository) MarkPaid(ctx context.Context, buyerID, lotID int64, invoiceID string) (bool, error) {
	tag, err := r.exec(ctx, `
UPDATE purchase_queue SET payment_status = 'paid'
WHERE user_id = $1 AND lot_id = $2 AND COALESCE(invoice_id, '') = $3 AND payment_status = 'pending'`,
		buyerID, lotID, invoiceID)
	if err != nil {
		return false, fmt.Errorf("mark paid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkPaidByID is the manual-rail variant, addressed by queue id.
func (r *QueueRepository) MarkPaidByID(ctx context.Context, id int64) (bool, error) {
	tag, err := r.exec(ctx, `
UPDATE purchase_queue SET payment_status = 'paid'
WHERE id = $1 AND payment_status = 'pending'`, id)
	if err != nil {
		return false, fmt.Errorf("mark paid by id: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkFulfilled moves an entry to its terminal state. The status guard makes
// concurrent fulfillment attempts settle on exactly one winner.
func (r *QueueRepository) MarkFulfilled(ctx context.Context, id int64) (bool, error) {
	tag, err := r.exec(ctx, `
UPDATE purchase_queue SET payment_status = 'fulfilled'
WHERE id = $1 AND payment_status <> 'fulfilled'`, id)
	if err != nil {
		return false, fmt.Errorf("mark fulfilled: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Eligible returns up to limit pending/paid entries for the lot, paid bucket
// first, FIFO inside each bucket.
func (r *QueueRepository) Eligible(ctx context.Context, lotID int64, limit int) ([]domain.QueueEntry, error) {
	rows, err := r.query(ctx, `
SELECT `+queueColumns+` FROM purchase_queue
WHERE lot_id = $1 AND payment_status IN ('paid', 'pending')
ORDER BY
	CASE WHEN payment_status = 'paid' THEN 0 ELSE 1 END,
	created_at,
	id
LIMIT $2`, lotID, limit)
	if err != nil {
		return nil, fmt.Errorf("eligible queue entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.QueueEntry
	for rows.Next() {
		e, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *QueueRepository) Size(ctx context.Context, lotID int64) (int, error) {
	var count int
	err := r.queryRow(ctx, `
SELECT COUNT(*) FROM purchase_queue
WHERE lot_id = $1 AND payment_status IN ('pending', 'paid')`, lotID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return count, nil
}

func scanQueueEntry(row pgx.Row) (domain.QueueEntry, error) {
	var e domain.QueueEntry
	var method, status string
	var username *string
	if err := row.Scan(
		&e.ID, &e.BuyerID, &e.LotID, &method, &e.PriceUSDT, &e.PriceRUB,
		&username, &e.InvoiceID, &status, &e.CreatedAt,
	); err != nil {
		return domain.QueueEntry{}, err
	}
	if username != nil {
		e.Username = *username
	}
	e.Method = domain.PaymentMethod(method)
	e.Status = domain.QueueStatus(status)
	return e, nil
}

func (r *QueueRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *QueueRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *QueueRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
