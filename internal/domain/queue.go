package domain

import "time"

type PaymentMethod string

const (
	// MethodProvider is the automated payment-provider rail (crypto invoices).
	MethodProvider PaymentMethod = "crypto"
	// MethodManual is the operator-confirmed out-of-band rail (rub transfers).
	MethodManual PaymentMethod = "rub"
)

type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusPaid      QueueStatus = "paid"
	QueueStatusFulfilled QueueStatus = "fulfilled"
)

// QueueEntry is one buyer waiting on a depleted lot. Status moves
// pending -> paid -> fulfilled and never regresses; fulfilled is terminal and
// removes the entry from all future drain scans.
type QueueEntry struct {
	ID        int64
	BuyerID   int64
	LotID     int64
	Method    PaymentMethod
	PriceUSDT float64
	PriceRUB  *int64
	Username  string
	InvoiceID string
	Status    QueueStatus
	CreatedAt time.Time
}

// PaymentContext is the short-lived record tying an in-flight payment to its
// order: which buyer, which lot, which invoice (provider rail) or handle
// (manual rail), and the queue entry created for it if the lot was empty at
// purchase time. QueueID is zero when the buyer was never queued.
type PaymentContext struct {
	BuyerID   int64         `json:"buyer_id"`
	LotID     int64         `json:"lot_id"`
	Username  string        `json:"username"`
	Method    PaymentMethod `json:"method"`
	InvoiceID string        `json:"invoice_id,omitempty"`
	PriceUSDT float64       `json:"price_usdt"`
	PriceRUB  int64         `json:"price_rub,omitempty"`
	QueueID   int64         `json:"queue_id,omitempty"`
}
