package app

import (
	"context"
	"log"
)

// Delivery is one credential handed to one buyer.
type Delivery struct {
	BuyerID      int64
	LotID        int64
	CredentialID int64
	Payload      string
	Price        float64
}

// Notifier is the outbound side of the chat gateway. Notifications are side
// effects dispatched after the state transition commits; implementations must
// swallow their own failures (a missed notification is acceptable, a blocked
// allocation is not).
type Notifier interface {
	NotifyDelivery(ctx context.Context, d Delivery)
	NotifyDepleted(ctx context.Context, lotID int64, queueDepth int)
	NotifyQueueDrained(ctx context.Context, lotID int64, fulfilled, remaining int)
}

// LogNotifier writes notifications to the process log. It stands in for the
// chat gateway in development and tests.
type LogNotifier struct {
	Logger *log.Logger
}

func (n *LogNotifier) logf(format string, args ...any) {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf(format, args...)
}

func (n *LogNotifier) NotifyDelivery(_ context.Context, d Delivery) {
	n.logf("notify delivery buyer=%d lot=%d credential=%d price=%.2f", d.BuyerID, d.LotID, d.CredentialID, d.Price)
}

func (n *LogNotifier) NotifyDepleted(_ context.Context, lotID int64, queueDepth int) {
	n.logf("notify depleted lot=%d queue_depth=%d", lotID, queueDepth)
}

func (n *LogNotifier) NotifyQueueDrained(_ context.Context, lotID int64, fulfilled, remaining int) {
	n.logf("notify queue drained lot=%d fulfilled=%d remaining=%d", lotID, fulfilled, remaining)
}
