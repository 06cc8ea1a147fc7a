package app

import (
	"context"

	"github.com/lotvend/lotvend/internal/clock"
	"github.com/lotvend/lotvend/internal/domain"
)

// QueueStore is what the backorder manager needs from the purchase_queue
// table.
type QueueStore interface {
	Insert(ctx context.Context, e domain.QueueEntry) (int64, error)
	Get(ctx context.Context, id int64) (domain.QueueEntry, error)
	FindByInvoice(ctx context.Context, invoiceID string) (*domain.QueueEntry, error)
	MarkPaid(ctx context.Context, buyerID, lotID int64, invoiceID string) (bool, error)
	MarkPaidByID(ctx context.Context, id int64) (bool, error)
	MarkFulfilled(ctx context.Context, id int64) (bool, error)
	Eligible(ctx context.Context, lotID int64, limit int) ([]domain.QueueEntry, error)
	Size(ctx context.Context, lotID int64) (int, error)
}

// StockCounter reports live unclaimed stock for a lot.
type StockCounter interface {
	CountUnclaimed(ctx context.Context, lotID int64) (int, error)
}

// QueueService manages the per-lot backorder queue: buyers who ordered while
// the lot was empty, waiting to be served on replenishment.
type QueueService struct {
	repo     QueueStore
	stock    StockCounter
	alloc    *Allocator
	notifier Notifier
	clock    clock.Clock
}

func NewQueueService(repo QueueStore, stock StockCounter, alloc *Allocator, notifier Notifier, clk clock.Clock) *QueueService {
	return &QueueService{
		repo:     repo,
		stock:    stock,
		alloc:    alloc,
		notifier: notifier,
		clock:    clk,
	}
}

type EnqueueInput struct {
	BuyerID   int64
	LotID     int64
	Method    domain.PaymentMethod
	PriceUSDT float64
	PriceRUB  *int64
	Username  string
	InvoiceID string
	Status    domain.QueueStatus
}

// Enqueue adds a buyer to the lot's wait-list. Called exactly when an
// allocation attempt failed on depletion.
func (s *QueueService) Enqueue(ctx context.Context, in EnqueueInput) (int64, error) {
	status := in.Status
	if status == "" {
		status = domain.QueueStatusPending
	}
	return s.repo.Insert(ctx, domain.QueueEntry{
		BuyerID:   in.BuyerID,
		LotID:     in.LotID,
		Method:    in.Method,
		PriceUSDT: in.PriceUSDT,
		PriceRUB:  in.PriceRUB,
		Username:  in.Username,
		InvoiceID: in.InvoiceID,
		Status:    status,
		CreatedAt: s.clock.Now(),
	})
}

// MarkPaid flips the matching pending entry to paid. Idempotent: the second
// confirmation of the same (buyer, lot, reference) returns false.
func (s *QueueService) MarkPaid(ctx context.Context, buyerID, lotID int64, invoiceID string) (bool, error) {
	return s.repo.MarkPaid(ctx, buyerID, lotID, invoiceID)
}

func (s *QueueService) MarkPaidByID(ctx context.Context, queueID int64) (bool, error) {
	return s.repo.MarkPaidByID(ctx, queueID)
}

func (s *QueueService) Entry(ctx context.Context, queueID int64) (domain.QueueEntry, error) {
	return s.repo.Get(ctx, queueID)
}

func (s *QueueService) FindByInvoice(ctx context.Context, invoiceID string) (*domain.QueueEntry, error) {
	return s.repo.FindByInvoice(ctx, invoiceID)
}

func (s *QueueService) QueueSize(ctx context.Context, lotID int64) (int, error) {
	return s.repo.Size(ctx, lotID)
}

// Drain serves queued buyers against newly available stock: up to
// min(unclaimed, depth) eligible entries, paid bucket first, FIFO within each
// bucket. A failed allocation stops the pass instead of skipping ahead, so an
// earlier rightfully-next buyer is never starved by a later one; the entry
// stays queued for the next trigger. Mid-drain depletion stops the pass and
// notifies the operator.
func (s *QueueService) Drain(ctx context.Context, lotID int64) ([]Delivery, error) {
	unclaimed, err := s.stock.CountUnclaimed(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if unclaimed == 0 {
		return nil, nil
	}

	entries, err := s.repo.Eligible(ctx, lotID, unclaimed)
	if err != nil {
		return nil, err
	}

	var delivered []Delivery
	for _, e := range entries {
		res, err := s.alloc.Attempt(ctx, lotID, e.BuyerID)
		if err != nil {
			return delivered, err
		}
		if !res.Delivered {
			// Lost a race for the last unit; next replenishment retries.
			break
		}
		if _, err := s.repo.MarkFulfilled(ctx, e.ID); err != nil {
			return delivered, err
		}
		delivered = append(delivered, res.Delivery)
		s.notifier.NotifyDelivery(ctx, res.Delivery)

		if res.Depleted {
			depth, err := s.repo.Size(ctx, lotID)
			if err != nil {
				return delivered, err
			}
			s.notifier.NotifyDepleted(ctx, lotID, depth)
			break
		}
	}

	if len(delivered) > 0 {
		remaining, err := s.repo.Size(ctx, lotID)
		if err != nil {
			return delivered, err
		}
		s.notifier.NotifyQueueDrained(ctx, lotID, len(delivered), remaining)
	}
	return delivered, nil
}

// ResolveEntry tries to fulfill a single queue entry right now, outside a
// full drain pass. Used by the reconciler once a payment confirmation lands.
// Returns delivered=false (entry stays queued) when the lot is still empty.
func (s *QueueService) ResolveEntry(ctx context.Context, queueID int64) (Delivery, bool, error) {
	entry, err := s.repo.Get(ctx, queueID)
	if err != nil {
		return Delivery{}, false, err
	}
	if entry.Status == domain.QueueStatusFulfilled {
		return Delivery{}, false, domain.ErrAlreadyFulfilled
	}

	res, err := s.alloc.Attempt(ctx, entry.LotID, entry.BuyerID)
	if err != nil {
		return Delivery{}, false, err
	}
	if !res.Delivered {
		return Delivery{}, false, nil
	}

	if _, err := s.repo.MarkFulfilled(ctx, entry.ID); err != nil {
		return Delivery{}, false, err
	}
	s.notifier.NotifyDelivery(ctx, res.Delivery)

	if res.Depleted {
		depth, err := s.repo.Size(ctx, entry.LotID)
		if err != nil {
			return res.Delivery, true, err
		}
		s.notifier.NotifyDepleted(ctx, entry.LotID, depth)
	}
	return res.Delivery, true, nil
}
