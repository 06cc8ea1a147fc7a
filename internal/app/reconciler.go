package app

import (
	"context"
	"errors"
	"log"

	"github.com/lotvend/lotvend/internal/domain"
	"github.com/lotvend/lotvend/internal/payment"
)

// InvoiceStatusGetter polls the payment provider for one invoice.
type InvoiceStatusGetter interface {
	GetInvoiceStatus(ctx context.Context, invoiceID string) (payment.InvoiceStatus, error)
}

// PaymentContextStore holds the in-flight payment contexts keyed by
// (buyer, lot) for the provider rail and (lot, handle) for the manual rail.
type PaymentContextStore interface {
	SaveInvoiceContext(ctx context.Context, pc domain.PaymentContext) error
	InvoiceContext(ctx context.Context, buyerID, lotID int64) (*domain.PaymentContext, error)
	DeleteInvoiceContext(ctx context.Context, buyerID, lotID int64) error
	SaveManualContext(ctx context.Context, pc domain.PaymentContext) error
	ManualContext(ctx context.Context, lotID int64, handle string) (*domain.PaymentContext, error)
	DeleteManualContext(ctx context.Context, lotID int64, handle string) error
}

// SettleOutcome describes what a confirmation signal ended up doing.
type SettleOutcome string

const (
	// OutcomeDelivered: a credential was claimed and handed to the buyer.
	OutcomeDelivered SettleOutcome = "delivered"
	// OutcomeQueued: payment is confirmed but the lot is empty; the buyer
	// holds a paid queue entry and will be served on replenishment.
	OutcomeQueued SettleOutcome = "queued"
	// OutcomePending: the provider has not seen the money yet.
	OutcomePending SettleOutcome = "pending"
	// OutcomeNoop: the reference already reached a terminal state earlier.
	OutcomeNoop SettleOutcome = "noop"
)

type SettleResult struct {
	Outcome       SettleOutcome
	Delivery      Delivery
	QueuePosition int
}

// Reconciler merges the three payment-confirmation entry points (provider
// poll, operator confirmation, provider webhook) into the single allocation
// path, guaranteeing each payment reference triggers at most one durably
// recorded allocation outcome.
type Reconciler struct {
	alloc         *Allocator
	queue         *QueueService
	provider      InvoiceStatusGetter
	contexts      PaymentContextStore
	notifier      Notifier
	providerToken string
	logger        *log.Logger
}

func NewReconciler(
	alloc *Allocator,
	queue *QueueService,
	provider InvoiceStatusGetter,
	contexts PaymentContextStore,
	notifier Notifier,
	providerToken string,
	logger *log.Logger,
) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{
		alloc:         alloc,
		queue:         queue,
		provider:      provider,
		contexts:      contexts,
		notifier:      notifier,
		providerToken: providerToken,
		logger:        logger,
	}
}

// OnProviderPoll is the buyer-triggered "check payment" path. Provider
// failures surface as errors and are retried only on the buyer's next poll.
func (r *Reconciler) OnProviderPoll(ctx context.Context, buyerID, lotID int64) (SettleResult, error) {
	pc, err := r.contexts.InvoiceContext(ctx, buyerID, lotID)
	if err != nil {
		return SettleResult{}, err
	}
	if pc == nil {
		return SettleResult{}, domain.ErrPaymentNotFound
	}

	if done, err := r.alreadySettled(ctx, pc); err != nil {
		return SettleResult{}, err
	} else if done {
		return SettleResult{Outcome: OutcomeNoop}, nil
	}

	status, err := r.provider.GetInvoiceStatus(ctx, pc.InvoiceID)
	if err != nil {
		return SettleResult{}, err
	}
	if status != payment.StatusPaid {
		return SettleResult{Outcome: OutcomePending}, nil
	}

	return r.settle(ctx, *pc)
}

// OnManualConfirm is the operator-entered confirmation for the out-of-band
// rail. The operator's word is the payment signal; there is nothing to poll.
func (r *Reconciler) OnManualConfirm(ctx context.Context, lotID int64, buyerHandle string) (SettleResult, error) {
	pc, err := r.contexts.ManualContext(ctx, lotID, buyerHandle)
	if err != nil {
		return SettleResult{}, err
	}
	if pc == nil {
		return SettleResult{}, domain.ErrPaymentNotFound
	}

	if done, err := r.alreadySettled(ctx, pc); err != nil {
		return SettleResult{}, err
	} else if done {
		return SettleResult{Outcome: OutcomeNoop}, nil
	}

	return r.settle(ctx, *pc)
}

// OnWebhook is the provider-push path. Signature mismatches are dropped
// without telling the payer; the caller should still answer 200.
//
// Unlike the poll path, a webhook carries no settled-state context of its
// own, so the invoice reference is always anchored to a queue entry before
// allocating: the entry's terminal status is what makes redelivered webhooks
// no-ops.
func (r *Reconciler) OnWebhook(ctx context.Context, p payment.WebhookPayload) (SettleResult, error) {
	if !payment.VerifySignature(r.providerToken, p) {
		r.logger.Printf("webhook dropped: bad signature invoice=%s", p.InvoiceID)
		return SettleResult{}, domain.ErrSignatureInvalid
	}
	if p.Status != string(payment.StatusPaid) {
		return SettleResult{Outcome: OutcomeNoop}, nil
	}

	buyerID, lotID, err := payment.ParseOrderReference(p.Payload)
	if err != nil {
		r.logger.Printf("webhook dropped: %v", err)
		return SettleResult{}, domain.ErrSignatureInvalid
	}

	entry, err := r.queue.FindByInvoice(ctx, p.InvoiceID)
	if err != nil {
		return SettleResult{}, err
	}

	var queueID int64
	switch {
	case entry == nil:
		// No entry yet: the buyer bought while stock existed. Anchor the
		// reference durably before claiming.
		pc, err := r.contexts.InvoiceContext(ctx, buyerID, lotID)
		if err != nil {
			return SettleResult{}, err
		}
		in := EnqueueInput{
			BuyerID:   buyerID,
			LotID:     lotID,
			Method:    domain.MethodProvider,
			InvoiceID: p.InvoiceID,
			Status:    domain.QueueStatusPaid,
		}
		if pc != nil {
			in.PriceUSDT = pc.PriceUSDT
			in.Username = pc.Username
		}
		queueID, err = r.queue.Enqueue(ctx, in)
		if err != nil {
			return SettleResult{}, err
		}
	case entry.Status == domain.QueueStatusFulfilled:
		return SettleResult{Outcome: OutcomeNoop}, nil
	default:
		queueID = entry.ID
		if _, err := r.queue.MarkPaid(ctx, buyerID, lotID, p.InvoiceID); err != nil {
			return SettleResult{}, err
		}
	}

	delivery, delivered, err := r.queue.ResolveEntry(ctx, queueID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyFulfilled) {
			return SettleResult{Outcome: OutcomeNoop}, nil
		}
		return SettleResult{}, err
	}
	if !delivered {
		depth, err := r.queue.QueueSize(ctx, lotID)
		if err != nil {
			return SettleResult{}, err
		}
		r.notifier.NotifyDepleted(ctx, lotID, depth)
		return SettleResult{Outcome: OutcomeQueued, QueuePosition: depth}, nil
	}

	_ = r.contexts.DeleteInvoiceContext(ctx, buyerID, lotID)
	return SettleResult{Outcome: OutcomeDelivered, Delivery: delivery}, nil
}

// alreadySettled reports whether the context's queue entry reached its
// terminal state; the stale context is cleaned up on the way.
func (r *Reconciler) alreadySettled(ctx context.Context, pc *domain.PaymentContext) (bool, error) {
	if pc.QueueID == 0 {
		return false, nil
	}
	entry, err := r.queue.Entry(ctx, pc.QueueID)
	if err != nil {
		if errors.Is(err, domain.ErrQueueEntryNotFound) {
			// Lot deleted under the waiting buyer; treat as settled.
			r.deleteContext(ctx, pc)
			return true, nil
		}
		return false, err
	}
	if entry.Status == domain.QueueStatusFulfilled {
		r.deleteContext(ctx, pc)
		return true, nil
	}
	return false, nil
}

// settle applies the dual-path logic shared by poll and manual confirm: if
// the buyer is queued, mark paid and try a single-entry resolution; otherwise
// claim directly, falling back to a fresh paid queue entry when stock ran out
// between order and confirmation.
func (r *Reconciler) settle(ctx context.Context, pc domain.PaymentContext) (SettleResult, error) {
	if pc.QueueID != 0 {
		if err := r.markEntryPaid(ctx, pc); err != nil {
			return SettleResult{}, err
		}
		delivery, delivered, err := r.queue.ResolveEntry(ctx, pc.QueueID)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyFulfilled) {
				r.deleteContext(ctx, &pc)
				return SettleResult{Outcome: OutcomeNoop}, nil
			}
			return SettleResult{}, err
		}
		if !delivered {
			depth, err := r.queue.QueueSize(ctx, pc.LotID)
			if err != nil {
				return SettleResult{}, err
			}
			return SettleResult{Outcome: OutcomeQueued, QueuePosition: depth}, nil
		}
		r.deleteContext(ctx, &pc)
		return SettleResult{Outcome: OutcomeDelivered, Delivery: delivery}, nil
	}

	res, err := r.alloc.Attempt(ctx, pc.LotID, pc.BuyerID)
	if err != nil {
		return SettleResult{}, err
	}
	if res.Delivered {
		r.notifier.NotifyDelivery(ctx, res.Delivery)
		r.deleteContext(ctx, &pc)
		if res.Depleted {
			depth, err := r.queue.QueueSize(ctx, pc.LotID)
			if err != nil {
				return SettleResult{}, err
			}
			r.notifier.NotifyDepleted(ctx, pc.LotID, depth)
		}
		return SettleResult{Outcome: OutcomeDelivered, Delivery: res.Delivery}, nil
	}

	// Stock ran out between invoice creation and confirmation: the buyer
	// already paid, so they join the queue ahead of unpaid intents.
	queueID, err := r.queue.Enqueue(ctx, EnqueueInput{
		BuyerID:   pc.BuyerID,
		LotID:     pc.LotID,
		Method:    pc.Method,
		PriceUSDT: pc.PriceUSDT,
		PriceRUB:  rubPtr(pc.PriceRUB),
		Username:  pc.Username,
		InvoiceID: pc.InvoiceID,
		Status:    domain.QueueStatusPaid,
	})
	if err != nil {
		return SettleResult{}, err
	}

	pc.QueueID = queueID
	if err := r.saveContext(ctx, pc); err != nil {
		return SettleResult{}, err
	}

	depth, err := r.queue.QueueSize(ctx, pc.LotID)
	if err != nil {
		return SettleResult{}, err
	}
	r.notifier.NotifyDepleted(ctx, pc.LotID, depth)
	return SettleResult{Outcome: OutcomeQueued, QueuePosition: depth}, nil
}

func (r *Reconciler) markEntryPaid(ctx context.Context, pc domain.PaymentContext) error {
	if pc.InvoiceID != "" {
		_, err := r.queue.MarkPaid(ctx, pc.BuyerID, pc.LotID, pc.InvoiceID)
		return err
	}
	_, err := r.queue.MarkPaidByID(ctx, pc.QueueID)
	return err
}

func (r *Reconciler) saveContext(ctx context.Context, pc domain.PaymentContext) error {
	if pc.Method == domain.MethodManual {
		return r.contexts.SaveManualContext(ctx, pc)
	}
	return r.contexts.SaveInvoiceContext(ctx, pc)
}

func (r *Reconciler) deleteContext(ctx context.Context, pc *domain.PaymentContext) {
	if pc.Method == domain.MethodManual {
		_ = r.contexts.DeleteManualContext(ctx, pc.LotID, pc.Username)
		return
	}
	_ = r.contexts.DeleteInvoiceContext(ctx, pc.BuyerID, pc.LotID)
}

func rubPtr(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
