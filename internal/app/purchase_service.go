package app

import (
	"context"
	"fmt"
	"math"

	"github.com/lotvend/lotvend/internal/domain"
	"github.com/lotvend/lotvend/internal/payment"
)

// InvoiceCreator issues a provider invoice for an order.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, asset string, amount float64, description, payload string) (payment.Invoice, error)
}

// LotReader is the read surface of the ledger the intake path needs.
type LotReader interface {
	GetLot(ctx context.Context, lotID int64) (domain.Lot, error)
	CountUnclaimed(ctx context.Context, lotID int64) (int, error)
}

// PurchaseService runs the buy intake: it prices the order, opens the chosen
// payment rail, and records the in-flight payment context. No credential
// moves here; allocation happens only once a confirmation path fires.
type PurchaseService struct {
	lots     LotReader
	queue    *QueueService
	invoices InvoiceCreator
	contexts PaymentContextStore
	asset    string
	rubRate  float64
}

// NewPurchaseService wires the intake path. asset is the provider currency
// code (e.g. "USDT"); rubRate converts the USD lot price to the manual rail's
// whole-ruble amount.
func NewPurchaseService(lots LotReader, queue *QueueService, invoices InvoiceCreator, contexts PaymentContextStore, asset string, rubRate float64) *PurchaseService {
	return &PurchaseService{
		lots:     lots,
		queue:    queue,
		invoices: invoices,
		contexts: contexts,
		asset:    asset,
		rubRate:  rubRate,
	}
}

type BuyInput struct {
	BuyerID  int64
	LotID    int64
	Username string
	Method   domain.PaymentMethod
}

// BuyResult tells the buyer how to pay. Exactly one of PayURL (provider
// rail) or PriceRUB (manual rail) is meaningful. Queued is set when the lot
// had no stock at intake, in which case the buyer already holds a pending
// queue entry at QueuePosition.
type BuyResult struct {
	LotID         int64
	Price         float64
	PayURL        string
	InvoiceID     string
	PriceRUB      int64
	Queued        bool
	QueuePosition int
}

func (s *PurchaseService) Buy(ctx context.Context, in BuyInput) (BuyResult, error) {
	lot, err := s.lots.GetLot(ctx, in.LotID)
	if err != nil {
		return BuyResult{}, err
	}

	pc := domain.PaymentContext{
		BuyerID:   in.BuyerID,
		LotID:     in.LotID,
		Username:  in.Username,
		Method:    in.Method,
		PriceUSDT: lot.Price,
	}

	res := BuyResult{LotID: lot.ID, Price: lot.Price}

	switch in.Method {
	case domain.MethodProvider:
		inv, err := s.invoices.CreateInvoice(ctx, s.asset, lot.Price,
			fmt.Sprintf("Lot #%d: %s", lot.ID, lot.Details),
			payment.OrderReference(in.BuyerID, in.LotID))
		if err != nil {
			return BuyResult{}, err
		}
		pc.InvoiceID = inv.ID
		res.PayURL = inv.PayURL
		res.InvoiceID = inv.ID
	case domain.MethodManual:
		pc.PriceRUB = int64(math.Ceil(lot.Price * s.rubRate))
		res.PriceRUB = pc.PriceRUB
	default:
		return BuyResult{}, domain.ErrInvalidMethod
	}

	// An empty lot still takes the order: the buyer joins the queue unpaid
	// and will be promoted to the paid bucket once their payment confirms.
	unclaimed, err := s.lots.CountUnclaimed(ctx, in.LotID)
	if err != nil {
		return BuyResult{}, err
	}
	if unclaimed == 0 {
		queueID, err := s.queue.Enqueue(ctx, EnqueueInput{
			BuyerID:   in.BuyerID,
			LotID:     in.LotID,
			Method:    in.Method,
			PriceUSDT: lot.Price,
			PriceRUB:  rubPtr(pc.PriceRUB),
			Username:  in.Username,
			InvoiceID: pc.InvoiceID,
			Status:    domain.QueueStatusPending,
		})
		if err != nil {
			return BuyResult{}, err
		}
		pc.QueueID = queueID
		depth, err := s.queue.QueueSize(ctx, in.LotID)
		if err != nil {
			return BuyResult{}, err
		}
		res.Queued = true
		res.QueuePosition = depth
	}

	if in.Method == domain.MethodManual {
		err = s.contexts.SaveManualContext(ctx, pc)
	} else {
		err = s.contexts.SaveInvoiceContext(ctx, pc)
	}
	if err != nil {
		return BuyResult{}, err
	}
	return res, nil
}
