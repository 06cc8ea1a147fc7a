package app

import (
	"context"
	"time"

	"github.com/lotvend/lotvend/internal/clock"
	"github.com/lotvend/lotvend/internal/domain"
)

// ClaimStore is the atomic claim primitive of the ledger.
type ClaimStore interface {
	ClaimCredential(ctx context.Context, lotID, buyerID int64, now time.Time) (domain.Claim, bool, error)
}

// Allocator attempts to claim one credential for one buyer. It never
// enqueues: deciding what to do on depletion belongs to the caller, so the
// wait-list state machine stays in one place.
type Allocator struct {
	ledger ClaimStore
	clock  clock.Clock
}

func NewAllocator(ledger ClaimStore, clk clock.Clock) *Allocator {
	return &Allocator{ledger: ledger, clock: clk}
}

// AttemptResult reports the outcome of one allocation attempt. Delivered is
// false when the lot is out of stock, which is an expected signal, not an
// error. Depleted marks attempts that took the last unit.
type AttemptResult struct {
	Delivered bool
	Depleted  bool
	Delivery  Delivery
}

func (a *Allocator) Attempt(ctx context.Context, lotID, buyerID int64) (AttemptResult, error) {
	claim, ok, err := a.ledger.ClaimCredential(ctx, lotID, buyerID, a.clock.Now())
	if err != nil {
		return AttemptResult{}, err
	}
	if !ok {
		return AttemptResult{}, nil
	}
	return AttemptResult{
		Delivered: true,
		Depleted:  claim.LotEmptied,
		Delivery: Delivery{
			BuyerID:      buyerID,
			LotID:        lotID,
			CredentialID: claim.CredentialID,
			Payload:      claim.Details,
			Price:        claim.Price,
		},
	}, nil
}
