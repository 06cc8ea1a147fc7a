package app

import (
	"context"
	"strings"
	"time"

	"github.com/lotvend/lotvend/internal/clock"
	"github.com/lotvend/lotvend/internal/domain"
)

// minPromotionLinks is how many share links a buyer must submit before a
// giveaway request is accepted for review.
const minPromotionLinks = 10

// GiftStore persists giveaway requests and the current gift payload.
type GiftStore interface {
	CreateRequest(ctx context.Context, req domain.GiftRequest) (int64, error)
	GetRequest(ctx context.Context, id int64) (domain.GiftRequest, error)
	PendingRequests(ctx context.Context) ([]domain.GiftRequest, error)
	ProcessRequest(ctx context.Context, id int64, status domain.GiftRequestStatus, adminID int64, now time.Time) (bool, error)
	SaveGift(ctx context.Context, asset domain.GiftAsset, now time.Time) error
	CurrentGift(ctx context.Context) (*domain.GiftAsset, error)
}

// GiftSender hands the gift payload to an approved buyer.
type GiftSender interface {
	Deliver(ctx context.Context, buyerID int64, asset domain.GiftAsset) error
}

// GiftService runs the promotion giveaway: buyers submit proof links, an
// operator approves or rejects, approval ships the configured gift.
type GiftService struct {
	store  GiftStore
	sender GiftSender
	clock  clock.Clock
}

func NewGiftService(store GiftStore, sender GiftSender, clk clock.Clock) *GiftService {
	return &GiftService{store: store, sender: sender, clock: clk}
}

// SubmitRequest records a buyer's promotion proof. The submission must carry
// at least minPromotionLinks URLs, one per line.
func (s *GiftService) SubmitRequest(ctx context.Context, buyerID int64, username, links string) (int64, error) {
	if countLinks(links) < minPromotionLinks {
		return 0, domain.ErrNotEnoughLinks
	}
	return s.store.CreateRequest(ctx, domain.GiftRequest{
		BuyerID:   buyerID,
		Username:  username,
		Links:     links,
		Status:    domain.GiftRequestPending,
		CreatedAt: s.clock.Now(),
	})
}

func (s *GiftService) PendingRequests(ctx context.Context) ([]domain.GiftRequest, error) {
	return s.store.PendingRequests(ctx)
}

// Review settles one request. Approval requires a configured gift and ships
// it to the buyer before the request is marked processed, so a failed send
// leaves the request reviewable. A request already settled by a concurrent
// reviewer returns ErrGiftRequestProcessed.
func (s *GiftService) Review(ctx context.Context, requestID int64, approve bool, adminID int64) (domain.GiftRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return domain.GiftRequest{}, err
	}
	if req.Status != domain.GiftRequestPending {
		return domain.GiftRequest{}, domain.ErrGiftRequestProcessed
	}

	status := domain.GiftRequestRejected
	if approve {
		asset, err := s.store.CurrentGift(ctx)
		if err != nil {
			return domain.GiftRequest{}, err
		}
		if asset == nil {
			return domain.GiftRequest{}, domain.ErrGiftNotConfigured
		}
		if err := s.sender.Deliver(ctx, req.BuyerID, *asset); err != nil {
			return domain.GiftRequest{}, err
		}
		status = domain.GiftRequestApproved
	}

	ok, err := s.store.ProcessRequest(ctx, requestID, status, adminID, s.clock.Now())
	if err != nil {
		return domain.GiftRequest{}, err
	}
	if !ok {
		return domain.GiftRequest{}, domain.ErrGiftRequestProcessed
	}
	req.Status = status
	return req, nil
}

// SetGift replaces the single configured gift payload.
func (s *GiftService) SetGift(ctx context.Context, asset domain.GiftAsset) error {
	return s.store.SaveGift(ctx, asset, s.clock.Now())
}

func (s *GiftService) CurrentGift(ctx context.Context) (*domain.GiftAsset, error) {
	return s.store.CurrentGift(ctx)
}

// countLinks counts lines that look like URLs. Plain text padding does not
// count toward the minimum.
func countLinks(s string) int {
	n := 0
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(strings.TrimSpace(line), "://") {
			n++
		}
	}
	return n
}
