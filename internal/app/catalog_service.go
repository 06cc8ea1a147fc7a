package app

import (
	"context"
	"strings"

	"github.com/lotvend/lotvend/internal/domain"
)

// CatalogStore is the ledger surface for lot administration.
type CatalogStore interface {
	CreateLot(ctx context.Context, details string, price float64) (int64, error)
	AddCredential(ctx context.Context, lotID int64, details string) (int64, error)
	GetLot(ctx context.Context, lotID int64) (domain.Lot, error)
	ListLots(ctx context.Context) ([]domain.Lot, error)
	DeleteLot(ctx context.Context, lotID int64) (int, error)
	UpdatePrice(ctx context.Context, lotID int64, price float64) error
	CountUnclaimed(ctx context.Context, lotID int64) (int, error)
	LotStats(ctx context.Context, lotID int64) (domain.LotStats, error)
	AllStats(ctx context.Context) ([]domain.LotStats, error)
}

// Drainer serves waiting buyers after stock changes.
type Drainer interface {
	Drain(ctx context.Context, lotID int64) ([]Delivery, error)
	QueueSize(ctx context.Context, lotID int64) (int, error)
}

// CatalogService manages the lot catalog and triggers queue drains when
// replenishment makes stock appear.
type CatalogService struct {
	store CatalogStore
	queue Drainer
}

func NewCatalogService(store CatalogStore, queue Drainer) *CatalogService {
	return &CatalogService{store: store, queue: queue}
}

func (s *CatalogService) CreateLot(ctx context.Context, details string, price float64) (int64, error) {
	details = strings.TrimSpace(details)
	if details == "" {
		return 0, domain.ErrLotNameRequired
	}
	if price <= 0 {
		return 0, domain.ErrInvalidPrice
	}
	return s.store.CreateLot(ctx, details, price)
}

// ReplenishResult reports one credential upload and the deliveries it
// immediately unlocked.
type ReplenishResult struct {
	CredentialID int64
	Served       []Delivery
}

// Replenish adds one credential and drains the lot's queue. Every upload
// triggers a drain pass so waiting buyers are served as soon as stock exists.
func (s *CatalogService) Replenish(ctx context.Context, lotID int64, credential string) (ReplenishResult, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return ReplenishResult{}, domain.ErrCredentialRequired
	}
	id, err := s.store.AddCredential(ctx, lotID, credential)
	if err != nil {
		return ReplenishResult{}, err
	}
	served, err := s.queue.Drain(ctx, lotID)
	if err != nil {
		return ReplenishResult{}, err
	}
	return ReplenishResult{CredentialID: id, Served: served}, nil
}

// Delete removes a lot with its credentials and queue entries. The returned
// count is how many still-waiting buyers lost their place.
func (s *CatalogService) Delete(ctx context.Context, lotID int64) (int, error) {
	return s.store.DeleteLot(ctx, lotID)
}

func (s *CatalogService) SetPrice(ctx context.Context, lotID int64, price float64) error {
	if price <= 0 {
		return domain.ErrInvalidPrice
	}
	return s.store.UpdatePrice(ctx, lotID, price)
}

func (s *CatalogService) Lot(ctx context.Context, lotID int64) (domain.Lot, error) {
	return s.store.GetLot(ctx, lotID)
}

// Listings is the buyer-facing catalog view: every lot with its live stock
// count and queue depth.
func (s *CatalogService) Listings(ctx context.Context) ([]domain.LotListing, error) {
	lots, err := s.store.ListLots(ctx)
	if err != nil {
		return nil, err
	}
	listings := make([]domain.LotListing, 0, len(lots))
	for _, lot := range lots {
		unclaimed, err := s.store.CountUnclaimed(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		depth, err := s.queue.QueueSize(ctx, lot.ID)
		if err != nil {
			return nil, err
		}
		listings = append(listings, domain.LotListing{
			Lot:       lot,
			Unclaimed: unclaimed,
			QueueSize: depth,
		})
	}
	return listings, nil
}

func (s *CatalogService) Stats(ctx context.Context) ([]domain.LotStats, error) {
	return s.store.AllStats(ctx)
}

func (s *CatalogService) LotStats(ctx context.Context, lotID int64) (domain.LotStats, error) {
	return s.store.LotStats(ctx, lotID)
}
