package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lotvend/lotvend/internal/domain"
	"github.com/lotvend/lotvend/internal/payment"
)

// fakeLedger is an in-memory stand-in for the postgres ledger. Credentials
// are claimed oldest-first, matching the real repository's ordering.
type fakeLedger struct {
	lots     map[int64]*fakeLot
	nextLot  int64
	nextCred int64
	claimErr error
	// queue, when set, gets its entries cascaded on DeleteLot like the
	// real schema's foreign keys do.
	queue *fakeQueueRepo
}

type fakeLot struct {
	details string
	price   float64
	unsold  []fakeCred
	sold    int
	revenue float64
}

type fakeCred struct {
	id      int64
	details string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{lots: make(map[int64]*fakeLot)}
}

func (f *fakeLedger) addLot(details string, price float64) int64 {
	f.nextLot++
	f.lots[f.nextLot] = &fakeLot{details: details, price: price}
	return f.nextLot
}

func (f *fakeLedger) addCredential(lotID int64, details string) int64 {
	f.nextCred++
	f.lots[lotID].unsold = append(f.lots[lotID].unsold, fakeCred{id: f.nextCred, details: details})
	return f.nextCred
}

func (f *fakeLedger) ClaimCredential(_ context.Context, lotID, buyerID int64, _ time.Time) (domain.Claim, bool, error) {
	if f.claimErr != nil {
		return domain.Claim{}, false, f.claimErr
	}
	lot, ok := f.lots[lotID]
	if !ok {
		return domain.Claim{}, false, domain.ErrLotNotFound
	}
	if len(lot.unsold) == 0 {
		return domain.Claim{}, false, nil
	}
	cred := lot.unsold[0]
	lot.unsold = lot.unsold[1:]
	lot.sold++
	lot.revenue += lot.price
	return domain.Claim{
		CredentialID: cred.id,
		Details:      cred.details,
		Price:        lot.price,
		LotEmptied:   len(lot.unsold) == 0,
	}, true, nil
}

func (f *fakeLedger) CountUnclaimed(_ context.Context, lotID int64) (int, error) {
	lot, ok := f.lots[lotID]
	if !ok {
		return 0, nil
	}
	return len(lot.unsold), nil
}

func (f *fakeLedger) GetLot(_ context.Context, lotID int64) (domain.Lot, error) {
	lot, ok := f.lots[lotID]
	if !ok {
		return domain.Lot{}, domain.ErrLotNotFound
	}
	return domain.Lot{ID: lotID, Details: lot.details, Price: lot.price, Available: len(lot.unsold) > 0}, nil
}

func (f *fakeLedger) CreateLot(_ context.Context, details string, price float64) (int64, error) {
	return f.addLot(details, price), nil
}

func (f *fakeLedger) AddCredential(_ context.Context, lotID int64, details string) (int64, error) {
	if _, ok := f.lots[lotID]; !ok {
		return 0, domain.ErrLotNotFound
	}
	return f.addCredential(lotID, details), nil
}

func (f *fakeLedger) ListLots(_ context.Context) ([]domain.Lot, error) {
	var out []domain.Lot
	for id := int64(1); id <= f.nextLot; id++ {
		lot, ok := f.lots[id]
		if !ok {
			continue
		}
		out = append(out, domain.Lot{ID: id, Details: lot.details, Price: lot.price, Available: len(lot.unsold) > 0})
	}
	return out, nil
}

func (f *fakeLedger) DeleteLot(_ context.Context, lotID int64) (int, error) {
	if _, ok := f.lots[lotID]; !ok {
		return 0, domain.ErrLotNotFound
	}
	delete(f.lots, lotID)
	dropped := 0
	if f.queue != nil {
		for id, e := range f.queue.entries {
			if e.LotID != lotID {
				continue
			}
			if e.Status != domain.QueueStatusFulfilled {
				dropped++
			}
			delete(f.queue.entries, id)
		}
	}
	return dropped, nil
}

func (f *fakeLedger) UpdatePrice(_ context.Context, lotID int64, price float64) error {
	lot, ok := f.lots[lotID]
	if !ok {
		return domain.ErrLotNotFound
	}
	lot.price = price
	return nil
}

func (f *fakeLedger) LotStats(_ context.Context, lotID int64) (domain.LotStats, error) {
	lot, ok := f.lots[lotID]
	if !ok {
		return domain.LotStats{}, domain.ErrLotNotFound
	}
	return domain.LotStats{
		Lot:       domain.Lot{ID: lotID, Details: lot.details, Price: lot.price, Available: len(lot.unsold) > 0},
		Total:     lot.sold + len(lot.unsold),
		Sold:      lot.sold,
		Unclaimed: len(lot.unsold),
		Revenue:   lot.revenue,
	}, nil
}

func (f *fakeLedger) AllStats(ctx context.Context) ([]domain.LotStats, error) {
	var out []domain.LotStats
	for id := int64(1); id <= f.nextLot; id++ {
		if _, ok := f.lots[id]; !ok {
			continue
		}
		st, err := f.LotStats(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// fakeQueueRepo mirrors the real queue repository's ordering: paid bucket
// before pending, insertion order within each bucket.
type fakeQueueRepo struct {
	entries map[int64]*domain.QueueEntry
	nextID  int64
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{entries: make(map[int64]*domain.QueueEntry)}
}

func (f *fakeQueueRepo) Insert(_ context.Context, e domain.QueueEntry) (int64, error) {
	f.nextID++
	e.ID = f.nextID
	f.entries[e.ID] = &e
	return e.ID, nil
}

func (f *fakeQueueRepo) Get(_ context.Context, id int64) (domain.QueueEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return domain.QueueEntry{}, domain.ErrQueueEntryNotFound
	}
	return *e, nil
}

func (f *fakeQueueRepo) FindByInvoice(_ context.Context, invoiceID string) (*domain.QueueEntry, error) {
	for _, id := range f.sortedIDs() {
		if e := f.entries[id]; e.InvoiceID == invoiceID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeQueueRepo) MarkPaid(_ context.Context, buyerID, lotID int64, invoiceID string) (bool, error) {
	for _, id := range f.sortedIDs() {
		e := f.entries[id]
		if e.BuyerID == buyerID && e.LotID == lotID && e.InvoiceID == invoiceID && e.Status == domain.QueueStatusPending {
			e.Status = domain.QueueStatusPaid
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeQueueRepo) MarkPaidByID(_ context.Context, id int64) (bool, error) {
	e, ok := f.entries[id]
	if !ok || e.Status != domain.QueueStatusPending {
		return false, nil
	}
	e.Status = domain.QueueStatusPaid
	return true, nil
}

func (f *fakeQueueRepo) MarkFulfilled(_ context.Context, id int64) (bool, error) {
	e, ok := f.entries[id]
	if !ok || e.Status == domain.QueueStatusFulfilled {
		return false, nil
	}
	e.Status = domain.QueueStatusFulfilled
	return true, nil
}

func (f *fakeQueueRepo) Eligible(_ context.Context, lotID int64, limit int) ([]domain.QueueEntry, error) {
	var out []domain.QueueEntry
	for _, id := range f.sortedIDs() {
		e := f.entries[id]
		if e.LotID == lotID && e.Status == domain.QueueStatusPaid {
			out = append(out, *e)
		}
	}
	for _, id := range f.sortedIDs() {
		e := f.entries[id]
		if e.LotID == lotID && e.Status == domain.QueueStatusPending {
			out = append(out, *e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeQueueRepo) Size(_ context.Context, lotID int64) (int, error) {
	n := 0
	for _, e := range f.entries {
		if e.LotID == lotID && e.Status != domain.QueueStatusFulfilled {
			n++
		}
	}
	return n, nil
}

func (f *fakeQueueRepo) sortedIDs() []int64 {
	ids := make([]int64, 0, len(f.entries))
	for id := range f.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// fakeContextStore keeps payment contexts in maps, like the redis store but
// without TTLs.
type fakeContextStore struct {
	invoices map[string]domain.PaymentContext
	manual   map[string]domain.PaymentContext
}

func newFakeContextStore() *fakeContextStore {
	return &fakeContextStore{
		invoices: make(map[string]domain.PaymentContext),
		manual:   make(map[string]domain.PaymentContext),
	}
}

func invoiceKey(buyerID, lotID int64) string { return fmt.Sprintf("%d:%d", buyerID, lotID) }
func manualKey(lotID int64, handle string) string {
	return fmt.Sprintf("%d:%s", lotID, normalizeHandle(handle))
}

func (f *fakeContextStore) SaveInvoiceContext(_ context.Context, pc domain.PaymentContext) error {
	f.invoices[invoiceKey(pc.BuyerID, pc.LotID)] = pc
	return nil
}

func (f *fakeContextStore) InvoiceContext(_ context.Context, buyerID, lotID int64) (*domain.PaymentContext, error) {
	pc, ok := f.invoices[invoiceKey(buyerID, lotID)]
	if !ok {
		return nil, nil
	}
	return &pc, nil
}

func (f *fakeContextStore) DeleteInvoiceContext(_ context.Context, buyerID, lotID int64) error {
	delete(f.invoices, invoiceKey(buyerID, lotID))
	return nil
}

func (f *fakeContextStore) SaveManualContext(_ context.Context, pc domain.PaymentContext) error {
	f.manual[manualKey(pc.LotID, pc.Username)] = pc
	return nil
}

func (f *fakeContextStore) ManualContext(_ context.Context, lotID int64, handle string) (*domain.PaymentContext, error) {
	pc, ok := f.manual[manualKey(lotID, handle)]
	if !ok {
		return nil, nil
	}
	return &pc, nil
}

func (f *fakeContextStore) DeleteManualContext(_ context.Context, lotID int64, handle string) error {
	delete(f.manual, manualKey(lotID, handle))
	return nil
}

// fakeProvider serves canned invoice statuses and creations.
type fakeProvider struct {
	statuses    map[string]payment.InvoiceStatus
	statusErr   error
	created     []string
	createErr   error
	nextInvoice int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{statuses: make(map[string]payment.InvoiceStatus)}
}

func (f *fakeProvider) GetInvoiceStatus(_ context.Context, invoiceID string) (payment.InvoiceStatus, error) {
	if f.statusErr != nil {
		return "", f.statusErr
	}
	st, ok := f.statuses[invoiceID]
	if !ok {
		return payment.StatusPending, nil
	}
	return st, nil
}

func (f *fakeProvider) CreateInvoice(_ context.Context, _ string, _ float64, _, _ string) (payment.Invoice, error) {
	if f.createErr != nil {
		return payment.Invoice{}, f.createErr
	}
	f.nextInvoice++
	id := fmt.Sprintf("inv-%d", f.nextInvoice)
	f.created = append(f.created, id)
	return payment.Invoice{ID: id, PayURL: "https://pay.example/" + id}, nil
}

// recordingNotifier captures every notification for assertions.
type recordingNotifier struct {
	deliveries []Delivery
	depleted   []int64
	drained    []int64
}

func (n *recordingNotifier) NotifyDelivery(_ context.Context, d Delivery) {
	n.deliveries = append(n.deliveries, d)
}

func (n *recordingNotifier) NotifyDepleted(_ context.Context, lotID int64, _ int) {
	n.depleted = append(n.depleted, lotID)
}

func (n *recordingNotifier) NotifyQueueDrained(_ context.Context, lotID int64, _, _ int) {
	n.drained = append(n.drained, lotID)
}
