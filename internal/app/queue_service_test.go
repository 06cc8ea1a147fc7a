package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lotvend/lotvend/internal/clock"
	"github.com/lotvend/lotvend/internal/domain"
)

func newQueueFixture() (*fakeLedger, *fakeQueueRepo, *recordingNotifier, *QueueService) {
	ledger := newFakeLedger()
	repo := newFakeQueueRepo()
	notifier := &recordingNotifier{}
	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	alloc := NewAllocator(ledger, clk)
	svc := NewQueueService(repo, ledger, alloc, notifier, clk)
	return ledger, repo, notifier, svc
}

func TestQueueServiceDrain(t *testing.T) {
	ctx := context.Background()

	t.Run("serves waiting buyer on replenishment", func(t *testing.T) {
		ledger, _, _, svc := newQueueFixture()
		lotID := ledger.addLot("vpn-basic", 5)

		if _, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: 100, LotID: lotID, Method: domain.MethodProvider}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}

		ledger.addCredential(lotID, "user:pass1")
		served, err := svc.Drain(ctx, lotID)
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		if len(served) != 1 {
			t.Fatalf("served = %d, want 1", len(served))
		}
		if served[0].BuyerID != 100 || served[0].Payload != "user:pass1" {
			t.Errorf("delivery = %+v", served[0])
		}
	})

	t.Run("paid bucket drains before pending", func(t *testing.T) {
		ledger, _, _, svc := newQueueFixture()
		lotID := ledger.addLot("vpn-basic", 5)

		// Pending buyer arrived first, paid buyer second.
		if _, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: 1, LotID: lotID}); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: 2, LotID: lotID, Status: domain.QueueStatusPaid}); err != nil {
			t.Fatal(err)
		}

		ledger.addCredential(lotID, "a")
		ledger.addCredential(lotID, "b")
		served, err := svc.Drain(ctx, lotID)
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		if len(served) != 2 {
			t.Fatalf("served = %d, want 2", len(served))
		}
		if served[0].BuyerID != 2 {
			t.Errorf("first delivery went to buyer %d, want paid buyer 2", served[0].BuyerID)
		}
		if served[1].BuyerID != 1 {
			t.Errorf("second delivery went to buyer %d, want 1", served[1].BuyerID)
		}
	})

	t.Run("fifo within a bucket", func(t *testing.T) {
		ledger, _, _, svc := newQueueFixture()
		lotID := ledger.addLot("vpn-basic", 5)

		for _, buyer := range []int64{10, 11, 12} {
			if _, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: buyer, LotID: lotID, Status: domain.QueueStatusPaid}); err != nil {
				t.Fatal(err)
			}
		}
		for i := 0; i < 3; i++ {
			ledger.addCredential(lotID, "c")
		}

		served, err := svc.Drain(ctx, lotID)
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		got := make([]int64, len(served))
		for i, d := range served {
			got[i] = d.BuyerID
		}
		want := []int64{10, 11, 12}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("delivery order = %v, want %v", got, want)
			}
		}
	})

	t.Run("limited by available stock", func(t *testing.T) {
		ledger, repo, _, svc := newQueueFixture()
		lotID := ledger.addLot("vpn-basic", 5)

		for _, buyer := range []int64{1, 2, 3} {
			if _, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: buyer, LotID: lotID, Status: domain.QueueStatusPaid}); err != nil {
				t.Fatal(err)
			}
		}
		ledger.addCredential(lotID, "only-one")

		served, err := svc.Drain(ctx, lotID)
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		if len(served) != 1 {
			t.Fatalf("served = %d, want 1", len(served))
		}
		remaining, _ := repo.Size(ctx, lotID)
		if remaining != 2 {
			t.Errorf("remaining queue = %d, want 2", remaining)
		}
	})

	t.Run("empty lot is a no-op", func(t *testing.T) {
		ledger, _, notifier, svc := newQueueFixture()
		lotID := ledger.addLot("vpn-basic", 5)
		if _, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: 1, LotID: lotID, Status: domain.QueueStatusPaid}); err != nil {
			t.Fatal(err)
		}

		served, err := svc.Drain(ctx, lotID)
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		if served != nil {
			t.Errorf("served = %v, want none", served)
		}
		if len(notifier.deliveries) != 0 {
			t.Errorf("unexpected notifications: %v", notifier.deliveries)
		}
	})

	t.Run("allocation failure stops the pass", func(t *testing.T) {
		ledger, repo, _, svc := newQueueFixture()
		lotID := ledger.addLot("vpn-basic", 5)

		for _, buyer := range []int64{1, 2} {
			if _, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: buyer, LotID: lotID, Status: domain.QueueStatusPaid}); err != nil {
				t.Fatal(err)
			}
		}
		ledger.addCredential(lotID, "c1")
		ledger.addCredential(lotID, "c2")
		ledger.claimErr = errors.New("pool exhausted")

		served, err := svc.Drain(ctx, lotID)
		if err == nil {
			t.Fatal("expected error")
		}
		if len(served) != 0 {
			t.Errorf("served = %d, want 0", len(served))
		}
		// Nobody skipped ahead: both entries still queued.
		remaining, _ := repo.Size(ctx, lotID)
		if remaining != 2 {
			t.Errorf("remaining = %d, want 2", remaining)
		}
	})

	t.Run("mid-drain depletion notifies operator", func(t *testing.T) {
		ledger, _, notifier, svc := newQueueFixture()
		lotID := ledger.addLot("vpn-basic", 5)

		for _, buyer := range []int64{1, 2} {
			if _, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: buyer, LotID: lotID, Status: domain.QueueStatusPaid}); err != nil {
				t.Fatal(err)
			}
		}
		ledger.addCredential(lotID, "last-unit")

		served, err := svc.Drain(ctx, lotID)
		if err != nil {
			t.Fatalf("drain: %v", err)
		}
		if len(served) != 1 {
			t.Fatalf("served = %d, want 1", len(served))
		}
		if len(notifier.depleted) != 1 || notifier.depleted[0] != lotID {
			t.Errorf("depleted notifications = %v, want [%d]", notifier.depleted, lotID)
		}
		if len(notifier.drained) != 1 {
			t.Errorf("drained notifications = %v, want one", notifier.drained)
		}
	})
}

func TestQueueServiceMarkPaid(t *testing.T) {
	ctx := context.Background()
	ledger, _, _, svc := newQueueFixture()
	lotID := ledger.addLot("vpn-basic", 5)

	if _, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: 7, LotID: lotID, InvoiceID: "inv-7"}); err != nil {
		t.Fatal(err)
	}

	ok, err := svc.MarkPaid(ctx, 7, lotID, "inv-7")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !ok {
		t.Fatal("first confirmation should flip the entry")
	}

	ok, err = svc.MarkPaid(ctx, 7, lotID, "inv-7")
	if err != nil {
		t.Fatalf("second mark paid: %v", err)
	}
	if ok {
		t.Error("second confirmation of the same reference should be a no-op")
	}
}

func TestQueueServiceResolveEntry(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers when stock exists", func(t *testing.T) {
		ledger, repo, _, svc := newQueueFixture()
		lotID := ledger.addLot("vpn-basic", 5)
		ledger.addCredential(lotID, "cred")
		id, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: 9, LotID: lotID, Status: domain.QueueStatusPaid})
		if err != nil {
			t.Fatal(err)
		}

		d, delivered, err := svc.ResolveEntry(ctx, id)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !delivered {
			t.Fatal("expected delivery")
		}
		if d.BuyerID != 9 || d.Payload != "cred" {
			t.Errorf("delivery = %+v", d)
		}
		entry, _ := repo.Get(ctx, id)
		if entry.Status != domain.QueueStatusFulfilled {
			t.Errorf("entry status = %s, want fulfilled", entry.Status)
		}
	})

	t.Run("leaves entry queued when lot empty", func(t *testing.T) {
		ledger, repo, _, svc := newQueueFixture()
		lotID := ledger.addLot("vpn-basic", 5)
		id, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: 9, LotID: lotID, Status: domain.QueueStatusPaid})
		if err != nil {
			t.Fatal(err)
		}

		_, delivered, err := svc.ResolveEntry(ctx, id)
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if delivered {
			t.Fatal("no stock, nothing should be delivered")
		}
		entry, _ := repo.Get(ctx, id)
		if entry.Status != domain.QueueStatusPaid {
			t.Errorf("entry status = %s, want paid", entry.Status)
		}
	})

	t.Run("fulfilled entry is terminal", func(t *testing.T) {
		ledger, _, _, svc := newQueueFixture()
		lotID := ledger.addLot("vpn-basic", 5)
		ledger.addCredential(lotID, "cred")
		id, err := svc.Enqueue(ctx, EnqueueInput{BuyerID: 9, LotID: lotID, Status: domain.QueueStatusPaid})
		if err != nil {
			t.Fatal(err)
		}
		if _, _, err := svc.ResolveEntry(ctx, id); err != nil {
			t.Fatal(err)
		}

		ledger.addCredential(lotID, "another")
		_, _, err = svc.ResolveEntry(ctx, id)
		if !errors.Is(err, domain.ErrAlreadyFulfilled) {
			t.Errorf("err = %v, want ErrAlreadyFulfilled", err)
		}
	})
}
