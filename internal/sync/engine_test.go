package sync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/njoerd114/saleslive/internal/model"
	"github.com/njoerd114/saleslive/internal/remote"
)

func TestSyncPendingData_PushesAndMarksSynced(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()
	putBills(t, store,
		newBill("b1", "s1", "u1", fixedNow.Add(-time.Hour)),
		newBill("b2", "s1", "u1", fixedNow.Add(-time.Minute)),
	)

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)
	stats, err := e.SyncPendingData(ctx)
	if err != nil {
		t.Fatalf("SyncPendingData: %v", err)
	}
	if stats.Pushed != 2 || stats.Marked != 2 || stats.Stale != 0 {
		t.Errorf("stats = %+v, want 2 pushed, 2 marked", stats)
	}
	if rem.Commits() != 1 {
		t.Errorf("commits = %d, want 1 batch", rem.Commits())
	}

	b := mustBill(t, store, "b1")
	if b.SyncStatus != model.SyncSynced {
		t.Errorf("local status = %s, want SYNCED", b.SyncStatus)
	}
	if !b.SyncedAt.Equal(fixedNow) {
		t.Errorf("syncedAt = %v, want %v", b.SyncedAt, fixedNow)
	}

	doc := rem.Doc(model.CollectionBills, "b1")
	if doc["syncStatus"] != string(model.SyncSynced) {
		t.Errorf("remote syncStatus = %v, want SYNCED", doc["syncStatus"])
	}
	if doc["syncedAt"] != fixedNow.UnixMilli() {
		t.Errorf("remote syncedAt = %v, want %d", doc["syncedAt"], fixedNow.UnixMilli())
	}
	got, err := model.BillFromDocument(doc)
	if err != nil {
		t.Fatalf("decoding remote bill: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Qty != 2 {
		t.Errorf("remote items = %+v", got.Items)
	}
}

func TestSyncPendingData_SecondPushWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()
	putBills(t, store, newBill("b1", "s1", "u1", fixedNow))

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)
	if _, err := e.SyncPendingData(ctx); err != nil {
		t.Fatalf("first push: %v", err)
	}
	writes := rem.Writes()

	stats, err := e.SyncPendingData(ctx)
	if err != nil {
		t.Fatalf("second push: %v", err)
	}
	if stats.Pushed != 0 {
		t.Errorf("second push pushed %d bills", stats.Pushed)
	}
	if rem.Writes() != writes {
		t.Errorf("remote writes grew from %d to %d", writes, rem.Writes())
	}
}

func TestSyncPendingData_OfflineMakesNoCall(t *testing.T) {
	store := newTestStore(t)
	rem := remote.NewMemory()
	putBills(t, store, newBill("b1", "s1", "u1", fixedNow))

	e := NewEngine(store, rem, newMockConn(false), testLogger, clock)
	stats, err := e.SyncPendingData(context.Background())
	if err != nil {
		t.Fatalf("SyncPendingData: %v", err)
	}
	if stats.Pushed != 0 {
		t.Errorf("pushed = %d while offline", stats.Pushed)
	}
	if rem.Calls() != 0 {
		t.Errorf("remote calls = %d while offline", rem.Calls())
	}
	if b := mustBill(t, store, "b1"); b.SyncStatus != model.SyncPending {
		t.Errorf("status = %s, want PENDING", b.SyncStatus)
	}
}

func TestSyncPendingData_CommitFailureLeavesPending(t *testing.T) {
	store := newTestStore(t)
	rem := remote.NewMemory()
	rem.FailWith(errors.New("unavailable"))
	putBills(t, store, newBill("b1", "s1", "u1", fixedNow))

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)
	if _, err := e.SyncPendingData(context.Background()); err == nil {
		t.Fatal("expected error from failed commit")
	}
	b := mustBill(t, store, "b1")
	if b.SyncStatus != model.SyncPending || !b.SyncedAt.IsZero() {
		t.Errorf("bill changed after failed push: %s %v", b.SyncStatus, b.SyncedAt)
	}
	if rem.Len(model.CollectionBills) != 0 {
		t.Errorf("remote holds %d bills after failed commit", rem.Len(model.CollectionBills))
	}
}

func TestSyncPendingData_LocalFailureReturned(t *testing.T) {
	store := newTestStore(t)
	putBills(t, store, newBill("b1", "s1", "u1", fixedNow))

	e := NewEngine(failingLocal{store}, remote.NewMemory(), newMockConn(true), testLogger, clock)
	_, err := e.SyncPendingData(context.Background())
	if !errors.Is(err, errDisk) {
		t.Errorf("err = %v, want errDisk", err)
	}
}

func TestSyncPendingData_EditDuringPushStaysPending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()
	putBills(t, store,
		newBill("b1", "s1", "u1", fixedNow),
		newBill("b2", "s1", "u1", fixedNow),
	)

	rem.OnCall(func(op string) {
		if op != "commit" {
			return
		}
		if _, err := store.SetPaymentStatus(ctx, "b1", model.PaymentPaid); err != nil {
			t.Errorf("SetPaymentStatus: %v", err)
		}
	})

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)
	stats, err := e.SyncPendingData(ctx)
	if err != nil {
		t.Fatalf("SyncPendingData: %v", err)
	}
	if stats.Stale != 1 || stats.Marked != 1 {
		t.Errorf("stats = %+v, want 1 marked, 1 stale", stats)
	}
	if b := mustBill(t, store, "b1"); b.SyncStatus != model.SyncPending {
		t.Errorf("edited bill status = %s, want PENDING", b.SyncStatus)
	}
	if b := mustBill(t, store, "b2"); b.SyncStatus != model.SyncSynced {
		t.Errorf("untouched bill status = %s, want SYNCED", b.SyncStatus)
	}

	rem.OnCall(nil)
	if _, err := e.SyncPendingData(ctx); err != nil {
		t.Fatalf("follow-up push: %v", err)
	}
	if doc := rem.Doc(model.CollectionBills, "b1"); doc["paymentStatus"] != string(model.PaymentPaid) {
		t.Errorf("remote paymentStatus = %v, want PAID", doc["paymentStatus"])
	}
}

func TestRun_PushesOnCameOnline(t *testing.T) {
	store := newTestStore(t)
	rem := remote.NewMemory()
	conn := newMockConn(false)
	putBills(t, store, newBill("b1", "s1", "u1", fixedNow))

	e := NewEngine(store, rem, conn, testLogger, clock)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	conn.set(true)
	waitFor(t, func() bool { return rem.Len(model.CollectionBills) == 1 })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}

func TestRun_DrainsTriggers(t *testing.T) {
	store := newTestStore(t)
	rem := remote.NewMemory()
	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	putBills(t, store, newBill("b1", "s1", "u1", fixedNow))
	e.Trigger()
	e.Trigger()
	waitFor(t, func() bool {
		b, err := store.GetBill(context.Background(), "b1")
		return err == nil && b != nil && b.SyncStatus == model.SyncSynced
	})
}

func TestTrigger_NeverBlocks(t *testing.T) {
	e := NewEngine(newTestStore(t), remote.NewMemory(), newMockConn(true), testLogger)
	for range 10 {
		e.Trigger()
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 2s")
}

func TestSyncPendingData_SplitsLargeBacklog(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()
	for i := 0; i < 5; i++ {
		putBills(t, store, newBill(fmt.Sprintf("b%d", i), "s1", "u1", fixedNow.Add(time.Duration(i)*time.Minute)))
	}

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock, WithBatchSize(2))
	stats, err := e.SyncPendingData(ctx)
	if err != nil {
		t.Fatalf("SyncPendingData: %v", err)
	}
	if stats.Pushed != 5 || stats.Marked != 5 {
		t.Errorf("stats = %+v, want 5 pushed and marked", stats)
	}
	if rem.Commits() != 3 {
		t.Errorf("commits = %d, want 3 batches", rem.Commits())
	}
	if n, _ := store.CountPending(ctx, ""); n != 0 {
		t.Errorf("pending after push = %d", n)
	}
}

func TestSyncPendingData_FailedBatchKeepsRestPending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()
	for i := 0; i < 5; i++ {
		putBills(t, store, newBill(fmt.Sprintf("b%d", i), "s1", "u1", fixedNow.Add(time.Duration(i)*time.Minute)))
	}

	commits := 0
	rem.OnCall(func(op string) {
		if op != "commit" {
			return
		}
		commits++
		if commits == 2 {
			rem.FailWith(errors.New("unavailable"))
		}
	})

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock, WithBatchSize(2))
	stats, err := e.SyncPendingData(ctx)
	if err == nil {
		t.Fatal("expected error from the failing batch")
	}
	if stats.Pushed != 2 || stats.Marked != 2 {
		t.Errorf("stats = %+v, want the first batch only", stats)
	}
	if n, _ := store.CountPending(ctx, ""); n != 3 {
		t.Errorf("pending = %d, want 3", n)
	}

	rem.OnCall(nil)
	rem.FailWith(nil)
	stats, err = e.SyncPendingData(ctx)
	if err != nil || stats.Pushed != 3 {
		t.Errorf("retry = %+v, %v; want 3 pushed", stats, err)
	}
	if n, _ := store.CountPending(ctx, ""); n != 0 {
		t.Errorf("pending after retry = %d", n)
	}
}
