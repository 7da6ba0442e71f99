package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/njoerd114/saleslive/internal/model"
	"github.com/njoerd114/saleslive/internal/remote"
)

func seedRemoteBill(t *testing.T, rem *remote.Memory, b *model.Bill) {
	t.Helper()
	b.SyncStatus = model.SyncSynced
	b.SyncedAt = b.CreatedAt
	if err := rem.SetDocument(context.Background(), model.CollectionBills, b.ID, model.BillDocument(b), false); err != nil {
		t.Fatalf("seeding remote: %v", err)
	}
}

func TestRestoreBills_PullsOncePerScope(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()
	seedRemoteBill(t, rem, newBill("b1", "s1", "u1", fixedNow.Add(-time.Hour)))
	seedRemoteBill(t, rem, newBill("b2", "s1", "u2", fixedNow))
	seedRemoteBill(t, rem, newBill("b3", "s2", "u3", fixedNow))

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)
	n, err := e.RestoreBills(ctx, FieldShopID, "s1")
	if err != nil {
		t.Fatalf("RestoreBills: %v", err)
	}
	if n != 2 {
		t.Errorf("restored %d bills, want 2", n)
	}
	b := mustBill(t, store, "b1")
	if b.SyncStatus != model.SyncSynced || len(b.Items) != 1 {
		t.Errorf("restored bill = %+v", b)
	}

	calls := rem.Calls()
	if _, err := e.RestoreBills(ctx, FieldShopID, "s1"); err != nil {
		t.Fatalf("second RestoreBills: %v", err)
	}
	if rem.Calls() != calls {
		t.Error("second restore of the same scope hit the remote store")
	}

	if _, ok, _ := store.SyncMarker(ctx, RestoreScope(model.CollectionBills, FieldShopID, "s1")); !ok {
		t.Error("no marker recorded after restore")
	}
}

func TestRestoreBills_KeepsLocalPending(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()

	remoteCopy := newBill("b1", "s1", "u1", fixedNow)
	seedRemoteBill(t, rem, remoteCopy)

	local := newBill("b1", "s1", "u1", fixedNow)
	local.PaymentStatus = model.PaymentPaid
	putBills(t, store, local)

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)
	n, err := e.RestoreBills(ctx, FieldShopID, "s1")
	if err != nil {
		t.Fatalf("RestoreBills: %v", err)
	}
	if n != 0 {
		t.Errorf("wrote %d bills over a pending local bill", n)
	}
	b := mustBill(t, store, "b1")
	if b.SyncStatus != model.SyncPending || b.PaymentStatus != model.PaymentPaid {
		t.Errorf("pending bill overwritten: %s %s", b.SyncStatus, b.PaymentStatus)
	}
}

func TestRestoreBills_OfflineSkipsWithoutMarker(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()
	seedRemoteBill(t, rem, newBill("b1", "s1", "u1", fixedNow))
	conn := newMockConn(false)

	e := NewEngine(store, rem, conn, testLogger, clock)
	n, err := e.RestoreBills(ctx, FieldStaffID, "u1")
	if err != nil || n != 0 {
		t.Fatalf("offline RestoreBills = %d, %v", n, err)
	}
	if rem.Calls() != 1 { // the seeding call only
		t.Errorf("remote calls = %d while offline", rem.Calls())
	}

	conn.set(true)
	n, err = e.RestoreBills(ctx, FieldStaffID, "u1")
	if err != nil || n != 1 {
		t.Errorf("online RestoreBills = %d, %v; want 1", n, err)
	}
}

func TestRestoreBills_RemoteFailureSwallowed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()
	rem.FailWith(errors.New("unavailable"))

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)
	n, err := e.RestoreBills(ctx, FieldShopID, "s1")
	if err != nil || n != 0 {
		t.Errorf("RestoreBills = %d, %v; want 0, nil", n, err)
	}
	if _, ok, _ := store.SyncMarker(ctx, RestoreScope(model.CollectionBills, FieldShopID, "s1")); ok {
		t.Error("marker recorded after failed restore")
	}
}

func TestRestoreProducts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()
	p := &model.Product{ID: "p1", ShopID: "s1", Name: "Tea", Price: 10, GST: 5}
	_ = rem.SetDocument(ctx, model.CollectionProducts, p.ID, model.ProductDocument(p), false)

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)
	n, err := e.RestoreProducts(ctx, "s1")
	if err != nil || n != 1 {
		t.Fatalf("RestoreProducts = %d, %v", n, err)
	}
	got, err := store.ProductsByShop(ctx, "s1")
	if err != nil || len(got) != 1 || got[0].Price != 10 {
		t.Errorf("local products = %+v, %v", got, err)
	}
}

func TestRestoreShopAndUser(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()
	shop := &model.Shop{ID: "s1", Name: "Corner", OwnerID: "u1", CreatedAt: fixedNow}
	user := &model.User{ID: "u1", Name: "Ravi", Email: "r@x.in", Role: model.RoleOwner, ShopID: "s1", IsActive: true, CreatedAt: fixedNow}
	_ = rem.SetDocument(ctx, model.CollectionShops, shop.ID, model.ShopDocument(shop), false)
	_ = rem.SetDocument(ctx, model.CollectionUsers, user.ID, model.UserDocument(user), false)

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)
	gotShop, err := e.RestoreShop(ctx, "s1")
	if err != nil || gotShop == nil || gotShop.Name != "Corner" {
		t.Fatalf("RestoreShop = %+v, %v", gotShop, err)
	}
	if local, _ := store.GetShop(ctx, "s1"); local == nil {
		t.Error("restored shop not stored locally")
	}

	gotUser, err := e.RestoreUser(ctx, "u1")
	if err != nil || gotUser == nil || gotUser.Role != model.RoleOwner {
		t.Fatalf("RestoreUser = %+v, %v", gotUser, err)
	}

	missing, err := e.RestoreShop(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("RestoreShop(missing) = %+v, %v; want nil, nil", missing, err)
	}
}

func TestRestoreBills_EmptyRemoteLeavesScopeUnmarked(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rem := remote.NewMemory()

	e := NewEngine(store, rem, newMockConn(true), testLogger, clock)
	n, err := e.RestoreBills(ctx, FieldShopID, "s1")
	if err != nil || n != 0 {
		t.Fatalf("RestoreBills on empty remote = %d, %v", n, err)
	}
	scope := RestoreScope(model.CollectionBills, FieldShopID, "s1")
	if _, ok, _ := store.SyncMarker(ctx, scope); ok {
		t.Error("marker recorded for an empty remote result")
	}

	seedRemoteBill(t, rem, newBill("b1", "s1", "u1", fixedNow))
	n, err = e.RestoreBills(ctx, FieldShopID, "s1")
	if err != nil || n != 1 {
		t.Errorf("RestoreBills after remote write = %d, %v; want 1", n, err)
	}
	if _, ok, _ := store.SyncMarker(ctx, scope); !ok {
		t.Error("no marker after a non-empty restore")
	}
}
