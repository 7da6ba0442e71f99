package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/njoerd114/saleslive/internal/model"
	"github.com/njoerd114/saleslive/internal/state"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// --- Mock connectivity -------------------------------------------------------

type mockConn struct {
	mu     gosync.Mutex
	online bool
	edges  chan struct{}
}

func newMockConn(online bool) *mockConn {
	return &mockConn{online: online, edges: make(chan struct{}, 1)}
}

func (c *mockConn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *mockConn) CameOnline() <-chan struct{} { return c.edges }

func (c *mockConn) set(online bool) {
	c.mu.Lock()
	was := c.online
	c.online = online
	c.mu.Unlock()
	if online && !was {
		c.edges <- struct{}{}
	}
}

// --- Local store -------------------------------------------------------------

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// failingLocal wraps a LocalStore and fails MarkBillsSynced.
type failingLocal struct {
	LocalStore
}

var errDisk = errors.New("disk full")

func (failingLocal) MarkBillsSynced(context.Context, []state.BillRef, time.Time) (int, error) {
	return 0, errDisk
}

// --- Fixtures ----------------------------------------------------------------

var (
	fixedNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	clock    = WithClock(func() time.Time { return fixedNow })
)

func newBill(id, shopID, staffID string, created time.Time) *model.Bill {
	return &model.Bill{
		ID:            id,
		ShopID:        shopID,
		StaffID:       staffID,
		StaffName:     "Asha",
		Subtotal:      100,
		Discount:      10,
		Tax:           9,
		TotalAmount:   99,
		CreatedAt:     created,
		SyncStatus:    model.SyncPending,
		PaymentStatus: model.PaymentUnpaid,
		Items: []model.BillItem{
			{ID: id + "-1", BillID: id, Name: "Tea", Qty: 2, Rate: 50, LineTotal: 100},
		},
	}
}

func putBills(t *testing.T, s *state.Store, bills ...*model.Bill) {
	t.Helper()
	for _, b := range bills {
		if err := s.PutBill(context.Background(), b); err != nil {
			t.Fatalf("PutBill %s: %v", b.ID, err)
		}
	}
}

func mustBill(t *testing.T, s *state.Store, id string) *model.Bill {
	t.Helper()
	b, err := s.GetBill(context.Background(), id)
	if err != nil {
		t.Fatalf("GetBill %s: %v", id, err)
	}
	if b == nil {
		t.Fatalf("bill %s not found", id)
	}
	return b
}
