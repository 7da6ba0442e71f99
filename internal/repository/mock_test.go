package repository

import (
	"io"
	"log/slog"
	"path/filepath"
	gosync "sync"
	"testing"
	"time"

	"github.com/njoerd114/saleslive/internal/remote"
	"github.com/njoerd114/saleslive/internal/state"
	engine "github.com/njoerd114/saleslive/internal/sync"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fixedNow is mid-afternoon so that "today" windows are unambiguous.
var fixedNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

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
	defer c.mu.Unlock()
	c.online = online
}

// device is one installation: its own local store and engine, sharing a
// remote store with other devices.
type device struct {
	repo   *Repository
	store  *state.Store
	engine *engine.Engine
	conn   *mockConn
	now    time.Time
}

func newDevice(t *testing.T, rem *remote.Memory, online bool) *device {
	t.Helper()
	s, err := state.Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	d := &device{store: s, conn: newMockConn(online), now: fixedNow}
	clock := func() time.Time { return d.now }
	d.engine = engine.NewEngine(s, rem, d.conn, testLogger, engine.WithClock(clock))
	d.repo = New(s, d.engine, rem, d.conn, testLogger, WithClock(clock), WithLocation(time.UTC))
	return d
}
