// Package repository is the entity API the UI layer calls. Every operation
// succeeds or fails against the local store first; remote writes are
// best-effort and never undo or mask a local success.
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/njoerd114/saleslive/internal/insights"
	"github.com/njoerd114/saleslive/internal/model"
	"github.com/njoerd114/saleslive/internal/state"
	engine "github.com/njoerd114/saleslive/internal/sync"
)

var (
	// ErrNotFound is returned by mutations that target an unknown record.
	// Reads report absence with a nil result instead.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when an invite targets an email that a
	// local user already has.
	ErrDuplicateEmail = errors.New("email already in use")
)

// Syncer is the part of the sync engine the repositories drive.
// Implemented by [engine.Engine].
type Syncer interface {
	Trigger()
	SyncPendingData(ctx context.Context) (engine.Stats, error)
	RestoreBills(ctx context.Context, field, value string) (int, error)
	RestoreProducts(ctx context.Context, shopID string) (int, error)
	RestoreShop(ctx context.Context, shopID string) (*model.Shop, error)
	RestoreUser(ctx context.Context, userID string) (*model.User, error)
}

// Option configures a [Repository].
type Option func(*Repository)

// WithClock overrides the time source for createdAt and syncedAt values and
// for calendar-day analytics.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithLocation sets the time zone that defines calendar days in analytics.
// The default is [time.Local].
func WithLocation(loc *time.Location) Option {
	return func(r *Repository) { r.loc = loc }
}

// WithSummarizer sets the chart summary writer. Without it every summary is
// the missing-key message.
func WithSummarizer(s *insights.Summarizer) Option {
	return func(r *Repository) { r.insights = s }
}

// Repository implements the bill, shop, product, user and staff operations.
type Repository struct {
	store  *state.Store
	sync   Syncer
	remote engine.RemoteStore
	conn   engine.Connectivity
	log    *slog.Logger
	now    func() time.Time
	loc    *time.Location

	insights *insights.Summarizer
}

// New returns a Repository over the given local store, sync engine, remote
// store and connectivity signal.
func New(store *state.Store, syncer Syncer, remote engine.RemoteStore, conn engine.Connectivity, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{
		store:  store,
		sync:   syncer,
		remote: remote,
		conn:   conn,
		log:    logger,
		now:    model.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.insights == nil {
		r.insights = insights.New(nil, logger)
	}
	return r
}

// SyncPendingData pushes every pending bill now. Offline it returns
// immediately.
func (r *Repository) SyncPendingData(ctx context.Context) (engine.Stats, error) {
	return r.sync.SyncPendingData(ctx)
}

// PendingSyncCount returns the number of bills of shopID awaiting upload; an
// empty shopID counts every shop.
func (r *Repository) PendingSyncCount(ctx context.Context, shopID string) (int, error) {
	return r.store.CountPending(ctx, shopID)
}

// remoteWrite runs fn against the remote store when online. Failures are
// logged and swallowed; it reports whether the write was acknowledged.
func (r *Repository) remoteWrite(ctx context.Context, what string, fn func(ctx context.Context) error) bool {
	if !r.conn.Online() {
		r.log.Debug("offline, remote write deferred", "op", what)
		return false
	}
	if err := fn(ctx); err != nil {
		r.log.Warn("remote write failed, saved locally only", "op", what, "error", err)
		return false
	}
	return true
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
