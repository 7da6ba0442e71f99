package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/njoerd114/saleslive/internal/model"
	"github.com/njoerd114/saleslive/internal/state"
)

const (
	otelScope      = "saleslive/sync"
	spanPush       = "sync.push"
	spanRestore    = "sync.restore"
	metricPushed   = "saleslive.sync.bills.pushed"
	metricStale    = "saleslive.sync.bills.stale"
	metricRestored = "saleslive.sync.documents.restored"
	metricErrors   = "saleslive.sync.errors"
)

// Stats describes the outcome of a single push.
type Stats struct {
	// Pushed is the number of bills committed to the remote store.
	Pushed int
	// Marked is the number of pushed bills flipped to SYNCED locally.
	Marked int
	// Stale counts bills re-edited while the push was in flight. They stay
	// PENDING and go out with the next push.
	Stale int
}

// Option configures an [Engine].
type Option func(*Engine)

// DefaultBatchSize is the number of bills committed per atomic batch. It
// matches the Firestore per-commit write limit.
const DefaultBatchSize = 500

// WithBatchSize overrides [DefaultBatchSize]. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithClock overrides the time source used for syncedAt and restore markers.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine pushes pending local bills to the remote store and restores
// collections from it. Create one with [NewEngine] and start its worker with
// [Engine.Run].
type Engine struct {
	local  LocalStore
	remote RemoteStore
	conn   Connectivity
	log    *slog.Logger
	now    func() time.Time

	batchSize int

	// pushMu serialises pushes started by the worker and by direct
	// SyncPendingData callers.
	pushMu gosync.Mutex
	// queue holds at most one outstanding push request; further triggers
	// coalesce into it.
	queue chan struct{}

	// OTel instruments, never nil (no-op when telemetry is disabled).
	tracer      trace.Tracer
	cntPushed   metric.Int64Counter
	cntStale    metric.Int64Counter
	cntRestored metric.Int64Counter
	cntErrors   metric.Int64Counter
}

// NewEngine creates an Engine wired to the given stores and connectivity signal.
func NewEngine(local LocalStore, remote RemoteStore, conn Connectivity, logger *slog.Logger, opts ...Option) *Engine {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	e := &Engine{
		local:  local,
		remote: remote,
		conn:   conn,
		log:    logger,
		now:    model.Now,
		queue:  make(chan struct{}, 1),

		batchSize: DefaultBatchSize,

		tracer:      tracer,
		cntPushed:   mustCounter(metricPushed, "Number of bills committed to the remote store"),
		cntStale:    mustCounter(metricStale, "Number of pushed bills left pending because they changed mid-push"),
		cntRestored: mustCounter(metricRestored, "Number of documents restored from the remote store"),
		cntErrors:   mustCounter(metricErrors, "Number of failed remote operations during sync"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Trigger requests a background push. It never blocks: if a request is
// already queued the new one is folded into it.
func (e *Engine) Trigger() {
	select {
	case e.queue <- struct{}{}:
	default:
	}
}

// SyncPendingData uploads every PENDING bill and marks them SYNCED locally
// once the remote store acknowledges them. Bills go out in atomic batches of
// at most the configured batch size, oldest first; each batch is marked as
// soon as it is committed. When offline it returns immediately without
// touching the network. A failed batch leaves its bills and every later one
// PENDING.
func (e *Engine) SyncPendingData(ctx context.Context) (Stats, error) {
	var stats Stats
	if !e.conn.Online() {
		e.log.Debug("offline, skipping push")
		return stats, nil
	}

	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	ctx, span := e.tracer.Start(ctx, spanPush)
	defer span.End()

	pending, err := e.local.PendingBills(ctx)
	if err != nil {
		span.RecordError(err)
		return stats, fmt.Errorf("loading pending bills: %w", err)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	at := e.now()
	for start := 0; start < len(pending); start += e.batchSize {
		end := min(start+e.batchSize, len(pending))
		pushed, marked, err := e.pushBatch(ctx, pending[start:end], at)
		stats.Pushed += pushed
		stats.Marked += marked
		if err != nil {
			span.RecordError(err)
			e.recordPush(ctx, span, stats)
			return stats, err
		}
		stats.Stale += pushed - marked
	}

	e.recordPush(ctx, span, stats)
	e.log.Info("push complete", "pushed", stats.Pushed, "marked", stats.Marked, "stale", stats.Stale)
	return stats, nil
}

// pushBatch commits one batch and marks it synced. It returns the number of
// bills committed and the number flipped to SYNCED.
func (e *Engine) pushBatch(ctx context.Context, bills []*model.Bill, at time.Time) (int, int, error) {
	writes := make([]model.Write, 0, len(bills))
	refs := make([]state.BillRef, 0, len(bills))
	for _, b := range bills {
		doc := *b
		doc.SyncStatus = model.SyncSynced
		doc.SyncedAt = at
		writes = append(writes, model.Write{
			Collection: model.CollectionBills,
			ID:         b.ID,
			Op:         model.WriteSet,
			Data:       model.BillDocument(&doc),
		})
		refs = append(refs, state.BillRef{ID: b.ID, Revision: b.Revision})
	}

	if err := e.remote.CommitBatch(ctx, writes); err != nil {
		e.cntErrors.Add(ctx, 1)
		return 0, 0, fmt.Errorf("committing %d pending bills: %w", len(writes), err)
	}
	marked, err := e.local.MarkBillsSynced(ctx, refs, at)
	if err != nil {
		return len(writes), 0, fmt.Errorf("marking pushed bills synced: %w", err)
	}
	return len(writes), marked, nil
}

func (e *Engine) recordPush(ctx context.Context, span trace.Span, stats Stats) {
	if stats.Pushed > 0 {
		e.cntPushed.Add(ctx, int64(stats.Pushed))
	}
	if stats.Stale > 0 {
		e.cntStale.Add(ctx, int64(stats.Stale))
	}
	span.SetAttributes(
		attribute.Int("sync.pushed", stats.Pushed),
		attribute.Int("sync.marked", stats.Marked),
		attribute.Int("sync.stale", stats.Stale),
	)
}

// Run drains push requests until ctx is cancelled. It pushes once at start if
// online, after every [Engine.Trigger], and on every offline → online edge.
func (e *Engine) Run(ctx context.Context) error {
	if e.conn.Online() {
		e.push(ctx, "startup")
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine shutting down")
			return ctx.Err()
		case <-e.queue:
			e.push(ctx, "queued")
		case <-e.conn.CameOnline():
			e.log.Info("connectivity restored, pushing pending bills")
			e.push(ctx, "online")
		}
	}
}

// push runs one background push. Failures leave bills PENDING for the next
// trigger; nothing is rescheduled here.
func (e *Engine) push(ctx context.Context, trigger string) {
	if _, err := e.SyncPendingData(ctx); err != nil {
		e.log.Warn("background push failed", "trigger", trigger, "error", err)
	}
}
