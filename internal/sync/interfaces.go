// Package sync implements the reconciliation between the device-local store
// and the remote document store.
//
// The package contains one component, [Engine], with two halves:
//
//   - push: every PENDING bill is uploaded in a single all-or-nothing batch
//     and then marked SYNCED locally. Pushes are requested with
//     [Engine.Trigger] and drained by one worker ([Engine.Run]), so at most
//     one push is in flight.
//   - restore: reads that find no restore marker for their key pull the
//     matching documents from the remote store into the local store once.
package sync

import (
	"context"
	"time"

	"github.com/njoerd114/saleslive/internal/model"
	"github.com/njoerd114/saleslive/internal/state"
)

// LocalStore provides the local store operations the engine needs.
// Implemented by [state.Store].
type LocalStore interface {
	PendingBills(ctx context.Context) ([]*model.Bill, error)
	MarkBillsSynced(ctx context.Context, refs []state.BillRef, at time.Time) (int, error)
	RestoreBills(ctx context.Context, bills []*model.Bill) (int, error)
	PutProducts(ctx context.Context, products []*model.Product) error
	PutShop(ctx context.Context, shop *model.Shop) error
	PutUser(ctx context.Context, u *model.User) error
	SyncMarker(ctx context.Context, scope string) (time.Time, bool, error)
	SetSyncMarker(ctx context.Context, scope string, at time.Time) error
}

// RemoteStore is the networked document database. Every call may fail or
// block on the network; a missing document is reported as (nil, nil).
// Implemented by [remote.Firestore].
type RemoteStore interface {
	GetDocument(ctx context.Context, collection, id string) (model.Document, error)
	QueryEquals(ctx context.Context, collection, field string, value any) ([]model.Document, error)
	SetDocument(ctx context.Context, collection, id string, data model.Document, merge bool) error
	UpdateFields(ctx context.Context, collection, id string, fields model.Document) error
	DeleteDocument(ctx context.Context, collection, id string) error
	// CommitBatch applies all writes or none of them.
	CommitBatch(ctx context.Context, writes []model.Write) error
}

// Connectivity reports whether the remote store is reachable.
// Implemented by [connectivity.Monitor].
type Connectivity interface {
	Online() bool
	// CameOnline delivers one value per offline → online transition.
	CameOnline() <-chan struct{}
}
