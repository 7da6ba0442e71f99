// Package remote provides the networked document store the sync engine
// pushes to and restores from.
//
// [Firestore] talks to Cloud Firestore through the Firebase Admin SDK.
// [Memory] keeps documents in process and backs tests and offline demos.
package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/njoerd114/saleslive/internal/model"
)

// emulatorEnv is read by the Firestore client to redirect traffic to a local
// emulator.
const emulatorEnv = "FIRESTORE_EMULATOR_HOST"

// maxBatchWrites is the per-transaction write limit of Firestore. The sync
// engine splits pushes into batches no larger than this.
const maxBatchWrites = 500

// Options configures the Firestore connection.
type Options struct {
	ProjectID       string
	CredentialsFile string
	EmulatorHost    string
	// Timeout bounds each remote call, retries included.
	Timeout time.Duration
	// MaxAttempts is the number of tries for transient failures.
	MaxAttempts int
}

// Firestore is a RemoteStore backed by Cloud Firestore.
type Firestore struct {
	client      *firestore.Client
	log         *slog.Logger
	timeout     time.Duration
	maxAttempts int
}

// NewFirestore initialises the Firebase app and returns a connected store.
// Credentials come from opts.CredentialsFile, or Application Default
// Credentials when it is empty.
func NewFirestore(ctx context.Context, opts Options, logger *slog.Logger) (*Firestore, error) {
	if opts.ProjectID == "" {
		return nil, errors.New("firestore project id is required")
	}
	if opts.EmulatorHost != "" {
		if err := os.Setenv(emulatorEnv, opts.EmulatorHost); err != nil {
			return nil, fmt.Errorf("setting %s: %w", emulatorEnv, err)
		}
		logger.Info("using firestore emulator", "host", opts.EmulatorHost)
	}

	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		if _, err := os.Stat(opts.CredentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: opts.ProjectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("app.Firestore: %w", err)
	}

	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	logger.Info("firestore client ready", "project_id", opts.ProjectID)
	return &Firestore{
		client:      client,
		log:         logger,
		timeout:     opts.Timeout,
		maxAttempts: opts.MaxAttempts,
	}, nil
}

// Close releases the underlying client.
func (f *Firestore) Close() error {
	return f.client.Close()
}

// do runs fn under the per-call timeout with retries on transient errors.
func (f *Firestore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	err := Retry(ctx, f.maxAttempts, IsTransient, func() error { return fn(ctx) })
	if err != nil {
		return fmt.Errorf("firestore %s: %w", op, err)
	}
	return nil
}

// GetDocument returns the document's fields, or (nil, nil) when it does not
// exist.
func (f *Firestore) GetDocument(ctx context.Context, collection, id string) (model.Document, error) {
	var doc model.Document
	err := f.do(ctx, "get "+collection, func(ctx context.Context) error {
		snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
		if status.Code(err) == codes.NotFound {
			doc = nil
			return nil
		}
		if err != nil {
			return err
		}
		doc = model.Document(snap.Data())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// QueryEquals returns every document of collection whose field equals value.
func (f *Firestore) QueryEquals(ctx context.Context, collection, field string, value any) ([]model.Document, error) {
	var docs []model.Document
	err := f.do(ctx, "query "+collection, func(ctx context.Context) error {
		docs = docs[:0]
		iter := f.client.Collection(collection).Where(field, "==", value).Documents(ctx)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				return err
			}
			docs = append(docs, model.Document(snap.Data()))
		}
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// SetDocument writes data to collection/id. With merge set only the given
// fields are overwritten; otherwise the document is replaced.
func (f *Firestore) SetDocument(ctx context.Context, collection, id string, data model.Document, merge bool) error {
	return f.do(ctx, "set "+collection, func(ctx context.Context) error {
		ref := f.client.Collection(collection).Doc(id)
		var err error
		if merge {
			_, err = ref.Set(ctx, plain(data), firestore.MergeAll)
		} else {
			_, err = ref.Set(ctx, plain(data))
		}
		return err
	})
}

// UpdateFields overwrites the given top-level fields of an existing document.
func (f *Firestore) UpdateFields(ctx context.Context, collection, id string, fields model.Document) error {
	if len(fields) == 0 {
		return nil
	}
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	return f.do(ctx, "update "+collection, func(ctx context.Context) error {
		_, err := f.client.Collection(collection).Doc(id).Update(ctx, updates)
		return err
	})
}

// DeleteDocument removes collection/id. Deleting a missing document succeeds.
func (f *Firestore) DeleteDocument(ctx context.Context, collection, id string) error {
	return f.do(ctx, "delete "+collection, func(ctx context.Context) error {
		_, err := f.client.Collection(collection).Doc(id).Delete(ctx)
		return err
	})
}

// CommitBatch applies writes in a single transaction: either all of them
// land or none do.
func (f *Firestore) CommitBatch(ctx context.Context, writes []model.Write) error {
	if len(writes) == 0 {
		return nil
	}
	if len(writes) > maxBatchWrites {
		return fmt.Errorf("batch of %d writes exceeds limit of %d", len(writes), maxBatchWrites)
	}
	return f.do(ctx, "commit", func(ctx context.Context) error {
		return f.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
			for _, w := range writes {
				ref := f.client.Collection(w.Collection).Doc(w.ID)
				var err error
				switch w.Op {
				case model.WriteSet:
					err = tx.Set(ref, plain(w.Data))
				case model.WriteMerge:
					err = tx.Set(ref, plain(w.Data), firestore.MergeAll)
				case model.WriteDelete:
					err = tx.Delete(ref)
				default:
					err = fmt.Errorf("unknown write op %d", w.Op)
				}
				if err != nil {
					return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, err)
				}
			}
			return nil
		})
	})
}

// plain converts a Document to the map type the Firestore client expects;
// MergeAll rejects named map types.
func plain(d model.Document) map[string]interface{} {
	return map[string]interface{}(d)
}
