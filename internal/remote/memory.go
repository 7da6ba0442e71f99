package remote

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/njoerd114/saleslive/internal/model"
)

// Memory is an in-process RemoteStore. Values are deep-copied on the way in
// and out and whole numbers are normalised to int64, matching what the
// Firestore client hands back. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	colls   map[string]map[string]model.Document
	fail    error
	hook    func(op string)
	calls   int
	writes  int
	commits int
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{colls: make(map[string]map[string]model.Document)}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// OnCall registers fn to run at the start of every call, before the store
// lock is taken. Pass nil to remove it.
func (m *Memory) OnCall(fn func(op string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// Calls returns the number of calls received, failed ones included.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Writes returns the number of documents written or deleted so far.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Commits returns the number of successful batch commits.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Doc returns a copy of collection/id, or nil. It bypasses failure injection
// and counters.
func (m *Memory) Doc(collection, id string) model.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.colls[collection][id]
	if !ok {
		return nil
	}
	return copyDoc(d)
}

// Len returns the number of documents in collection.
func (m *Memory) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.colls[collection])
}

// begin records a call and returns the injected failure, if any. The caller
// holds no lock; on success the lock is held and must be released.
func (m *Memory) begin(ctx context.Context, op string) error {
	m.mu.Lock()
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.calls++
	if m.fail != nil {
		err := m.fail
		m.mu.Unlock()
		return err
	}
	return nil
}

// GetDocument returns a copy of the document, or (nil, nil) when absent.
func (m *Memory) GetDocument(ctx context.Context, collection, id string) (model.Document, error) {
	if err := m.begin(ctx, "get"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	d, ok := m.colls[collection][id]
	if !ok {
		return nil, nil
	}
	return copyDoc(d), nil
}

// QueryEquals returns copies of every document whose field equals value,
// ordered by document id.
func (m *Memory) QueryEquals(ctx context.Context, collection, field string, value any) ([]model.Document, error) {
	if err := m.begin(ctx, "query"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()

	want := copyValue(value)
	ids := make([]string, 0, len(m.colls[collection]))
	for id, d := range m.colls[collection] {
		if equal(d[field], want) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]model.Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyDoc(m.colls[collection][id]))
	}
	return out, nil
}

// SetDocument replaces or merges collection/id.
func (m *Memory) SetDocument(ctx context.Context, collection, id string, data model.Document, merge bool) error {
	if err := m.begin(ctx, "set"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	m.apply(model.Write{Collection: collection, ID: id, Op: writeOp(merge), Data: data})
	return nil
}

// UpdateFields overwrites fields of an existing document and fails with
// NotFound when it does not exist.
func (m *Memory) UpdateFields(ctx context.Context, collection, id string, fields model.Document) error {
	if err := m.begin(ctx, "update"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	d, ok := m.colls[collection][id]
	if !ok {
		return status.Errorf(codes.NotFound, "%s/%s not found", collection, id)
	}
	for k, v := range fields {
		d[k] = copyValue(v)
	}
	m.writes++
	return nil
}

// DeleteDocument removes collection/id if present.
func (m *Memory) DeleteDocument(ctx context.Context, collection, id string) error {
	if err := m.begin(ctx, "delete"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	m.apply(model.Write{Collection: collection, ID: id, Op: model.WriteDelete})
	return nil
}

// CommitBatch applies all writes under one lock, so readers never observe a
// partial batch.
func (m *Memory) CommitBatch(ctx context.Context, writes []model.Write) error {
	if err := m.begin(ctx, "commit"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for _, w := range writes {
		if w.Op != model.WriteSet && w.Op != model.WriteMerge && w.Op != model.WriteDelete {
			return fmt.Errorf("unknown write op %d", w.Op)
		}
	}
	for _, w := range writes {
		m.apply(w)
	}
	m.commits++
	return nil
}

func (m *Memory) apply(w model.Write) {
	coll, ok := m.colls[w.Collection]
	if !ok {
		coll = make(map[string]model.Document)
		m.colls[w.Collection] = coll
	}
	m.writes++
	switch w.Op {
	case model.WriteDelete:
		delete(coll, w.ID)
	case model.WriteMerge:
		cur, ok := coll[w.ID]
		if !ok {
			cur = model.Document{}
			coll[w.ID] = cur
		}
		mergeInto(cur, w.Data)
	default:
		coll[w.ID] = copyDoc(w.Data)
	}
}

func writeOp(merge bool) model.WriteOp {
	if merge {
		return model.WriteMerge
	}
	return model.WriteSet
}

// mergeInto merges src into dst, descending into nested maps.
func mergeInto(dst map[string]any, src map[string]any) {
	for k, v := range src {
		if sub, ok := asMap(v); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				mergeInto(cur, sub)
				continue
			}
		}
		dst[k] = copyValue(v)
	}
}

func copyDoc(d model.Document) model.Document {
	out := make(model.Document, len(d))
	for k, v := range d {
		out[k] = copyValue(v)
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case model.Document:
		return m, true
	default:
		return nil, false
	}
}

func copyValue(v any) any {
	if m, ok := asMap(v); ok {
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[k] = copyValue(e)
		}
		return out
	}
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}
