package remote

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/njoerd114/saleslive/internal/model"
)

func TestMemory_GetMissingReturnsNil(t *testing.T) {
	m := NewMemory()
	doc, err := m.GetDocument(context.Background(), "bills", "nope")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc != nil {
		t.Errorf("doc = %v, want nil", doc)
	}
}

func TestMemory_SetCopiesAndNormalises(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	in := model.Document{"qty": 3, "items": []any{map[string]any{"n": 1}}}
	if err := m.SetDocument(ctx, "bills", "b1", in, false); err != nil {
		t.Fatalf("SetDocument: %v", err)
	}
	in["qty"] = 99

	got, err := m.GetDocument(ctx, "bills", "b1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got["qty"] != int64(3) {
		t.Errorf("qty = %#v, want int64(3)", got["qty"])
	}
	items := got["items"].([]any)
	if items[0].(map[string]any)["n"] != int64(1) {
		t.Errorf("nested n = %#v, want int64(1)", items[0])
	}
}

func TestMemory_MergeKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.SetDocument(ctx, "shops", "s1", model.Document{"shopName": "A", "ownerId": "u1"}, false)
	_ = m.SetDocument(ctx, "shops", "s1", model.Document{"shopName": "B"}, true)

	got := m.Doc("shops", "s1")
	if got["shopName"] != "B" || got["ownerId"] != "u1" {
		t.Errorf("merged doc = %v", got)
	}

	_ = m.SetDocument(ctx, "shops", "s1", model.Document{"shopName": "C"}, false)
	if _, ok := m.Doc("shops", "s1")["ownerId"]; ok {
		t.Error("non-merge set kept ownerId")
	}
}

func TestMemory_UpdateMissing(t *testing.T) {
	m := NewMemory()
	err := m.UpdateFields(context.Background(), "users", "u1", model.Document{"name": "x"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("err = %v, want NotFound", err)
	}
}

func TestMemory_QueryEquals(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.SetDocument(ctx, "bills", "b2", model.Document{"shopId": "s1"}, false)
	_ = m.SetDocument(ctx, "bills", "b1", model.Document{"shopId": "s1"}, false)
	_ = m.SetDocument(ctx, "bills", "b3", model.Document{"shopId": "s2"}, false)
	_ = m.SetDocument(ctx, "bills", "b4", model.Document{"shopId": []any{"s1"}}, false)

	docs, err := m.QueryEquals(ctx, "bills", "shopId", "s1")
	if err != nil {
		t.Fatalf("QueryEquals: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
}

func TestMemory_CommitBatchAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	writes := []model.Write{
		{Collection: "bills", ID: "b1", Op: model.WriteSet, Data: model.Document{"a": 1}},
		{Collection: "bills", ID: "b2", Op: model.WriteOp(42)},
	}
	if err := m.CommitBatch(ctx, writes); err == nil {
		t.Fatal("expected error for unknown op")
	}
	if m.Len("bills") != 0 {
		t.Errorf("partial batch applied: %d docs", m.Len("bills"))
	}

	writes[1].Op = model.WriteDelete
	if err := m.CommitBatch(ctx, writes); err != nil {
		t.Fatalf("CommitBatch: %v", err)
	}
	if m.Len("bills") != 1 || m.Commits() != 1 {
		t.Errorf("len = %d commits = %d", m.Len("bills"), m.Commits())
	}
}

func TestMemory_FailWith(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")
	m.FailWith(boom)

	if err := m.SetDocument(ctx, "x", "1", model.Document{}, false); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if m.Writes() != 0 {
		t.Errorf("writes = %d, want 0", m.Writes())
	}
	if m.Calls() != 1 {
		t.Errorf("calls = %d, want 1", m.Calls())
	}

	m.FailWith(nil)
	if err := m.SetDocument(ctx, "x", "1", model.Document{}, false); err != nil {
		t.Errorf("after recovery: %v", err)
	}
}

func TestMemory_OnCall(t *testing.T) {
	m := NewMemory()
	var ops []string
	m.OnCall(func(op string) { ops = append(ops, op) })
	_, _ = m.GetDocument(context.Background(), "x", "1")
	_ = m.DeleteDocument(context.Background(), "x", "1")
	if len(ops) != 2 || ops[0] != "get" || ops[1] != "delete" {
		t.Errorf("ops = %v", ops)
	}
}
