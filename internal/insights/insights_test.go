package insights

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockGenerator struct {
	text    string
	err     error
	prompts []string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.text, m.err
}

type day struct {
	Date    string  `json:"date"`
	Revenue float64 `json:"revenue"`
}

func TestSummarize_Generated(t *testing.T) {
	gen := &mockGenerator{text: "  Sales rose all week, peaking on Friday.\n"}
	s := New(gen, testLogger)

	got, err := s.Summarize(context.Background(), KindRevenue, []day{{"2026-03-13", 120}, {"2026-03-14", 340}})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if !got.Generated || got.Text != "Sales rose all week, peaking on Friday." {
		t.Errorf("summary = %+v", got)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("prompts = %d, want 1", len(gen.prompts))
	}
	p := gen.prompts[0]
	for _, want := range []string{`"revenue":340`, "peak day", "Indian Rupees (₹)", "Max 40 words"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestSummarize_ProductsPrompt(t *testing.T) {
	gen := &mockGenerator{text: "Tea leads."}
	s := New(gen, testLogger, WithCurrency("$"))

	if _, err := s.Summarize(context.Background(), KindProducts, []map[string]any{{"name": "Tea", "qty": 9}}); err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	p := gen.prompts[0]
	if !strings.Contains(p, "restocking") || !strings.Contains(p, "US Dollars ($)") {
		t.Errorf("prompt = %s", p)
	}
}

func TestSummarize_MissingKey(t *testing.T) {
	s := New(nil, testLogger)
	if s.Enabled() {
		t.Error("Enabled() = true without a generator")
	}
	got, err := s.Summarize(context.Background(), KindRevenue, []day{})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got.Generated || got.Text != MsgMissingKey {
		t.Errorf("summary = %+v", got)
	}
}

func TestSummarize_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "slow down"), MsgQuota},
		{"http 429", errors.New("googleapi: Error 429: too many requests"), MsgQuota},
		{"quota message", errors.New("Quota exceeded for metric"), MsgQuota},
		{"other", errors.New("permission denied"), "AI Error: permission denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&mockGenerator{err: tt.err}, testLogger)
			got, err := s.Summarize(context.Background(), KindProducts, nil)
			if err != nil {
				t.Fatalf("Summarize: %v", err)
			}
			if got.Generated || got.Text != tt.want {
				t.Errorf("summary = %+v, want text %q", got, tt.want)
			}
		})
	}
}

func TestSummarize_UnknownKind(t *testing.T) {
	gen := &mockGenerator{text: "x"}
	s := New(gen, testLogger)
	_, err := s.Summarize(context.Background(), Kind("weather"), nil)
	if !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
	if len(gen.prompts) != 0 {
		t.Error("generator called for an unknown kind")
	}
}

func TestNewGemini_RequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
