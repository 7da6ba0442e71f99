// Package insights writes short natural-language summaries of a shop's
// sales charts using a generative language model.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind selects which chart a summary describes.
type Kind string

const (
	// KindRevenue summarises the seven-day revenue chart.
	KindRevenue Kind = "revenue"
	// KindProducts summarises the top-selling products chart.
	KindProducts Kind = "products"
)

// Messages returned in place of a generated summary.
const (
	MsgMissingKey = "Missing API Key. Set ai.api_key or GEMINI_API_KEY."
	MsgQuota      = "AI Busy: Quota limit reached. Please wait a minute."
	msgErrorFmt   = "AI Error: %s"
)

// ErrUnknownKind is returned for a [Kind] other than revenue or products.
var ErrUnknownKind = errors.New("unknown summary kind")

// Generator turns a prompt into text. Implemented by [Gemini].
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Summary is the result of [Summarizer.Summarize]. Generated is false when
// Text is one of the fallback messages.
type Summary struct {
	Kind      Kind   `json:"kind"`
	Text      string `json:"text"`
	Generated bool   `json:"generated"`
}

// Option configures a [Summarizer].
type Option func(*Summarizer)

// WithCurrency sets the currency symbol the model is told to use.
// The default is "₹".
func WithCurrency(symbol string) Option {
	return func(s *Summarizer) { s.currency = symbol }
}

// Summarizer builds prompts for chart data and maps model failures to short
// user-facing messages.
type Summarizer struct {
	gen      Generator
	log      *slog.Logger
	currency string
}

// New returns a Summarizer. A nil gen means no API key is configured, and
// every summary is [MsgMissingKey].
func New(gen Generator, logger *slog.Logger, opts ...Option) *Summarizer {
	s := &Summarizer{gen: gen, log: logger, currency: "₹"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a model is configured.
func (s *Summarizer) Enabled() bool { return s.gen != nil }

// Summarize asks the model for a two-sentence summary of data. Model
// failures never surface as errors; they come back as fallback text with
// Generated false. Only an unknown kind or a marshal failure is an error.
func (s *Summarizer) Summarize(ctx context.Context, kind Kind, data any) (*Summary, error) {
	prompt, err := s.prompt(kind, data)
	if err != nil {
		return nil, err
	}
	if s.gen == nil {
		return &Summary{Kind: kind, Text: MsgMissingKey}, nil
	}

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.log.Warn("summary generation failed", "kind", kind, "error", err)
		if isQuota(err) {
			return &Summary{Kind: kind, Text: MsgQuota}, nil
		}
		return &Summary{Kind: kind, Text: fmt.Sprintf(msgErrorFmt, err.Error())}, nil
	}
	return &Summary{Kind: kind, Text: strings.TrimSpace(text), Generated: true}, nil
}

func (s *Summarizer) prompt(kind Kind, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding %s data: %w", kind, err)
	}
	currency := fmt.Sprintf("IMPORTANT: All currency is in %s. Use '%s' symbol.", currencyName(s.currency), s.currency)

	switch kind {
	case KindRevenue:
		return fmt.Sprintf("Analyze this revenue data: %s.\n"+
			"Write a short, encouraging 2-sentence summary for the shop owner.\n"+
			"Mention the trend and the peak day.\n%s\nMax 40 words.", raw, currency), nil
	case KindProducts:
		return fmt.Sprintf("Analyze this top-selling product data: %s.\n"+
			"Write a short 2-sentence summary. Identify the winner and suggest a restocking action.\n"+
			"%s\nMax 40 words.", raw, currency), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func currencyName(symbol string) string {
	switch symbol {
	case "₹":
		return "Indian Rupees (₹)"
	case "$":
		return "US Dollars ($)"
	case "€":
		return "Euros (€)"
	default:
		return symbol
	}
}

// isQuota reports whether err is a rate or quota rejection. The REST
// transport only carries the HTTP status in the message.
func isQuota(err error) bool {
	if status.Code(err) == codes.ResourceExhausted {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "quota")
}
