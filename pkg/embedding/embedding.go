// Package embedding turns ticket text into fixed-length vectors. Provider failures degrade to
// a deterministic local vector so indexing and search never stop.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zen-systems/triage/pkg/schema"
)

// DefaultDimension is the embedding length used when none is configured.
const DefaultDimension = 1536

// ErrEmptyText is returned for blank input, the only condition Generator refuses.
var ErrEmptyText = errors.New("empty text")

// Embedder produces a vector for one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// Generator wraps a primary Embedder and substitutes Fallback vectors on any failure.
type Generator struct {
	primary   Embedder
	dimension int
	logger    *slog.Logger
}

// NewGenerator creates a generator. A nil primary means permanent offline mode.
func NewGenerator(primary Embedder, dimension int, logger *slog.Logger) *Generator {
	if dimension <= 0 {
		if primary != nil && primary.Dimension() > 0 {
			dimension = primary.Dimension()
		} else {
			dimension = DefaultDimension
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{primary: primary, dimension: dimension, logger: logger}
}

// Dimension returns the length of every vector this generator returns.
func (g *Generator) Dimension() int {
	return g.dimension
}

// Model returns the primary model name, or "fallback" in offline mode.
func (g *Generator) Model() string {
	if g.primary == nil {
		return "fallback"
	}
	return g.primary.Model()
}

// Embed returns the primary provider's vector, or the fallback vector when the provider
// fails or answers with the wrong length. It does not retry.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if g.primary == nil {
		return Fallback(text, g.dimension), nil
	}

	start := time.Now()
	vec, err := g.primary.Embed(ctx, text)
	if err == nil && len(vec) != g.dimension {
		err = fmt.Errorf("dimension mismatch: got %d, want %d", len(vec), g.dimension)
	}
	if err != nil {
		g.logger.Warn("embedding provider failed, using fallback vector",
			slog.String("model", g.primary.Model()),
			slog.Int("text_len", len(text)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.String("error", err.Error()),
		)
		return Fallback(text, g.dimension), nil
	}
	return vec, nil
}

// TicketText is the canonical text embedded for a ticket.
func TicketText(t schema.Ticket) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(t.Title))
	if d := strings.TrimSpace(t.Description); d != "" {
		b.WriteString("\n\n")
		b.WriteString(d)
	}
	if c := strings.TrimSpace(t.Category); c != "" {
		b.WriteString("\n\nCategory: ")
		b.WriteString(c)
	}
	return b.String()
}
