package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/triage/pkg/schema"
)

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	s.calls++
	return s.vec, s.err
}

func (s *stubEmbedder) Model() string  { return "stub" }
func (s *stubEmbedder) Dimension() int { return len(s.vec) }

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestFallbackDeterministicUnitLength(t *testing.T) {
	a := Fallback("printer on floor 3 is jammed", 1536)
	b := Fallback("printer on floor 3 is jammed", 1536)

	require.Len(t, a, 1536)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
	for _, x := range a {
		assert.True(t, x >= -1 && x <= 1)
	}
}

func TestFallbackDistinctTexts(t *testing.T) {
	a := Fallback("vpn disconnects", 64)
	b := Fallback("payroll question", 64)
	assert.NotEqual(t, a, b)
}

func TestFallbackDefaultDimension(t *testing.T) {
	assert.Len(t, Fallback("x", 0), DefaultDimension)
}

func TestGeneratorUsesPrimary(t *testing.T) {
	primary := &stubEmbedder{vec: []float32{1, 0, 0}}
	g := NewGenerator(primary, 3, nil)

	vec, err := g.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
	assert.Equal(t, "stub", g.Model())
}

func TestGeneratorFallsBackOnError(t *testing.T) {
	primary := &stubEmbedder{vec: make([]float32, 8), err: errors.New("rate limited")}
	g := NewGenerator(primary, 8, nil)

	vec, err := g.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, Fallback("hello", 8), vec)
	assert.Equal(t, 1, primary.calls, "no retries")
}

func TestGeneratorFallsBackOnDimensionMismatch(t *testing.T) {
	primary := &stubEmbedder{vec: []float32{1, 2}}
	g := NewGenerator(primary, 4, nil)

	vec, err := g.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, Fallback("hello", 4), vec)
}

func TestGeneratorOfflineAndEmptyText(t *testing.T) {
	g := NewGenerator(nil, 0, nil)
	assert.Equal(t, DefaultDimension, g.Dimension())
	assert.Equal(t, "fallback", g.Model())

	_, err := g.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)

	vec, err := g.Embed(context.Background(), "offline")
	require.NoError(t, err)
	assert.Len(t, vec, DefaultDimension)
}

func TestNewFallbackProvider(t *testing.T) {
	e, err := New(Config{Provider: "fallback"})
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = New(Config{Provider: "bogus"})
	assert.Error(t, err)

	_, err = New(Config{Provider: "openai"})
	assert.Error(t, err, "missing key")
}

func TestDefaultDimensionFor(t *testing.T) {
	assert.Equal(t, 768, DefaultDimensionFor("ollama"))
	assert.Equal(t, 768, DefaultDimensionFor("google"))
	assert.Equal(t, DefaultDimension, DefaultDimensionFor("openai"))

	e, err := New(Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimension())
}

func TestTicketText(t *testing.T) {
	text := TicketText(schema.Ticket{Title: " VPN ", Description: "drops hourly", Category: "network"})
	assert.Equal(t, "VPN\n\ndrops hourly\n\nCategory: network", text)
}
