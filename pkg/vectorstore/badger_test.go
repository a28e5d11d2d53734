package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/triage/pkg/schema"
)

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := OpenBadger(BadgerOptions{Path: dir})
	require.NoError(t, err)
	s, err := New(ctx, backend, nil)
	require.NoError(t, err)

	_, err = s.Upsert(ctx, "t1", []float32{1, 0, 0}, ticket("t1", "IT", schema.StatusResolved))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "t2", []float32{0, 1, 0}, ticket("t2", "HR", schema.StatusOpen))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	backend, err = OpenBadger(BadgerOptions{Path: dir})
	require.NoError(t, err)
	s, err = New(ctx, backend, nil)
	require.NoError(t, err)
	defer s.Close()

	rec, ok, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, rec.Vector)
	assert.Equal(t, "IT", rec.Metadata.DepartmentName)
	assert.Equal(t, TierFull, rec.Tier)

	_, err = s.Upsert(ctx, "t3", []float32{0, 0, 1}, ticket("t3", "IT", schema.StatusOpen))
	require.NoError(t, err)
	rec, _, err = s.Get(ctx, "t3")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), rec.Seq, "sequence restored on open")

	matches, err := s.Query(ctx, []float32{1, 0, 0}, Filter{DepartmentName: "IT"}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "t1", matches[0].Record.Key)
}

func TestBadgerMissingKey(t *testing.T) {
	backend, err := OpenBadger(BadgerOptions{InMemory: true})
	require.NoError(t, err)
	defer backend.Close()

	_, ok, err := backend.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBadgerQuotaDegrades(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenBadger(BadgerOptions{InMemory: true, MaxRecordBytes: 1000})
	require.NoError(t, err)
	s, err := New(ctx, backend, nil)
	require.NoError(t, err)
	defer s.Close()

	full := vec(1536, func(i int) float32 { return float32(i%11) / 11 })
	tier, err := s.Upsert(ctx, "big", full, ticket("big", "IT", schema.StatusOpen))
	require.NoError(t, err)
	assert.NotEqual(t, TierFull, tier)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpenBadgerRequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerOptions{})
	assert.Error(t, err)
}
