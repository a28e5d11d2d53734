// Package vectorstore keeps one embedding record per ticket and answers cosine top-K queries.
// Under capacity pressure a record is stored with a shortened vector, then without one,
// but never dropped.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zen-systems/triage/pkg/schema"
)

// ReducedDimension is the vector length kept by the reduced tier.
const ReducedDimension = 100

// ErrCapacity is returned by a Backend that cannot hold a record of the given size.
var ErrCapacity = errors.New("storage capacity exceeded")

// ErrEmptyKey is returned when an upsert has no key.
var ErrEmptyKey = errors.New("empty record key")

// Tier is how much of a record's vector survived storage.
type Tier string

const (
	TierFull     Tier = "full"
	TierReduced  Tier = "reduced"
	TierMetadata Tier = "metadata"
)

// Record is one persisted ticket embedding. Metadata is the ticket snapshot at upsert time.
type Record struct {
	Key       string
	Vector    []float32
	Metadata  schema.Ticket
	Tier      Tier
	Seq       uint64
	UpdatedAt time.Time
}

// Size approximates the stored footprint of a record in bytes.
func (r Record) Size() int {
	m := r.Metadata
	return len(r.Key) + 4*len(r.Vector) + len(m.ID) + len(m.Title) + len(m.Description) +
		len(m.Category) + len(m.Priority) + len(m.Status) + len(m.DepartmentID) +
		len(m.DepartmentName) + len(m.RequesterID) + len(m.RequesterName)
}

// Backend persists records by key.
type Backend interface {
	// Put writes rec under rec.Key, replacing any previous value. It returns ErrCapacity
	// when the record does not fit.
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, key string) (Record, bool, error)
	// Scan calls fn for every record until fn returns false.
	Scan(ctx context.Context, fn func(Record) bool) error
	Close() error
}

// Filter narrows a query. Zero values match everything.
type Filter struct {
	DepartmentID   string
	DepartmentName string
	Statuses       []schema.Status
	ExcludeKeys    []string

	// Owner matches records attributed to the department by either its ID or its name.
	Owner schema.Department
}

func (f Filter) matches(rec Record) bool {
	if !ownedBy(rec.Metadata, f.Owner) {
		return false
	}
	if f.DepartmentID != "" && rec.Metadata.DepartmentID != f.DepartmentID {
		return false
	}
	if f.DepartmentName != "" && !strings.EqualFold(strings.TrimSpace(rec.Metadata.DepartmentName), strings.TrimSpace(f.DepartmentName)) {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if rec.Metadata.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, k := range f.ExcludeKeys {
		if rec.Key == k {
			return false
		}
	}
	return true
}

// Match is a query hit.
type Match struct {
	Record     Record
	Similarity float64
}

// Store layers upsert semantics, tiered degradation, and similarity search over a Backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time

	mu  sync.Mutex
	seq uint64
}

// New wraps a backend and restores the insertion counter from its records.
func New(ctx context.Context, backend Backend, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("vectorstore backend is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{backend: backend, logger: logger, now: time.Now}
	err := backend.Scan(ctx, func(rec Record) bool {
		if rec.Seq > s.seq {
			s.seq = rec.Seq
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("restore sequence: %w", err)
	}
	return s, nil
}

// Upsert stores the vector and metadata under key, replacing any earlier record. The first
// insert's sequence number is kept so ties rank by original insertion. It returns the tier
// the record was stored at.
func (s *Store) Upsert(ctx context.Context, key string, vector []float32, metadata schema.Ticket) (Tier, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", key, err)
	}
	seq := prev.Seq
	if !found {
		s.seq++
		seq = s.seq
	}

	vec := append([]float32(nil), vector...)
	rec := Record{Key: key, Metadata: metadata, Seq: seq, UpdatedAt: s.now()}

	tiers := []struct {
		tier Tier
		vec  []float32
	}{
		{TierFull, vec},
		{TierReduced, truncate(vec, ReducedDimension)},
		{TierMetadata, nil},
	}
	for _, t := range tiers {
		if t.tier == TierReduced && len(vec) <= ReducedDimension {
			continue
		}
		rec.Tier = t.tier
		rec.Vector = t.vec
		err = s.backend.Put(ctx, rec)
		if err == nil {
			if t.tier != TierFull {
				s.logger.Warn("vector stored degraded",
					slog.String("key", key),
					slog.String("tier", string(t.tier)),
					slog.Int("dimension", len(vector)),
				)
			}
			return t.tier, nil
		}
		if !errors.Is(err, ErrCapacity) {
			return "", fmt.Errorf("put %s: %w", key, err)
		}
	}
	return "", fmt.Errorf("put %s: %w", key, err)
}

// Query returns up to k records matching filter, most similar first. Ties keep insertion
// order. Metadata-only records are included with similarity 0.
func (s *Store) Query(ctx context.Context, vector []float32, filter Filter, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	var matches []Match
	err := s.backend.Scan(ctx, func(rec Record) bool {
		if !filter.matches(rec) {
			return true
		}
		q := vector
		if rec.Tier == TierReduced {
			q = truncate(vector, len(rec.Vector))
		}
		score := 0.0
		if rec.Tier != TierMetadata {
			score = Similarity(q, rec.Vector)
		}
		matches = append(matches, Match{Record: rec, Similarity: score})
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Record.Seq < matches[j].Record.Seq
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Get returns the record stored under key.
func (s *Store) Get(ctx context.Context, key string) (Record, bool, error) {
	return s.backend.Get(ctx, key)
}

// List returns every record in insertion order.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var out []Record
	err := s.backend.Scan(ctx, func(rec Record) bool {
		out = append(out, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Len returns the number of stored records.
func (s *Store) Len(ctx context.Context) (int, error) {
	n := 0
	err := s.backend.Scan(ctx, func(Record) bool {
		n++
		return true
	})
	return n, err
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Similarity is the cosine of the angle between a and b, 0 when either has zero norm.
// Vectors of different length are compared over their common prefix.
func Similarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim))
}

func truncate(v []float32, n int) []float32 {
	if len(v) <= n {
		return v
	}
	return v[:n:n]
}

func ownedBy(t schema.Ticket, d schema.Department) bool {
	if d.ID == "" && strings.TrimSpace(d.Name) == "" {
		return true
	}
	if d.ID != "" && t.DepartmentID == d.ID {
		return true
	}
	name := strings.TrimSpace(d.Name)
	return name != "" && strings.EqualFold(strings.TrimSpace(t.DepartmentName), name)
}
