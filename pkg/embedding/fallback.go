package embedding

import (
	"hash/fnv"
	"math"
)

const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
)

// Fallback derives a deterministic unit vector of length n from text. The FNV-1a hash of
// the text seeds a linear congruential generator whose outputs are mapped into [-1,1].
func Fallback(text string, n int) []float32 {
	if n <= 0 {
		n = DefaultDimension
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	state := h.Sum32()

	vec := make([]float32, n)
	var sum float64
	for i := range vec {
		state = state*lcgMultiplier + lcgIncrement
		v := float64(state)/float64(math.MaxUint32)*2 - 1
		vec[i] = float32(v)
		sum += v * v
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
