package router

import (
	"sort"
	"strings"

	"github.com/zen-systems/triage/pkg/schema"
)

// Candidate is one department's standing in the arithmetic fallback.
type Candidate struct {
	DepartmentName string `json:"department_name"`
	DepartmentID   string `json:"department_id"`
	Score          int    `json:"score"`
	evaluation     *schema.Evaluation
}

// RankCandidates orders evaluations by interest times confidence, highest first. Equal
// scores are ordered by department name so the result never depends on arrival order.
// Nil evaluations are skipped.
func RankCandidates(evaluations []*schema.Evaluation) []Candidate {
	candidates := make([]Candidate, 0, len(evaluations))
	for _, e := range evaluations {
		if e == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			DepartmentName: e.DepartmentName,
			DepartmentID:   e.DepartmentID,
			Score:          e.Score(),
			evaluation:     e,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return strings.ToLower(candidates[i].DepartmentName) < strings.ToLower(candidates[j].DepartmentName)
		}
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// fallbackConfidence maps a joint score in [0,10000] to a confidence in [0,100], rounding
// half up.
func fallbackConfidence(score int) int {
	return schema.ClampScore((score + 50) / 100)
}
