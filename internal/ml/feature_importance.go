package ml

import (
	"sort"

	"sustainai/internal/features"
)

// Importance is the weight of one input feature.
type Importance struct {
	Feature features.Name `json:"feature"`
	Weight  float64       `json:"weight"`
}

// Report lists one Importance per feature, in canonical order unless it was
// produced by Ranked.
type Report struct {
	Items []Importance `json:"importances"`
}

func newReport(weights []float64) Report {
	names := features.Names()
	items := make([]Importance, len(names))
	for i, n := range names {
		items[i] = Importance{Feature: n, Weight: weights[i]}
	}
	return Report{Items: items}
}

func (r Report) clone() Report {
	return Report{Items: append([]Importance(nil), r.Items...)}
}

// Ranked returns a copy sorted by descending weight. Ties keep their
// canonical order.
func (r Report) Ranked() Report {
	out := r.clone()
	sort.SliceStable(out.Items, func(i, j int) bool {
		return out.Items[i].Weight > out.Items[j].Weight
	})
	return out
}

// Top returns the names of the n most important features.
func (r Report) Top(n int) []features.Name {
	ranked := r.Ranked().Items
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	result := make([]features.Name, n)
	for i := 0; i < n; i++ {
		result[i] = ranked[i].Feature
	}
	return result
}

// Weight returns the importance of the named feature.
func (r Report) Weight(n features.Name) (float64, bool) {
	for _, it := range r.Items {
		if it.Feature == n {
			return it.Weight, true
		}
	}
	return 0, false
}

// Total is the sum of all weights.
func (r Report) Total() float64 {
	var sum float64
	for _, it := range r.Items {
		sum += it.Weight
	}
	return sum
}
