package ml

import (
	"testing"

	"sustainai/internal/features"

	"github.com/stretchr/testify/assert"
)

func TestReport_Ranked(t *testing.T) {
	r := newReport([]float64{0.4, 0.1, 0.3, 0.1, 0.1})

	ranked := r.Ranked()
	want := []features.Name{features.Temperature, features.Time, features.Pressure, features.Humidity, features.PH}
	for i, it := range ranked.Items {
		assert.Equal(t, want[i], it.Feature, "position %d", i)
	}

	// the source report keeps canonical order
	assert.Equal(t, features.Pressure, r.Items[1].Feature)
}

func TestReport_RankedTiesKeepCanonicalOrder(t *testing.T) {
	r := newReport([]float64{0, 0, 0, 0, 0})
	assert.Equal(t, r.Items, r.Ranked().Items)

	r = newReport([]float64{0.1, 0.3, 0.1, 0.3, 0.2})
	assert.Equal(t,
		[]features.Name{features.Pressure, features.Humidity, features.PH, features.Temperature, features.Time},
		r.Top(5))
}

func TestReport_Top(t *testing.T) {
	r := newReport([]float64{0.4, 0.1, 0.3, 0.1, 0.1})

	assert.Equal(t, []features.Name{features.Temperature, features.Time}, r.Top(2))
	assert.Len(t, r.Top(10), features.Count)
	assert.Empty(t, r.Top(0))
	assert.Empty(t, r.Top(-1))
}

func TestReport_WeightAndTotal(t *testing.T) {
	r := newReport([]float64{0.4, 0.1, 0.3, 0.1, 0.1})

	w, ok := r.Weight(features.Time)
	assert.True(t, ok)
	assert.Equal(t, 0.3, w)

	_, ok = r.Weight("viscosity")
	assert.False(t, ok)

	assert.InDelta(t, 1.0, r.Total(), 1e-9)
}
