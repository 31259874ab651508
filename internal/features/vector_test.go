package features

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames_CanonicalOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Name{Temperature, Pressure, Time, Humidity, PH}, Names())
	assert.Len(t, Names(), Count)

	// the returned slice is a copy
	n := Names()
	n[0] = "mutated"
	assert.Equal(t, Temperature, Names()[0])
}

func TestName_Index(t *testing.T) {
	t.Parallel()

	for i, n := range Names() {
		assert.Equal(t, i, n.Index(), "feature %s", n)
	}
	assert.Equal(t, -1, Name("viscosity").Index())
}

func TestLookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Name
		ok   bool
	}{
		{"temperature", Temperature, true},
		{"Temperature", Temperature, true},
		{"PH", PH, true},
		{"ph", PH, true},
		{"pH", PH, true},
		{"viscosity", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Lookup(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestVector_ValuesFollowCanonicalOrder(t *testing.T) {
	t.Parallel()

	// fields deliberately listed in scrambled order
	v := Vector{
		PH:          7,
		Humidity:    50,
		Pressure:    50.5,
		Time:        12,
		Temperature: 100,
	}
	assert.Equal(t, []float64{100, 50.5, 12, 50, 7}, v.Values())

	for i, n := range Names() {
		got, ok := v.Get(n)
		require.True(t, ok)
		assert.Equal(t, v.Values()[i], got, "feature %s", n)
	}

	_, ok := v.Get("viscosity")
	assert.False(t, ok)
}

func TestVector_Validate(t *testing.T) {
	t.Parallel()

	valid := Vector{Temperature: 100, Pressure: 50, Time: 12, Humidity: 50, PH: 7}
	require.NoError(t, valid.Validate())

	// out-of-range but finite values pass the finiteness check
	require.NoError(t, Vector{Temperature: -40, Pressure: 500}.Validate())

	tests := []struct {
		name  string
		vec   Vector
		field Name
	}{
		{"NaN temperature", Vector{Temperature: math.NaN()}, Temperature},
		{"+Inf pressure", Vector{Pressure: math.Inf(1)}, Pressure},
		{"-Inf time", Vector{Time: math.Inf(-1)}, Time},
		{"NaN humidity", Vector{Humidity: math.NaN()}, Humidity},
		{"NaN pH", Vector{PH: math.NaN()}, PH},
		{"first bad field wins", Vector{Temperature: math.NaN(), PH: math.NaN()}, Temperature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.vec.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))

			var inErr *InputError
			require.True(t, errors.As(err, &inErr))
			assert.Equal(t, tt.field, inErr.Field)
			assert.Contains(t, err.Error(), string(tt.field))
		})
	}
}

func TestVector_ValidateDomain(t *testing.T) {
	t.Parallel()

	require.NoError(t, Vector{Temperature: 0, Pressure: 0, Time: 0, Humidity: 0, PH: 0}.ValidateDomain())
	require.NoError(t, Vector{Temperature: 200, Pressure: 100, Time: 24, Humidity: 100, PH: 14}.ValidateDomain())

	err := Vector{Temperature: 100, Pressure: -1, Time: 12, Humidity: 50, PH: 7}.ValidateDomain()
	require.Error(t, err)
	var inErr *InputError
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, Pressure, inErr.Field)
	assert.Equal(t, -1.0, inErr.Value)

	err = Vector{Temperature: 100, Pressure: 50, Time: 12, Humidity: 50, PH: 14.5}.ValidateDomain()
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, PH, inErr.Field)

	// finiteness is still reported first
	err = Vector{Temperature: math.NaN(), Pressure: -1}.ValidateDomain()
	require.True(t, errors.As(err, &inErr))
	assert.Equal(t, Temperature, inErr.Field)
}

func TestDomain(t *testing.T) {
	t.Parallel()

	r, ok := Domain(Temperature)
	require.True(t, ok)
	assert.Equal(t, Range{Min: 0, Max: 200}, r)

	r, ok = Domain(PH)
	require.True(t, ok)
	assert.True(t, r.Contains(7))
	assert.False(t, r.Contains(14.01))

	_, ok = Domain("viscosity")
	assert.False(t, ok)
}
