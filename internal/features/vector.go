// Package features defines the process-parameter record consumed by the
// efficiency model. The model was trained on a fixed column order, so the
// record is only ever turned into positional form by Vector.Values.
package features

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Name identifies one model input column.
type Name string

const (
	Temperature Name = "temperature"
	Pressure    Name = "pressure"
	Time        Name = "time"
	Humidity    Name = "humidity"
	PH          Name = "pH"
)

// Count is the input width every served model must have.
const Count = 5

// canonical is the training column order.
var canonical = [Count]Name{Temperature, Pressure, Time, Humidity, PH}

// Range is a closed interval of recommended input values.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// domains mirror the input form limits, indexed like canonical.
var domains = [Count]Range{
	{Min: 0, Max: 200}, // temperature
	{Min: 0, Max: 100}, // pressure
	{Min: 0, Max: 24},  // time
	{Min: 0, Max: 100}, // humidity
	{Min: 0, Max: 14},  // pH
}

// Names returns the feature names in canonical order.
func Names() []Name {
	out := make([]Name, Count)
	copy(out, canonical[:])
	return out
}

// Index returns the canonical position of n, or -1 for an unknown name.
func (n Name) Index() int {
	for i, c := range canonical {
		if c == n {
			return i
		}
	}
	return -1
}

// Lookup resolves a column name case-insensitively ("PH" and "ph" both give PH).
func Lookup(s string) (Name, bool) {
	for _, c := range canonical {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return "", false
}

// Domain returns the recommended input range for n.
func Domain(n Name) (Range, bool) {
	i := n.Index()
	if i < 0 {
		return Range{}, false
	}
	return domains[i], true
}

// Vector is one set of process parameters. Fields are named so that no
// caller can put a value into the wrong column.
type Vector struct {
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Pressure    float64 `json:"pressure" yaml:"pressure"`
	Time        float64 `json:"time" yaml:"time"`
	Humidity    float64 `json:"humidity" yaml:"humidity"`
	PH          float64 `json:"pH" yaml:"pH"`
}

// Values returns the vector laid out in canonical column order.
func (v Vector) Values() []float64 {
	return []float64{v.Temperature, v.Pressure, v.Time, v.Humidity, v.PH}
}

// Get returns the value stored for the named feature.
func (v Vector) Get(n Name) (float64, bool) {
	i := n.Index()
	if i < 0 {
		return 0, false
	}
	return v.Values()[i], true
}

// ErrInvalidInput is the kind of every InputError.
var ErrInvalidInput = errors.New("invalid input")

// InputError describes the first offending field of a rejected vector.
type InputError struct {
	Field  Name
	Value  float64
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid input: %s = %v: %s", e.Field, e.Value, e.Reason)
}

func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// Validate rejects non-finite values. Fields are checked in canonical order.
func (v Vector) Validate() error {
	for i, x := range v.Values() {
		if math.IsNaN(x) {
			return &InputError{Field: canonical[i], Value: x, Reason: "value is NaN"}
		}
		if math.IsInf(x, 0) {
			return &InputError{Field: canonical[i], Value: x, Reason: "value is infinite"}
		}
	}
	return nil
}

// ValidateDomain is Validate plus a check against the recommended ranges.
func (v Vector) ValidateDomain() error {
	if err := v.Validate(); err != nil {
		return err
	}
	for i, x := range v.Values() {
		if !domains[i].Contains(x) {
			return &InputError{
				Field:  canonical[i],
				Value:  x,
				Reason: fmt.Sprintf("outside range [%g, %g]", domains[i].Min, domains[i].Max),
			}
		}
	}
	return nil
}
