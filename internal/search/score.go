package search

import (
	"fmt"
	"math"
)

// BM25 constants.
const (
	DefaultK1 = 1.2
	DefaultK2 = 100
	DefaultB  = 0.75
)

// Params are the BM25 tuning constants: K1 and B control document term
// frequency saturation and length normalization, K2 query term frequency
// saturation.
type Params struct {
	K1 float64
	K2 float64
	B  float64
}

func DefaultParams() Params {
	return Params{K1: DefaultK1, K2: DefaultK2, B: DefaultB}
}

func (p Params) Validate() error {
	for name, v := range map[string]float64{"k1": p.K1, "k2": p.K2, "b": p.B} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("invalid %s: %v", name, v)
		}
	}
	if p.B > 1 {
		return fmt.Errorf("invalid b: %v (must be in [0,1])", p.B)
	}
	return nil
}

// lengthNorm returns K for a document of length dl. An all-empty corpus
// (avdl 0) treats every document as average length.
func (p Params) lengthNorm(dl int, avdl float64) float64 {
	ratio := 1.0
	if avdl > 0 {
		ratio = float64(dl) / avdl
	}
	return p.K1 * ((1 - p.B) + p.B*ratio)
}

func (p Params) docWeight(fi int, k float64) float64 {
	f := float64(fi)
	return ((p.K1 + 1) * f) / (k + f)
}

func (p Params) queryWeight(qfi int) float64 {
	q := float64(qfi)
	return ((p.K2 + 1) * q) / (p.K2 + q)
}

// relevanceWeight is the Robertson/Sparck-Jones term weight. With R and ri
// both 0 it reduces to ln((N-ni+0.5)/(ni+0.5)). When the log argument is
// not a positive finite number the weight is clamped to 0 and ok is false.
func relevanceWeight(n, ni, r, ri int) (w float64, ok bool) {
	num := (float64(ri) + 0.5) * (float64(n-ni-r+ri) + 0.5)
	den := (float64(r-ri) + 0.5) * (float64(ni-ri) + 0.5)
	arg := num / den
	if den <= 0 || arg <= 0 || math.IsNaN(arg) || math.IsInf(arg, 0) {
		return 0, false
	}
	return math.Log(arg), true
}
