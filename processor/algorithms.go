package processor

import (
	"fmt"
	"math"
	"math/cmplx"
	"net/url"
	"strconv"
	"strings"
)

// Algorithm is a per-pixel transform applied to a decoded tile. The
// returned tile has the same shape; the input is not modified.
type Algorithm interface {
	Name() string
	Apply(t *Tile) (*Tile, error)
}

// Phase maps complex pixels to their angle in radians.
type Phase struct{}

func (Phase) Name() string { return "phase" }

func (Phase) Apply(t *Tile) (*Tile, error) { return applyComplex(t, cmplx.Phase), nil }

// Amplitude maps complex pixels to their magnitude.
type Amplitude struct{}

func (Amplitude) Name() string { return "amplitude" }

func (Amplitude) Apply(t *Tile) (*Tile, error) { return applyComplex(t, cmplx.Abs), nil }

// applyComplex evaluates fn on every pixel. Pixels that are NaN after the
// transform, or whose sample is exactly 0+0i, are masked as invalid: an
// unwritten complex sample decodes to zero.
func applyComplex(t *Tile, fn func(complex128) float64) *Tile {
	n := t.Width * t.Height
	data := make([]float64, n)
	mask := make([]bool, n)
	for i := 0; i < n; i++ {
		var z complex128
		if t.Complex != nil {
			z = t.Complex[i]
		} else {
			z = complex(t.Data[i], 0)
		}
		data[i] = fn(z)
		mask[i] = (t.Mask != nil && t.Mask[i]) || math.IsNaN(data[i]) || z == 0
	}
	return t.withData(data, mask)
}

// Shift subtracts Offset from every pixel. A NaN offset leaves the tile
// unchanged when NaNToZero is set and invalidates every pixel otherwise.
type Shift struct {
	Offset    float64
	NaNToZero bool
}

func (Shift) Name() string { return "shift" }

func (s Shift) Apply(t *Tile) (*Tile, error) {
	offset := s.Offset
	if math.IsNaN(offset) && s.NaNToZero {
		offset = 0
	}

	out := t.Clone()
	for i := range out.Data {
		out.Data[i] -= offset
	}
	for i := range out.Complex {
		out.Complex[i] -= complex(offset, 0)
	}
	if math.IsNaN(offset) {
		for i := range out.Mask {
			out.Mask[i] = true
		}
	}
	return out, nil
}

// Rewrap wraps unwrapped phase into (-π, π]. Odd multiples of π map to
// +π and even multiples to 0.
type Rewrap struct{}

func (Rewrap) Name() string { return "rewrap" }

func (Rewrap) Apply(t *Tile) (*Tile, error) {
	if t.IsComplex() {
		return nil, fmt.Errorf("rewrap expects real valued phase, got a complex tile")
	}
	out := t.Clone()
	if out.Mask == nil {
		out.Mask = make([]bool, len(out.Data))
	}
	for i, v := range out.Data {
		out.Data[i] = RewrapValue(v)
		if math.IsNaN(out.Data[i]) {
			out.Mask[i] = true
		}
	}
	return out, nil
}

// RewrapValue reduces v modulo 2π into (-π, π].
func RewrapValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN()
	}
	w := v - 2*math.Pi*math.Ceil((v-math.Pi)/(2*math.Pi))
	if w <= -math.Pi {
		w += 2 * math.Pi
	}
	if w > math.Pi {
		w -= 2 * math.Pi
	}
	return w
}

// Chain applies algorithms in order.
type Chain []Algorithm

func (c Chain) Name() string {
	var names []string
	for _, a := range c {
		names = append(names, a.Name())
	}
	return strings.Join(names, "+")
}

func (c Chain) Apply(t *Tile) (*Tile, error) {
	var err error
	for _, a := range c {
		t, err = a.Apply(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", a.Name(), err)
		}
	}
	return t, nil
}

// AlgorithmNames lists the names accepted by ParseAlgorithm.
var AlgorithmNames = []string{"phase", "amplitude", "shift", "rewrap"}

// ParseAlgorithm builds an algorithm from its registered name and query
// parameters. Several names may be joined with '+'. Shift reads the
// "shift" offset and the "nan_to_zero" flag. An empty name returns nil.
func ParseAlgorithm(name string, params url.Values) (Algorithm, error) {
	if len(name) == 0 {
		return nil, nil
	}

	var chain Chain
	for _, n := range strings.Split(name, "+") {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "phase":
			chain = append(chain, Phase{})
		case "amplitude":
			chain = append(chain, Amplitude{})
		case "rewrap":
			chain = append(chain, Rewrap{})
		case "shift":
			s := Shift{}
			if v := params.Get("shift"); len(v) > 0 {
				offset, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid shift offset: %v", v)
				}
				s.Offset = offset
			}
			if v := params.Get("nan_to_zero"); len(v) > 0 {
				flag, err := strconv.ParseBool(v)
				if err != nil {
					return nil, fmt.Errorf("invalid nan_to_zero flag: %v", v)
				}
				s.NaNToZero = flag
			}
			chain = append(chain, s)
		default:
			return nil, fmt.Errorf("unknown algorithm: %s", n)
		}
	}

	if len(chain) == 1 {
		return chain[0], nil
	}
	return chain, nil
}
