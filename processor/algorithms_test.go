package processor

import (
	"math"
	"math/rand"
	"net/url"
	"testing"
)

func realTile(data []float64, mask []bool) *Tile {
	if mask == nil {
		mask = make([]bool, len(data))
	}
	return &Tile{Width: len(data), Height: 1, Data: data, Mask: mask, CRS: WebMercatorCRS}
}

func TestPhaseAmplitude(t *testing.T) {
	in := &Tile{Width: 4, Height: 1,
		Complex: []complex128{0, complex(0, 1), complex(-1, 0), complex(3, 4)},
		Mask:    []bool{false, false, false, true},
	}

	phase, err := Phase{}.Apply(in)
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{0, math.Pi / 2, math.Pi, math.Atan2(4, 3)}
	for i := range expected {
		if math.Abs(phase.Data[i]-expected[i]) > 1e-12 {
			t.Errorf("phase %d: expected %v, actual %v", i, expected[i], phase.Data[i])
		}
	}
	if !phase.Mask[0] || phase.Mask[1] || phase.Mask[2] || !phase.Mask[3] {
		t.Errorf("unexpected phase mask %v", phase.Mask)
	}

	amp, err := Amplitude{}.Apply(in)
	if err != nil {
		t.Fatal(err)
	}
	if amp.Data[0] != 0 || amp.Data[1] != 1 || amp.Data[3] != 5 {
		t.Errorf("unexpected amplitude %v", amp.Data)
	}
	if !amp.Mask[0] || amp.Mask[1] {
		t.Errorf("expected 0+0i masked, got %v", amp.Mask)
	}
	if in.Mask[0] {
		t.Errorf("input tile mask modified")
	}
}

func TestShift(t *testing.T) {
	in := realTile([]float64{1, 2, 3}, []bool{false, true, false})

	out, _ := Shift{Offset: 1}.Apply(in)
	if out.Data[0] != 0 || out.Data[2] != 2 || !out.Mask[1] {
		t.Errorf("unexpected shift result %v %v", out.Data, out.Mask)
	}

	out, _ = Shift{Offset: math.NaN(), NaNToZero: true}.Apply(in)
	for i := range in.Data {
		if out.Data[i] != in.Data[i] || out.Mask[i] != in.Mask[i] {
			t.Errorf("expected unchanged tile, got %v %v", out.Data, out.Mask)
		}
	}

	out, _ = Shift{Offset: math.NaN()}.Apply(in)
	if out.Valid() != 0 {
		t.Errorf("expected all invalid tile, got mask %v", out.Mask)
	}
}

func TestRewrapValue(t *testing.T) {
	tests := []struct {
		in, out float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-2 * math.Pi, 0},
		{math.Pi / 2, math.Pi / 2},
		{math.Pi/2 + 4*math.Pi, math.Pi / 2},
		{-math.Pi / 2, -math.Pi / 2},
	}
	for _, tc := range tests {
		if v := RewrapValue(tc.in); math.Abs(v-tc.out) > 1e-12 {
			t.Errorf("rewrap(%v): expected %v, actual %v", tc.in, tc.out, v)
		}
	}
	if !math.IsNaN(RewrapValue(math.NaN())) {
		t.Errorf("expected NaN to stay NaN")
	}
}

func TestRewrapMasksInvalid(t *testing.T) {
	in := realTile([]float64{1, math.NaN(), math.Inf(1), math.Inf(-1)}, nil)
	out, err := Rewrap{}.Apply(in)
	if err != nil {
		t.Fatal(err)
	}
	expected := []bool{false, true, true, true}
	for i, m := range out.Mask {
		if m != expected[i] {
			t.Errorf("pixel %d: expected mask %v, actual %v", i, expected[i], m)
		}
	}
	if in.Mask[1] {
		t.Errorf("input mask modified")
	}

	bare := &Tile{Width: 2, Height: 1, Data: []float64{math.NaN(), 0}}
	if out, _ = (Rewrap{}).Apply(bare); len(out.Mask) != 2 || !out.Mask[0] || out.Mask[1] {
		t.Errorf("unexpected mask without input mask %v", out.Mask)
	}
	if _, err := ParseAlgorithm("phase + rewrap", nil); err != nil {
		t.Errorf("unexpected error for spaced names: %v", err)
	}
}

func TestRewrapProperties(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	data := make([]float64, 1000)
	for i := range data {
		data[i] = (rnd.Float64() - 0.5) * 200
	}
	in := realTile(data, nil)

	wrapped, err := Rewrap{}.Apply(in)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range wrapped.Data {
		if v <= -math.Pi || v > math.Pi {
			t.Errorf("rewrap(%v) = %v outside (-pi, pi]", data[i], v)
		}
		k := float64(rnd.Intn(20) - 10)
		again := RewrapValue(v + 2*math.Pi*k)
		if math.Pi-math.Abs(v) > 1e-9 && math.Abs(again-v) > 1e-9 {
			t.Errorf("rewrap not idempotent for %v: %v vs %v", data[i], again, v)
		}
	}

	if _, err := (Rewrap{}).Apply(&Tile{Width: 1, Height: 1, Complex: []complex128{1}}); err == nil {
		t.Errorf("expected error for complex tile")
	}
}

func TestParseAlgorithm(t *testing.T) {
	params := url.Values{"shift": {"1.5"}, "nan_to_zero": {"true"}}
	alg, err := ParseAlgorithm("shift", params)
	if err != nil {
		t.Fatal(err)
	}
	s, ok := alg.(Shift)
	if !ok || s.Offset != 1.5 || !s.NaNToZero {
		t.Errorf("unexpected algorithm %#v", alg)
	}

	alg, err = ParseAlgorithm("phase+rewrap", nil)
	if err != nil {
		t.Fatal(err)
	}
	if alg.Name() != "phase+rewrap" {
		t.Errorf("unexpected chain %v", alg.Name())
	}

	if alg, err := ParseAlgorithm("", nil); alg != nil || err != nil {
		t.Errorf("expected no algorithm, got %v %v", alg, err)
	}
	if _, err := ParseAlgorithm("hillshade", nil); err == nil {
		t.Errorf("expected error for unknown algorithm")
	}
	if _, err := ParseAlgorithm("shift", url.Values{"shift": {"abc"}}); err == nil {
		t.Errorf("expected error for invalid offset")
	}
}
