package utils

import (
	"encoding/json"
	"math"
	"testing"
)

func TestSeriesEncoding(t *testing.T) {
	values := []float64{1.5, math.NaN(), -2, 0}
	payload, err := EncodeSeries(values)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeSeries(payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != len(values) {
		t.Fatalf("expected %d values, actual %d", len(values), len(decoded))
	}
	for i, v := range values {
		if math.IsNaN(v) {
			if !math.IsNaN(decoded[i]) {
				t.Errorf("expected NaN at %d, actual %v", i, decoded[i])
			}
		} else if decoded[i] != v {
			t.Errorf("expected %v at %d, actual %v", v, i, decoded[i])
		}
	}

	if _, err := DecodeSeries([]byte{0xff, 0xff}); err == nil {
		t.Errorf("expected error for corrupt payload")
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("/point?dataset_name=a&lon=1&lat=2")
	b := CacheKey("/point?dataset_name=a&lon=1&lat=3")
	if len(a) != 32 || a == b {
		t.Errorf("unexpected keys %s %s", a, b)
	}

	var c *PointCache
	if _, ok := c.Get("/point"); ok {
		t.Errorf("nil cache should never hit")
	}
	c.Set("/point", []float64{1})
	if NewPointCache("") != nil {
		t.Errorf("expected nil cache without memcache uri")
	}
}

func TestNullFloats(t *testing.T) {
	out, err := json.Marshal(NullFloats([]float64{1, math.NaN(), math.Inf(1), 0.25}))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "[1,null,null,0.25]" {
		t.Errorf("unexpected encoding %s", out)
	}

	var back []NullFloat
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if len(back) != 4 || !math.IsNaN(float64(back[1])) || back[3] != 0.25 {
		t.Errorf("unexpected decoding %v", back)
	}
}
