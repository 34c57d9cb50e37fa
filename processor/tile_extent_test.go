package processor

import (
	"math"
	"testing"
)

func TestTileBBox(t *testing.T) {
	bbox := TileBBox(0, 0, 0)
	expected := []float64{-originShift, -originShift, originShift, originShift}
	for i := range bbox {
		if math.Abs(bbox[i]-expected[i]) > 1e-6 {
			t.Errorf("expected %v, actual %v", expected, bbox)
		}
	}

	bbox = TileBBox(1, 0, 1)
	if bbox[0] != 0 || math.Abs(bbox[3]-originShift) > 1e-6 {
		t.Errorf("unexpected bbox for tile 1/1/0: %v", bbox)
	}

	geot := TileGeoTransform(0, 0, 0, 256)
	if math.Abs(geot[1]*256-2*originShift) > 1e-6 || geot[5] != -geot[1] {
		t.Errorf("unexpected geotransform %v", geot)
	}
}

func TestTileLatLonBounds(t *testing.T) {
	b := TileLatLonBounds(0, 0, 0)
	if b.Left != -180 || b.Right != 180 || math.Abs(b.Top-85.0511287798) > 1e-6 {
		t.Errorf("unexpected bounds %+v", b)
	}

	b = TileLatLonBounds(1, 1, 1)
	if b.Left != 0 || b.Top != 0 {
		t.Errorf("unexpected bounds for tile 1/1/1: %+v", b)
	}
}

func TestCheckTile(t *testing.T) {
	if err := CheckTile(3, 5, 3); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	for _, tc := range [][3]int{{8, 0, 3}, {0, -1, 3}, {0, 0, -1}, {0, 0, 31}} {
		if err := CheckTile(tc[0], tc[1], tc[2]); err == nil {
			t.Errorf("expected error for tile %v", tc)
		}
	}
}
