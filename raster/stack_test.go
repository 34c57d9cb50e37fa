package raster

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
)

func testStackFiles(t *testing.T, n int) []string {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("20200101_202002%02d.tif", i+1)
		paths = append(paths, writeTestRaster(t, dir, name, i, float64Ptr(-9999)))
	}
	return paths
}

func TestStackIndex(t *testing.T) {
	paths := testStackFiles(t, 6)
	stack, err := OpenMany(paths, StackConfig{KeepOpen: true, OpenWorkers: 2, ReadWorkers: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer stack.Close()

	if !stack.HasNoData || stack.NoData != -9999 {
		t.Errorf("expected stack nodata -9999, got %v %v", stack.HasNoData, stack.NoData)
	}

	arr, err := stack.Index(All(), Span(2, 5), Span(1, 3))
	if err != nil {
		t.Fatal(err)
	}
	if len(arr.Shape) != 3 || arr.Shape[0] != 6 || arr.Shape[1] != 3 || arr.Shape[2] != 2 {
		t.Fatalf("unexpected shape %v", arr.Shape)
	}
	for b := 0; b < 6; b++ {
		if v := arr.Data[b*6]; v != pixelValue(b, 2, 1) {
			t.Errorf("band %d out of order: expected %v, actual %v", b, pixelValue(b, 2, 1), v)
		}
	}

	single, err := stack.Index(Index(4))
	if err != nil {
		t.Fatal(err)
	}
	if len(single.Shape) != 2 || single.Shape[0] != 10 || single.Shape[1] != 10 {
		t.Errorf("expected band axis squeezed, got %v", single.Shape)
	}
	if single.Data[11] != pixelValue(4, 1, 1) {
		t.Errorf("unexpected single band value %v", single.Data[11])
	}

	sub, err := stack.Index(Range(0, 6, 2), Index(3), Index(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Shape) != 1 || sub.Shape[0] != 3 || sub.Data[2] != pixelValue(4, 3, 3) {
		t.Errorf("unexpected band subset %v %v", sub.Shape, sub.Data)
	}

	if _, err := stack.Index(All(), All()); err == nil {
		t.Errorf("expected error for a 2-slice key")
	}
	if _, err := stack.Index(Index(6)); err == nil {
		t.Errorf("expected RangeError for band 6")
	}
}

func TestStackReadLonLat(t *testing.T) {
	paths := testStackFiles(t, 4)
	stack, err := OpenMany(paths, StackConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer stack.Close()

	series, err := stack.ReadLonLat(130.45, -20.35)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 4 {
		t.Fatalf("expected 4 values, got %v", series)
	}
	for i, r := range stack.Readers {
		row, col, err := r.LonLatToPixel(130.45, -20.35)
		if err != nil {
			t.Fatal(err)
		}
		arr, err := stack.Index(Index(i), Index(row), Index(col))
		if err != nil {
			t.Fatal(err)
		}
		if series[i] != arr.Data[0] {
			t.Errorf("band %d: read_lonlat %v, indexed %v", i, series[i], arr.Data[0])
		}
	}

	corner, err := stack.ReadLonLat(130.01, -20.01)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range corner {
		if !math.IsNaN(v) {
			t.Errorf("band %d: expected NaN for nodata pixel, got %v", i, v)
		}
	}

	dates := stack.Dates()
	if len(dates) != 4 || len(dates[3]) != 2 || dates[3][1].Day() != 4 {
		t.Errorf("unexpected dates %v", dates)
	}
}

func TestStackInconsistentNoData(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeTestRaster(t, dir, "a.tif", 0, float64Ptr(-9999)),
		writeTestRaster(t, dir, "b.tif", 1, nil),
		writeTestRaster(t, dir, "c.tif", 2, nil),
	}

	stack, err := OpenMany(paths, StackConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer stack.Close()

	if stack.HasNoData {
		t.Errorf("expected stack nodata unset, got %v", stack.NoData)
	}

	arr, err := stack.Readers[0].Read(Index(0), Span(0, 2))
	if err != nil {
		t.Fatal(err)
	}
	if !arr.Mask[0] || arr.Mask[1] {
		t.Errorf("expected -9999 masked locally, got %v", arr.Mask)
	}
}

func TestStackOpenFailure(t *testing.T) {
	paths := testStackFiles(t, 5)
	paths[2] = filepath.Join(filepath.Dir(paths[0]), "missing.tif")

	stack, err := OpenMany(paths, StackConfig{OpenWorkers: 3})
	if err == nil {
		t.Fatalf("expected failure, got a stack of %d files", stack.Len())
	}
	if stack != nil {
		t.Errorf("expected no partial stack")
	}

	if _, err := OpenMany(nil, StackConfig{}); err == nil {
		t.Errorf("expected ConfigurationError for empty file list")
	} else if _, ok := err.(*ConfigurationError); !ok {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestStackMixedMembers(t *testing.T) {
	dir := t.TempDir()
	realPath := writeTestRaster(t, dir, "real.tif", 0, nil)

	cdata := make([]complex128, 100)
	for i := range cdata {
		cdata[i] = complex(float64(i), 1)
	}
	cpx := filepath.Join(dir, "complex.tif")
	if err := CreateGeoTIFF(cpx, GeoTIFFSpec{Rows: 10, Cols: 10, GeoTransform: testGeot, EPSG: 4326, Complex: cdata}); err != nil {
		t.Skipf("GeoTIFF fixtures unavailable: %v", err)
	}
	small := filepath.Join(dir, "small.tif")
	if err := CreateGeoTIFF(small, GeoTIFFSpec{Rows: 5, Cols: 5, GeoTransform: testGeot, EPSG: 4326, Data: make([]float64, 25)}); err != nil {
		t.Skipf("GeoTIFF fixtures unavailable: %v", err)
	}

	for _, paths := range [][]string{{realPath, cpx}, {realPath, small}} {
		stack, err := OpenMany(paths, StackConfig{})
		if err == nil {
			stack.Close()
			t.Errorf("%v: expected mismatched members to be rejected", paths)
			continue
		}
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%v: expected ConfigurationError, got %v", paths, err)
		}
	}
}

func TestStackCloseDuringReads(t *testing.T) {
	paths := testStackFiles(t, 4)
	stack, err := OpenMany(paths, StackConfig{KeepOpen: true, ReadWorkers: 2})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				series, err := stack.ReadLonLat(130.45, -20.35)
				if err != nil {
					var ioErr *IOError
					if !errors.As(err, &ioErr) {
						t.Errorf("expected IOError after close, got %v", err)
					}
					return
				}
				if series[1] != pixelValue(1, 3, 4) {
					t.Errorf("unexpected value %v", series[1])
				}
			}
		}()
	}
	stack.Close()
	wg.Wait()

	if _, err := stack.ReadLonLat(130.45, -20.35); err == nil {
		t.Errorf("expected reads on a closed stack to fail")
	}
	if _, err := stack.Readers[0].Read(Index(0), Index(0)); err == nil {
		t.Errorf("expected reads on a closed reader to fail")
	}
	stack.Close()
}
