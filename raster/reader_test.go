package raster

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

var testGeot = [6]float64{130, 0.1, 0, -20, 0, -0.1}

func nanValue() float64 { return math.NaN() }

func pixelValue(band, row, col int) float64 {
	return float64(band*1000 + row*10 + col)
}

func writeTestRaster(t *testing.T, dir, name string, band int, nodata *float64) string {
	t.Helper()
	const rows, cols = 10, 10
	data := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data[r*cols+c] = pixelValue(band, r, c)
		}
	}
	if nodata != nil {
		data[0] = *nodata
	}

	path := filepath.Join(dir, name)
	err := CreateGeoTIFF(path, GeoTIFFSpec{Rows: rows, Cols: cols, GeoTransform: testGeot, EPSG: 4326, NoData: nodata, Data: data})
	if err != nil {
		t.Skipf("GeoTIFF fixtures unavailable: %v", err)
	}
	return path
}

func float64Ptr(v float64) *float64 { return &v }

func TestReaderOpen(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRaster(t, dir, "20220101_20220113.tif", 0, float64Ptr(-9999))

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if r.Rows != 10 || r.Cols != 10 {
		t.Errorf("unexpected shape %dx%d", r.Rows, r.Cols)
	}
	if r.DType != "Float32" {
		t.Errorf("unexpected dtype %v", r.DType)
	}
	if r.Driver != "GTiff" {
		t.Errorf("unexpected driver %v", r.Driver)
	}
	if !r.HasNoData || r.NoData != -9999 {
		t.Errorf("unexpected nodata %v %v", r.HasNoData, r.NoData)
	}
	if len(r.Dates) != 2 {
		t.Errorf("expected a date pair, got %v", r.Dates)
	}

	b := r.Bounds()
	if math.Abs(b.Left-130) > 1e-9 || math.Abs(b.Right-131) > 1e-9 || math.Abs(b.Top+20) > 1e-9 || math.Abs(b.Bottom+21) > 1e-9 {
		t.Errorf("unexpected bounds %+v", b)
	}
	ll := r.LatLonBounds()
	if math.Abs(ll.Left-130) > 1e-6 || math.Abs(ll.Bottom+21) > 1e-6 {
		t.Errorf("unexpected latlon bounds %+v", ll)
	}
}

func TestReaderOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(os.TempDir(), "does_not_exist_gstack.tif"))
	if _, ok := err.(*IOError); !ok {
		t.Errorf("expected IOError, got %v", err)
	}
}

func TestReaderRead(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRaster(t, dir, "band.tif", 0, float64Ptr(-9999))

	for _, keepOpen := range []bool{true, false} {
		r, err := Open(path, KeepOpen(keepOpen))
		if err != nil {
			t.Fatal(err)
		}

		arr, err := r.Read(Span(2, 5), Span(3, 7))
		if err != nil {
			t.Fatal(err)
		}
		if len(arr.Shape) != 2 || arr.Shape[0] != 3 || arr.Shape[1] != 4 {
			t.Errorf("unexpected shape %v", arr.Shape)
		}
		if arr.Data[0] != pixelValue(0, 2, 3) || arr.Data[11] != pixelValue(0, 4, 6) {
			t.Errorf("unexpected window values %v", arr.Data)
		}

		strided, err := r.Read(Range(0, 10, 3), Range(1, 10, 4))
		if err != nil {
			t.Fatal(err)
		}
		if strided.Shape[0] != 4 || strided.Shape[1] != 3 {
			t.Errorf("unexpected strided shape %v", strided.Shape)
		}
		if strided.Data[4] != pixelValue(0, 3, 5) {
			t.Errorf("unexpected strided value %v", strided.Data[4])
		}

		row, err := r.Read(Index(0), All())
		if err != nil {
			t.Fatal(err)
		}
		if len(row.Shape) != 1 || row.Shape[0] != 10 {
			t.Errorf("expected a squeezed row, got shape %v", row.Shape)
		}
		if !row.Mask[0] || row.Mask[1] {
			t.Errorf("expected nodata masked at (0, 0), got %v", row.Mask)
		}

		if _, err := r.Read(Span(8, 12), All()); err == nil {
			t.Errorf("expected RangeError for out of bounds window")
		} else if _, ok := err.(*RangeError); !ok {
			t.Errorf("expected RangeError, got %v", err)
		}
		r.Close()
	}
}

func TestReaderLonLat(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRaster(t, dir, "band.tif", 0, nil)

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	row, col, err := r.LonLatToPixel(130.45, -20.35)
	if err != nil {
		t.Fatal(err)
	}
	if row != 3 || col != 4 {
		t.Errorf("expected pixel (3, 4), actual (%d, %d)", row, col)
	}

	val, err := r.ReadLonLat(130.45, -20.35)
	if err != nil {
		t.Fatal(err)
	}
	arr, err := r.Read(Index(row), Index(col))
	if err != nil {
		t.Fatal(err)
	}
	if val != arr.Data[0] || val != pixelValue(0, 3, 4) {
		t.Errorf("read_lonlat %v does not match indexed read %v", val, arr.Data[0])
	}

	if _, err := r.ReadLonLat(140, -20.35); err == nil {
		t.Errorf("expected RangeError outside the raster")
	}
}

func TestReaderComplex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ifg.tif")
	data := make([]complex128, 4)
	for i := range data {
		data[i] = complex(float64(i), float64(-i))
	}
	err := CreateGeoTIFF(path, GeoTIFFSpec{Rows: 2, Cols: 2, GeoTransform: testGeot, EPSG: 4326, Complex: data})
	if err != nil {
		t.Skipf("GeoTIFF fixtures unavailable: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsComplex() {
		t.Fatalf("expected complex dtype, got %v", r.DType)
	}
	arr, err := r.Read(All(), All())
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range arr.Complex {
		if v != data[i] {
			t.Errorf("expected %v, actual %v", data, arr.Complex)
			break
		}
	}
}

func TestReaderWarp(t *testing.T) {
	dir := t.TempDir()
	path := writeTestRaster(t, dir, "band.tif", 0, nil)

	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}

	// 2x2 grid over the upper left corner
	req := &WarpRequest{EPSG: 4326, GeoTransform: [6]float64{130, 0.1, 0, -20, 0, -0.1}, Width: 2, Height: 2}
	arr, err := r.Warp(req, false)
	if err != nil {
		t.Fatal(err)
	}
	if arr.Data[3] != pixelValue(0, 1, 1) || arr.Mask[3] {
		t.Errorf("unexpected warped values %v %v", arr.Data, arr.Mask)
	}
	r.Close()
}
