package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	proc "github.com/nci/gstack/processor"
	"github.com/nci/gstack/raster"
	"github.com/nci/gstack/utils"
)

func TestParseTilePath(t *testing.T) {
	tests := []struct {
		path    string
		dataset string
		z, x, y int
		fail    bool
	}{
		{path: "/tiles/la/8/44/102.png", dataset: "la", z: 8, x: 44, y: 102},
		{path: "/tiles/site a/sub/3/1/2.png", dataset: "site a/sub", z: 3, x: 1, y: 2},
		{path: "/tiles/la/8/44/102.jpg", fail: true},
		{path: "/tiles/8/44/102.png", fail: true},
		{path: "/tiles/la/8/x/102.png", fail: true},
	}
	for _, tc := range tests {
		dataset, z, x, y, err := parseTilePath(tc.path)
		if tc.fail {
			if err == nil {
				t.Errorf("%s: expected error", tc.path)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tc.path, err)
			continue
		}
		if dataset != tc.dataset || z != tc.z || x != tc.x || y != tc.y {
			t.Errorf("%s: got %q %d/%d/%d", tc.path, dataset, z, x, y)
		}
	}
}

func TestErrorStatus(t *testing.T) {
	if s := errorStatus(&proc.DatasetNotFoundError{Name: "a"}); s != 404 {
		t.Errorf("expected 404, got %d", s)
	}
	if s := errorStatus(&raster.RangeError{Axis: "row", Index: 10, Size: 5}); s != 400 {
		t.Errorf("expected 400, got %d", s)
	}
	if s := errorStatus(&raster.IOError{Path: "a.tif", Op: "open"}); s != 500 {
		t.Errorf("expected 500, got %d", s)
	}
	if s := errorStatus(&raster.ConfigurationError{Msg: "bad"}); s != 500 {
		t.Errorf("expected 500, got %d", s)
	}
}

// 10x10 pixels of 0.1 degree starting at (-118, 34)
var fixtureGeot = [6]float64{-118, 0.1, 0, 34, 0, -0.1}

func testServer(t *testing.T, withData bool) *gstackServer {
	t.Helper()
	config := &utils.Config{}
	if withData {
		dir := t.TempDir()
		nodata := -9999.0
		var files []string
		for i, name := range []string{"disp_20200101_20200113.tif", "disp_20200101_20200125.tif", "disp_20200101_20200206.tif"} {
			data := make([]float64, 100)
			for j := range data {
				data[j] = float64(i)*0.012 + float64(j)
			}
			data[99] = nodata
			path := filepath.Join(dir, name)
			err := raster.CreateGeoTIFF(path, raster.GeoTIFFSpec{Rows: 10, Cols: 10, GeoTransform: fixtureGeot, EPSG: 4326, NoData: &nodata, Data: data})
			if err != nil {
				t.Skipf("GeoTIFF fixtures unavailable: %v", err)
			}
			files = append(files, path)
		}
		config.Datasets = []*utils.DatasetConfig{{Name: "displacement", FileList: files, NoData: &nodata}}
	}
	return newTestServer(t, config)
}

func newTestServer(t *testing.T, config *utils.Config) *gstackServer {
	t.Helper()
	reg, err := proc.NewRegistry(config, proc.RegistryOptions{KeepOpen: true})
	if err != nil {
		t.Fatal(err)
	}
	holder := proc.NewRegistryHolder(reg)
	t.Cleanup(func() { holder.Swap(nil) })

	return &gstackServer{
		Registry: holder,
		Config:   &utils.ServiceConfig{Port: 8080},
		Resolver: utils.NewRuntimeFileResolver("."),
	}
}

func get(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequestErrors(t *testing.T) {
	h := testServer(t, false).routes()
	tests := []struct {
		method, target string
		body           string
		status         int
	}{
		{"GET", "/nothing", "", 404},
		{"GET", "/point?dataset_name=none&lon=0&lat=0", "", 404},
		{"GET", "/point?dataset_name=none&lon=200&lat=0", "", 400},
		{"GET", "/point?lon=0&lat=0", "", 400},
		{"GET", "/point?dataset_name=none&lon=0&lat=0&ref_lon=1", "", 400},
		{"GET", "/chart_point?dataset_name=none&lon=0&lat=95", "", 400},
		{"POST", "/chart_point?dataset_name=none", `{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}`, 400},
		{"POST", "/chart_point?dataset_name=none", `not json`, 400},
		{"DELETE", "/chart_point?dataset_name=none&lon=0&lat=0", "", 405},
		{"GET", "/tiles/none/1/0/0.png", "", 404},
		{"GET", "/tiles/none/1/5/0.png", "", 400},
		{"GET", "/tiles/none/1/0/0.png?vmin=2&vmax=1", "", 400},
		{"GET", "/colorbar/nope.png", "", 404},
		{"GET", "/colorbar/viridis.png?width=0", "", 400},
	}
	for _, tc := range tests {
		rec := get(t, h, tc.method, tc.target, []byte(tc.body))
		if rec.Code != tc.status {
			t.Errorf("%s %s: expected %d, got %d: %s", tc.method, tc.target, tc.status, rec.Code, rec.Body.String())
		}
		if len(rec.Header().Get("X-Request-Id")) == 0 {
			t.Errorf("%s: missing request id header", tc.target)
		}
	}
}

func TestIndexAndColorbar(t *testing.T) {
	h := testServer(t, false).routes()

	rec := get(t, h, "GET", "/datasets", nil)
	if rec.Code != 200 || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("unexpected /datasets response %d %q", rec.Code, rec.Body.String())
	}

	rec = get(t, h, "GET", "/colorbar/magma.png?width=100&height=10", nil)
	if rec.Code != 200 {
		t.Fatalf("colorbar failed: %d %s", rec.Code, rec.Body.String())
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 10 {
		t.Errorf("unexpected colorbar size %v", b)
	}

	rec = get(t, h, "GET", "/", nil)
	if rec.Code != 200 {
		t.Fatalf("index failed: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "viridis") {
		t.Errorf("index does not list colormaps")
	}
}

func TestPointAndChart(t *testing.T) {
	h := testServer(t, true).routes()

	rec := get(t, h, "GET", "/point?dataset_name=displacement&lon=-117.95&lat=33.95", nil)
	if rec.Code != 200 {
		t.Fatalf("point failed: %d %s", rec.Code, rec.Body.String())
	}
	var point struct {
		XValues []string   `json:"x_values"`
		Values  []*float64 `json:"values"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &point); err != nil {
		t.Fatal(err)
	}
	if len(point.Values) != 3 || point.Values[2] == nil || math.Abs(*point.Values[2]-0.024) > 1e-9 {
		t.Errorf("unexpected point values %v", point.Values)
	}
	if len(point.XValues) != 3 || point.XValues[0] != "2020-01-13" {
		t.Errorf("unexpected x values %v", point.XValues)
	}

	rec = get(t, h, "GET", "/point?dataset_name=displacement&lon=-117.05&lat=33.05", nil)
	if rec.Code != 200 || !strings.Contains(rec.Body.String(), "null") {
		t.Errorf("expected nodata as null, got %d %s", rec.Code, rec.Body.String())
	}

	rec = get(t, h, "GET", "/point?dataset_name=displacement&lon=10&lat=10", nil)
	if rec.Code != 400 {
		t.Errorf("expected 400 outside the raster, got %d", rec.Code)
	}

	body := `{"type":"Feature","geometry":{"type":"Point","coordinates":[-117.85,33.95]},"properties":{}}`
	rec = get(t, h, "POST", "/chart_point?dataset_name=displacement&ref_lon=-117.95&ref_lat=33.95", []byte(body))
	if rec.Code != 200 {
		t.Fatalf("chart failed: %d %s", rec.Code, rec.Body.String())
	}
	var chart struct {
		Datasets []struct {
			Data []struct {
				X string   `json:"x"`
				Y *float64 `json:"y"`
			} `json:"data"`
		} `json:"datasets"`
		Labels []string `json:"labels"`
		Trend  *struct {
			Slope *float64 `json:"slope"`
		} `json:"trend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &chart); err != nil {
		t.Fatal(err)
	}
	if len(chart.Datasets) != 1 || len(chart.Datasets[0].Data) != 3 || len(chart.Labels) != 3 {
		t.Fatalf("unexpected chart %s", rec.Body.String())
	}
	// one column east of the reference is exactly one larger in every file
	for _, p := range chart.Datasets[0].Data {
		if p.Y == nil || math.Abs(*p.Y-1) > 1e-9 {
			t.Errorf("unexpected referenced value %v at %s", p.Y, p.X)
		}
	}
	if chart.Trend == nil || chart.Trend.Slope == nil || math.Abs(*chart.Trend.Slope) > 1e-9 {
		t.Errorf("expected a flat trend, got %s", rec.Body.String())
	}
}

func TestTiles(t *testing.T) {
	h := testServer(t, true).routes()

	rec := get(t, h, "GET", "/tiles/displacement/8/44/102.png?band=1&cmap=rdbu", nil)
	if rec.Code != 200 {
		t.Fatalf("tile failed: %d %s", rec.Code, rec.Body.String())
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != tileSize || b.Dy() != tileSize {
		t.Errorf("unexpected tile size %v", b)
	}

	rec = get(t, h, "GET", "/tiles/displacement/8/0/0.png", nil)
	if rec.Code != 200 || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("expected empty png outside the data, got %d", rec.Code)
	}

	rec = get(t, h, "GET", "/tiles/displacement/8/44/102.png?band=3", nil)
	if rec.Code != 400 {
		t.Errorf("expected 400 for band out of range, got %d", rec.Code)
	}
	rec = get(t, h, "GET", "/tiles/displacement/8/44/102.png?algorithm=unknown", nil)
	if rec.Code != 400 {
		t.Errorf("expected 400 for unknown algorithm, got %d", rec.Code)
	}
}

func TestSkippedDatasets(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.tif")
	config := &utils.Config{Datasets: []*utils.DatasetConfig{{Name: "broken set", FileList: []string{missing}}}}
	h := newTestServer(t, config).routes()

	rec := get(t, h, "GET", "/datasets", nil)
	if rec.Code != 200 || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("unexpected /datasets response %d %q", rec.Code, rec.Body.String())
	}
	if hdr := rec.Header().Get("X-Skipped-Datasets"); hdr != "broken+set" {
		t.Errorf("unexpected skipped header %q", hdr)
	}

	rec = get(t, h, "GET", "/datasets?skipped=true", nil)
	var skipped []proc.SkippedDataset
	if err := json.Unmarshal(rec.Body.Bytes(), &skipped); err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 1 || skipped[0].Name != "broken set" || !strings.Contains(skipped[0].Error, "missing.tif") {
		t.Errorf("unexpected skipped list %+v", skipped)
	}

	if rec = get(t, h, "GET", "/datasets?skipped=maybe", nil); rec.Code != 400 {
		t.Errorf("expected 400 for an invalid flag, got %d", rec.Code)
	}
}

// Reloading while point reads are in flight must neither panic nor close
// the stack under a running request.
func TestReloadDuringReads(t *testing.T) {
	s := testServer(t, true)
	h := s.routes()

	var wg sync.WaitGroup
	errs := make(chan string, 200)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				rec := get(t, h, "GET", "/point?dataset_name=displacement&lon=-117.95&lat=33.95", nil)
				if rec.Code != 200 {
					errs <- rec.Body.String()
				}
			}
		}()
	}

	config := &utils.Config{Datasets: []*utils.DatasetConfig{s.Registry.Get().Datasets()[0].Config}}
	for i := 0; i < 5; i++ {
		reg, err := proc.NewRegistry(config, proc.RegistryOptions{KeepOpen: true})
		if err != nil {
			t.Fatal(err)
		}
		s.Registry.Swap(reg)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Errorf("point read failed during reload: %s", msg)
	}
}
