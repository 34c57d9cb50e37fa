package raster

import (
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"
)

const (
	DefaultOpenWorkers = 15
	DefaultReadWorkers = 3
)

type StackConfig struct {
	Band        int
	KeepOpen    bool
	OpenWorkers int
	ReadWorkers int
	DateFormat  *string
	NoData      *float64
}

// Stack presents co-registered single band files as one 3-D array indexed
// by (file, row, col). Its handles are owned exclusively by the stack.
type Stack struct {
	Paths     []string
	Readers   []*Reader
	NoData    float64
	HasNoData bool

	readWorkers  int
	dates        [][]time.Time
	bounds       Bounds
	latlonBounds Bounds
}

// OpenMany opens every path concurrently. A failure on any file closes the
// readers opened so far and fails the whole stack.
func OpenMany(paths []string, cfg StackConfig) (*Stack, error) {
	if len(paths) == 0 {
		return nil, configErrorf("raster stack needs at least one file")
	}
	if cfg.OpenWorkers <= 0 {
		cfg.OpenWorkers = DefaultOpenWorkers
	}
	if cfg.ReadWorkers <= 0 {
		cfg.ReadWorkers = DefaultReadWorkers
	}
	if cfg.Band <= 0 {
		cfg.Band = 1
	}

	opts := []Option{Band(cfg.Band), KeepOpen(cfg.KeepOpen)}
	if cfg.DateFormat != nil {
		opts = append(opts, DateFormat(*cfg.DateFormat))
	}
	if cfg.NoData != nil {
		opts = append(opts, NoData(*cfg.NoData))
	}

	readers := make([]*Reader, len(paths))
	errs := make([]error, len(paths))
	concLimit := make(chan struct{}, cfg.OpenWorkers)
	var wg sync.WaitGroup
	for idx, path := range paths {
		wg.Add(1)
		concLimit <- struct{}{}
		go func(idx int, path string) {
			defer wg.Done()
			defer func() { <-concLimit }()
			readers[idx], errs[idx] = Open(path, opts...)
		}(idx, path)
	}
	wg.Wait()

	closeAll := func() {
		for _, r := range readers {
			if r != nil {
				r.Close()
			}
		}
	}
	for idx, err := range errs {
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("opening stack member %d: %w", idx, err)
		}
	}
	if err := checkHomogeneous(readers); err != nil {
		closeAll()
		return nil, err
	}

	s := &Stack{
		Paths:        append([]string(nil), paths...),
		Readers:      readers,
		readWorkers:  cfg.ReadWorkers,
		bounds:       readers[0].Bounds(),
		latlonBounds: readers[0].LatLonBounds(),
	}
	for _, r := range readers {
		s.dates = append(s.dates, r.Dates)
	}
	s.NoData, s.HasNoData = unifyNoData(readers)
	return s, nil
}

// checkHomogeneous rejects stacks whose members differ from the first in
// dtype or grid size.
func checkHomogeneous(readers []*Reader) error {
	first := readers[0]
	for idx, r := range readers[1:] {
		if r.DType != first.DType {
			return configErrorf("stack member %d (%s) has dtype %s, expected %s", idx+1, r.Path, r.DType, first.DType)
		}
		if r.Rows != first.Rows || r.Cols != first.Cols {
			return configErrorf("stack member %d (%s) has shape %dx%d, expected %dx%d", idx+1, r.Path, r.Rows, r.Cols, first.Rows, first.Cols)
		}
	}
	return nil
}

// unifyNoData returns the nodata value shared by every reader. When the
// readers disagree no stack wide nodata is set and a warning is logged.
func unifyNoData(readers []*Reader) (float64, bool) {
	seen := make(map[string]float64)
	for _, r := range readers {
		key := "unset"
		if r.HasNoData {
			key = fmt.Sprintf("%v", r.NoData)
		}
		seen[key] = r.NoData
	}

	if len(seen) == 1 {
		for key, v := range seen {
			if key == "unset" {
				return 0, false
			}
			return v, true
		}
	}

	var keys []string
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	log.Printf("data quality warning: inconsistent nodata values %v across %d files, stack nodata left unset", keys, len(readers))
	return 0, false
}

// Len is the number of files in the stack.
func (s *Stack) Len() int { return len(s.Readers) }

func (s *Stack) Shape() (bands, rows, cols int) {
	return len(s.Readers), s.Readers[0].Rows, s.Readers[0].Cols
}

func (s *Stack) DType() string { return s.Readers[0].DType }

// Dates lists the dates parsed from each file name, aligned with Paths.
func (s *Stack) Dates() [][]time.Time { return s.dates }

func (s *Stack) Bounds() Bounds { return s.bounds }

func (s *Stack) LatLonBounds() Bounds { return s.latlonBounds }

// Index reads a 3-D window. A single slice selects bands over the full
// spatial extent; three slices select (band, row, col). Each band is read
// by a bounded pool and results are assembled in band order.
func (s *Stack) Index(key ...Slice) (*Array, error) {
	var bandKey, rowKey, colKey Slice
	switch len(key) {
	case 1:
		bandKey, rowKey, colKey = key[0], All(), All()
	case 3:
		bandKey, rowKey, colKey = key[0], key[1], key[2]
	default:
		return nil, &RangeError{Axis: "key", Msg: fmt.Sprintf("expected 1 or 3 slices, got %d", len(key))}
	}

	bands, err := bandKey.Indices("band", len(s.Readers))
	if err != nil {
		return nil, err
	}
	r0, r1, rStep, err := rowKey.Resolve("row", s.Readers[0].Rows)
	if err != nil {
		return nil, err
	}
	c0, c1, cStep, err := colKey.Resolve("col", s.Readers[0].Cols)
	if err != nil {
		return nil, err
	}

	arrs, err := s.readBands(bands, func(r *Reader) (*Array, error) {
		return r.readWindow(r0, r1, c0, c1, rStep, cStep)
	})
	if err != nil {
		return nil, err
	}
	return StackArrays(arrs).Squeeze(), nil
}

func (s *Stack) readBands(bands []int, read func(*Reader) (*Array, error)) ([]*Array, error) {
	out := make([]*Array, len(bands))
	errs := make([]error, len(bands))
	concLimit := make(chan struct{}, s.readWorkers)
	var wg sync.WaitGroup
	for idx, band := range bands {
		wg.Add(1)
		concLimit <- struct{}{}
		go func(idx int, r *Reader) {
			defer wg.Done()
			defer func() { <-concLimit }()
			out[idx], errs[idx] = read(r)
		}(idx, s.Readers[band])
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ReadLonLat reads the full time series at (lon, lat). The pixel is
// resolved once against the first file. Masked values are NaN.
func (s *Stack) ReadLonLat(lon, lat float64) ([]float64, error) {
	first := s.Readers[0]
	row, col, err := first.LonLatToPixel(lon, lat)
	if err != nil {
		return nil, err
	}
	if err := first.checkPixel(row, col); err != nil {
		return nil, err
	}

	bands := make([]int, len(s.Readers))
	for i := range bands {
		bands[i] = i
	}
	arrs, err := s.readBands(bands, func(r *Reader) (*Array, error) {
		return r.readWindow(row, row+1, col, col+1, 1, 1)
	})
	if err != nil {
		return nil, err
	}

	series := make([]float64, len(arrs))
	for i, a := range arrs {
		series[i] = a.Value(0)
		if s.HasNoData && !math.IsNaN(series[i]) && series[i] == s.NoData {
			series[i] = math.NaN()
		}
	}
	return series, nil
}

func (s *Stack) Close() {
	for _, r := range s.Readers {
		r.Close()
	}
}
