package raster

// #include "gdal.h"
// #cgo pkg-config: gdal
import "C"

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Bounds is a bounding box in some CRS: (left, bottom, right, top).
type Bounds struct {
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
}

func (b Bounds) Slice() []float64 { return []float64{b.Left, b.Bottom, b.Right, b.Top} }

// Intersects reports whether b and o overlap.
func (b Bounds) Intersects(o Bounds) bool {
	return b.Left < o.Right && o.Left < b.Right && b.Bottom < o.Top && o.Bottom < b.Top
}

const boundsDensifyPoints = 21

type options struct {
	band       int
	nodata     *float64
	keepOpen   bool
	dateFormat string
}

type Option func(*options)

// Band selects the 1-based band to read.
func Band(b int) Option { return func(o *options) { o.band = b } }

// NoData overrides the nodata value stored in the file.
func NoData(v float64) Option { return func(o *options) { o.nodata = &v } }

// KeepOpen keeps the GDAL dataset open between reads.
func KeepOpen(k bool) Option { return func(o *options) { o.keepOpen = k } }

// DateFormat sets the time layout used to find acquisition dates in the
// file name. An empty layout disables date parsing.
func DateFormat(layout string) Option { return func(o *options) { o.dateFormat = layout } }

// Reader is a single raster band addressed as a 2-D array.
type Reader struct {
	Path         string
	Band         int
	Driver       string
	CRS          string
	GeoTransform [6]float64
	Rows, Cols   int
	DType        string
	NoData       float64
	HasNoData    bool
	BlockRows    int
	BlockCols    int
	Dates        []time.Time

	invGeot      [6]float64
	bounds       Bounds
	latlonBounds Bounds

	mu       sync.Mutex
	keepOpen bool
	closed   bool
	ds       C.GDALDatasetH
	toNative *transformer
}

func (r *Reader) closedError(op string) error {
	return &IOError{Path: r.Path, Op: op, Err: fmt.Errorf("reader closed")}
}

// Open reads the metadata of one raster band. The file is closed again
// unless KeepOpen is set.
func Open(path string, opts ...Option) (*Reader, error) {
	o := options{band: 1, dateFormat: DefaultDateFormat}
	for _, opt := range opts {
		opt(&o)
	}

	ds, err := openDataset(path, C.GA_ReadOnly)
	if err != nil {
		return nil, err
	}

	r := &Reader{Path: path, Band: o.band, keepOpen: o.keepOpen}
	if err := r.loadMetadata(ds, o); err != nil {
		C.GDALClose(ds)
		return nil, err
	}

	if o.keepOpen {
		r.ds = ds
	} else {
		C.GDALClose(ds)
	}
	return r, nil
}

func (r *Reader) loadMetadata(ds C.GDALDatasetH, o options) error {
	nBands := int(C.GDALGetRasterCount(ds))
	if o.band < 1 || o.band > nBands {
		return &RangeError{Axis: "band", Msg: fmt.Sprintf("band %d requested from %s with %d bands", o.band, r.Path, nBands)}
	}
	bandH := C.GDALGetRasterBand(ds, C.int(o.band))
	if bandH == nil {
		return &IOError{Path: r.Path, Op: "GDALGetRasterBand", Err: fmt.Errorf("%s", lastGDALError())}
	}

	r.Driver = C.GoString(C.GDALGetDriverShortName(C.GDALGetDatasetDriver(ds)))
	r.CRS = C.GoString(C.GDALGetProjectionRef(ds))
	r.Cols = int(C.GDALGetRasterXSize(ds))
	r.Rows = int(C.GDALGetRasterYSize(ds))
	r.DType = GDALTypes[C.GDALGetRasterDataType(bandH)]

	var bx, by C.int
	C.GDALGetBlockSize(bandH, &bx, &by)
	r.BlockCols, r.BlockRows = int(bx), int(by)

	if o.nodata != nil {
		r.NoData, r.HasNoData = *o.nodata, true
	} else {
		var hasNoData C.int
		nodata := float64(C.GDALGetRasterNoDataValue(bandH, &hasNoData))
		if hasNoData != 0 {
			r.NoData, r.HasNoData = nodata, true
		}
	}

	geot := make([]float64, 6)
	if C.GDALGetGeoTransform(ds, (*C.double)(&geot[0])) != C.CE_None {
		geot = []float64{0, 1, 0, 0, 0, 1}
	}
	copy(r.GeoTransform[:], geot)
	inv := make([]float64, 6)
	if C.GDALInvGeoTransform((*C.double)(&geot[0]), (*C.double)(&inv[0])) == 0 {
		return &IOError{Path: r.Path, Op: "GDALInvGeoTransform", Err: fmt.Errorf("geotransform %v is not invertible", geot)}
	}
	copy(r.invGeot[:], inv)

	r.Dates = ParseDates(r.Path, o.dateFormat)
	r.bounds = GeoTransformBounds(r.GeoTransform, r.Rows, r.Cols)
	r.latlonBounds = r.bounds

	if len(r.CRS) == 0 {
		return nil
	}
	toNative, err := newTransformer(WGS84WKT, 4326, r.CRS, 0)
	if err != nil {
		return &IOError{Path: r.Path, Op: "transformer", Err: err}
	}
	r.toNative = toNative

	toLatLon, err := newTransformer(r.CRS, 0, WGS84WKT, 4326)
	if err != nil {
		return &IOError{Path: r.Path, Op: "transformer", Err: err}
	}
	defer toLatLon.close()
	r.latlonBounds, err = toLatLon.transformBounds(r.bounds, boundsDensifyPoints)
	if err != nil {
		return &IOError{Path: r.Path, Op: "transform bounds", Err: err}
	}
	return nil
}

// GeoTransformBounds computes the edges of a rows x cols grid.
func GeoTransformBounds(geot [6]float64, rows, cols int) Bounds {
	xs := []float64{geot[0], geot[0] + float64(cols)*geot[1] + float64(rows)*geot[2]}
	ys := []float64{geot[3], geot[3] + float64(cols)*geot[4] + float64(rows)*geot[5]}
	return Bounds{
		Left:   math.Min(xs[0], xs[1]),
		Right:  math.Max(xs[0], xs[1]),
		Bottom: math.Min(ys[0], ys[1]),
		Top:    math.Max(ys[0], ys[1]),
	}
}

func (r *Reader) Shape() (rows, cols int) { return r.Rows, r.Cols }

func (r *Reader) IsComplex() bool { return IsComplexType(r.DType) }

// Bounds is the native extent of the raster.
func (r *Reader) Bounds() Bounds { return r.bounds }

// LatLonBounds is the extent of the raster in EPSG:4326.
func (r *Reader) LatLonBounds() Bounds { return r.latlonBounds }

// Read performs a windowed read. Strided windows are read at full
// resolution over their bounding box and subsampled in memory. Axes of
// length one are squeezed from the result.
func (r *Reader) Read(rows, cols Slice) (*Array, error) {
	r0, r1, rStep, err := rows.Resolve("row", r.Rows)
	if err != nil {
		return nil, err
	}
	c0, c1, cStep, err := cols.Resolve("col", r.Cols)
	if err != nil {
		return nil, err
	}

	arr, err := r.readWindow(r0, r1, c0, c1, rStep, cStep)
	if err != nil {
		return nil, err
	}
	return arr.Squeeze(), nil
}

func (r *Reader) readWindow(r0, r1, c0, c1, rStep, cStep int) (*Array, error) {
	nRows, nCols := r1-r0, c1-c0

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, r.closedError("read")
	}

	ds := r.ds
	if ds == nil {
		var err error
		ds, err = openDataset(r.Path, C.GA_ReadOnly)
		if err != nil {
			return nil, err
		}
		defer C.GDALClose(ds)
	}
	bandH := C.GDALGetRasterBand(ds, C.int(r.Band))
	if bandH == nil {
		return nil, &IOError{Path: r.Path, Op: "GDALGetRasterBand", Err: fmt.Errorf("%s", lastGDALError())}
	}

	data, cdata, err := readBand(bandH, c0, r0, nCols, nRows, r.IsComplex())
	if err != nil {
		return nil, &IOError{Path: r.Path, Op: "read", Err: err}
	}

	arr := &Array{Shape: []int{stepLen(r0, r1, rStep), stepLen(c0, c1, cStep)}}
	if cdata != nil {
		arr.Complex = subsampleComplex(cdata, nRows, nCols, rStep, cStep)
		if r.HasNoData {
			arr.Mask = complexNoDataMask(arr.Complex, r.NoData)
		}
	} else {
		arr.Data = subsample(data, nRows, nCols, rStep, cStep)
		if r.HasNoData {
			arr.Mask = noDataMask(arr.Data, r.NoData)
		}
	}
	if arr.Mask == nil {
		arr.Mask = make([]bool, arr.Len())
	}
	return arr, nil
}

// LonLatToPixel maps an EPSG:4326 coordinate to the containing cell. The
// cell may lie outside the raster.
func (r *Reader) LonLatToPixel(lon, lat float64) (row, col int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, 0, r.closedError("lonlat to pixel")
	}

	x, y := lon, lat
	if r.toNative != nil {
		xs, ys := []float64{lon}, []float64{lat}
		if err = r.toNative.transform(xs, ys); err != nil {
			return 0, 0, err
		}
		x, y = xs[0], ys[0]
	}
	row, col = applyInvGeoTransform(r.invGeot, x, y)
	return row, col, nil
}

// checkPixel rejects cells outside the raster. Index(-1) would otherwise
// silently address the last row.
func (r *Reader) checkPixel(row, col int) error {
	if row < 0 || row >= r.Rows {
		return &RangeError{Axis: "row", Index: row, Size: r.Rows}
	}
	if col < 0 || col >= r.Cols {
		return &RangeError{Axis: "col", Index: col, Size: r.Cols}
	}
	return nil
}

func applyInvGeoTransform(inv [6]float64, x, y float64) (row, col int) {
	px := inv[0] + x*inv[1] + y*inv[2]
	py := inv[3] + x*inv[4] + y*inv[5]
	return int(math.Floor(py)), int(math.Floor(px))
}

// ReadLonLat reads the pixel containing (lon, lat). Masked pixels are NaN.
func (r *Reader) ReadLonLat(lon, lat float64) (float64, error) {
	row, col, err := r.LonLatToPixel(lon, lat)
	if err != nil {
		return math.NaN(), err
	}
	if err := r.checkPixel(row, col); err != nil {
		return math.NaN(), err
	}
	arr, err := r.Read(Index(row), Index(col))
	if err != nil {
		return math.NaN(), err
	}
	return arr.Value(0), nil
}

// Close releases the GDAL handles. Later reads fail with an IOError.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.ds != nil {
		C.GDALClose(r.ds)
		r.ds = nil
	}
	r.toNative.close()
	r.toNative = nil
}
