package processor

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nci/gstack/raster"
)

// TileSource is a raster source usable by the tile and point endpoints.
// Shape reports (bands, rows, cols); single rasters have one band.
type TileSource interface {
	Shape() (bands, rows, cols int)
	DType() string
	Read(band int, rows, cols raster.Slice) (*raster.Array, error)
	ReadLonLat(lon, lat float64) ([]float64, error)
	Tile(ctx context.Context, req *TileRequest) (*Tile, error)
	Close()
}

// SourceOpener resolves a source identifier into an open TileSource.
type SourceOpener func(id string) (TileSource, error)

// OpenFileSource opens a single raster file. A list of paths separated by
// commas is opened as a stack.
func OpenFileSource(id string) (TileSource, error) {
	if strings.Contains(id, ",") {
		stack, err := raster.OpenMany(strings.Split(id, ","), raster.StackConfig{KeepOpen: true})
		if err != nil {
			return nil, err
		}
		return &StackSource{Stack: stack}, nil
	}
	r, err := raster.Open(id, raster.KeepOpen(true))
	if err != nil {
		return nil, err
	}
	return &RasterSource{Reader: r}, nil
}

// RasterSource serves one band of a single raster file.
type RasterSource struct {
	Reader *raster.Reader
	Debug  bool
}

func (s *RasterSource) Shape() (int, int, int) { return 1, s.Reader.Rows, s.Reader.Cols }

func (s *RasterSource) DType() string { return s.Reader.DType }

func (s *RasterSource) Read(band int, rows, cols raster.Slice) (*raster.Array, error) {
	if band != 0 {
		return nil, &raster.RangeError{Axis: "band", Index: band, Size: 1}
	}
	return s.Reader.Read(rows, cols)
}

func (s *RasterSource) ReadLonLat(lon, lat float64) ([]float64, error) {
	v, err := s.Reader.ReadLonLat(lon, lat)
	if err != nil {
		return nil, err
	}
	return []float64{v}, nil
}

func (s *RasterSource) Tile(ctx context.Context, req *TileRequest) (*Tile, error) {
	if req.Band != 0 {
		return nil, &raster.RangeError{Axis: "band", Index: req.Band, Size: 1}
	}
	return warpTile(ctx, s.Reader, req, s.Debug)
}

func (s *RasterSource) Close() { s.Reader.Close() }

// StackSource serves the files of a raster stack, one band per file.
type StackSource struct {
	Stack *raster.Stack
	Debug bool
}

func (s *StackSource) Shape() (int, int, int) { return s.Stack.Shape() }

func (s *StackSource) DType() string { return s.Stack.DType() }

func (s *StackSource) Read(band int, rows, cols raster.Slice) (*raster.Array, error) {
	return s.Stack.Index(raster.Index(band), rows, cols)
}

func (s *StackSource) ReadLonLat(lon, lat float64) ([]float64, error) {
	return s.Stack.ReadLonLat(lon, lat)
}

func (s *StackSource) Tile(ctx context.Context, req *TileRequest) (*Tile, error) {
	if req.Band < 0 || req.Band >= s.Stack.Len() {
		return nil, &raster.RangeError{Axis: "band", Index: req.Band, Size: s.Stack.Len()}
	}
	return warpTile(ctx, s.Stack.Readers[req.Band], req, s.Debug)
}

func (s *StackSource) Close() { s.Stack.Close() }

func warpTile(ctx context.Context, r *raster.Reader, req *TileRequest, debug bool) (*Tile, error) {
	if err := CheckTile(req.X, req.Y, req.Z); err != nil {
		return nil, err
	}
	if req.TileSize <= 0 {
		req.TileSize = DefaultTileSize
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("tile context has been cancel: %v", ctx.Err())
	default:
	}

	if !TileLatLonBounds(req.X, req.Y, req.Z).Intersects(r.LatLonBounds()) {
		if debug {
			log.Printf("%v outside %s", req, r.Path)
		}
		return emptyTile(req, r.IsComplex()), nil
	}

	arr, err := r.Warp(&raster.WarpRequest{
		EPSG:         WebMercatorEPSG,
		GeoTransform: TileGeoTransform(req.X, req.Y, req.Z, req.TileSize),
		Width:        req.TileSize,
		Height:       req.TileSize,
	}, debug)
	if err != nil {
		return nil, err
	}
	return tileFromArray(arr, req), nil
}
