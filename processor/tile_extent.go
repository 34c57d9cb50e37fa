package processor

import (
	"fmt"
	"math"

	"github.com/nci/gstack/raster"
)

const (
	WebMercatorEPSG = 3857
	WebMercatorCRS  = "EPSG:3857"
	originShift     = 20037508.342789244
	maxZoom         = 30
)

// CheckTile validates tile coordinates for zoom level z.
func CheckTile(x, y, z int) error {
	if z < 0 || z > maxZoom {
		return &raster.RangeError{Axis: "zoom", Index: z, Size: maxZoom + 1}
	}
	n := 1 << uint(z)
	if x < 0 || x >= n {
		return &raster.RangeError{Axis: "tile x", Index: x, Size: n}
	}
	if y < 0 || y >= n {
		return &raster.RangeError{Axis: "tile y", Index: y, Size: n}
	}
	return nil
}

// TileBBox is the EPSG:3857 extent of tile (x, y, z) as
// (minx, miny, maxx, maxy).
func TileBBox(x, y, z int) []float64 {
	size := 2 * originShift / float64(uint64(1)<<uint(z))
	minX := -originShift + float64(x)*size
	maxY := originShift - float64(y)*size
	return []float64{minX, maxY - size, minX + size, maxY}
}

// TileGeoTransform maps a tileSize x tileSize canvas onto tile (x, y, z).
func TileGeoTransform(x, y, z, tileSize int) [6]float64 {
	bbox := TileBBox(x, y, z)
	res := (bbox[2] - bbox[0]) / float64(tileSize)
	return [6]float64{bbox[0], res, 0, bbox[3], 0, -res}
}

// TileLatLonBounds is the EPSG:4326 extent of tile (x, y, z).
func TileLatLonBounds(x, y, z int) raster.Bounds {
	n := float64(uint64(1) << uint(z))
	lon := func(x float64) float64 { return x/n*360 - 180 }
	lat := func(y float64) float64 {
		return math.Atan(math.Sinh(math.Pi*(1-2*y/n))) * 180 / math.Pi
	}
	return raster.Bounds{
		Left:   lon(float64(x)),
		Right:  lon(float64(x + 1)),
		Top:    lat(float64(y)),
		Bottom: lat(float64(y + 1)),
	}
}

func (r *TileRequest) String() string {
	return fmt.Sprintf("tile z=%d x=%d y=%d size=%d band=%d", r.Z, r.X, r.Y, r.TileSize, r.Band)
}
