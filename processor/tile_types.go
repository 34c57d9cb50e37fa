package processor

import (
	"math"

	"github.com/nci/gstack/raster"
)

const DefaultTileSize = 256

// TileRequest addresses one web mercator tile of a source band.
type TileRequest struct {
	X, Y, Z  int
	TileSize int
	Band     int
}

// Tile is a decoded tile. Mask[i] is true where the pixel is invalid.
// Complex tiles carry their samples in Complex and leave Data nil.
type Tile struct {
	Width, Height int
	Data          []float64
	Complex       []complex128
	Mask          []bool
	BBox          []float64
	CRS           string
	Empty         bool
}

func (t *Tile) IsComplex() bool { return t.Complex != nil }

// Clone copies the tile, keeping its georeferencing.
func (t *Tile) Clone() *Tile {
	out := &Tile{Width: t.Width, Height: t.Height, CRS: t.CRS, Empty: t.Empty}
	out.BBox = append([]float64(nil), t.BBox...)
	out.Mask = append([]bool(nil), t.Mask...)
	if t.Data != nil {
		out.Data = append([]float64(nil), t.Data...)
	}
	if t.Complex != nil {
		out.Complex = append([]complex128(nil), t.Complex...)
	}
	return out
}

// withData returns a real valued tile sharing t's georeferencing.
func (t *Tile) withData(data []float64, mask []bool) *Tile {
	return &Tile{Width: t.Width, Height: t.Height, Data: data, Mask: mask,
		BBox: append([]float64(nil), t.BBox...), CRS: t.CRS, Empty: t.Empty}
}

// Valid reports the number of unmasked pixels.
func (t *Tile) Valid() int { return countValid(t.Mask) }

func tileFromArray(arr *raster.Array, req *TileRequest) *Tile {
	return &Tile{
		Width:   req.TileSize,
		Height:  req.TileSize,
		Data:    arr.Data,
		Complex: arr.Complex,
		Mask:    arr.Mask,
		BBox:    TileBBox(req.X, req.Y, req.Z),
		CRS:     WebMercatorCRS,
	}
}

func emptyTile(req *TileRequest, complexData bool) *Tile {
	n := req.TileSize * req.TileSize
	t := &Tile{Width: req.TileSize, Height: req.TileSize, Mask: make([]bool, n),
		BBox: TileBBox(req.X, req.Y, req.Z), CRS: WebMercatorCRS, Empty: true}
	for i := range t.Mask {
		t.Mask[i] = true
	}
	if complexData {
		t.Complex = make([]complex128, n)
		for i := range t.Complex {
			t.Complex[i] = complex(math.NaN(), math.NaN())
		}
	} else {
		t.Data = make([]float64, n)
		for i := range t.Data {
			t.Data[i] = math.NaN()
		}
	}
	return t
}
