package processor

import (
	"fmt"
	"math"
)

// NoDataByte marks transparent pixels of a scaled tile. Valid pixels
// use 0-254.
const NoDataByte = 0xFF

// ScaleParams maps [VMin, VMax] linearly onto the byte range. Nil bounds
// are taken from the valid pixels of each tile.
type ScaleParams struct {
	VMin *float64
	VMax *float64
}

// ByteTile is a scaled single band tile ready for palette lookup.
type ByteTile struct {
	Width, Height int
	Data          []uint8
	Empty         bool
}

func validRange(t *Tile) (float64, float64, bool) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range t.Data {
		if t.Mask[i] || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, lo <= hi
}

// ScaleTile converts a real valued tile to bytes. Masked and non-finite
// pixels become NoDataByte; values outside the range are clipped.
func ScaleTile(t *Tile, params ScaleParams) (*ByteTile, error) {
	if t.IsComplex() {
		return nil, fmt.Errorf("cannot scale complex tile, apply phase or amplitude first")
	}
	n := t.Width * t.Height
	if len(t.Data) != n || len(t.Mask) != n {
		return nil, fmt.Errorf("tile size mismatch: %dx%d with %d values", t.Width, t.Height, len(t.Data))
	}

	out := &ByteTile{Width: t.Width, Height: t.Height, Data: make([]uint8, n), Empty: t.Empty}
	for i := range out.Data {
		out.Data[i] = NoDataByte
	}

	lo, hi, ok := validRange(t)
	if !ok {
		out.Empty = true
		return out, nil
	}
	if params.VMin != nil {
		lo = *params.VMin
	}
	if params.VMax != nil {
		hi = *params.VMax
	}
	if lo > hi {
		return nil, fmt.Errorf("invalid scale range [%v, %v]", lo, hi)
	}

	span := hi - lo
	for i, value := range t.Data {
		if t.Mask[i] || math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		if value > hi {
			value = hi
		}
		if value < lo {
			value = lo
		}
		if span == 0 {
			out.Data[i] = 127
		} else {
			out.Data[i] = uint8(math.Round((value - lo) / span * 254.0))
		}
	}
	return out, nil
}

// TileScaler is the scaling stage of the tile pipeline.
type TileScaler struct {
	In    chan *TileJob
	Out   chan *TileJob
	Error chan error
}

func NewTileScaler(errChan chan error) *TileScaler {
	return &TileScaler{
		In:    make(chan *TileJob, 100),
		Out:   make(chan *TileJob, 100),
		Error: errChan,
	}
}

func (scl *TileScaler) Run() {
	defer close(scl.Out)

	for job := range scl.In {
		bt, err := ScaleTile(job.Tile, job.Scale)
		if err != nil {
			scl.Error <- fmt.Errorf("scaling tile %v: %v", job.Request, err)
			return
		}
		job.Bytes = bt
		scl.Out <- job
	}
}
