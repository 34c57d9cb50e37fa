package processor

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
)

const DefaultMaskThreshold = 0.1

// CombineMasks ORs the primary tile mask with the mask raster's own
// invalid pixels, zero mask values and mask values below threshold.
func CombineMasks(primary []bool, mask []float64, maskInvalid []bool, threshold float64) ([]bool, error) {
	if len(mask) != len(primary) {
		return nil, fmt.Errorf("mask tile has %d pixels, primary tile has %d", len(mask), len(primary))
	}
	out := make([]bool, len(primary))
	for i := range out {
		v := mask[i]
		out[i] = primary[i] ||
			(maskInvalid != nil && maskInvalid[i]) ||
			math.IsNaN(v) || v == 0 || v < threshold
	}
	return out, nil
}

type MaskedTileReaderOption func(*MaskedTileReader)

// WithOpener sets how source identifiers are opened.
func WithOpener(opener SourceOpener) MaskedTileReaderOption {
	return func(m *MaskedTileReader) { m.opener = opener }
}

// WithMaskOptional makes a missing or unreadable mask degrade to no masking.
func WithMaskOptional(optional bool) MaskedTileReaderOption {
	return func(m *MaskedTileReader) { m.MaskOptional = optional }
}

func WithVerbose(verbose bool) MaskedTileReaderOption {
	return func(m *MaskedTileReader) { m.Verbose = verbose }
}

// WithSources uses already opened sources. The reader takes ownership of
// them and closes them on Close.
func WithSources(primary, mask TileSource) MaskedTileReaderOption {
	return func(m *MaskedTileReader) {
		m.primary, m.mask = primary, mask
		m.opened = true
	}
}

// MaskedTileReader composes a primary source with an optional mask
// source. Sources are opened on the first fetch and closed together.
type MaskedTileReader struct {
	Primary      string
	Mask         string
	Threshold    float64
	MaskOptional bool
	Verbose      bool

	opener  SourceOpener
	mu      sync.Mutex
	opened  bool
	closed  bool
	primary TileSource
	mask    TileSource
}

func NewMaskedTileReader(primary, mask string, threshold float64, opts ...MaskedTileReaderOption) *MaskedTileReader {
	m := &MaskedTileReader{
		Primary:   primary,
		Mask:      mask,
		Threshold: threshold,
		opener:    OpenFileSource,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MaskedTileReader) open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("tile reader for %s is closed", m.Primary)
	}
	if m.opened {
		return nil
	}

	primary, err := m.opener(m.Primary)
	if err != nil {
		return err
	}

	var mask TileSource
	if len(m.Mask) > 0 {
		mask, err = m.opener(m.Mask)
		if err != nil {
			if !m.MaskOptional {
				primary.Close()
				return fmt.Errorf("opening mask %s: %w", m.Mask, err)
			}
			log.Printf("mask %s unavailable, serving %s unmasked: %v", m.Mask, m.Primary, err)
			mask = nil
		}
	}

	m.primary, m.mask = primary, mask
	m.opened = true
	return nil
}

// FetchTile decodes the primary tile and, when a mask source is
// configured, invalidates pixels rejected by CombineMasks. Data values
// are left unchanged.
func (m *MaskedTileReader) FetchTile(ctx context.Context, x, y, z, tileSize, band int) (*Tile, error) {
	if err := m.open(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	primary, mask := m.primary, m.mask
	m.mu.Unlock()
	if primary == nil {
		return nil, fmt.Errorf("tile reader for %s is closed", m.Primary)
	}

	req := &TileRequest{X: x, Y: y, Z: z, TileSize: tileSize, Band: band}
	tile, err := primary.Tile(ctx, req)
	if err != nil {
		return nil, err
	}
	if mask == nil {
		return tile, nil
	}

	maskReq := *req
	if bands, _, _ := mask.Shape(); band >= bands {
		maskReq.Band = 0
	}
	maskTile, err := mask.Tile(ctx, &maskReq)
	if err != nil {
		if !m.MaskOptional {
			return nil, fmt.Errorf("mask tile %v: %w", &maskReq, err)
		}
		log.Printf("mask tile %v of %s failed, serving unmasked: %v", &maskReq, m.Mask, err)
		return tile, nil
	}

	maskValues := maskTile.Data
	if maskTile.IsComplex() {
		maskValues = make([]float64, len(maskTile.Complex))
		for i, v := range maskTile.Complex {
			maskValues[i] = real(v)
		}
	}

	combined, err := CombineMasks(tile.Mask, maskValues, maskTile.Mask, m.Threshold)
	if err != nil {
		return nil, err
	}
	if m.Verbose {
		log.Printf("%v: %d of %d pixels valid after masking with %s", req, countValid(combined), len(combined), m.Mask)
	}
	tile.Mask = combined
	return tile, nil
}

func countValid(mask []bool) int {
	n := 0
	for _, m := range mask {
		if !m {
			n++
		}
	}
	return n
}

// Close releases the primary and mask sources.
func (m *MaskedTileReader) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.primary != nil {
		m.primary.Close()
	}
	if m.mask != nil {
		m.mask.Close()
	}
	m.primary, m.mask = nil, nil
	m.closed = true
}
