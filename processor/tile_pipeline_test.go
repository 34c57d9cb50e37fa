package processor

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"testing"
)

func runTilePipeline(job *TileJob) ([]byte, error) {
	errChan := make(chan error, 100)
	tp := InitTilePipeline(context.Background(), false, errChan)
	out, ok := <-tp.Process(job)
	if !ok {
		return nil, <-errChan
	}
	return out, nil
}

func TestTilePipeline(t *testing.T) {
	primary := &memSource{tiles: []*Tile{realTile([]float64{1, 2, 3, 4}, nil)}}
	mask := &memSource{tiles: []*Tile{realTile([]float64{1, 1, 0.01, 1}, nil)}}
	vmin, vmax := 0.0, 3.0
	palette, _ := LookupPalette("gray")

	job := &TileJob{
		Request:   &TileRequest{TileSize: 4},
		Reader:    NewMaskedTileReader("", "", DefaultMaskThreshold, WithSources(primary, mask)),
		Algorithm: Shift{Offset: 1},
		Scale:     ScaleParams{VMin: &vmin, VMax: &vmax},
		Palette:   palette,
	}
	out, err := runTilePipeline(job)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 1 {
		t.Fatalf("unexpected image size %v", img.Bounds())
	}
	if r, _, _, a := img.At(0, 0).RGBA(); r != 0 || a != 0xffff {
		t.Errorf("expected shifted minimum to be black, got r=%d a=%d", r, a)
	}
	if _, _, _, a := img.At(2, 0).RGBA(); a != 0 {
		t.Errorf("expected masked pixel transparent, alpha %d", a)
	}
	if job.Tile.Data[3] != 3 {
		t.Errorf("expected shifted data, got %v", job.Tile.Data)
	}
}

func TestTilePipelineComplex(t *testing.T) {
	tile := &Tile{Width: 2, Height: 1, Complex: []complex128{complex(3, 4), 0}, Mask: []bool{false, false}}
	job := &TileJob{
		Request: &TileRequest{TileSize: 2},
		Reader:  NewMaskedTileReader("", "", DefaultMaskThreshold, WithSources(&memSource{tiles: []*Tile{tile}}, nil)),
	}
	if _, err := runTilePipeline(job); err != nil {
		t.Fatal(err)
	}
	if job.Tile.IsComplex() || job.Tile.Data[0] != 5 || !job.Tile.Mask[1] {
		t.Errorf("expected complex tile shown as amplitude, got %+v", job.Tile)
	}
}

func TestTilePipelineErrors(t *testing.T) {
	broken := &memSource{tiles: []*Tile{realTile([]float64{1}, nil)}, err: fmt.Errorf("read failed")}
	job := &TileJob{
		Request: &TileRequest{TileSize: 1},
		Reader:  NewMaskedTileReader("", "", DefaultMaskThreshold, WithSources(broken, nil)),
	}
	if _, err := runTilePipeline(job); err == nil || err.Error() != "read failed" {
		t.Errorf("expected read error, got %v", err)
	}

	complexTile := &Tile{Width: 1, Height: 1, Complex: []complex128{1}, Mask: []bool{false}}
	job = &TileJob{
		Request:   &TileRequest{TileSize: 1},
		Reader:    NewMaskedTileReader("", "", DefaultMaskThreshold, WithSources(&memSource{tiles: []*Tile{complexTile}}, nil)),
		Algorithm: Rewrap{},
	}
	if _, err := runTilePipeline(job); err == nil {
		t.Errorf("expected rewrap error for complex tile")
	}
}
