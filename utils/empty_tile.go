package utils

import (
	"bytes"
	"image"
	"image/draw"
	"image/png"
	"os"
	"sync"
)

const tSize = 256

var emptyTiles sync.Map

// GetEmptyTile returns a PNG of the given size. Without imageFilename
// the tile is fully transparent; otherwise the image is repeated across
// the canvas in 256 pixel steps. Transparent tiles are cached by size.
func GetEmptyTile(imageFilename string, height, width int) ([]byte, error) {
	key := [2]int{width, height}
	if len(imageFilename) == 0 {
		if cached, ok := emptyTiles.Load(key); ok {
			return cached.([]byte), nil
		}
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))

	if len(imageFilename) > 0 {
		infile, err := os.Open(imageFilename)
		if err != nil {
			return nil, err
		}
		defer infile.Close()

		tile, _, err := image.Decode(infile)
		if err != nil {
			return nil, err
		}

		for x := 0; x < width; x += tSize {
			for y := 0; y < height; y += tSize {
				draw.Draw(canvas, image.Rect(x, y, x+tSize, y+tSize), tile, image.Point{}, draw.Src)
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, canvas); err != nil {
		return nil, err
	}

	if len(imageFilename) == 0 {
		emptyTiles.Store(key, buf.Bytes())
	}
	return buf.Bytes(), nil
}
