package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/nci/gstack/utils"
)

// EncodePNG renders a scaled tile through palette. NoDataByte pixels are
// transparent, and an empty tile becomes the cached transparent PNG.
func EncodePNG(bt *ByteTile, palette *Palette) ([]byte, error) {
	if bt.Empty {
		return utils.GetEmptyTile("", bt.Height, bt.Width)
	}

	ramp, err := GradientRGBAPalette(palette)
	if err != nil {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, bt.Width, bt.Height))
	for y := 0; y < bt.Height; y++ {
		for x := 0; x < bt.Width; x++ {
			v := bt.Data[y*bt.Width+x]
			if v == NoDataByte {
				continue
			}
			if ramp == nil {
				img.Set(x, y, color.NRGBA{v, v, v, 255})
			} else {
				c := ramp[v]
				img.Set(x, y, color.NRGBA{c.R, c.G, c.B, 255})
			}
		}
	}

	buf := new(bytes.Buffer)
	if err = png.Encode(buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeColorbar renders a horizontal strip of the palette ramp.
func EncodeColorbar(palette *Palette, width, height int) ([]byte, error) {
	bt := &ByteTile{Width: width, Height: height, Data: make([]uint8, width*height)}
	for x := 0; x < width; x++ {
		v := uint8(x * 254 / maxInt(width-1, 1))
		for y := 0; y < height; y++ {
			bt.Data[y*width+x] = v
		}
	}
	return EncodePNG(bt, palette)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type PNGEncoder struct {
	In    chan *TileJob
	Out   chan []byte
	Error chan error
}

func NewPNGEncoder(errChan chan error) *PNGEncoder {
	return &PNGEncoder{
		In:    make(chan *TileJob, 100),
		Out:   make(chan []byte, 100),
		Error: errChan,
	}
}

func (enc *PNGEncoder) Run() {
	defer close(enc.Out)

	for job := range enc.In {
		out, err := EncodePNG(job.Bytes, job.Palette)
		if err != nil {
			enc.Error <- err
			return
		}
		enc.Out <- out
	}
}
