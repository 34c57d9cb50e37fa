package processor

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
)

const DefaultColormap = "viridis"

// Palette is a list of colours spread over the 256 entries of a ramp,
// either as interpolated stops or as flat bins.
type Palette struct {
	Name        string
	Interpolate bool
	Colours     []color.RGBA
}

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{r, g, b, 255} }

var palettes = map[string]*Palette{
	"viridis": {Name: "viridis", Interpolate: true, Colours: []color.RGBA{
		rgb(68, 1, 84), rgb(59, 82, 139), rgb(33, 145, 140), rgb(94, 201, 98), rgb(253, 231, 37)}},
	"magma": {Name: "magma", Interpolate: true, Colours: []color.RGBA{
		rgb(0, 0, 4), rgb(81, 18, 124), rgb(183, 55, 121), rgb(252, 137, 97), rgb(252, 253, 191)}},
	"rdbu": {Name: "RdBu", Interpolate: true, Colours: []color.RGBA{
		rgb(103, 0, 31), rgb(214, 96, 77), rgb(247, 247, 247), rgb(67, 147, 195), rgb(5, 48, 97)}},
	"rdbu_r": {Name: "RdBu_r", Interpolate: true, Colours: []color.RGBA{
		rgb(5, 48, 97), rgb(67, 147, 195), rgb(247, 247, 247), rgb(214, 96, 77), rgb(103, 0, 31)}},
	"twilight": {Name: "twilight", Interpolate: true, Colours: []color.RGBA{
		rgb(226, 217, 226), rgb(95, 144, 186), rgb(47, 20, 77), rgb(168, 70, 74), rgb(226, 217, 226)}},
	"gray": {Name: "gray", Interpolate: true, Colours: []color.RGBA{rgb(0, 0, 0), rgb(255, 255, 255)}},
	"jet": {Name: "jet", Interpolate: true, Colours: []color.RGBA{
		rgb(0, 0, 128), rgb(0, 0, 255), rgb(0, 255, 255), rgb(255, 255, 0), rgb(255, 0, 0), rgb(128, 0, 0)}},
}

// LookupPalette finds a named palette ignoring case. An empty name
// returns the default.
func LookupPalette(name string) (*Palette, error) {
	if len(name) == 0 {
		name = DefaultColormap
	}
	p, ok := palettes[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown colormap: %s", name)
	}
	return p, nil
}

// PaletteNames lists the registered colormaps.
func PaletteNames() []string {
	var names []string
	for _, p := range palettes {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// InterpolateUint8 interpolates the value of a
// byte between two numbers 'a' and 'b' by
// especifying a length and a position 'i'
// along that length.
func InterpolateUint8(a, b uint8, i, sectionLength int) uint8 {
	return uint8(int(a) + i*(int(b)-int(a))/sectionLength)
}

// InterpolateColor returns an RGBA color where
// the R, G, B, and A components have been
// interpolated from the 'a' and 'b' colors
func InterpolateColor(a, b color.RGBA, i, sectionLength int) color.RGBA {
	return color.RGBA{InterpolateUint8(a.R, b.R, i, sectionLength),
		InterpolateUint8(a.G, b.G, i, sectionLength),
		InterpolateUint8(a.B, b.B, i, sectionLength),
		255}
}

// GradientRGBAPalette returns a palette of 256 colors
// creating an interpolation that goes though
// a list of provided colours.
func GradientRGBAPalette(palette *Palette) ([]color.RGBA, error) {
	if palette == nil {
		return nil, nil
	}
	if len(palette.Colours) == 0 || (palette.Interpolate && len(palette.Colours) < 2) {
		return nil, fmt.Errorf("palette %s needs more colours", palette.Name)
	}

	ramp := make([]color.RGBA, 256)

	bins := len(palette.Colours)
	if palette.Interpolate {
		bins--
	}
	sectionLength := 256 / bins
	bonus := 256 - (sectionLength * bins)
	bonusArr := make([]int, bins)
	for i := 0; i < bonus; i++ {
		bonusArr[i] = 1
	}

	index := 0
	for section := 0; section < bins; section++ {
		n := sectionLength + bonusArr[section]
		for i := 0; i < n; i++ {
			if palette.Interpolate && n > 1 {
				ramp[index] = InterpolateColor(palette.Colours[section], palette.Colours[section+1], i, n-1)
			} else {
				ramp[index] = palette.Colours[section]
			}
			index++
		}
	}

	return ramp, nil
}
