package sssbake

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Atlas is a square UV-space color raster with a parallel coverage mask.
// Row y holds texels with v in [y/S, (y+1)/S).
type Atlas struct {
	Size    int
	Pix     []float32 // Interleaved RGB in [0,1], len = Size*Size*3
	Covered []bool    // len = Size*Size
}

// ErrInvalidAtlas is returned when an atlas fails Validate.
var ErrInvalidAtlas = errors.New("invalid atlas")

func newAtlas(size int) *Atlas {
	return &Atlas{
		Size:    size,
		Pix:     make([]float32, size*size*3),
		Covered: make([]bool, size*size),
	}
}

// Validate checks that the buffers match Size.
func (a *Atlas) Validate() error {
	switch {
	case a == nil:
		return fmt.Errorf("%w: nil atlas", ErrInvalidAtlas)
	case a.Size < 0:
		return fmt.Errorf("%w: size %d", ErrInvalidAtlas, a.Size)
	case len(a.Pix) != a.Size*a.Size*3:
		return fmt.Errorf("%w: %d color values for a %dx%d atlas", ErrInvalidAtlas, len(a.Pix), a.Size, a.Size)
	case len(a.Covered) != a.Size*a.Size:
		return fmt.Errorf("%w: %d coverage flags for a %dx%d atlas", ErrInvalidAtlas, len(a.Covered), a.Size, a.Size)
	}
	return nil
}

func pixOffset(w, x, y int) int {
	return (y*w + x) * 3
}

func maskOffset(w, x, y int) int {
	return y*w + x
}

func (a *Atlas) At(x, y int) colorful.Color {
	off := pixOffset(a.Size, x, y)
	return colorful.Color{
		R: float64(a.Pix[off]),
		G: float64(a.Pix[off+1]),
		B: float64(a.Pix[off+2]),
	}
}

func (a *Atlas) set(x, y int, c colorful.Color) {
	off := pixOffset(a.Size, x, y)
	a.Pix[off] = float32(c.R)
	a.Pix[off+1] = float32(c.G)
	a.Pix[off+2] = float32(c.B)
}

func (a *Atlas) CoveredAt(x, y int) bool {
	return a.Covered[maskOffset(a.Size, x, y)]
}

// CoveredCount returns the number of covered texels.
func (a *Atlas) CoveredCount() int {
	n := 0
	for _, c := range a.Covered {
		if c {
			n++
		}
	}
	return n
}

// Image encodes the atlas as an opaque 8-bit buffer. Vertex colors are
// already display-referred, so channels are written without a transfer curve.
func (a *Atlas) Image() *image.RGBA {
	s := a.Size
	img := image.NewRGBA(image.Rect(0, 0, s, s))
	for y := range s {
		for x := range s {
			off := pixOffset(s, x, y)
			img.SetRGBA(x, y, color.RGBA{
				to8(float64(a.Pix[off])),
				to8(float64(a.Pix[off+1])),
				to8(float64(a.Pix[off+2])),
				255,
			})
		}
	}
	return img
}

// to8 clamps to [0,1] and truncates to 8 bits.
func to8(v float64) uint8 {
	return uint8(max(0, min(255, v*255)))
}
