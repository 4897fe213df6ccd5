package sssbake

import (
	"log"
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// Barycentric weights down to this value still count as inside, so
	// adjacent triangles overlap by a hairline instead of leaving cracks.
	insideTolerance = -1e-4
	// Twice the pixel-space area below which a triangle is skipped.
	degenerateArea = 1e-10
	// Rounds of seam fill after rasterization.
	seamFillRounds = 2
	progressEvery  = 50000
)

// Bake rasterizes every face of m into a fresh opt.Resolution-sized atlas
// and seam-fills the result.
//
// Faces are drawn in order. Where triangles overlap in UV space the last face
// wins; overlapping UV layouts are not supported input.
func Bake(m *Mesh, opt Options) (*Atlas, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	s := opt.Resolution
	atlas := newAtlas(s)
	scale := float64(s)
	numFaces := len(m.Faces)
	for fi, f := range m.Faces {
		if fi > 0 && fi%progressEvery == 0 {
			log.Printf("   bake triangle %d/%d (%d%%)", fi, numFaces, fi*100/numFaces)
		}
		tri := r2.Triangle{
			r2.Scale(scale, m.UVs[f[0]]),
			r2.Scale(scale, m.UVs[f[1]]),
			r2.Scale(scale, m.UVs[f[2]]),
		}
		atlas.drawTriangle(tri, [3]colorful.Color{m.Colors[f[0]], m.Colors[f[1]], m.Colors[f[2]]})
	}
	baked := atlas.CoveredCount()
	atlas.seamFill(seamFillRounds)
	log.Printf("   baked %d texels (%d after seam fill) in %v", baked, atlas.CoveredCount(), time.Since(start))
	return atlas, nil
}

// drawTriangle writes the barycentric blend of cols into every texel whose
// center lies inside tri (pixel space). Returns the number of texels written.
func (a *Atlas) drawTriangle(tri r2.Triangle, cols [3]colorful.Color) int {
	s := a.Size
	p0 := tri[0]
	minX := max(0, int(math.Floor(min(tri[0].X, tri[1].X, tri[2].X))))
	maxX := min(s-1, int(math.Ceil(max(tri[0].X, tri[1].X, tri[2].X))))
	minY := max(0, int(math.Floor(min(tri[0].Y, tri[1].Y, tri[2].Y))))
	maxY := min(s-1, int(math.Ceil(max(tri[0].Y, tri[1].Y, tri[2].Y))))
	if maxX < minX || maxY < minY {
		return 0
	}

	e1 := r2.Sub(tri[1], p0)
	e2 := r2.Sub(tri[2], p0)
	denom := r2.Cross(e1, e2)
	if math.Abs(denom) < degenerateArea {
		return 0
	}
	invDenom := 1.0 / denom

	written := 0
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			d := r2.Vec{X: float64(x) + 0.5 - p0.X, Y: float64(y) + 0.5 - p0.Y}
			u := r2.Cross(d, e2) * invDenom
			v := r2.Cross(e1, d) * invDenom
			w := 1.0 - u - v
			if u < insideTolerance || v < insideTolerance || w < insideTolerance {
				continue
			}
			a.set(x, y, colorful.Color{
				R: w*cols[0].R + u*cols[1].R + v*cols[2].R,
				G: w*cols[0].G + u*cols[1].G + v*cols[2].G,
				B: w*cols[0].B + u*cols[1].B + v*cols[2].B,
			})
			a.Covered[maskOffset(s, x, y)] = true
			written++
		}
	}
	return written
}

// seamFill closes UV seam gaps. Each round replaces every texel that was
// uncovered before the first round with the per-channel maximum of its 3x3
// neighbourhood, so the second round also reads texels filled by the first.
// Afterwards the coverage mask grows by the same number of 4-connected
// dilations. Covered texels are never rewritten.
func (a *Atlas) seamFill(rounds int) {
	s := a.Size
	if rounds <= 0 || s == 0 {
		return
	}
	unfilled := make([]bool, len(a.Covered))
	for i, c := range a.Covered {
		unfilled[i] = !c
	}
	next := make([]float32, len(a.Pix))
	for range rounds {
		copy(next, a.Pix)
		for y := range s {
			y0, y1 := max(0, y-1), min(s-1, y+1)
			for x := range s {
				if !unfilled[maskOffset(s, x, y)] {
					continue
				}
				x0, x1 := max(0, x-1), min(s-1, x+1)
				var r, g, b float32
				for ny := y0; ny <= y1; ny++ {
					for nx := x0; nx <= x1; nx++ {
						off := pixOffset(s, nx, ny)
						r = max(r, a.Pix[off])
						g = max(g, a.Pix[off+1])
						b = max(b, a.Pix[off+2])
					}
				}
				off := pixOffset(s, x, y)
				next[off], next[off+1], next[off+2] = r, g, b
			}
		}
		a.Pix, next = next, a.Pix
	}
	a.Covered = dilateCross(a.Covered, s, s, rounds)
}
