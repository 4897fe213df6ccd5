package sssbake

import (
	"errors"
	"math"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	red   = colorful.Color{R: 1}
	green = colorful.Color{G: 1}
	blue  = colorful.Color{B: 1}
)

func triangleMesh(uvs [3]r2.Vec, cols [3]colorful.Color) *Mesh {
	return &Mesh{
		Positions: make([]r3.Vec, 3),
		Colors:    cols[:],
		UVs:       uvs[:],
		Faces:     [][3]int{{0, 1, 2}},
	}
}

func refBarycentric(tri r2.Triangle, px, py float64) (u, v, w float64) {
	e1 := r2.Sub(tri[1], tri[0])
	e2 := r2.Sub(tri[2], tri[0])
	d := r2.Vec{X: px - tri[0].X, Y: py - tri[0].Y}
	den := e1.X*e2.Y - e2.X*e1.Y
	u = (d.X*e2.Y - e2.X*d.Y) / den
	v = (e1.X*d.Y - d.X*e1.Y) / den
	return u, v, 1 - u - v
}

func TestDrawTriangleInteriorIsConvexBlend(t *testing.T) {
	const s = 16
	tri := r2.Triangle{{X: 1.2, Y: 1.1}, {X: 14.7, Y: 2.3}, {X: 3.4, Y: 13.9}}
	a := newAtlas(s)
	if n := a.drawTriangle(tri, [3]colorful.Color{red, green, blue}); n == 0 {
		t.Fatal("expected texels to be written")
	}

	inside := 0
	for y := range s {
		for x := range s {
			u, v, w := refBarycentric(tri, float64(x)+0.5, float64(y)+0.5)
			if u <= 1e-4 || v <= 1e-4 || w <= 1e-4 {
				continue
			}
			inside++
			if !a.CoveredAt(x, y) {
				t.Fatalf("texel (%d,%d) strictly inside but not covered", x, y)
			}
			c := a.At(x, y)
			// With pure primaries the channels are the weights themselves.
			if math.Abs(c.R-w) > 1e-5 || math.Abs(c.G-u) > 1e-5 || math.Abs(c.B-v) > 1e-5 {
				t.Errorf("texel (%d,%d) = %v, want weights (%v,%v,%v)", x, y, c, w, u, v)
			}
			if sum := c.R + c.G + c.B; math.Abs(sum-1) > 1e-5 {
				t.Errorf("texel (%d,%d) weights sum to %v", x, y, sum)
			}
		}
	}
	if inside == 0 {
		t.Fatal("test triangle has no interior texels")
	}
}

func TestDrawTriangleLeavesOutsideUntouched(t *testing.T) {
	const s = 16
	tri := r2.Triangle{{X: 2, Y: 2}, {X: 10, Y: 2}, {X: 2, Y: 10}}
	a := newAtlas(s)
	a.drawTriangle(tri, [3]colorful.Color{red, red, red})
	for y := range s {
		for x := range s {
			u, v, w := refBarycentric(tri, float64(x)+0.5, float64(y)+0.5)
			if u < -1e-4 || v < -1e-4 || w < -1e-4 {
				if a.CoveredAt(x, y) {
					t.Errorf("texel (%d,%d) outside triangle is covered", x, y)
				}
			}
		}
	}
}

func TestDrawTriangleSkipsDegenerate(t *testing.T) {
	tests := []struct {
		name string
		tri  r2.Triangle
	}{
		{"collinear", r2.Triangle{{X: 1, Y: 1}, {X: 5, Y: 5}, {X: 9, Y: 9}}},
		{"point", r2.Triangle{{X: 3, Y: 3}, {X: 3, Y: 3}, {X: 3, Y: 3}}},
		{"off raster", r2.Triangle{{X: -9, Y: -9}, {X: -5, Y: -9}, {X: -9, Y: -5}}},
		{"past far edge", r2.Triangle{{X: 20, Y: 20}, {X: 30, Y: 20}, {X: 20, Y: 30}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newAtlas(16)
			if n := a.drawTriangle(tc.tri, [3]colorful.Color{red, green, blue}); n != 0 {
				t.Errorf("wrote %d texels, want 0", n)
			}
			if a.CoveredCount() != 0 {
				t.Errorf("covered %d texels, want 0", a.CoveredCount())
			}
		})
	}
}

func TestDrawTriangleClipsToRaster(t *testing.T) {
	const s = 8
	a := newAtlas(s)
	tri := r2.Triangle{{X: -20, Y: -20}, {X: 40, Y: -20}, {X: -20, Y: 40}}
	if n := a.drawTriangle(tri, [3]colorful.Color{red, red, red}); n != s*s {
		t.Errorf("wrote %d texels, want %d", n, s*s)
	}
}

func TestSeamFillSpreadsColor(t *testing.T) {
	const s = 11
	a := newAtlas(s)
	c := colorful.Color{R: 0.2, G: 0.4, B: 0.6}
	a.set(5, 5, c)
	a.Covered[maskOffset(s, 5, 5)] = true
	a.seamFill(2)

	tests := []struct {
		x, y    int
		colored bool
		covered bool
	}{
		{5, 5, true, true},
		{6, 5, true, true},
		{7, 5, true, true},
		{6, 6, true, true},
		{7, 7, true, false}, // square color fill reaches corners, cross mask does not
		{8, 5, false, false},
		{5, 2, false, false},
	}
	for _, tc := range tests {
		got := a.At(tc.x, tc.y)
		if tc.colored {
			if math.Abs(got.R-c.R) > 1e-6 || math.Abs(got.G-c.G) > 1e-6 || math.Abs(got.B-c.B) > 1e-6 {
				t.Errorf("(%d,%d) color = %v, want %v", tc.x, tc.y, got, c)
			}
		} else if got != (colorful.Color{}) {
			t.Errorf("(%d,%d) color = %v, want black", tc.x, tc.y, got)
		}
		if a.CoveredAt(tc.x, tc.y) != tc.covered {
			t.Errorf("(%d,%d) covered = %v, want %v", tc.x, tc.y, a.CoveredAt(tc.x, tc.y), tc.covered)
		}
	}
}

func TestSeamFillNeverShrinksOrOverwrites(t *testing.T) {
	const s = 24
	a := newAtlas(s)
	a.drawTriangle(r2.Triangle{{X: 3, Y: 2}, {X: 20, Y: 5}, {X: 6, Y: 21}}, [3]colorful.Color{red, green, blue})
	a.drawTriangle(r2.Triangle{{X: 21, Y: 8}, {X: 23, Y: 22}, {X: 12, Y: 23}}, [3]colorful.Color{blue, blue, green})

	beforePix := append([]float32(nil), a.Pix...)
	beforeCovered := append([]bool(nil), a.Covered...)
	a.seamFill(2)

	grew := false
	for i, was := range beforeCovered {
		if was && !a.Covered[i] {
			t.Fatalf("texel %d lost coverage", i)
		}
		if !was && a.Covered[i] {
			grew = true
		}
		if was {
			for ch := range 3 {
				if a.Pix[i*3+ch] != beforePix[i*3+ch] {
					t.Fatalf("covered texel %d channel %d changed", i, ch)
				}
			}
		}
	}
	if !grew {
		t.Error("seam fill did not grow coverage")
	}
}

func TestBakeAdjacentTrianglesLeaveNoCrack(t *testing.T) {
	const s = 32
	m := &Mesh{
		Positions: make([]r3.Vec, 4),
		Colors:    []colorful.Color{red, red, red, red},
		UVs:       []r2.Vec{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.9, Y: 0.9}, {X: 0.1, Y: 0.9}},
		Faces:     [][3]int{{0, 1, 2}, {0, 2, 3}},
	}
	opt := DefaultOptions()
	opt.Resolution = s
	a, err := Bake(m, opt)
	if err != nil {
		t.Fatal(err)
	}
	// Every texel center strictly inside the quad lies in one of the triangles.
	for y := range s {
		for x := range s {
			px, py := (float64(x)+0.5)/s, (float64(y)+0.5)/s
			if px > 0.1 && px < 0.9 && py > 0.1 && py < 0.9 && !a.CoveredAt(x, y) {
				t.Errorf("crack at (%d,%d)", x, y)
			}
		}
	}
}

func TestBakeRejectsInvalidMesh(t *testing.T) {
	m := triangleMesh([3]r2.Vec{{}, {X: 1}, {Y: 1}}, [3]colorful.Color{red, green, blue})
	m.Faces = append(m.Faces, [3]int{0, 1, 3})
	opt := DefaultOptions()
	opt.Resolution = 8
	a, err := Bake(m, opt)
	if !errors.Is(err, ErrInvalidMesh) {
		t.Fatalf("err = %v, want ErrInvalidMesh", err)
	}
	if a != nil {
		t.Error("expected no atlas for an invalid mesh")
	}
}

func TestBakeZeroFaces(t *testing.T) {
	m := &Mesh{
		Positions: make([]r3.Vec, 2),
		Colors:    []colorful.Color{red, blue},
		UVs:       []r2.Vec{{X: 0.5, Y: 0.5}, {X: 0.2, Y: 0.7}},
	}
	opt := DefaultOptions()
	opt.Resolution = 8
	a, err := Bake(m, opt)
	if err != nil {
		t.Fatal(err)
	}
	if a.CoveredCount() != 0 {
		t.Errorf("covered = %d, want 0", a.CoveredCount())
	}
	for i, v := range a.Pix {
		if v != 0 {
			t.Fatalf("pix[%d] = %v, want 0", i, v)
		}
	}
}
