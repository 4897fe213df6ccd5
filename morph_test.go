package sssbake

import (
	"math"
	"testing"
)

func maskFrom(w, h int, fn func(x, y int) bool) []bool {
	m := make([]bool, w*h)
	for y := range h {
		for x := range w {
			m[maskOffset(w, x, y)] = fn(x, y)
		}
	}
	return m
}

func countSet(m []bool) int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

func TestErodeSquareBorderCountsAsUnset(t *testing.T) {
	const w, h = 7, 5
	full := maskFrom(w, h, func(int, int) bool { return true })
	got := erodeSquare(full, w, h, 3, 1)
	for y := range h {
		for x := range w {
			want := x > 0 && x < w-1 && y > 0 && y < h-1
			if got[maskOffset(w, x, y)] != want {
				t.Errorf("(%d,%d) = %v, want %v", x, y, got[maskOffset(w, x, y)], want)
			}
		}
	}
}

func TestDilateSquare(t *testing.T) {
	const s = 9
	dot := maskFrom(s, s, func(x, y int) bool { return x == 4 && y == 4 })
	got := dilateSquare(dot, s, s, 3, 2)
	for y := range s {
		for x := range s {
			want := x >= 2 && x <= 6 && y >= 2 && y <= 6
			if got[maskOffset(s, x, y)] != want {
				t.Errorf("(%d,%d) = %v, want %v", x, y, got[maskOffset(s, x, y)], want)
			}
		}
	}
	if countSet(dot) != 1 {
		t.Error("input mask was modified")
	}
}

func TestOpening(t *testing.T) {
	tests := []struct {
		name      string
		x0, x1    int
		k, iters  int
		wantCount int
	}{
		{"block survives", 3, 7, 3, 1, 25},
		{"block survives 5x5 kernel", 3, 7, 5, 1, 25},
		{"small block removed", 4, 5, 3, 1, 0},
		{"too many iterations", 3, 7, 3, 3, 0},
		{"zero iterations", 4, 5, 3, 0, 4},
	}
	const s = 12
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := maskFrom(s, s, func(x, y int) bool {
				return x >= tc.x0 && x <= tc.x1 && y >= tc.x0 && y <= tc.x1
			})
			got := dilateSquare(erodeSquare(m, s, s, tc.k, tc.iters), s, s, tc.k, tc.iters)
			if n := countSet(got); n != tc.wantCount {
				t.Errorf("opening kept %d texels, want %d", n, tc.wantCount)
			}
			for i := range got {
				if got[i] && !m[i] {
					t.Fatalf("opening added texel %d", i)
				}
			}
		})
	}
}

func TestDilateCross(t *testing.T) {
	const s = 9
	dot := maskFrom(s, s, func(x, y int) bool { return x == 4 && y == 4 })
	got := dilateCross(dot, s, s, 2)
	for y := range s {
		for x := range s {
			d := abs(x-4) + abs(y-4)
			if got[maskOffset(s, x, y)] != (d <= 2) {
				t.Errorf("(%d,%d) = %v, want %v", x, y, got[maskOffset(s, x, y)], d <= 2)
			}
		}
	}
	if n := countSet(got); n != 13 {
		t.Errorf("diamond has %d texels, want 13", n)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestEDT1D(t *testing.T) {
	f := []float64{0, edtInf, edtInf, edtInf, 0, edtInf}
	d := make([]float64, len(f))
	edt1D(f, d, make([]int, len(f)), make([]float64, len(f)+1))
	want := []float64{0, 1, 4, 1, 0, 1}
	for i := range want {
		if d[i] != want[i] {
			t.Errorf("d[%d] = %v, want %v", i, d[i], want[i])
		}
	}
}

func TestDistanceTransformMatchesBruteForce(t *testing.T) {
	const w, h = 13, 9
	mask := maskFrom(w, h, func(x, y int) bool { return (x*7+y*3)%11 != 0 })
	got := distanceTransform(mask, w, h)
	for y := range h {
		for x := range w {
			want := 0.0
			if mask[maskOffset(w, x, y)] {
				want = math.Inf(1)
				// Unset texels plus the one-texel frame around the raster.
				for qy := -1; qy <= h; qy++ {
					for qx := -1; qx <= w; qx++ {
						inside := qx >= 0 && qx < w && qy >= 0 && qy < h
						if inside && mask[maskOffset(w, qx, qy)] {
							continue
						}
						want = min(want, math.Hypot(float64(x-qx), float64(y-qy)))
					}
				}
			}
			if g := got[maskOffset(w, x, y)]; math.Abs(g-want) > 1e-9 {
				t.Errorf("(%d,%d) = %v, want %v", x, y, g, want)
			}
		}
	}
}

func TestDistanceTransformEmptyMask(t *testing.T) {
	got := distanceTransform(make([]bool, 6), 3, 2)
	for i, v := range got {
		if v != 0 {
			t.Errorf("d[%d] = %v, want 0", i, v)
		}
	}
}
