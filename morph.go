package sssbake

import "math"

// ============ BINARY MORPHOLOGY ============

// erodeSquare applies iterations erosions with a k×k square (k odd).
// Texels outside the raster count as unset, so regions touching the
// border shrink from it too.
func erodeSquare(mask []bool, w, h, k, iterations int) []bool {
	return morphSquare(mask, w, h, k, iterations, true)
}

// dilateSquare applies iterations dilations with a k×k square (k odd).
func dilateSquare(mask []bool, w, h, k, iterations int) []bool {
	return morphSquare(mask, w, h, k, iterations, false)
}

func morphSquare(mask []bool, w, h, k, iterations int, erode bool) []bool {
	cur := make([]bool, len(mask))
	copy(cur, mask)
	if iterations <= 0 || k <= 1 {
		return cur
	}
	r := k / 2
	tmp := make([]bool, len(mask))
	prefix := make([]int, max(w, h)+1)
	for range iterations {
		// A square element is separable: a row pass then a column pass.
		boxPass(cur, tmp, w, h, r, erode, true, prefix)
		boxPass(tmp, cur, w, h, r, erode, false, prefix)
	}
	return cur
}

// boxPass filters each row (or column) of src with a 1D window of radius r
// using running counts of set texels.
func boxPass(src, dst []bool, w, h, r int, erode, horizontal bool, prefix []int) {
	lines, n, step, lineStride := h, w, 1, w
	if !horizontal {
		lines, n, step, lineStride = w, h, w, 1
	}
	full := 2*r + 1
	for l := range lines {
		base := l * lineStride
		for i := range n {
			prefix[i+1] = prefix[i]
			if src[base+i*step] {
				prefix[i+1]++
			}
		}
		for i := range n {
			lo, hi := i-r, i+r
			var on bool
			if erode {
				on = lo >= 0 && hi < n && prefix[hi+1]-prefix[lo] == full
			} else {
				on = prefix[min(n-1, hi)+1]-prefix[max(0, lo)] > 0
			}
			dst[base+i*step] = on
		}
	}
}

// dilateCross grows mask by iterations steps of the 4-connected cross.
func dilateCross(mask []bool, w, h, iterations int) []bool {
	cur := make([]bool, len(mask))
	copy(cur, mask)
	next := make([]bool, len(mask))
	for range iterations {
		for y := range h {
			for x := range w {
				i := maskOffset(w, x, y)
				next[i] = cur[i] ||
					(x > 0 && cur[i-1]) ||
					(x < w-1 && cur[i+1]) ||
					(y > 0 && cur[i-w]) ||
					(y < h-1 && cur[i+w])
			}
		}
		cur, next = next, cur
	}
	return cur
}

// ============ DISTANCE TRANSFORM ============

// Stand-in for +Inf that keeps the parabola intersections finite.
const edtInf = 1e20

// distanceTransform returns the exact Euclidean distance from every set
// texel to the nearest unset one; unset texels get 0. The raster is padded
// by one unset texel on every side, so the border bounds the distance.
//
// Two separable passes of the lower-envelope algorithm of
// Felzenszwalb & Huttenlocher, "Distance Transforms of Sampled Functions".
func distanceTransform(mask []bool, w, h int) []float64 {
	pw, ph := w+2, h+2
	f := make([]float64, pw*ph)
	for y := range h {
		for x := range w {
			if mask[maskOffset(w, x, y)] {
				f[maskOffset(pw, x+1, y+1)] = edtInf
			}
		}
	}

	n := max(pw, ph)
	line := make([]float64, n)
	out := make([]float64, n)
	v := make([]int, n)
	z := make([]float64, n+1)

	for x := range pw {
		for y := range ph {
			line[y] = f[maskOffset(pw, x, y)]
		}
		edt1D(line[:ph], out[:ph], v, z)
		for y := range ph {
			f[maskOffset(pw, x, y)] = out[y]
		}
	}
	for y := range ph {
		row := f[y*pw : (y+1)*pw]
		copy(line, row)
		edt1D(line[:pw], row, v, z)
	}

	dist := make([]float64, w*h)
	for y := range h {
		for x := range w {
			dist[maskOffset(w, x, y)] = math.Sqrt(f[maskOffset(pw, x+1, y+1)])
		}
	}
	return dist
}

// edt1D writes the squared distance transform of the sampled function f
// into d. v and z are scratch buffers of at least len(f) and len(f)+1.
func edt1D(f, d []float64, v []int, z []float64) {
	n := len(f)
	if n == 0 {
		return
	}
	intersect := func(q, p int) float64 {
		return ((f[q] + float64(q*q)) - (f[p] + float64(p*p))) / float64(2*(q-p))
	}
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := intersect(q, v[k])
		for s <= z[k] {
			k--
			s = intersect(q, v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}
	k = 0
	for q := range n {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		d[q] = dq*dq + f[v[k]]
	}
}
