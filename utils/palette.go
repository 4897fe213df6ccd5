package utils

import (
	"cmp"
	"image"
	"image/color"
	"log"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/setanarut/sssbake"
)

type PaletteMethod int

const (
	PaletteMethodDominantColor PaletteMethod = iota
	PaletteMethodKMeans
)

func (m PaletteMethod) String() string {
	switch m {
	case PaletteMethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

// ParsePaletteMethod maps a flag value to a method; unknown names fall back
// to dominantcolor.
func ParsePaletteMethod(s string) PaletteMethod {
	if s == "kmeans" {
		return PaletteMethodKMeans
	}
	return PaletteMethodDominantColor
}

// Upper bound on texels fed to the palette solvers.
const maxPaletteSamples = 12000

type weightedColor struct {
	Col    colorful.Color
	Weight float64
}

// SortPaletteByBrightness orders swatches from darkest to brightest.
// Ties keep their input order.
func SortPaletteByBrightness(palette []colorful.Color) {
	slices.SortStableFunc(palette, func(a, b colorful.Color) int {
		return cmp.Compare(luminance(a), luminance(b))
	})
}

// luminance is the Rec. 709 relative luminance of c.
func luminance(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// RegionSamples returns the atlas colors of the texels set in region, evenly
// subsampled down to at most maxSamples.
func RegionSamples(a *sssbake.Atlas, region []bool, maxSamples int) []colorful.Color {
	count := 0
	for _, in := range region {
		if in {
			count++
		}
	}
	if count == 0 || maxSamples <= 0 {
		return nil
	}
	step := 1
	if count > maxSamples {
		step = (count + maxSamples - 1) / maxSamples
	}
	out := make([]colorful.Color, 0, min(count, maxSamples))
	seen := 0
	for y := range a.Size {
		for x := range a.Size {
			if !region[y*a.Size+x] {
				continue
			}
			if seen%step == 0 {
				out = append(out, a.At(x, y).Clamped())
			}
			seen++
		}
	}
	return out
}

// ExtractRegionPalette returns up to k representative colors of one tissue
// region of a baked atlas. Empty regions yield a nil palette.
func ExtractRegionPalette(a *sssbake.Atlas, region []bool, k int, method PaletteMethod) []colorful.Color {
	samples := RegionSamples(a, region, maxPaletteSamples)
	if k <= 0 || len(samples) == 0 {
		return nil
	}
	switch method {
	case PaletteMethodKMeans:
		p := kmeansPalette(samples, k)
		if len(p) != 0 {
			return p
		}
		log.Println("palette warning: kmeans returned empty palette, falling back to dominantcolor")
		return dominantPalette(samples, k)
	default:
		return dominantPalette(samples, k)
	}
}

// sampleImage packs samples into a near-square opaque image, repeating
// samples to fill the last row.
func sampleImage(samples []colorful.Color) *image.NRGBA {
	side := int(math.Ceil(math.Sqrt(float64(len(samples)))))
	img := image.NewNRGBA(image.Rect(0, 0, side, side))
	for i := range side * side {
		r, g, b := samples[i%len(samples)].RGB255()
		img.SetNRGBA(i%side, i/side, color.NRGBA{R: r, G: g, B: b, A: 255})
	}
	return img
}

func dominantPalette(samples []colorful.Color, k int) []colorful.Color {
	candidates := dominantcolor.FindWeight(sampleImage(samples), max(24, k*8))
	if len(candidates) == 0 {
		// Keep at least the mean color so callers always get a swatch.
		var r, g, b float64
		for _, c := range samples {
			r += c.R
			g += c.G
			b += c.B
		}
		n := float64(len(samples))
		return []colorful.Color{{R: r / n, G: g / n, B: b / n}}
	}

	weighted := make([]weightedColor, 0, len(candidates))
	for _, c := range candidates {
		col, _ := colorful.MakeColor(c.RGBA)
		weighted = append(weighted, weightedColor{Col: col.Clamped(), Weight: c.Weight})
	}
	return selectDiverseWeightedColors(weighted, k)
}

func kmeansPalette(samples []colorful.Color, k int) []colorful.Color {
	dataset := make(clusters.Observations, 0, len(samples))
	for _, c := range samples {
		dataset = append(dataset, clusters.Coordinates{c.R, c.G, c.B})
	}
	workK := min(max(k*4, k+2), len(dataset))
	km := kmeans.New()
	cc, err := km.Partition(dataset, workK)
	if err != nil || len(cc) == 0 {
		return nil
	}

	// Most populated clusters first.
	slices.SortFunc(cc, func(a, b clusters.Cluster) int {
		return len(b.Observations) - len(a.Observations)
	})

	weighted := make([]weightedColor, 0, len(cc))
	for _, c := range cc {
		if len(c.Center) < 3 || len(c.Observations) == 0 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		weighted = append(weighted, weightedColor{Col: col, Weight: float64(len(c.Observations))})
	}
	return selectDiverseWeightedColors(weighted, k)
}

// selectDiverseWeightedColors greedily picks k colors: the heaviest first,
// then whichever candidate is farthest in Lab from those already picked,
// with distance boosted by candidate weight.
func selectDiverseWeightedColors(cands []weightedColor, k int) []colorful.Color {
	if k <= 0 || len(cands) == 0 {
		return nil
	}
	type item struct {
		col colorful.Color
		lab [3]float64
		w   float64
	}
	items := make([]item, 0, len(cands))
	maxW := 0.0
	for _, c := range cands {
		l, a, b := c.Col.Lab()
		w := c.Weight
		if w <= 0 {
			w = 1e-6
		}
		maxW = max(maxW, w)
		items = append(items, item{col: c.Col, lab: [3]float64{l, a, b}, w: w})
	}
	k = min(k, len(items))

	selected := make([]bool, len(items))
	picked := make([]int, 0, k)
	seed := 0
	for i := range items {
		if items[i].w > items[seed].w {
			seed = i
		}
	}
	picked = append(picked, seed)
	selected[seed] = true

	for len(picked) < k {
		bestIdx := -1
		bestScore := -1.0
		for i := range items {
			if selected[i] {
				continue
			}
			minD2 := math.MaxFloat64
			for _, s := range picked {
				d0 := items[i].lab[0] - items[s].lab[0]
				d1 := items[i].lab[1] - items[s].lab[1]
				d2 := items[i].lab[2] - items[s].lab[2]
				minD2 = min(minD2, d0*d0+d1*d1+d2*d2)
			}
			score := math.Sqrt(minD2) * (0.55 + 0.45*math.Sqrt(items[i].w/maxW))
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		selected[bestIdx] = true
		picked = append(picked, bestIdx)
	}

	out := make([]colorful.Color, 0, len(picked))
	for _, idx := range picked {
		out = append(out, items[idx].col)
	}
	return out
}
