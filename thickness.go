package sssbake

import (
	"image"
	"image/color"
	"log"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Regions partitions covered texels. A texel set in neither slice is
// background.
type Regions struct {
	Primary   []bool // bright, unsaturated: enamel
	Secondary []bool // every other covered texel: gingiva
}

// ThicknessMap is the per-texel material thickness in [0,1].
type ThicknessMap struct {
	Size        int
	Values      []float64 // len = Size*Size
	Regions     Regions
	MaxDistance float64 // texels; 0 when there is no primary tissue
}

// Classify splits the covered texels of a by HSV thresholds. No cleanup is
// applied.
func Classify(a *Atlas, opt Options) Regions {
	n := a.Size * a.Size
	reg := Regions{
		Primary:   make([]bool, n),
		Secondary: make([]bool, n),
	}
	for y := range a.Size {
		for x := range a.Size {
			i := maskOffset(a.Size, x, y)
			if !a.Covered[i] {
				continue
			}
			_, s, v := a.At(x, y).Hsv()
			if s < opt.PrimarySatMax && v > opt.PrimaryValMin {
				reg.Primary[i] = true
			} else {
				reg.Secondary[i] = true
			}
		}
	}
	return reg
}

// Synthesize derives the thickness map from a baked atlas:
// primary tissue is opened to drop speckle, its distance to the region
// boundary is normalized and curved, secondary tissue gets the constant
// opt.SecondaryThickness and background stays 0.
func Synthesize(a *Atlas, opt Options) (*ThicknessMap, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	s := a.Size
	reg := Classify(a, opt)

	primary := erodeSquare(reg.Primary, s, s, opt.KernelSize, opt.MorphIterations)
	primary = dilateSquare(primary, s, s, opt.KernelSize, opt.MorphIterations)
	// The opening only removes texels; they fall back to secondary.
	for i := range primary {
		reg.Secondary[i] = a.Covered[i] && !primary[i]
	}
	reg.Primary = primary

	dist := distanceTransform(primary, s, s)
	maxDist := 0.0
	if len(dist) > 0 {
		maxDist = floats.Max(dist)
	}
	values := make([]float64, s*s)
	for i := range values {
		switch {
		case reg.Primary[i]:
			d := dist[i]
			if maxDist > 0 {
				d /= maxDist
			}
			values[i] = math.Pow(d, opt.ThicknessPower)
		case reg.Secondary[i]:
			values[i] = opt.SecondaryThickness
		}
	}

	tm := &ThicknessMap{
		Size:        s,
		Values:      values,
		Regions:     reg,
		MaxDistance: maxDist,
	}
	st := tm.Stats()
	log.Printf("   primary texels: %d (%.1f%%)", st.Primary, pct(st.Primary, s*s))
	log.Printf("   secondary texels: %d (%.1f%%)", st.Secondary, pct(st.Secondary, s*s))
	log.Printf("   max distance: %.1f texels", maxDist)
	return tm, nil
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}

func (tm *ThicknessMap) At(x, y int) float64 {
	return tm.Values[maskOffset(tm.Size, x, y)]
}

// Image packs the map for the material model: R is a constant full
// occlusion term, G the linear thickness, B unused.
func (tm *ThicknessMap) Image() *image.RGBA {
	s := tm.Size
	img := image.NewRGBA(image.Rect(0, 0, s, s))
	for y := range s {
		for x := range s {
			img.SetRGBA(x, y, color.RGBA{255, to8(tm.At(x, y)), 0, 255})
		}
	}
	return img
}

// ThicknessStats summarizes a ThicknessMap.
type ThicknessStats struct {
	Primary, Secondary, Background int
	Coverage                       float64 // covered fraction of the raster
	MeanPrimary                    float64 // mean thickness over primary texels
}

func (tm *ThicknessMap) Stats() ThicknessStats {
	var st ThicknessStats
	primaryValues := make([]float64, 0)
	for i, v := range tm.Values {
		switch {
		case tm.Regions.Primary[i]:
			st.Primary++
			primaryValues = append(primaryValues, v)
		case tm.Regions.Secondary[i]:
			st.Secondary++
		default:
			st.Background++
		}
	}
	if n := len(tm.Values); n > 0 {
		st.Coverage = float64(st.Primary+st.Secondary) / float64(n)
	}
	if len(primaryValues) > 0 {
		st.MeanPrimary = stat.Mean(primaryValues, nil)
	}
	return st
}
