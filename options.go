package sssbake

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is returned by Options.Validate.
var ErrInvalidOptions = errors.New("invalid options")

// referenceResolution is the atlas size the default kernel was tuned for.
const referenceResolution = 2048

type Options struct {
	// Edge length S of the square atlas and thickness rasters.
	// Dental scans at ~100k-500k faces read well at 2048.
	Resolution int
	// Texels with saturation below this can be primary tissue.
	// Enamel is white/ivory/yellow: ~0.45. Raising it pulls pale gum into the teeth.
	PrimarySatMax float64
	// Texels with value above this can be primary tissue.
	// Ideal start: 0.3-0.4. Lower values let shadowed gum in.
	PrimaryValMin float64
	// Side of the square structuring element used by the opening. Must be odd.
	// Larger kernels remove bigger islands but also round off narrow incisors.
	KernelSize int
	// Erosions (and then dilations) applied to the primary mask.
	MorphIterations int
	// Exponent of the falloff curve applied to the normalized distance.
	// Values below 1 keep the interior near 1 and thin out only near edges.
	ThicknessPower float64
	// Constant thickness for secondary tissue. High = opaque.
	SecondaryThickness float64
}

func DefaultOptions() Options {
	return Options{
		Resolution:         referenceResolution,
		PrimarySatMax:      0.45,
		PrimaryValMin:      0.35,
		KernelSize:         5,
		MorphIterations:    2,
		ThicknessPower:     0.7,
		SecondaryThickness: 0.85,
	}
}

// OptionsFromResolution returns the defaults for an s×s atlas. Below the
// reference resolution the kernel shrinks with the atlas so the opening
// removes islands of the same UV-space size; it stays odd and at least 1.
// A non-positive s is kept as is and rejected by Validate.
func OptionsFromResolution(s int) Options {
	opt := DefaultOptions()
	opt.Resolution = s
	if s <= 0 || s >= referenceResolution {
		return opt
	}
	k := int(float64(opt.KernelSize)*float64(s)/referenceResolution + 0.5)
	if k%2 == 0 {
		k--
	}
	opt.KernelSize = max(1, k)
	return opt
}

func (o Options) Validate() error {
	switch {
	case o.Resolution <= 0:
		return fmt.Errorf("%w: resolution %d must be positive", ErrInvalidOptions, o.Resolution)
	case o.KernelSize <= 0 || o.KernelSize%2 == 0:
		return fmt.Errorf("%w: kernel size %d must be a positive odd number", ErrInvalidOptions, o.KernelSize)
	case o.MorphIterations < 0:
		return fmt.Errorf("%w: morph iterations %d must not be negative", ErrInvalidOptions, o.MorphIterations)
	case !(o.ThicknessPower > 0 && o.ThicknessPower <= 1):
		return fmt.Errorf("%w: thickness power %g must be in (0,1]", ErrInvalidOptions, o.ThicknessPower)
	case !(o.SecondaryThickness >= 0 && o.SecondaryThickness <= 1):
		return fmt.Errorf("%w: secondary thickness %g must be in [0,1]", ErrInvalidOptions, o.SecondaryThickness)
	case !(o.PrimarySatMax >= 0 && o.PrimarySatMax <= 1):
		return fmt.Errorf("%w: saturation threshold %g must be in [0,1]", ErrInvalidOptions, o.PrimarySatMax)
	case !(o.PrimaryValMin >= 0 && o.PrimaryValMin <= 1):
		return fmt.Errorf("%w: value threshold %g must be in [0,1]", ErrInvalidOptions, o.PrimaryValMin)
	}
	return nil
}
