// Package gamma does power-law intensity remapping via 256-entry lookup
// tables.
package gamma

import (
	"fmt"
	"math"

	"github.com/abworrall/campipe/pkg/raster"
)

// A LUT maps an input sample value to an output sample value. The same
// table is used for every channel.
type LUT [256]uint8

func checkGamma(g float64) error {
	if math.IsNaN(g) || math.IsInf(g, 0) || g <= 0 {
		return fmt.Errorf("gamma %v: %w", g, raster.ErrInvalidParameter)
	}
	return nil
}

// NewLUT builds table[i] = round(255 * (i/255)^g).
func NewLUT(g float64) (LUT, error) {
	var t LUT
	if err := checkGamma(g); err != nil {
		return t, err
	}
	for i := range t {
		t[i] = uint8(math.Round(255.0 * math.Pow(float64(i)/255.0, g)))
	}
	return t, nil
}

// NewInverseLUT builds the table for 1/g, which undoes NewLUT(g) to
// within rounding.
func NewInverseLUT(g float64) (LUT, error) {
	if err := checkGamma(g); err != nil {
		return LUT{}, err
	}
	return NewLUT(1.0 / g)
}

// https://www.sjbrown.co.uk/posts/gamma-correct-rendering/ - "linear RGB to sRGB"
// f is assumed to be in the range [0,1]
func srgbEncode(f float64) float64 {
	if f <= 0.0031308 {
		return 12.92 * f
	}
	return 1.055*math.Pow(f, 1.0/2.4) - 0.055
}

// SRGBLUT maps linear samples onto the piecewise sRGB transfer curve.
func SRGBLUT() LUT {
	var t LUT
	for i := range t {
		t[i] = uint8(math.Round(255.0 * srgbEncode(float64(i)/255.0)))
	}
	return t
}

// Apply returns a new image with every sample passed through the table.
func (t LUT) Apply(src *raster.Image) (*raster.Image, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("gamma: %w", err)
	}
	dst := src.NewFromThis()
	for i, v := range src.Pix {
		dst.Pix[i] = t[v]
	}
	return dst, nil
}

// Monotonic reports whether the table never decreases.
func (t LUT) Monotonic() bool {
	for i := 0; i < len(t)-1; i++ {
		if t[i] > t[i+1] {
			return false
		}
	}
	return true
}

// Correct applies both the gamma table and its inverse to src, returning
// the two results: the "gamma image" and the "gamma corrected" image.
func Correct(src *raster.Image, g float64) (*raster.Image, *raster.Image, error) {
	fwd, err := NewLUT(g)
	if err != nil {
		return nil, nil, err
	}
	inv, err := NewInverseLUT(g)
	if err != nil {
		return nil, nil, err
	}

	gammaImg, err := fwd.Apply(src)
	if err != nil {
		return nil, nil, err
	}
	corrected, err := inv.Apply(src)
	if err != nil {
		return nil, nil, err
	}

	return gammaImg, corrected, nil
}
