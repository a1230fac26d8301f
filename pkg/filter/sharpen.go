package filter

import (
	"fmt"

	"github.com/abworrall/campipe/pkg/raster"
)

// SharpenMode says where the sharpening strength gets applied. A run picks
// one; mixing them scales the edges twice.
type SharpenMode string

const (
	// ScaleAtEdge scales (and clamps) the Laplacian as it's computed, then
	// subtracts it as-is.
	ScaleAtEdge SharpenMode = "edge"

	// ScaleAtSubtract keeps the raw signed Laplacian, and scales it once at
	// subtraction time.
	ScaleAtSubtract SharpenMode = "subtract"
)

func ParseSharpenMode(s string) (SharpenMode, error) {
	switch SharpenMode(s) {
	case ScaleAtEdge, "":
		return ScaleAtEdge, nil
	case ScaleAtSubtract:
		return ScaleAtSubtract, nil
	default:
		return "", fmt.Errorf("sharpen mode %q, want %q or %q: %w", s, ScaleAtEdge, ScaleAtSubtract, raster.ErrInvalidParameter)
	}
}

type SharpenOptions struct {
	Scale float64
	Mode  SharpenMode
}

func DefaultSharpenOptions() SharpenOptions {
	return SharpenOptions{Scale: 1.0, Mode: ScaleAtEdge}
}

// Sharpen subtracts the Laplacian edge response from the image, clamping
// into [0,255]. It also returns the edge map it used, which callers like
// to save alongside the result.
func Sharpen(src *raster.Image, opts SharpenOptions) (*raster.Image, *EdgeMap, error) {
	mode, err := ParseSharpenMode(string(opts.Mode))
	if err != nil {
		return nil, nil, fmt.Errorf("sharpen: %w", err)
	}

	var edges *EdgeMap
	var out *raster.Image

	switch mode {
	case ScaleAtEdge:
		if edges, err = Laplacian(src, opts.Scale, true); err == nil {
			out, err = Subtract(src, edges, 1.0)
		}
	case ScaleAtSubtract:
		if edges, err = Laplacian(src, 1.0, false); err == nil {
			out, err = Subtract(src, edges, opts.Scale)
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("sharpen: %w", err)
	}

	return out, edges, nil
}

// Subtract computes clamp(orig - int(scale*edge)) per sample.
func Subtract(orig *raster.Image, edges *EdgeMap, scale float64) (*raster.Image, error) {
	if err := orig.Validate(); err != nil {
		return nil, err
	}
	if err := checkScale(scale); err != nil {
		return nil, err
	}
	if edges == nil || edges.W != orig.W || edges.H != orig.H || edges.C != orig.C {
		return nil, fmt.Errorf("edge map doesn't match %s: %w", orig, raster.ErrUnsupportedImage)
	}

	dst := orig.NewFromThis()
	for i, v := range orig.Pix {
		e := edges.Vals[i]
		if scale != 1.0 {
			e = scaleEdge(scale, e)
		}
		dst.Pix[i] = raster.ClampU8(int(v) - e)
	}

	return dst, nil
}
