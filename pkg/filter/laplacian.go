package filter

import (
	"fmt"
	"math"

	"github.com/abworrall/campipe/pkg/raster"
)

// An EdgeMap has the same layout as a raster.Image, but holds signed ints,
// so an unclamped Laplacian response can carry its negative (and >255)
// values through to the sharpener.
type EdgeMap struct {
	W, H, C int
	Vals    []int
}

func (e *EdgeMap) At(x, y, ch int) int { return e.Vals[(y*e.W+x)*e.C+ch] }

// ToImage clamps the map down to 8 bits, for saving the "edges" picture.
func (e *EdgeMap) ToImage() *raster.Image {
	im := &raster.Image{W: e.W, H: e.H, C: e.C, Pix: make([]uint8, len(e.Vals))}
	for i, v := range e.Vals {
		im.Pix[i] = raster.ClampU8(v)
	}
	return im
}

func checkScale(scale float64) error {
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return fmt.Errorf("scale %v: %w", scale, raster.ErrInvalidParameter)
	}
	return nil
}

// maxEdge bounds a scaled edge response; anything this size already
// saturates a subtraction from an 8-bit sample.
const maxEdge = 1 << 40

// scaleEdge returns int(scale*v), truncated toward zero and saturated at
// +/-maxEdge.
func scaleEdge(scale float64, v int) int {
	f := scale * float64(v)
	if f > maxEdge {
		return maxEdge
	} else if f < -maxEdge {
		return -maxEdge
	}
	return int(f)
}

// laplace4 is the 4-neighbour discrete Laplacian, N+E+S+W - 4*center. The
// diagonals are in the region but play no part.
func laplace4(r [9]uint8) int {
	return int(r[raster.North]) + int(r[raster.East]) + int(r[raster.South]) + int(r[raster.West]) - 4*int(r[raster.Center])
}

// Laplacian computes scale*(N+E+S+W-4*center) for every sample, truncating
// toward zero. With clampOut the result is clamped into [0,255]; without
// it the raw signed value is kept.
func Laplacian(src *raster.Image, scale float64, clampOut bool) (*EdgeMap, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("laplacian: %w", err)
	}
	if err := checkScale(scale); err != nil {
		return nil, fmt.Errorf("laplacian: %w", err)
	}

	e := &EdgeMap{W: src.W, H: src.H, C: src.C, Vals: make([]int, len(src.Pix))}

	err := raster.EachRowBand(src.H, func(y0, y1 int) error {
		for y := y0; y < y1; y++ {
			for x := 0; x < src.W; x++ {
				for ch := 0; ch < src.C; ch++ {
					v := laplace4(src.Region3x3(x, y, ch))
					if scale != 1.0 {
						v = scaleEdge(scale, v)
					}
					if clampOut {
						v = int(raster.ClampU8(v))
					}
					e.Vals[src.Offset(x, y)+ch] = v
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return e, nil
}
