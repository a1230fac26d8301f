// Package filter holds the per-pixel spatial filters: median denoise,
// Laplacian edge extraction, and the subtractive sharpener built on it.
//
// All of them read from a source image and write into a freshly allocated
// one, so neighborhood reads never see half-filtered data.
package filter

import (
	"fmt"
	"slices"

	"github.com/abworrall/campipe/pkg/raster"
)

// MedianOf sorts samples in place and returns the element at index
// len/2. Even lengths pick one of the two middle elements (the one at
// len/2) rather than averaging them.
func MedianOf(samples []uint8) uint8 {
	slices.Sort(samples)
	return samples[len(samples)/2]
}

// MaxRegionSize is the largest region Median accepts for an image. A
// region that size already reaches past every edge from any pixel.
func MaxRegionSize(im *raster.Image) int {
	return 2*max(im.W, im.H) + 1
}

// Median replaces every sample with the median of its channel over the
// square region centered on it. regionSize is the nominal width; the
// square actually used is 2*(regionSize/2)+1 wide, so a region of 4
// samples a 5x5 block.
func Median(src *raster.Image, regionSize int) (*raster.Image, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("median: %w", err)
	}
	if regionSize <= 0 || regionSize > MaxRegionSize(src) {
		return nil, fmt.Errorf("median: region size %d, want 1..%d: %w", regionSize, MaxRegionSize(src), raster.ErrInvalidParameter)
	}

	offset := regionSize / 2
	side := 2*offset + 1
	dst := src.NewFromThis()

	err := raster.EachRowBand(src.H, func(y0, y1 int) error {
		buf := make([]uint8, 0, side*side)
		for y := y0; y < y1; y++ {
			for x := 0; x < src.W; x++ {
				for ch := 0; ch < src.C; ch++ {
					buf = src.Neighborhood(buf[:0], x, y, offset, ch)
					dst.Set(x, y, ch, MedianOf(buf))
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return dst, nil
}
