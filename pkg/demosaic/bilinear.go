// Package demosaic rebuilds an RGB image from a single-channel Bayer
// mosaic.
package demosaic

import (
	"fmt"

	"github.com/abworrall/campipe/pkg/raster"
)

var (
	// Fills in a missing green from its four direct neighbours
	kCross = raster.Kernel3x3{
		0, .25, 0,
		.25, 0, .25,
		0, .25, 0,
	}

	// Fills in the center of an R (or B) 2x2 from its four diagonals
	kDiagonal = raster.Kernel3x3{
		.25, 0, .25,
		0, 0, 0,
		.25, 0, .25,
	}
)

// Split separates an RGGB mosaic into three sparse planes. Photosites of
// other colors are left at zero.
//
//	R G R G
//	G B G B
func Split(mosaic *raster.Image) (r, g, b raster.FloatGrid) {
	r = raster.NewFloatGrid(mosaic.W, mosaic.H)
	g = r.NewFromThis()
	b = r.NewFromThis()

	for y := 0; y < mosaic.H; y++ {
		for x := 0; x < mosaic.W; x++ {
			v := float64(mosaic.At(x, y, 0))
			switch {
			case y%2 == 0 && x%2 == 0:
				r.Set(x, y, v)
			case y%2 == 1 && x%2 == 1:
				b.Set(x, y, v)
			default:
				g.Set(x, y, v)
			}
		}
	}
	return
}

// interpolateRB fills a sparse R or B plane: first the diagonal-only
// gaps, then the rest via the cross kernel.
func interpolateRB(p raster.FloatGrid) raster.FloatGrid {
	diag := p.Convolve3x3(kDiagonal)
	partial := p.Add(diag)
	cross := partial.Convolve3x3(kCross)
	return partial.Add(cross)
}

// Bilinear treats the luma of src as an RGGB mosaic and interpolates the
// missing two colors at every photosite. Each output channel is then
// stretched so its brightest sample is 255. If dumpPrefix is non-empty,
// the interpolated float planes are written out as PNGs for debugging.
func Bilinear(src *raster.Image, dumpPrefix string) (*raster.Image, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("demosaic: %w", err)
	}

	r, g, b := Split(src.Luma())

	g = g.Add(g.Convolve3x3(kCross))
	r = interpolateRB(r)
	b = interpolateRB(b)

	var chans [3]*raster.Image
	for ch, plane := range []raster.FloatGrid{r, g, b} {
		if dumpPrefix != "" {
			fn := fmt.Sprintf("%s-ch%d.png", dumpPrefix, ch)
			if err := plane.ToImg(fmt.Sprintf("ch%d %s", ch, plane.Stats()), fn); err != nil {
				return nil, fmt.Errorf("demosaic dump: %v", err)
			}
		}
		chans[ch], _ = raster.New(src.W, src.H, 1)
		plane.NormalizeToChannel(chans[ch], 0)
	}

	return raster.Merge(chans[0], chans[1], chans[2])
}
