package exposure

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/abworrall/campipe/pkg/raster"
)

// Brightness is the mean of every sample in the image, all channels
// together.
func Brightness(im *raster.Image) (float64, error) {
	if err := im.Validate(); err != nil {
		return 0, err
	}

	data := make(stats.Float64Data, len(im.Pix))
	for i, v := range im.Pix {
		data[i] = float64(v)
	}
	return stats.Mean(data)
}

// GainForLevel works out the gain that brings a mean brightness up (or
// down) to target: the EV difference is log2(target/brightness), and the
// gain is 2^EVdiff.
func GainForLevel(brightness, target float64) (float64, error) {
	if brightness <= 0 || target <= 0 || math.IsNaN(brightness) || math.IsNaN(target) {
		return 0, fmt.Errorf("can't match brightness %.2f to %.2f: %w", brightness, target, raster.ErrInvalidParameter)
	}
	evDiff := math.Log2(target / brightness)
	return math.Pow(2, evDiff), nil
}

// Gain multiplies every sample by factor, rounding and clamping.
func Gain(src *raster.Image, factor float64) (*raster.Image, error) {
	if err := src.Validate(); err != nil {
		return nil, fmt.Errorf("gain: %w", err)
	}
	if factor < 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("gain %v: %w", factor, raster.ErrInvalidParameter)
	}

	var lut [256]uint8
	for v := range lut {
		lut[v] = raster.ClampU8(int(math.Round(float64(v) * factor)))
	}

	dst := src.NewFromThis()
	for i, v := range src.Pix {
		dst.Pix[i] = lut[v]
	}
	return dst, nil
}
