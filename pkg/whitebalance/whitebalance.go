// Package whitebalance stretches each color channel so that a chosen
// percentile of its values lands on full white.
package whitebalance

import (
	"fmt"
	"math"

	"github.com/skypies/util/histogram"
	"gonum.org/v1/gonum/stat"

	"github.com/abworrall/campipe/pkg/raster"
)

// Stats records what the balancer saw, per channel. The plotting code
// needs it; so do the debug logs.
type Stats struct {
	Percentile float64        // The percentile asked for, in (0,100]
	Levels     []float64      // Per channel: the sample value at that percentile
	Fractions  [][256]float64 // Per channel: fraction of pixels at each value
	counts     [][256]float64
}

// Histograms returns a coarse 32-bucket histogram per channel, for logging.
func (s Stats) Histograms() []histogram.Histogram {
	hists := make([]histogram.Histogram, len(s.counts))
	for ch, counts := range s.counts {
		hists[ch] = histogram.Histogram{NumBuckets: 32, ValMin: 0, ValMax: 256}
		for v, n := range counts {
			for i := 0; i < int(n); i++ {
				hists[ch].Add(histogram.ScalarVal(v))
			}
		}
	}
	return hists
}

func (s Stats) String() string {
	str := fmt.Sprintf("whitebalance p%.2f:", s.Percentile)
	for ch, l := range s.Levels {
		str += fmt.Sprintf(" ch%d=%.1f", ch, l)
	}
	return str
}

// channelCounts builds the 256-bin histogram of one channel.
func channelCounts(im *raster.Image, ch int) [256]float64 {
	var counts [256]float64
	for i := ch; i < len(im.Pix); i += im.C {
		counts[im.Pix[i]]++
	}
	return counts
}

// percentileOf treats the histogram as a weighted sample set and asks
// gonum for the empirical quantile.
func percentileOf(counts [256]float64, pct float64) float64 {
	x := make([]float64, 0, 256)
	w := make([]float64, 0, 256)
	for v, n := range counts {
		if n > 0 {
			x = append(x, float64(v))
			w = append(w, n)
		}
	}
	if len(x) == 0 {
		return 0
	}
	return stat.Quantile(pct/100.0, stat.Empirical, x, w)
}

// Percentile scales every channel by 1/p, where p is the pct'th percentile
// of that channel's values, clips to [0,1] and maps back to [0,255] with
// round-half-even. A channel whose percentile is zero (e.g. it's all
// black) is left alone, instead of dividing by zero.
func Percentile(src *raster.Image, pct float64) (*raster.Image, Stats, error) {
	s := Stats{Percentile: pct}

	if err := src.Validate(); err != nil {
		return nil, s, fmt.Errorf("whitebalance: %w", err)
	}
	if math.IsNaN(pct) || pct <= 0 || pct > 100 {
		return nil, s, fmt.Errorf("whitebalance: percentile %v: %w", pct, raster.ErrInvalidParameter)
	}

	dst := src.NewFromThis()
	nPix := float64(src.W * src.H)

	for ch := 0; ch < src.C; ch++ {
		counts := channelCounts(src, ch)
		level := percentileOf(counts, pct)

		var fractions [256]float64
		for v, n := range counts {
			fractions[v] = n / nPix
		}
		s.counts = append(s.counts, counts)
		s.Fractions = append(s.Fractions, fractions)
		s.Levels = append(s.Levels, level)

		// All 256 possible inputs map through the same scale, so build a table
		var lut [256]uint8
		for v := range lut {
			if level <= 0 {
				lut[v] = uint8(v)
				continue
			}
			f := math.Min(math.Max(float64(v)/level, 0), 1)
			lut[v] = uint8(math.RoundToEven(f * 255.0))
		}

		for i := ch; i < len(src.Pix); i += src.C {
			dst.Pix[i] = lut[src.Pix[i]]
		}
	}

	return dst, s, nil
}
