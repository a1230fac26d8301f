package raster

import (
	"fmt"
	"math"
)

// DiffStats summarises how far apart two images are.
type DiffStats struct {
	Compared int // samples that were compared
	Skipped  int // samples outside [Low,High] in either image
	MeanAbs  float64
	MaxAbs   int
	Grid     FloatGrid // per-pixel absolute difference, max over channels
}

func (d DiffStats) String() string {
	pct := 0.0
	if total := d.Compared + d.Skipped; total > 0 {
		pct = 100 * float64(d.Compared) / float64(total)
	}
	return fmt.Sprintf("%.1f%% comparable; mean|d|=%.3f, max|d|=%d", pct, d.MeanAbs, d.MaxAbs)
}

// Diff compares a and b sample by sample. Samples where either image is
// below low or above high are left out, so clipped shadows and highlights
// don't swamp the result; pass 0,255 to compare everything.
func Diff(a, b *Image, low, high uint8) (DiffStats, error) {
	if err := a.Validate(); err != nil {
		return DiffStats{}, err
	}
	if err := b.Validate(); err != nil {
		return DiffStats{}, err
	}
	if !a.SameSize(b) {
		return DiffStats{}, fmt.Errorf("diff %s vs %s: %w", a, b, ErrUnsupportedImage)
	}

	d := DiffStats{Grid: NewFloatGrid(a.W, a.H)}
	total := 0
	for y := 0; y < a.H; y++ {
		for x := 0; x < a.W; x++ {
			for ch := 0; ch < a.C; ch++ {
				va, vb := a.At(x, y, ch), b.At(x, y, ch)
				if va < low || vb < low || va > high || vb > high {
					d.Skipped++
					continue
				}

				abs := int(va) - int(vb)
				if abs < 0 {
					abs = -abs
				}
				total += abs
				d.Compared++
				d.MaxAbs = max(d.MaxAbs, abs)
				d.Grid.Set(x, y, math.Max(d.Grid.Get(x, y), float64(abs)))
			}
		}
	}

	if d.Compared > 0 {
		d.MeanAbs = float64(total) / float64(d.Compared)
	}
	return d, nil
}
