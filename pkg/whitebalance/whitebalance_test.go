package whitebalance

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/campipe/pkg/raster"
)

// testImage is 100x1: red ramps 0,2,4..198; green is flat 50; blue is black.
func testImage(t *testing.T) *raster.Image {
	im, err := raster.New(100, 1, 3)
	require.NoError(t, err)
	for x := 0; x < 100; x++ {
		im.Set(x, 0, 0, uint8(2*x))
		im.Set(x, 0, 1, 50)
	}
	return im
}

func TestPercentileAtMax(t *testing.T) {
	src := testImage(t)
	out, s, err := Percentile(src, 100)
	require.NoError(t, err)

	assert.Equal(t, []float64{198, 50, 0}, s.Levels)
	assert.Equal(t, uint8(255), out.At(99, 0, 0))
	assert.Equal(t, uint8(129), out.At(50, 0, 0)) // 100/198*255 = 128.8
	assert.Equal(t, uint8(0), out.At(0, 0, 0))

	// Flat green goes to full white, black blue stays black
	for x := 0; x < 100; x++ {
		assert.Equal(t, uint8(255), out.At(x, 0, 1))
		assert.Equal(t, uint8(0), out.At(x, 0, 2))
	}
}

func TestPercentileClipsAboveLevel(t *testing.T) {
	out, s, err := Percentile(testImage(t), 50)
	require.NoError(t, err)

	assert.Equal(t, 98.0, s.Levels[0])
	assert.Equal(t, uint8(255), out.At(49, 0, 0))
	assert.Equal(t, uint8(255), out.At(80, 0, 0))
	assert.Equal(t, uint8(125), out.At(24, 0, 0)) // 48/98*255 = 124.9
}

func TestStats(t *testing.T) {
	_, s, err := Percentile(testImage(t), 99.9)
	require.NoError(t, err)

	require.Len(t, s.Fractions, 3)
	for ch := range s.Fractions {
		sum := 0.0
		for _, f := range s.Fractions[ch] {
			sum += f
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
	assert.Equal(t, 1.0, s.Fractions[1][50])
	assert.Len(t, s.Histograms(), 3)
	assert.Contains(t, s.String(), "p99.90")
}

func TestPercentileBadInput(t *testing.T) {
	for _, pct := range []float64{0, -5, 100.5, math.NaN()} {
		_, _, err := Percentile(testImage(t), pct)
		assert.ErrorIs(t, err, raster.ErrInvalidParameter, "pct %v", pct)
	}

	_, _, err := Percentile(&raster.Image{W: 1, H: 1, C: 4, Pix: make([]uint8, 4)}, 50)
	assert.ErrorIs(t, err, raster.ErrUnsupportedImage)
}

func TestPercentileGray(t *testing.T) {
	src, err := raster.NewUniform(4, 4, 1, 64)
	require.NoError(t, err)
	out, s, err := Percentile(src, 95)
	require.NoError(t, err)
	assert.Len(t, s.Levels, 1)
	assert.Equal(t, uint8(255), out.At(3, 3, 0))
}

func TestPlotHistogram(t *testing.T) {
	src := testImage(t)
	out, s, err := Percentile(src, 95)
	require.NoError(t, err)

	fn := filepath.Join(t.TempDir(), "hist.png")
	require.NoError(t, PlotHistogram(src, out, s, fn))
	assert.FileExists(t, fn)

	err = PlotHistogram(src, out, s, filepath.Join(t.TempDir(), "nope", "hist.png"))
	assert.Error(t, err)
}
