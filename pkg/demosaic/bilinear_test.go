package demosaic

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/campipe/pkg/raster"
)

func TestSplitRGGB(t *testing.T) {
	m, err := raster.New(2, 2, 1)
	require.NoError(t, err)
	copy(m.Pix, []uint8{10, 20, 30, 40})

	r, g, b := Split(m)
	assert.Equal(t, 10.0, r.Get(0, 0))
	assert.Equal(t, 0.0, r.Get(1, 0))
	assert.Equal(t, 20.0, g.Get(1, 0))
	assert.Equal(t, 30.0, g.Get(0, 1))
	assert.Equal(t, 0.0, g.Get(1, 1))
	assert.Equal(t, 40.0, b.Get(1, 1))
	assert.Equal(t, 0.0, b.Get(0, 0))
}

func TestBilinearUniformMosaic(t *testing.T) {
	src, err := raster.NewUniform(6, 6, 1, 100)
	require.NoError(t, err)

	out, err := Bilinear(src, "")
	require.NoError(t, err)
	require.Equal(t, 3, out.C)
	require.Equal(t, 6, out.W)

	// Away from the zero-padded border, every site is fully interpolated
	for y := 1; y < 5; y++ {
		for x := 1; x < 5; x++ {
			for ch := 0; ch < 3; ch++ {
				assert.Equal(t, uint8(255), out.At(x, y, ch), "(%d,%d) ch%d", x, y, ch)
			}
		}
	}

	// The border only has half its neighbours: R at a G photosite on row 0
	assert.Equal(t, uint8(191), out.At(1, 0, 0))
}

func TestBilinearUsesLumaOfColorInput(t *testing.T) {
	src, err := raster.NewUniform(6, 6, 3, 255)
	require.NoError(t, err)
	out, err := Bilinear(src, "")
	require.NoError(t, err)
	assert.Equal(t, uint8(255), out.At(2, 2, 1))
}

func TestBilinearBlackStaysBlack(t *testing.T) {
	src, err := raster.New(4, 4, 1)
	require.NoError(t, err)
	out, err := Bilinear(src, "")
	require.NoError(t, err)
	assert.Equal(t, make([]uint8, 4*4*3), out.Pix)
}

func TestBilinearDumpsPlanes(t *testing.T) {
	src, err := raster.NewUniform(6, 6, 1, 100)
	require.NoError(t, err)
	prefix := filepath.Join(t.TempDir(), "plane")
	_, err = Bilinear(src, prefix)
	require.NoError(t, err)
	for _, ch := range []string{"0", "1", "2"} {
		assert.FileExists(t, prefix+"-ch"+ch+".png")
	}
}

func TestBilinearRejectsBadImage(t *testing.T) {
	_, err := Bilinear(&raster.Image{}, "")
	assert.ErrorIs(t, err, raster.ErrUnsupportedImage)
}
