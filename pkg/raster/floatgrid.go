package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg" // Move to https://pkg.go.dev/golang.org/x/image/font#Drawer sometime
)

// A FloatGrid is a grid of floats, with some operations. The demosaic
// code does its arithmetic in here, and only comes back down to 8 bits at
// the very end.
type FloatGrid struct {
	stride int
	values []float64
}

// A Kernel3x3 is row-major: k[0..2] is the top row.
type Kernel3x3 [9]float64

func NewFloatGrid(w, h int) FloatGrid {
	return FloatGrid{
		stride: w,
		values: make([]float64, w*h),
	}
}

// FloatGridFromChannel copies one channel of an image into a grid.
func FloatGridFromChannel(im *Image, ch int) FloatGrid {
	fg := NewFloatGrid(im.W, im.H)
	for i := 0; i < im.W*im.H; i++ {
		fg.values[i] = float64(im.Pix[i*im.C+ch])
	}
	return fg
}

func (g1 *FloatGrid) NewFromThis() FloatGrid  { return NewFloatGrid(g1.Dx(), g1.Dy()) }
func (fg *FloatGrid) Set(x, y int, v float64) { fg.values[fg.stride*y+x] = v }
func (fg *FloatGrid) Get(x, y int) float64    { return fg.values[fg.stride*y+x] }
func (fg *FloatGrid) Dx() int                 { return fg.stride }
func (fg *FloatGrid) Dy() int                 { return len(fg.values) / fg.stride }

func (g1 *FloatGrid) Copy() *FloatGrid {
	g2 := FloatGrid{stride: g1.stride, values: make([]float64, len(g1.values))}
	copy(g2.values, g1.values)
	return &g2
}

// Add returns g1+g2, elementwise. They must be the same size.
func (g1 *FloatGrid) Add(g2 FloatGrid) FloatGrid {
	out := g1.NewFromThis()
	for i := range g1.values {
		out.values[i] = g1.values[i] + g2.values[i]
	}
	return out
}

// Convolve3x3 returns a same-sized grid; anything read from off the edge
// of the grid is taken as zero. The kernels we use are all symmetric, so
// there's no need to flip them.
func (g1 *FloatGrid) Convolve3x3(k Kernel3x3) FloatGrid {
	width := g1.Dx()
	height := g1.Dy()
	g2 := g1.NewFromThis()

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			t := 0.0
			for ky := -1; ky <= 1; ky++ {
				yy := y + ky
				if yy < 0 || yy >= height {
					continue
				}
				for kx := -1; kx <= 1; kx++ {
					xx := x + kx
					if xx < 0 || xx >= width {
						continue
					}
					if w := k[(ky+1)*3+(kx+1)]; w != 0 {
						t += w * g1.Get(xx, yy)
					}
				}
			}
			g2.Set(x, y, t)
		}
	}

	return g2
}

func (fg *FloatGrid) Max() float64 {
	max := math.Inf(-1)
	for _, v := range fg.values {
		if v > max {
			max = v
		}
	}
	return max
}

// NormalizeToChannel scales the grid so its max lands on 255, clips to
// [0,255], truncates, and writes the result into channel ch of dst. If
// the grid is all zero the channel is left black.
func (fg *FloatGrid) NormalizeToChannel(dst *Image, ch int) {
	max := fg.Max()
	for i, v := range fg.values {
		if max > 0 {
			v = v * 255.0 / max
		} else {
			v = 0
		}
		dst.Pix[i*dst.C+ch] = uint8(math.Min(math.Max(v, 0), 255))
	}
}

func (fg *FloatGrid) Stats() string {
	min := math.MaxFloat64
	max := -1.0 * min

	for i := 0; i < len(fg.values); i++ {
		if fg.values[i] > max {
			max = fg.values[i]
		}
		if fg.values[i] < min {
			min = fg.values[i]
		}
	}
	return fmt.Sprintf("fg[%dx%d, vals{%f,%f}]", fg.Dx(), fg.Dy(), min, max)
}

// ToImg saves a simple grayscale, based on the range of values in the
// grid, with a title drawn on top. Handy for eyeballing intermediate
// demosaic planes.
func (fg *FloatGrid) ToImg(title, filename string) error {
	min, max := math.MaxFloat64, -math.MaxFloat64
	for i := 0; i < len(fg.values); i++ {
		if fg.values[i] > max {
			max = fg.values[i]
		}
		if fg.values[i] < min {
			min = fg.values[i]
		}
	}
	span := max - min
	if span == 0 {
		span = 1
	}

	img := image.NewRGBA64(image.Rectangle{Max: image.Point{fg.Dx(), fg.Dy()}})
	for x := 0; x < fg.Dx(); x++ {
		for y := 0; y < fg.Dy(); y++ {
			gray := uint16((fg.Get(x, y) - min) / span * 65535.0)
			img.Set(x, y, color.RGBA64{gray, gray, gray, 0xFFFF})
		}
	}

	dc := gg.NewContextForImage(img)
	dc.SetRGB(1, 0, 0)
	dc.DrawString(title, 10, 20)
	return dc.SavePNG(filename)
}
