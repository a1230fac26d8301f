package raster

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned for out-of-range filter parameters
	// (non-positive gamma, non-positive region size, etc.)
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrUnsupportedImage is returned for images the filters can't work on:
	// zero-size, or a channel count other than 1 or 3.
	ErrUnsupportedImage = errors.New("unsupported image")
)

// An Image is a grid of 8-bit samples, C channels per pixel, held in a
// single flat buffer. Sample (x,y,ch) lives at Pix[(y*W+x)*C + ch].
type Image struct {
	W, H int
	C    int
	Pix  []uint8
}

// New allocates a zeroed image.
func New(w, h, c int) (*Image, error) {
	if err := checkGeometry(w, h, c); err != nil {
		return nil, err
	}
	return &Image{W: w, H: h, C: c, Pix: make([]uint8, w*h*c)}, nil
}

// NewUniform allocates an image with every sample set to v.
func NewUniform(w, h, c int, v uint8) (*Image, error) {
	im, err := New(w, h, c)
	if err != nil {
		return nil, err
	}
	for i := range im.Pix {
		im.Pix[i] = v
	}
	return im, nil
}

func checkGeometry(w, h, c int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%dx%d: %w", w, h, ErrUnsupportedImage)
	}
	if c != 1 && c != 3 {
		return fmt.Errorf("%d channels: %w", c, ErrUnsupportedImage)
	}
	return nil
}

// Validate checks the invariants; every filter calls this on its input.
func (im *Image) Validate() error {
	if im == nil {
		return fmt.Errorf("nil image: %w", ErrUnsupportedImage)
	}
	if err := checkGeometry(im.W, im.H, im.C); err != nil {
		return err
	}
	if len(im.Pix) != im.W*im.H*im.C {
		return fmt.Errorf("buffer is %d samples, want %d: %w", len(im.Pix), im.W*im.H*im.C, ErrUnsupportedImage)
	}
	return nil
}

func (im *Image) Stride() int                 { return im.W * im.C }
func (im *Image) Offset(x, y int) int         { return y*im.Stride() + x*im.C }
func (im *Image) At(x, y, ch int) uint8       { return im.Pix[im.Offset(x, y)+ch] }
func (im *Image) Set(x, y, ch int, v uint8)   { im.Pix[im.Offset(x, y)+ch] = v }
func (im *Image) SameSize(other *Image) bool  { return im.W == other.W && im.H == other.H && im.C == other.C }
func (im *Image) String() string              { return fmt.Sprintf("img[%dx%dx%d]", im.W, im.H, im.C) }

// NewFromThis returns a zeroed image with the same geometry.
func (im *Image) NewFromThis() *Image {
	return &Image{W: im.W, H: im.H, C: im.C, Pix: make([]uint8, len(im.Pix))}
}

func (im *Image) Copy() *Image {
	out := im.NewFromThis()
	copy(out.Pix, im.Pix)
	return out
}

// Channel returns a single-channel copy of channel ch.
func (im *Image) Channel(ch int) *Image {
	out := &Image{W: im.W, H: im.H, C: 1, Pix: make([]uint8, im.W*im.H)}
	for i := 0; i < im.W*im.H; i++ {
		out.Pix[i] = im.Pix[i*im.C+ch]
	}
	return out
}

// ClampU8 squashes an int into the 8-bit sample range.
func ClampU8(v int) uint8 {
	if v < 0 {
		return 0
	} else if v > 255 {
		return 255
	}
	return uint8(v)
}
