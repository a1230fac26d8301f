package raster

// Helpers to move between our buffers and golang's image libraries

import (
	"fmt"
	"image"
	"image/color"
)

// FromImage copies an image.Image into a 3-channel buffer. Alpha is
// dropped; 16-bit channels are reduced to their top byte. Gray images stay
// single channel.
func FromImage(img image.Image) (*Image, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("bounds %s: %w", b, ErrUnsupportedImage)
	}

	if gray, ok := img.(*image.Gray); ok {
		im, _ := New(b.Dx(), b.Dy(), 1)
		for y := 0; y < im.H; y++ {
			copy(im.Pix[y*im.W:(y+1)*im.W], gray.Pix[gray.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return im, nil
	}

	im, _ := New(b.Dx(), b.Dy(), 3)
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			// We want the un-premultiplied values; NRGBA64 gets us those for any color model
			c := color.NRGBA64Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
			i := im.Offset(x, y)
			im.Pix[i+0] = uint8(c.R >> 8)
			im.Pix[i+1] = uint8(c.G >> 8)
			im.Pix[i+2] = uint8(c.B >> 8)
		}
	}

	return im, nil
}

// ToImage wraps the buffer up as an image.Image, for encoding.
func (im *Image) ToImage() image.Image {
	r := image.Rect(0, 0, im.W, im.H)

	if im.C == 1 {
		g := image.NewGray(r)
		copy(g.Pix, im.Pix)
		return g
	}

	out := image.NewNRGBA(r)
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			i := im.Offset(x, y)
			o := out.PixOffset(x, y)
			out.Pix[o+0] = im.Pix[i+0]
			out.Pix[o+1] = im.Pix[i+1]
			out.Pix[o+2] = im.Pix[i+2]
			out.Pix[o+3] = 0xFF
		}
	}
	return out
}

// Luma returns a single channel image, using the ITU-R 601-2 weights in
// 16.16 fixed point. Single channel inputs are copied as-is.
func (im *Image) Luma() *Image {
	if im.C == 1 {
		return im.Copy()
	}

	out := &Image{W: im.W, H: im.H, C: 1, Pix: make([]uint8, im.W*im.H)}
	for i := 0; i < im.W*im.H; i++ {
		r := uint32(im.Pix[i*im.C+0])
		g := uint32(im.Pix[i*im.C+1])
		b := uint32(im.Pix[i*im.C+2])
		out.Pix[i] = uint8((r*19595 + g*38470 + b*7471 + 0x8000) >> 16)
	}
	return out
}

// Merge stacks three single channel images into one RGB image.
func Merge(r, g, b *Image) (*Image, error) {
	for _, ch := range []*Image{r, g, b} {
		if err := ch.Validate(); err != nil {
			return nil, err
		}
		if ch.C != 1 || ch.W != r.W || ch.H != r.H {
			return nil, fmt.Errorf("merge %s,%s,%s: %w", r, g, b, ErrUnsupportedImage)
		}
	}

	out, _ := New(r.W, r.H, 3)
	for i := 0; i < r.W*r.H; i++ {
		out.Pix[i*3+0] = r.Pix[i]
		out.Pix[i*3+1] = g.Pix[i]
		out.Pix[i*3+2] = b.Pix[i]
	}
	return out, nil
}
