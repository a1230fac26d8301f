package exposure

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/mdouchement/hdr/codec/rgbe"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/campipe/pkg/raster"
)

// A RadianceMap is a gained image that hasn't been clipped back down to 8
// bits; values above 1.0 survive. Implements hdr.Image, so it can be
// written out as a Radiance .hdr file and loaded into HDR tools.
type RadianceMap struct {
	src    *raster.Image
	factor float64
}

func NewRadianceMap(src *raster.Image, factor float64) (*RadianceMap, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return &RadianceMap{src: src, factor: factor}, nil
}

// Implement image.Image
func (rm *RadianceMap) ColorModel() color.Model { return hdrcolor.RGBModel }
func (rm *RadianceMap) Bounds() image.Rectangle { return image.Rect(0, 0, rm.src.W, rm.src.H) }
func (rm *RadianceMap) At(x, y int) color.Color { return rm.HDRAt(x, y) }

// Implement hdr.Image
func (rm *RadianceMap) Size() int { return rm.src.W * rm.src.H }
func (rm *RadianceMap) HDRAt(x, y int) hdrcolor.Color {
	f := func(ch int) float64 {
		if rm.src.C == 1 {
			ch = 0
		}
		return float64(rm.src.At(x, y, ch)) / 255.0 * rm.factor
	}
	return hdrcolor.RGB{R: f(0), G: f(1), B: f(2)}
}

// WriteHDR outputs the map as an RGBE file.
func (rm *RadianceMap) WriteHDR(filename string) error {
	writer, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("RadianceMap.WriteHDR, open+w '%s': %v", filename, err)
	}
	defer writer.Close()

	if err := rgbe.Encode(writer, rm); err != nil {
		return fmt.Errorf("RadianceMap.WriteHDR, encoding RGBE: %v", err)
	}
	return nil
}
