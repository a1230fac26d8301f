package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/abworrall/campipe/pkg/exposure"
	"github.com/abworrall/campipe/pkg/raster"
)

// A Frame is one input image on its way through the pipeline.
type Frame struct {
	Source   string                  // The file it was loaded from
	Name     string                  // Base name, no extension; used to name outputs
	Img      *raster.Image           // The output of the most recent stage
	Exposure *exposure.ExposureValue // From EXIF, if the file had it

	Outputs []Output // Everything the stages want written out, in order
}

// An Output is something a stage wants saved, under <outdir>/<Stage>/.
// Either Img is set (saved in the configured format), or Write is, and is
// handed the full filename.
type Output struct {
	Stage  string
	Suffix string
	Img    *raster.Image
	Write  func(filename string) error
}

func NewFrame(source string, img *raster.Image) *Frame {
	base := filepath.Base(source)
	return &Frame{
		Source: source,
		Name:   strings.TrimSuffix(base, filepath.Ext(base)),
		Img:    img,
	}
}

func (f *Frame) String() string {
	s := fmt.Sprintf("%s: %s", f.Name, f.Img)
	if f.Exposure != nil {
		s += fmt.Sprintf(", %s", f.Exposure)
	}
	return s
}

// Advance makes img the frame's current image, and queues it for saving.
func (f *Frame) Advance(stage, suffix string, img *raster.Image) {
	f.AddImage(stage, suffix, img)
	f.Img = img
}

func (f *Frame) AddImage(stage, suffix string, img *raster.Image) {
	f.Outputs = append(f.Outputs, Output{Stage: stage, Suffix: suffix, Img: img})
}

// AddFile queues a non-image output; the suffix includes its extension.
func (f *Frame) AddFile(stage, suffix string, write func(filename string) error) {
	f.Outputs = append(f.Outputs, Output{Stage: stage, Suffix: suffix, Write: write})
}

// Filename works out where an output goes.
func (o Output) Filename(outDir, name, format string) string {
	fn := name + "_" + o.Suffix
	if o.Img != nil {
		fn += "." + format
	}
	return filepath.Join(outDir, o.Stage, fn)
}
