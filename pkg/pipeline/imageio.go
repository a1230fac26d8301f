package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/tiff"

	"github.com/abworrall/campipe/pkg/exposure"
	"github.com/abworrall/campipe/pkg/raster"
)

var supportedExts = []string{".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp", ".gif"}

func isSupportedExt(ext string) bool {
	return lo.Contains(supportedExts, strings.ToLower(ext))
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// LoadFrame decodes an image file into a Frame. If the file carries EXIF
// exposure info, that is picked up too; it's fine if it doesn't.
func LoadFrame(filename string) (*Frame, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !isSupportedExt(ext) {
		return nil, fmt.Errorf("load %s: extension %q: %w", filename, ext, raster.ErrUnsupportedImage)
	}

	var img *raster.Image
	var err error
	switch ext {
	case ".tif", ".tiff":
		img, err = loadTIFF(filename)
	default:
		img, err = loadViaImaging(filename)
	}
	if err != nil {
		return nil, err
	}

	f := NewFrame(filename, img)

	if reader, err := os.Open(filename); err != nil {
		return nil, fmt.Errorf("open+r exif '%s': %w", filename, err)
	} else {
		defer reader.Close()
		if ev, err := exposure.FromEXIF(reader); err != nil {
			log.Debugf("%s: no usable EXIF (%v)", filename, err)
		} else {
			f.Exposure = &ev
		}
	}

	return f, nil
}

func loadTIFF(filename string) (*raster.Image, error) {
	reader, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r img '%s': %w", filename, err)
	}
	defer reader.Close()

	decoded, err := tiff.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("tiff loading '%s': %w", filename, err)
	}
	img, err := raster.FromImage(decoded)
	if err != nil {
		return nil, fmt.Errorf("tiff loading '%s': %w", filename, err)
	}
	return img, nil
}

func loadViaImaging(filename string) (*raster.Image, error) {
	decoded, err := imaging.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loading '%s': %w", filename, err)
	}
	img, err := raster.FromImage(decoded)
	if err != nil {
		return nil, fmt.Errorf("loading '%s': %w", filename, err)
	}
	return img, nil
}

// SaveImage writes img out, in the format implied by the filename's
// extension.
func SaveImage(img *raster.Image, filename string, jpegQuality int) error {
	if err := ensureDir(filepath.Dir(filename)); err != nil {
		return err
	}
	if err := imaging.Save(img.ToImage(), filename, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("save '%s': %w", filename, err)
	}
	return nil
}
