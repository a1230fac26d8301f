package pipeline

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/abworrall/campipe/pkg/demosaic"
	"github.com/abworrall/campipe/pkg/exposure"
	"github.com/abworrall/campipe/pkg/filter"
	"github.com/abworrall/campipe/pkg/gamma"
	"github.com/abworrall/campipe/pkg/raster"
	"github.com/abworrall/campipe/pkg/whitebalance"
)

// A StageFunc transforms frame.Img into a new image, and records anything
// it wants written out. It must not modify the image it was handed.
type StageFunc func(Config, *Frame) error

type namedStage struct {
	name string
	fn   StageFunc
}

// Stages lists the names GetStage knows about.
var Stages = []string{"exposure", "whitebalance", "demosaic", "sharpen", "denoise", "gamma"}

func GetStage(name string) (StageFunc, error) {
	switch strings.ToLower(name) {
	case "exposure":
		return StageExposure, nil
	case "whitebalance":
		return StageWhiteBalance, nil
	case "demosaic":
		return StageDemosaic, nil
	case "sharpen":
		return StageSharpen, nil
	case "denoise":
		return StageDenoise, nil
	case "gamma":
		return StageGamma, nil
	default:
		return nil, fmt.Errorf("no stage named '%s', want one of %v: %w", name, Stages, raster.ErrInvalidParameter)
	}
}

// StageExposure scales the frame's brightness, by one of three rules: to
// a fixed mean level, to match a reference image, or (using EXIF) to a
// target EV.
func StageExposure(cfg Config, f *Frame) error {
	var gain float64
	var err error

	switch cfg.Exposure.Mode {
	case "ev":
		if f.Exposure == nil {
			return fmt.Errorf("exposure: %s has no EXIF exposure info", f.Name)
		}
		gain = f.Exposure.GainTo(exposure.ExposureValue{EV: cfg.Exposure.TargetEV})

	case "reference":
		var b float64
		if b, err = exposure.Brightness(f.Img); err == nil {
			gain, err = exposure.GainForLevel(b, cfg.ReferenceBrightness)
		}

	default:
		var b float64
		if b, err = exposure.Brightness(f.Img); err == nil {
			gain, err = exposure.GainForLevel(b, cfg.Exposure.TargetBrightness)
		}
	}
	if err != nil {
		return fmt.Errorf("exposure: %w", err)
	}

	log.Debugf("%s: exposure gain %.3f (%+.2f EV)", f.Name, gain, math.Log2(gain))

	if cfg.Exposure.WriteHDR {
		rm, err := exposure.NewRadianceMap(f.Img, gain)
		if err != nil {
			return fmt.Errorf("exposure: %w", err)
		}
		f.AddFile("exposure", "exposure.hdr", rm.WriteHDR)
	}

	out, err := exposure.Gain(f.Img, gain)
	if err != nil {
		return fmt.Errorf("exposure: %w", err)
	}
	f.Advance("exposure", "exposure", out)
	return nil
}

func StageWhiteBalance(cfg Config, f *Frame) error {
	out, stats, err := whitebalance.Percentile(f.Img, cfg.WhiteBalance.Percentile)
	if err != nil {
		return err
	}

	log.Debugf("%s: %s", f.Name, stats)
	if cfg.Verbosity > 1 {
		for ch, h := range stats.Histograms() {
			log.Debugf("%s: ch%d histogram %v", f.Name, ch, h)
		}
	}

	if cfg.WhiteBalance.PlotHistogram {
		orig := f.Img
		f.AddFile("whitebalance", "histogram.png", func(filename string) error {
			return whitebalance.PlotHistogram(orig, out, stats, filename)
		})
	}

	f.Advance("whitebalance", "whitebalanced", out)
	return nil
}

func StageDemosaic(cfg Config, f *Frame) error {
	dumpPrefix := ""
	if cfg.Demosaic.DumpPlanes {
		dumpPrefix = filepath.Join(cfg.OutputDir, "demosaic", f.Name+"_plane")
		if err := ensureDir(filepath.Dir(dumpPrefix)); err != nil {
			return err
		}
	}

	out, err := demosaic.Bilinear(f.Img, dumpPrefix)
	if err != nil {
		return err
	}
	f.Advance("demosaic", "demosaiced", out)
	return nil
}

func StageSharpen(cfg Config, f *Frame) error {
	opts := filter.SharpenOptions{Scale: cfg.Sharpen.Scale, Mode: filter.SharpenMode(cfg.Sharpen.Mode)}
	out, edges, err := filter.Sharpen(f.Img, opts)
	if err != nil {
		return err
	}

	if cfg.Sharpen.SaveEdges {
		f.AddImage("sharpen", "edges", edges.ToImage())
	}
	f.Advance("sharpen", "sharpened", out)
	return nil
}

func StageDenoise(cfg Config, f *Frame) error {
	out, err := filter.Median(f.Img, cfg.Denoise.RegionSize)
	if err != nil {
		return err
	}
	f.Advance("denoise", "denoised", out)
	return nil
}

// StageGamma writes both the gamma image and the inverse-gamma corrected
// image; the gamma image carries on down the pipeline.
func StageGamma(cfg Config, f *Frame) error {
	if cfg.Gamma.Mode == "srgb" {
		out, err := gamma.SRGBLUT().Apply(f.Img)
		if err != nil {
			return err
		}
		f.Advance("gamma", "final", out)
		return nil
	}

	gammaImg, corrected, err := gamma.Correct(f.Img, cfg.Gamma.Value)
	if err != nil {
		return err
	}
	f.AddImage("gamma", "final2", corrected)
	f.Advance("gamma", "final", gammaImg)
	return nil
}
