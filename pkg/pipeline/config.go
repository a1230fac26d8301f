package pipeline

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/campipe/pkg/filter"
	"github.com/abworrall/campipe/pkg/gamma"
	"github.com/abworrall/campipe/pkg/raster"
)

/* Example config file ...

outputdir: results
stages: [whitebalance, sharpen, denoise, gamma]
whitebalance:
  percentile: 99.9
  plothistogram: true
sharpen:
  scale: 2.5
  mode: subtract
denoise:
  regionsize: 4
gamma:
  value: 1.13
output:
  format: jpg
  jpegquality: 95

*/

// DefaultStages is the order the stages run in unless the config says
// otherwise. Each one consumes the previous one's output.
var DefaultStages = []string{"whitebalance", "demosaic", "sharpen", "denoise", "gamma"}

type ExposureConfig struct {
	Mode             string  // "brightness", "reference" or "ev"
	TargetBrightness float64 // mean sample value to aim for, for "brightness"
	Reference        string  // image whose brightness to match, for "reference"
	TargetEV         float64 // EV (ISO100) to normalise to, for "ev"; needs EXIF
	WriteHDR         bool    // also write the unclipped radiance map
}

type WhiteBalanceConfig struct {
	Percentile    float64
	PlotHistogram bool
}

type DemosaicConfig struct {
	DumpPlanes bool // write the float planes out as PNGs
}

type SharpenConfig struct {
	Scale     float64
	Mode      string // "edge" or "subtract"; see filter.SharpenMode
	SaveEdges bool
}

type DenoiseConfig struct {
	RegionSize int
}

type GammaConfig struct {
	Value float64
	Mode  string // "power" or "srgb"
}

type OutputConfig struct {
	Format      string // file extension for stage outputs: jpg, png, tif
	JPEGQuality int
}

type WatchConfig struct {
	SettleMillis int // how long a new file must be left alone before we read it
}

type Config struct {
	Verbosity int
	OutputDir string
	Stages    []string
	Workers   int

	Exposure     ExposureConfig
	WhiteBalance WhiteBalanceConfig
	Demosaic     DemosaicConfig
	Sharpen      SharpenConfig
	Denoise      DenoiseConfig
	Gamma        GammaConfig
	Output       OutputConfig
	Watch        WatchConfig

	// Values we figure out in Finalize, and put here for access by the stages
	ReferenceBrightness float64     `yaml:"-"`
	stages              []namedStage `yaml:"-"`
}

func NewConfig() Config {
	return Config{
		OutputDir: "results",
		Stages:    append([]string{}, DefaultStages...),
		Workers:   runtime.GOMAXPROCS(0),

		Exposure:     ExposureConfig{Mode: "brightness", TargetBrightness: 118},
		WhiteBalance: WhiteBalanceConfig{Percentile: 99.9, PlotHistogram: true},
		Sharpen:      SharpenConfig{Scale: 1.0, Mode: string(filter.ScaleAtEdge), SaveEdges: true},
		Denoise:      DenoiseConfig{RegionSize: 4},
		Gamma:        GammaConfig{Value: 1.13, Mode: "power"},
		Output:       OutputConfig{Format: "jpg", JPEGQuality: 95},
		Watch:        WatchConfig{SettleMillis: 500},
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

// LoadConfig reads a YAML config file; anything it doesn't mention keeps
// its default.
func LoadConfig(filename string) (Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("config read %s: %w", filename, err)
	}

	c, err := newConfigFromYaml(contents)
	if err != nil {
		return c, fmt.Errorf("config parse %s: %w", filename, err)
	}
	return c, nil
}

func (c Config) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

// Finalize does sanity checks, fills in derived values, and resolves the
// stage names. It must be called before the config is used for processing.
func (c *Config) Finalize() error {
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if len(c.Stages) == 0 {
		c.Stages = append([]string{}, DefaultStages...)
	}

	c.stages = nil
	for _, name := range c.Stages {
		fn, err := GetStage(name)
		if err != nil {
			return err
		}
		c.stages = append(c.stages, namedStage{name: strings.ToLower(name), fn: fn})
	}

	if c.WhiteBalance.Percentile <= 0 || c.WhiteBalance.Percentile > 100 {
		return fmt.Errorf("whitebalance.percentile %v: %w", c.WhiteBalance.Percentile, raster.ErrInvalidParameter)
	}
	if c.Denoise.RegionSize <= 0 {
		return fmt.Errorf("denoise.regionsize %d: %w", c.Denoise.RegionSize, raster.ErrInvalidParameter)
	}
	if _, err := filter.ParseSharpenMode(c.Sharpen.Mode); err != nil {
		return fmt.Errorf("sharpen.mode: %w", err)
	}

	switch c.Gamma.Mode {
	case "", "power":
		if _, err := gamma.NewLUT(c.Gamma.Value); err != nil {
			return fmt.Errorf("gamma.value: %w", err)
		}
	case "srgb":
	default:
		return fmt.Errorf("gamma.mode %q, want power or srgb: %w", c.Gamma.Mode, raster.ErrInvalidParameter)
	}

	switch c.Exposure.Mode {
	case "", "brightness":
		if c.Exposure.TargetBrightness <= 0 || c.Exposure.TargetBrightness > 255 {
			return fmt.Errorf("exposure.targetbrightness %v: %w", c.Exposure.TargetBrightness, raster.ErrInvalidParameter)
		}
	case "reference":
		if c.Exposure.Reference == "" {
			return fmt.Errorf("exposure.reference not set: %w", raster.ErrInvalidParameter)
		}
	case "ev":
	default:
		return fmt.Errorf("exposure.mode %q: %w", c.Exposure.Mode, raster.ErrInvalidParameter)
	}

	c.Output.Format = strings.TrimPrefix(strings.ToLower(c.Output.Format), ".")
	if !isSupportedExt("." + c.Output.Format) {
		return fmt.Errorf("output.format %q: %w", c.Output.Format, raster.ErrInvalidParameter)
	}
	if c.Output.JPEGQuality <= 0 || c.Output.JPEGQuality > 100 {
		c.Output.JPEGQuality = 95
	}

	return nil
}

// Uses reports whether the named stage is part of this config's run.
func (c Config) Uses(stage string) bool {
	for _, s := range c.Stages {
		if strings.EqualFold(s, stage) {
			return true
		}
	}
	return false
}
