package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/campipe/pkg/raster"
)

// testImage writes a small RGB gradient out as a PNG, and returns its path.
func testImage(t *testing.T, dir, name string) string {
	t.Helper()
	im, err := raster.New(16, 12, 3)
	require.NoError(t, err)
	for y := 0; y < im.H; y++ {
		for x := 0; x < im.W; x++ {
			im.Set(x, y, 0, uint8(x*15))
			im.Set(x, y, 1, uint8(y*20))
			im.Set(x, y, 2, uint8(100+x+y))
		}
	}
	fn := filepath.Join(dir, name)
	require.NoError(t, SaveImage(im, fn, 95))
	return fn
}

func testConfig(t *testing.T) Config {
	cfg := NewConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Workers = 2
	return cfg
}

func TestConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Finalize())

	assert.Equal(t, DefaultStages, cfg.Stages)
	assert.Equal(t, 99.9, cfg.WhiteBalance.Percentile)
	assert.Equal(t, 1.0, cfg.Sharpen.Scale)
	assert.Equal(t, "edge", cfg.Sharpen.Mode)
	assert.Equal(t, 4, cfg.Denoise.RegionSize)
	assert.Equal(t, 1.13, cfg.Gamma.Value)
	assert.Equal(t, "jpg", cfg.Output.Format)
	assert.Greater(t, cfg.Workers, 0)
	assert.False(t, cfg.Uses("exposure"))
	assert.True(t, cfg.Uses("Denoise"))
}

func TestConfigFromYaml(t *testing.T) {
	cfg, err := newConfigFromYaml([]byte(`
stages: [sharpen, gamma]
sharpen:
  scale: 2.5
  mode: subtract
gamma:
  value: 2.2
output:
  format: .PNG
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Finalize())

	assert.Equal(t, []string{"sharpen", "gamma"}, cfg.Stages)
	assert.Equal(t, 2.5, cfg.Sharpen.Scale)
	assert.Equal(t, "subtract", cfg.Sharpen.Mode)
	assert.Equal(t, 2.2, cfg.Gamma.Value)
	assert.Equal(t, "png", cfg.Output.Format)
	assert.Equal(t, 4, cfg.Denoise.RegionSize, "unmentioned values keep their defaults")

	// Round trip through AsYaml
	again, err := newConfigFromYaml([]byte(cfg.AsYaml()))
	require.NoError(t, err)
	assert.Equal(t, cfg.Sharpen, again.Sharpen)
	assert.Equal(t, cfg.Stages, again.Stages)
}

func TestLoadConfig(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("denoise:\n  regionsize: 2\n"), 0o644))

	cfg, err := LoadConfig(fn)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Denoise.RegionSize)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(fn, []byte("stages: {not: a list"), 0o644))
	_, err = LoadConfig(fn)
	assert.Error(t, err)
}

func TestFinalizeRejectsBadValues(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"unknown stage":     func(c *Config) { c.Stages = []string{"sharpen", "blur"} },
		"zero percentile":   func(c *Config) { c.WhiteBalance.Percentile = 0 },
		"huge percentile":   func(c *Config) { c.WhiteBalance.Percentile = 100.5 },
		"zero region":       func(c *Config) { c.Denoise.RegionSize = 0 },
		"negative gamma":    func(c *Config) { c.Gamma.Value = -1 },
		"gamma mode":        func(c *Config) { c.Gamma.Mode = "log" },
		"sharpen mode":      func(c *Config) { c.Sharpen.Mode = "sideways" },
		"output format":     func(c *Config) { c.Output.Format = "xcf" },
		"no reference":      func(c *Config) { c.Exposure.Mode = "reference" },
		"exposure mode":     func(c *Config) { c.Exposure.Mode = "auto" },
		"target brightness": func(c *Config) { c.Exposure.TargetBrightness = 0 },
	} {
		cfg := NewConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Finalize(), raster.ErrInvalidParameter, name)
	}
}

func TestOutputFilename(t *testing.T) {
	img := Output{Stage: "sharpen", Suffix: "edges", Img: &raster.Image{}}
	assert.Equal(t, filepath.Join("out", "sharpen", "cat_edges.png"), img.Filename("out", "cat", "png"))

	file := Output{Stage: "whitebalance", Suffix: "histogram.png"}
	assert.Equal(t, filepath.Join("out", "whitebalance", "cat_histogram.png"), file.Filename("out", "cat", "jpg"))

	f := NewFrame("/some/where/cat.photo.TIF", nil)
	assert.Equal(t, "cat.photo", f.Name)
}

func TestRunIdentityGamma(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stages = []string{"gamma"}
	cfg.Gamma.Value = 1.0
	p, err := NewProcessor(cfg)
	require.NoError(t, err)

	src, err := raster.New(5, 5, 3)
	require.NoError(t, err)
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 3)
	}
	orig := src.Copy()

	f := NewFrame("ramp.png", src)
	var res Result
	require.NoError(t, p.Run(context.Background(), f, &res))

	assert.Equal(t, orig.Pix, f.Img.Pix)
	assert.Equal(t, orig.Pix, src.Pix, "source must not be modified")
	require.Len(t, f.Outputs, 2)
	assert.Equal(t, "final2", f.Outputs[0].Suffix)
	assert.Equal(t, "final", f.Outputs[1].Suffix)
	require.Len(t, res.Stages, 1)
	assert.Equal(t, "gamma", res.Stages[0].Stage)
}

func TestRunExposure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stages = []string{"exposure"}
	p, err := NewProcessor(cfg)
	require.NoError(t, err)

	src, err := raster.NewUniform(4, 4, 3, 59)
	require.NoError(t, err)
	f := NewFrame("dim.png", src)
	require.NoError(t, p.Run(context.Background(), f, nil))
	assert.Equal(t, uint8(118), f.Img.At(2, 2, 1))

	// No EXIF, so can't work out a gain from EV
	cfg.Exposure.Mode = "ev"
	p, err = NewProcessor(cfg)
	require.NoError(t, err)
	err = p.Run(context.Background(), NewFrame("dim.png", src), nil)
	assert.ErrorContains(t, err, "EXIF")
}

func TestRunStopsWhenCancelled(t *testing.T) {
	p, err := NewProcessor(testConfig(t))
	require.NoError(t, err)

	src, err := raster.NewUniform(4, 4, 3, 10)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.Run(ctx, NewFrame("x.png", src), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessFileWritesEveryStage(t *testing.T) {
	cfg := testConfig(t)
	fn := testImage(t, t.TempDir(), "scene.png")

	p, err := NewProcessor(cfg)
	require.NoError(t, err)
	res, err := p.ProcessFile(context.Background(), fn)
	require.NoError(t, err)

	var rel []string
	for _, out := range res.Outputs {
		_, err := os.Stat(out)
		require.NoError(t, err, out)
		r, err := filepath.Rel(cfg.OutputDir, out)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.Equal(t, []string{
		"whitebalance/scene_histogram.png",
		"whitebalance/scene_whitebalanced.jpg",
		"demosaic/scene_demosaiced.jpg",
		"sharpen/scene_edges.jpg",
		"sharpen/scene_sharpened.jpg",
		"denoise/scene_denoised.jpg",
		"gamma/scene_final2.jpg",
		"gamma/scene_final.jpg",
	}, rel)
	assert.Len(t, res.Stages, len(DefaultStages))

	final, err := LoadFrame(res.Outputs[len(res.Outputs)-1])
	require.NoError(t, err)
	assert.Equal(t, 16, final.Img.W)
	assert.Equal(t, 12, final.Img.H)
}

func TestProcessFileFailures(t *testing.T) {
	p, err := NewProcessor(testConfig(t))
	require.NoError(t, err)

	_, err = p.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	_, err = p.ProcessFile(context.Background(), "notes.txt")
	assert.ErrorIs(t, err, raster.ErrUnsupportedImage)
}

func TestBatchLoadFilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "day1")
	require.NoError(t, os.Mkdir(sub, 0o755))

	a := testImage(t, dir, "a.png")
	b := testImage(t, sub, "b.jpg")
	require.NoError(t, os.WriteFile(filepath.Join(sub, "readme.txt"), []byte("hi"), 0o644))
	cfgFile := filepath.Join(dir, "campipe.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("denoise:\n  regionsize: 3\n"), 0o644))

	batch := NewBatch()
	require.NoError(t, batch.LoadFilesAndDirs(dir))

	assert.ElementsMatch(t, []string{a, b}, batch.Inputs)
	assert.Equal(t, 3, batch.Config.Denoise.RegionSize)

	assert.Error(t, batch.LoadFilesAndDirs(filepath.Join(dir, "nope")))
}

func TestBatchRunCollectsFailures(t *testing.T) {
	dir := t.TempDir()
	good := testImage(t, dir, "good.png")
	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("this is not a png"), 0o644))

	batch := NewBatch()
	batch.Config = testConfig(t)
	batch.Config.Stages = []string{"denoise", "gamma"}
	require.NoError(t, batch.LoadFilesAndDirs(good, bad))

	results, err := batch.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.png")
	assert.NotContains(t, err.Error(), "good.png")

	require.Len(t, results, 2)
	assert.Len(t, results[0].Outputs, 3)
	assert.Empty(t, results[1].Outputs)

	lat := batch.Latency()
	require.NotNil(t, lat)
	assert.Equal(t, int64(1), lat.TotalCount())
}

func TestBatchRunBadConfig(t *testing.T) {
	batch := NewBatch()
	batch.Config.Stages = []string{"teleport"}
	_, err := batch.Run(context.Background())
	assert.ErrorIs(t, err, raster.ErrInvalidParameter)
}

func TestWatchPicksUpNewFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stages = []string{"gamma"}
	cfg.Watch.SettleMillis = 50
	p, err := NewProcessor(cfg)
	require.NoError(t, err)

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan Result, 4)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- p.Watch(ctx, dir, func(res Result, err error) {
			if err == nil {
				results <- res
			}
		})
	}()

	// Give the watcher a moment to get going before the file lands
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	fn := testImage(t, dir, "arrival.png")

	var got Result
	require.Eventually(t, func() bool {
		select {
		case got = <-results:
			return true
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, fn, got.Input)
	require.NotEmpty(t, got.Outputs)
	assert.True(t, strings.HasSuffix(got.Outputs[len(got.Outputs)-1], "arrival_final.jpg"))

	cancel()
	select {
	case err := <-watchErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher didn't stop")
	}
}

func TestExposureToReferenceWithHDR(t *testing.T) {
	dir := t.TempDir()
	ref, err := raster.NewUniform(8, 8, 3, 120)
	require.NoError(t, err)
	refFile := filepath.Join(dir, "ref.png")
	require.NoError(t, SaveImage(ref, refFile, 95))

	dim, err := raster.NewUniform(8, 8, 3, 40)
	require.NoError(t, err)
	dimFile := filepath.Join(dir, "dim.png")
	require.NoError(t, SaveImage(dim, dimFile, 95))

	cfg := testConfig(t)
	cfg.Stages = []string{"exposure"}
	cfg.Exposure.Mode = "reference"
	cfg.Exposure.Reference = refFile
	cfg.Exposure.WriteHDR = true
	cfg.Output.Format = "png"

	p, err := NewProcessor(cfg)
	require.NoError(t, err)
	assert.Equal(t, 120.0, p.Config.ReferenceBrightness)

	res, err := p.ProcessFile(context.Background(), dimFile)
	require.NoError(t, err)
	require.Len(t, res.Outputs, 2)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "exposure", "dim_exposure.hdr"), res.Outputs[0])

	out, err := LoadFrame(res.Outputs[1])
	require.NoError(t, err)
	assert.Equal(t, ref.Pix, out.Img.Pix)

	cfg.Exposure.Reference = filepath.Join(dir, "missing.png")
	_, err = NewProcessor(cfg)
	assert.Error(t, err)
}
