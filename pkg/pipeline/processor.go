package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/abworrall/campipe/pkg/exposure"
)

// A Processor runs the configured stages over one file at a time. It is
// safe for concurrent use; each call works on its own Frame.
type Processor struct {
	Config Config
}

type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Result describes what happened to one input file.
type Result struct {
	Input    string
	Outputs  []string // Files written, in the order the stages produced them
	Duration time.Duration
	Stages   []StageTiming
}

func NewProcessor(cfg Config) (*Processor, error) {
	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.Uses("exposure") && cfg.Exposure.Mode == "reference" {
		ref, err := LoadFrame(cfg.Exposure.Reference)
		if err != nil {
			return nil, fmt.Errorf("exposure reference: %w", err)
		}
		if cfg.ReferenceBrightness, err = exposure.Brightness(ref.Img); err != nil {
			return nil, fmt.Errorf("exposure reference: %w", err)
		}
		log.Infof("exposure: reference %s has brightness %.2f", cfg.Exposure.Reference, cfg.ReferenceBrightness)
	}

	return &Processor{Config: cfg}, nil
}

// ProcessFile loads filename, runs it through every stage, and writes out
// everything the stages produced. Nothing is written if a stage fails.
func (p *Processor) ProcessFile(ctx context.Context, filename string) (Result, error) {
	res := Result{Input: filename}
	start := time.Now()

	f, err := LoadFrame(filename)
	if err != nil {
		return res, err
	}

	logger := log.WithFields(log.Fields{"file": f.Name, "img": f.Img.String()})
	logger.Debug("loaded")

	if err := p.Run(ctx, f, &res); err != nil {
		return res, fmt.Errorf("%s: %w", filename, err)
	}

	for _, o := range f.Outputs {
		fn := o.Filename(p.Config.OutputDir, f.Name, p.Config.Output.Format)
		if err := ensureDir(filepath.Dir(fn)); err != nil {
			return res, err
		}
		if o.Img != nil {
			err = SaveImage(o.Img, fn, p.Config.Output.JPEGQuality)
		} else {
			err = o.Write(fn)
		}
		if err != nil {
			return res, fmt.Errorf("%s: writing %s: %w", filename, fn, err)
		}
		res.Outputs = append(res.Outputs, fn)
	}

	res.Duration = time.Since(start)
	logger.WithFields(log.Fields{"outputs": len(res.Outputs), "elapsed": res.Duration}).Info("processed")
	return res, nil
}

// Run pushes an already loaded frame through the stages, leaving the
// final image in f.Img. Timings are recorded in res, if it's not nil.
func (p *Processor) Run(ctx context.Context, f *Frame, res *Result) error {
	for _, s := range p.Config.stages {
		if err := ctx.Err(); err != nil {
			return err
		}

		t0 := time.Now()
		if err := s.fn(p.Config, f); err != nil {
			return fmt.Errorf("stage %s: %w", s.name, err)
		}
		elapsed := time.Since(t0)

		log.WithFields(log.Fields{"file": f.Name, "stage": s.name, "elapsed": elapsed}).Debug("stage done")
		if res != nil {
			res.Stages = append(res.Stages, StageTiming{Stage: s.name, Duration: elapsed})
		}
	}
	return nil
}
