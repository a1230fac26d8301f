package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// A Batch is a set of input files, and the config to process them with.
type Batch struct {
	Config Config
	Inputs []string

	mu      sync.Mutex
	latency *hdrhistogram.Histogram // per-file processing time, in ms
}

func NewBatch() *Batch {
	return &Batch{Config: NewConfig()}
}

// LoadFilesAndDirs walks the args, recursing into directories, and adds
// every image it finds as an input. A .yaml file replaces the batch's
// config.
func (b *Batch) LoadFilesAndDirs(args ...string) error {
	for _, arg := range args {
		item, err := os.Stat(arg)

		switch {
		case err != nil:
			return fmt.Errorf("load %s: %w", arg, err)

		case item.IsDir():
			contents, err := os.ReadDir(arg)
			if err != nil {
				return fmt.Errorf("readdir %s: %w", arg, err)
			}
			for _, content := range contents {
				if err := b.LoadFilesAndDirs(filepath.Join(arg, content.Name())); err != nil {
					return err
				}
			}

		default:
			if err := b.loadFile(arg); err != nil {
				return err
			}
		}
	}

	return nil
}

func (b *Batch) loadFile(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case ext == ".yaml" || ext == ".yml":
		cfg, err := LoadConfig(filename)
		if err != nil {
			return err
		}
		b.Config = cfg
		log.Infof("Loaded base configuration from %s", filename)

	case isSupportedExt(ext):
		b.Inputs = append(b.Inputs, filename)

	default:
		log.Debugf("skipping %s", filename)
	}

	return nil
}

// Run processes every input, at most Config.Workers at a time. A failing
// file doesn't stop the others; all failures come back joined together.
// Cancelling ctx stops new files from being started.
func (b *Batch) Run(ctx context.Context) ([]Result, error) {
	p, err := NewProcessor(b.Config)
	if err != nil {
		return nil, err
	}
	b.Config = p.Config

	inputs := lo.Uniq(b.Inputs)
	results := make([]Result, len(inputs))
	errs := make([]error, len(inputs))

	b.latency = hdrhistogram.New(1, 10*60*1000, 3)
	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(p.Config.Workers)

	for i, fn := range inputs {
		if err := ctx.Err(); err != nil {
			errs[i] = fmt.Errorf("%s: %w", fn, err)
			continue
		}
		g.Go(func() error {
			res, err := p.ProcessFile(ctx, fn)
			results[i] = res
			if err != nil {
				log.WithField("file", fn).Errorf("failed: %v", err)
				errs[i] = err
				return nil
			}
			b.record(res.Duration)
			return nil
		})
	}
	g.Wait()

	failed := lo.CountBy(errs, func(err error) bool { return err != nil })
	log.WithFields(log.Fields{
		"files":   len(inputs),
		"failed":  failed,
		"elapsed": time.Since(start),
		"p50ms":   b.latency.ValueAtQuantile(50),
		"p99ms":   b.latency.ValueAtQuantile(99),
		"maxms":   b.latency.Max(),
	}).Info("batch done")

	return results, errors.Join(errs...)
}

func (b *Batch) record(d time.Duration) {
	ms := max(d.Milliseconds(), 1)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.latency.RecordValue(ms); err != nil {
		log.Debugf("latency %dms not recorded: %v", ms, err)
	}
}

// Latency returns a snapshot of the last run's per-file timings.
func (b *Batch) Latency() *hdrhistogram.Histogram {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latency == nil {
		return nil
	}
	return hdrhistogram.Import(b.latency.Export())
}
