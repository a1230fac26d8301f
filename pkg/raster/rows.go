package raster

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// minBandRows stops us spinning up goroutines for tiny images.
const minBandRows = 32

// EachRowBand splits [0,h) into contiguous bands of rows and calls fn on
// each, concurrently, with at most GOMAXPROCS bands in flight. fn must
// only write rows inside its band.
func EachRowBand(h int, fn func(y0, y1 int) error) error {
	workers := runtime.GOMAXPROCS(0)
	bands := (h + minBandRows - 1) / minBandRows
	if bands > workers {
		bands = workers
	}
	if bands <= 1 {
		return fn(0, h)
	}

	var g errgroup.Group
	g.SetLimit(workers)

	step := (h + bands - 1) / bands
	for y0 := 0; y0 < h; y0 += step {
		y0, y1 := y0, y0+step
		if y1 > h {
			y1 = h
		}
		g.Go(func() error { return fn(y0, y1) })
	}

	return g.Wait()
}
