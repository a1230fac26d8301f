// Package exposure works out how brightly frames were exposed, and scales
// one frame's brightness to match another.
package exposure

import (
	"fmt"
	"io"
	"math"

	"github.com/rwcarlsen/goexif/exif"
)

type rat64 [2]int64

func (r rat64) Float() float64 { return float64(r[0]) / float64(r[1]) }

// An ExposureValue details how the photograph was exposed. EV is in
// stops, normalised to ISO 100: https://en.wikipedia.org/wiki/Exposure_value
// A frame with a higher EV needed more light to reach the same pixel value.
type ExposureValue struct {
	ISO          int64 // 100, 800, etc.
	ApertureX10  int64 // f/5.6 is the integer 56.
	ShutterSpeed rat64 // 1/500, 1/1000, etc.
	EV           float64
}

func (ev ExposureValue) String() string {
	s := fmt.Sprintf("f/%.1f", float32(ev.ApertureX10)/10.0)
	if ev.ShutterSpeed[1] != 1 {
		s += fmt.Sprintf(", %d/%d", ev.ShutterSpeed[0], ev.ShutterSpeed[1])
	} else {
		s += fmt.Sprintf(", %d", ev.ShutterSpeed[0])
	}
	s += fmt.Sprintf(", ISO%d", ev.ISO)
	return s + fmt.Sprintf(", EV %.2f", ev.EV)
}

// Validate sanity checks the exposure settings and fills in EV.
func (ev *ExposureValue) Validate() error {
	if ev.ISO <= 0 || ev.ApertureX10 <= 0 || ev.ShutterSpeed[0] <= 0 || ev.ShutterSpeed[1] <= 0 {
		return fmt.Errorf("exposure info incomplete: %v", ev)
	}

	n := float64(ev.ApertureX10) / 10.0
	ev.EV = math.Log2(n*n/ev.ShutterSpeed.Float()) - math.Log2(float64(ev.ISO)/100.0)

	// Outside the range of anything a camera would do in practice
	if ev.EV < -10 || ev.EV > 25 {
		return fmt.Errorf("exposure info looks suspicious, EV=%.2f: %v", ev.EV, ev)
	}
	return nil
}

// GainTo returns how much to multiply this frame's pixel values by, to
// match the brightness of a frame exposed as `other`. Each stop of EV
// difference is a factor of two.
func (ev ExposureValue) GainTo(other ExposureValue) float64 {
	return math.Pow(2, ev.EV-other.EV)
}

// FromEXIF pulls ISO, FNumber and ExposureTime out of an image's EXIF
// block.
func FromEXIF(r io.Reader) (ExposureValue, error) {
	ev := ExposureValue{}

	ex, err := exif.Decode(r)
	if err != nil {
		return ev, fmt.Errorf("exif parsing: %v", err)
	}

	if tag, err := ex.Get(exif.ISOSpeedRatings); err != nil {
		return ev, fmt.Errorf("exif ISO: %v", err)
	} else if val, err := tag.Int64(0); err != nil {
		return ev, fmt.Errorf("exif ISO: %v", err)
	} else {
		ev.ISO = val
	}

	if tag, err := ex.Get(exif.FNumber); err != nil {
		return ev, fmt.Errorf("exif FNumber: %v", err)
	} else if num, denom, err := tag.Rat2(0); err != nil {
		return ev, fmt.Errorf("exif FNumber: %v", err)
	} else if denom == 0 {
		return ev, fmt.Errorf("exif FNumber has zero denominator")
	} else {
		ev.ApertureX10 = int64(math.Round(float64(num) * 10 / float64(denom)))
	}

	if tag, err := ex.Get(exif.ExposureTime); err != nil {
		return ev, fmt.Errorf("exif ExposureTime: %v", err)
	} else if num, denom, err := tag.Rat2(0); err != nil {
		return ev, fmt.Errorf("exif ExposureTime: %v", err)
	} else {
		ev.ShutterSpeed = rat64{num, denom}
	}

	// Note: we ignore Exposure Compensation, as it is informational. The
	// Fstop/Speed/ISO triple fully defines how much light exposed a pixel.

	if err := ev.Validate(); err != nil {
		return ev, err
	}
	return ev, nil
}
