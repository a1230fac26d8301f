package whitebalance

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/abworrall/campipe/pkg/raster"
)

const (
	plotPanelW = 480
	plotPanelH = 360
	plotMargin = 30
)

var (
	// Line colors for the R, G, B histograms (gray for single channel images)
	channelColors = []colorful.Color{
		colorful.Hsv(0, 0.85, 0.85),
		colorful.Hsv(120, 0.85, 0.65),
		colorful.Hsv(220, 0.85, 0.85),
	}
	grayColor = colorful.Hsv(0, 0, 0.3)
)

// PlotHistogram draws a 2x2 figure: the original image top-left, the
// balanced image top-right, and the per-channel histograms of the original
// bottom-left, with a dashed line marking each channel's percentile level.
func PlotHistogram(orig, balanced *raster.Image, s Stats, filename string) error {
	dc := gg.NewContext(2*plotPanelW, 2*plotPanelH)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	drawPanelImage(dc, orig.ToImage(), 0, 0, "Original Image")
	drawPanelImage(dc, balanced.ToImage(), plotPanelW, 0, "Whitebalanced Image")
	drawHistogramPanel(dc, s, 0, plotPanelH)

	if err := dc.SavePNG(filename); err != nil {
		return fmt.Errorf("histogram plot '%s': %v", filename, err)
	}
	return nil
}

func drawPanelImage(dc *gg.Context, img image.Image, x0, y0 int, title string) {
	thumb := imaging.Fit(img, plotPanelW-2*plotMargin, plotPanelH-2*plotMargin, imaging.Lanczos)
	dc.DrawImage(thumb, x0+plotMargin, y0+plotMargin)

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(title, float64(x0+plotPanelW/2), float64(y0+plotMargin/2), 0.5, 0.5)
}

func drawHistogramPanel(dc *gg.Context, s Stats, x0, y0 int) {
	left := float64(x0 + plotMargin)
	right := float64(x0 + plotPanelW - plotMargin)
	top := float64(y0 + plotMargin)
	bottom := float64(y0 + plotPanelH - plotMargin)

	// Scale the y axis to the busiest bucket across all channels
	maxFrac := 0.0
	for _, fr := range s.Fractions {
		for _, f := range fr {
			if f > maxFrac {
				maxFrac = f
			}
		}
	}
	if maxFrac == 0 {
		maxFrac = 1
	}

	px := func(v float64) float64 { return left + (right-left)*v/255.0 }
	py := func(f float64) float64 { return bottom - (bottom-top)*f/maxFrac }

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawLine(left, bottom, right, bottom)
	dc.DrawLine(left, bottom, left, top)
	dc.Stroke()
	dc.DrawStringAnchored("Pixel Value", (left+right)/2, bottom+plotMargin/2, 0.5, 0.5)
	dc.DrawStringAnchored("Histogram of RGB Channels", (left+right)/2, top-plotMargin/2, 0.5, 0.5)

	for ch, fr := range s.Fractions {
		col := grayColor
		if len(s.Fractions) > 1 && ch < len(channelColors) {
			col = channelColors[ch]
		}
		dc.SetColor(col)

		// Step plot
		dc.SetDash()
		dc.MoveTo(px(0), py(fr[0]))
		for v := 1; v < 256; v++ {
			dc.LineTo(px(float64(v)), py(fr[v-1]))
			dc.LineTo(px(float64(v)), py(fr[v]))
		}
		dc.Stroke()

		// Percentile marker
		level := s.Levels[ch]
		dc.SetDash(6, 4)
		dc.DrawLine(px(level), bottom, px(level), top)
		dc.Stroke()
		dc.DrawString(fmt.Sprintf("ch%d max = %.2f", ch, level), right-110, top+float64(14*(ch+1)))
	}
	dc.SetDash()
}
