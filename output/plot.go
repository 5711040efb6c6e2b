package output

import (
	"fmt"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
)

const (
	plotWidth    = 900
	plotHeight   = 500
	plotMarginX  = 70
	plotMarginY  = 60
)

// CreateCleanPixelPlot draws the clean-pixel percentage per acquisition as
// a line plot and saves it as a PNG.
func CreateCleanPixelPlot(path string, meta *analysis.Metadata) error {
	stats := meta.Stats()
	if len(stats) < 2 {
		return fmt.Errorf("need at least two acquisitions to plot, got %d", len(stats))
	}

	dc := gg.NewContext(plotWidth, plotHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	innerW := float64(plotWidth - 2*plotMarginX)
	innerH := float64(plotHeight - 2*plotMarginY)

	// Axes
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1.5)
	dc.DrawLine(plotMarginX, plotMarginY, plotMarginX, plotMarginY+innerH)
	dc.DrawLine(plotMarginX, plotMarginY+innerH, plotMarginX+innerW, plotMarginY+innerH)
	dc.Stroke()

	dc.DrawStringAnchored("Clean Pixel Percentage Per Acquisition", plotWidth/2, plotMarginY/2, 0.5, 0.5)
	dc.DrawStringAnchored("Clean Pixel Percentage (%)", 15, plotHeight/2, 0, 0.5)

	// Horizontal gridlines every 25%.
	dc.SetRGBA(0, 0, 0, 0.2)
	dc.SetLineWidth(0.5)
	for pct := 25.0; pct <= 100; pct += 25 {
		y := plotMarginY + innerH - innerH*pct/100
		dc.DrawLine(plotMarginX, y, plotMarginX+innerW, y)
	}
	dc.Stroke()
	dc.SetRGB(0, 0, 0)
	for pct := 0.0; pct <= 100; pct += 25 {
		y := plotMarginY + innerH - innerH*pct/100
		dc.DrawStringAnchored(fmt.Sprintf("%.0f", pct), plotMarginX-10, y, 1, 0.5)
	}

	first := stats[0].Date
	last := stats[len(stats)-1].Date
	span := last.Sub(first).Seconds()

	pointX := func(i int) float64 {
		if span == 0 {
			return plotMarginX + innerW*float64(i)/float64(len(stats)-1)
		}
		return plotMarginX + innerW*stats[i].Date.Sub(first).Seconds()/span
	}
	pointY := func(i int) float64 {
		pct := stats[i].CleanPixelPercentage
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		return plotMarginY + innerH - innerH*pct/100
	}

	// Series line and markers.
	dc.SetRGB(0.1, 0.3, 0.8)
	dc.SetLineWidth(2)
	for i := 1; i < len(stats); i++ {
		dc.DrawLine(pointX(i-1), pointY(i-1), pointX(i), pointY(i))
	}
	dc.Stroke()
	for i := range stats {
		dc.DrawCircle(pointX(i), pointY(i), 3)
		dc.Fill()
	}

	// Date labels at the extremes.
	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(first.Format("2006-01-02"), plotMarginX, plotMarginY+innerH+20, 0, 0.5)
	dc.DrawStringAnchored(last.Format("2006-01-02"), plotMarginX+innerW, plotMarginY+innerH+20, 1, 0.5)

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("failed to save plot: %v", err)
	}
	fmt.Println("Plot created successfully as", path)
	return nil
}
