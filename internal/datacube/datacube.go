// Package datacube provides access to acquisition imagery: listing available
// acquisition dates and loading measurement cubes restricted to a bounding
// box, plus GeoTIFF read/write for rasters.
package datacube

import (
	"math"
	"time"

	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
)

// Source is the imagery collaborator. Implementations must be safe for
// concurrent use: chunk workers call Load in parallel.
type Source interface {
	// Measurements lists the band names this source can load.
	Measurements() []string
	// ListDates returns the ordered acquisition dates available for the
	// bounding box within the time range.
	ListDates(bounds raster.BBox, tr analysis.TimeRange) ([]time.Time, error)
	// Load reads the requested measurements for the given acquisition dates,
	// windowed to the bounding box.
	Load(bounds raster.BBox, dates []time.Time, measurements []string) (*raster.Cube, error)
}

// CleanMasks computes the per-pixel, per-acquisition clean-observation mask
// for a Sentinel-2 cube: cloudy pixels (CLD > 0), cloud shadow / cirrus /
// snow scene classes (SCL 3, 8, 9, 10), saturated-bright pixels and
// non-finite index values are all unclean. The mask feeds compositing and is
// not retained afterwards.
func CleanMasks(c *raster.Cube, indexBand string) []*raster.Mask {
	cld, hasCld := c.Band("CLD")
	scl, hasScl := c.Band("SCL")
	blue, hasBlue := c.Band("B02")
	red, hasRed := c.Band("B04")
	index, hasIndex := c.Band(indexBand)

	masks := make([]*raster.Mask, len(c.Dates))
	for t := range c.Dates {
		m := raster.NewMask(c.W, c.H)
		for i := range m.V {
			clean := true
			if hasCld && cld[t].V[i] > 0 {
				clean = false
			}
			if hasScl {
				scene := scl[t].V[i]
				if scene == 3 || scene == 8 || scene == 9 || scene == 10 {
					clean = false
				}
			}
			if hasBlue && hasRed && (red[t].V[i]+blue[t].V[i])/2 > 0.9 {
				clean = false
			}
			if hasIndex && (math.IsNaN(index[t].V[i]) || math.IsInf(index[t].V[i], 0)) {
				clean = false
			}
			m.V[i] = clean
		}
		masks[t] = m
	}
	return masks
}
