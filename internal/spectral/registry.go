package spectral

import (
	"fmt"
	"sort"

	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
)

// Index derives a band from raw Sentinel-2 measurement bands and appends it
// to a cube under Name. Compute functions are pure: they never mutate the
// measurement bands they read.
type Index struct {
	Name         string
	Min, Max     float64
	Measurements []string
	Compute      func(c *raster.Cube) error
}

// Range returns the theoretical output range of the index.
func (i Index) Range() (float64, float64) {
	return i.Min, i.Max
}

var registry = map[string]Index{
	"ndvi": {
		Name:         "ndvi",
		Min:          -1, Max: 1,
		Measurements: []string{"B04", "B08"},
		Compute:      normalizedDifference("ndvi", "B08", "B04"),
	},
	"ndwi": {
		Name:         "ndwi",
		Min:          0, Max: 1,
		Measurements: []string{"B03", "B08"},
		Compute:      waterClassify,
	},
	"ndbi": {
		Name:         "ndbi",
		Min:          -1, Max: 1,
		Measurements: []string{"B08", "B11"},
		Compute:      normalizedDifference("ndbi", "B11", "B08"),
	},
	"evi": {
		Name:         "evi",
		Min:          -1, Max: 1,
		Measurements: []string{"B02", "B04", "B08"},
		Compute:      enhancedVegetation,
	},
	"fractional_cover": {
		Name:         "fractional_cover",
		Min:          -1, Max: 1,
		Measurements: []string{"B04", "B08"},
		Compute:      fractionalCover,
	},
}

// Get resolves an index by name. Unknown names are a request validation
// failure and must be rejected before any chunk work starts.
func Get(name string) (Index, error) {
	index, ok := registry[name]
	if !ok {
		return Index{}, fmt.Errorf("unsupported spectral index %q, supported: %v", name, Names())
	}
	return index, nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func safeDivide(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// normalizedDifference builds (a-b)/(a+b) per acquisition.
func normalizedDifference(name, bandA, bandB string) func(c *raster.Cube) error {
	return func(c *raster.Cube) error {
		gridsA, ok := c.Band(bandA)
		if !ok {
			return fmt.Errorf("cube is missing band %s required by %s", bandA, name)
		}
		gridsB, ok := c.Band(bandB)
		if !ok {
			return fmt.Errorf("cube is missing band %s required by %s", bandB, name)
		}
		out := make([]*raster.Grid, len(c.Dates))
		for t := range c.Dates {
			g := raster.NewGrid(c.W, c.H)
			for i := range g.V {
				g.V[i] = safeDivide(gridsA[t].V[i]-gridsB[t].V[i], gridsA[t].V[i]+gridsB[t].V[i])
			}
			out[t] = g
		}
		return c.SetBand(name, out)
	}
}

// waterClassify maps the green/NIR normalized difference onto {0,1}: pixels
// with a positive NDWI are classified as water.
func waterClassify(c *raster.Cube) error {
	if err := normalizedDifference("ndwi", "B03", "B08")(c); err != nil {
		return err
	}
	grids, _ := c.Band("ndwi")
	for _, g := range grids {
		for i, v := range g.V {
			if v > 0 {
				g.V[i] = 1
			} else {
				g.V[i] = 0
			}
		}
	}
	return nil
}

// enhancedVegetation computes EVI: 2.5*(NIR-red)/(NIR + 6*red - 7.5*blue + 1),
// clamped to the index range.
func enhancedVegetation(c *raster.Cube) error {
	blue, ok := c.Band("B02")
	if !ok {
		return fmt.Errorf("cube is missing band B02 required by evi")
	}
	red, ok := c.Band("B04")
	if !ok {
		return fmt.Errorf("cube is missing band B04 required by evi")
	}
	nir, ok := c.Band("B08")
	if !ok {
		return fmt.Errorf("cube is missing band B08 required by evi")
	}
	out := make([]*raster.Grid, len(c.Dates))
	for t := range c.Dates {
		g := raster.NewGrid(c.W, c.H)
		for i := range g.V {
			v := 2.5 * safeDivide(nir[t].V[i]-red[t].V[i], nir[t].V[i]+6*red[t].V[i]-7.5*blue[t].V[i]+1)
			g.V[i] = clamp(v, -1, 1)
		}
		out[t] = g
	}
	return c.SetBand("evi", out)
}

// fractionalCover estimates fractional vegetation cover from scaled NDVI,
// mapped onto the [-1,1] index range.
func fractionalCover(c *raster.Cube) error {
	if err := normalizedDifference("fractional_cover", "B08", "B04")(c); err != nil {
		return err
	}
	grids, _ := c.Band("fractional_cover")
	const ndviSoil, ndviVeg = 0.05, 0.9
	for _, g := range grids {
		for i, v := range g.V {
			fv := clamp((v-ndviSoil)/(ndviVeg-ndviSoil), 0, 1)
			g.V[i] = 2*fv*fv - 1
		}
	}
	return nil
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
