package raster

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// BBox is a geographic bounding box in lon/lat degrees.
type BBox struct {
	LonMin, LatMin, LonMax, LatMax float64
}

func (b BBox) Width() float64 {
	return b.LonMax - b.LonMin
}

func (b BBox) Height() float64 {
	return b.LatMax - b.LatMin
}

func (b BBox) Valid() bool {
	return b.LonMin < b.LonMax && b.LatMin < b.LatMax
}

// PixelDims returns the raster dimensions of a bounding box at the given
// resolution in degrees per pixel. Never returns less than 1x1.
func PixelDims(b BBox, resolution float64) (int, int) {
	w := int(math.Round(b.Width() / resolution))
	h := int(math.Round(b.Height() / resolution))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Grid is a single-band 2D float raster stored row-major, top row first.
type Grid struct {
	W, H int
	V    []float64
}

func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, V: make([]float64, w*h)}
}

func NewGridFill(w, h int, fill float64) *Grid {
	g := NewGrid(w, h)
	for i := range g.V {
		g.V[i] = fill
	}
	return g
}

func (g *Grid) At(x, y int) float64 {
	return g.V[y*g.W+x]
}

func (g *Grid) Set(x, y int, v float64) {
	g.V[y*g.W+x] = v
}

// Mask is a 2D boolean raster with the same layout as Grid.
type Mask struct {
	W, H int
	V    []bool
}

func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, V: make([]bool, w*h)}
}

func (m *Mask) At(x, y int) bool {
	return m.V[y*m.W+x]
}

func (m *Mask) Set(x, y int, v bool) {
	m.V[y*m.W+x] = v
}

func (m *Mask) Count() int {
	n := 0
	for _, v := range m.V {
		if v {
			n++
		}
	}
	return n
}

// Or returns the pixelwise logical OR of two masks of equal dimensions.
func Or(a, b *Mask) (*Mask, error) {
	if a.W != b.W || a.H != b.H {
		return nil, fmt.Errorf("mask dimensions differ: %dx%d vs %dx%d", a.W, a.H, b.W, b.H)
	}
	out := NewMask(a.W, a.H)
	for i := range out.V {
		out.V[i] = a.V[i] || b.V[i]
	}
	return out, nil
}

// Sub returns a - b pixelwise.
func Sub(a, b *Grid) (*Grid, error) {
	if a.W != b.W || a.H != b.H {
		return nil, fmt.Errorf("grid dimensions differ: %dx%d vs %dx%d", a.W, a.H, b.W, b.H)
	}
	out := NewGrid(a.W, a.H)
	for i := range out.V {
		out.V[i] = a.V[i] - b.V[i]
	}
	return out, nil
}

// OutOfRange flags pixels where v < min or max < v.
func OutOfRange(g *Grid, min, max float64) *Mask {
	out := NewMask(g.W, g.H)
	for i, v := range g.V {
		out.V[i] = v < min || max < v
	}
	return out
}

// Equals flags pixels holding exactly the given value, typically the
// no-data sentinel.
func Equals(g *Grid, value float64) *Mask {
	out := NewMask(g.W, g.H)
	for i, v := range g.V {
		out.V[i] = v == value
	}
	return out
}

// Cube holds per-acquisition band grids for one spatial window. All grids
// share the cube's dimensions; Bands maps a band name to one grid per date,
// in Dates order.
type Cube struct {
	Dates []time.Time
	W, H  int
	Bands map[string][]*Grid
}

func NewCube(dates []time.Time, w, h int) *Cube {
	return &Cube{Dates: dates, W: w, H: h, Bands: make(map[string][]*Grid)}
}

func (c *Cube) Band(name string) ([]*Grid, bool) {
	grids, ok := c.Bands[name]
	return grids, ok
}

func (c *Cube) SetBand(name string, grids []*Grid) error {
	if len(grids) != len(c.Dates) {
		return fmt.Errorf("band %s has %d grids for %d dates", name, len(grids), len(c.Dates))
	}
	c.Bands[name] = grids
	return nil
}

// Drop removes raw measurement bands once derived bands are computed.
func (c *Cube) Drop(names ...string) {
	for _, name := range names {
		delete(c.Bands, name)
	}
}

// MedianComposite reduces a time stack to a single grid, taking the median
// of clean observations per pixel. Pixels with no clean observation get the
// no-data sentinel.
func MedianComposite(grids []*Grid, clean []*Mask, noData float64) (*Grid, error) {
	if len(grids) != len(clean) {
		return nil, fmt.Errorf("composite input mismatch: %d grids, %d masks", len(grids), len(clean))
	}
	if len(grids) == 0 {
		return nil, fmt.Errorf("no grids to composite")
	}
	w, h := grids[0].W, grids[0].H
	out := NewGrid(w, h)
	values := make([]float64, 0, len(grids))
	for i := 0; i < w*h; i++ {
		values = values[:0]
		for t := range grids {
			if clean[t].V[i] {
				values = append(values, grids[t].V[i])
			}
		}
		if len(values) == 0 {
			out.V[i] = noData
			continue
		}
		out.V[i] = median(values)
	}
	return out, nil
}

func median(values []float64) float64 {
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
