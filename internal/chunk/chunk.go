package chunk

import (
	"fmt"
	"math"
	"time"

	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
)

// GeoChunk is one tile of the request's bounding box. Bounds and pixel
// offsets are materialized on the pixel lattice of the full request, so
// tiles partition the mosaic raster exactly.
type GeoChunk struct {
	ID     int
	Bounds raster.BBox
	X0, Y0 int
	W, H   int
}

// TimeChunk is a contiguous, order-preserving run of acquisition dates.
type TimeChunk struct {
	ID    int
	Dates []time.Time
}

// CreateGeographicChunks tiles a bounding box into a row-major grid of
// chunks at most sizeDeg degrees on a side, clipped at the boundary.
// A non-positive sizeDeg yields a single chunk covering the whole box.
func CreateGeographicChunks(bounds raster.BBox, sizeDeg, resolution float64) ([]GeoChunk, error) {
	if !bounds.Valid() {
		return nil, fmt.Errorf("invalid bounding box: %+v", bounds)
	}
	if resolution <= 0 {
		return nil, fmt.Errorf("resolution must be positive, got %f", resolution)
	}
	fullW, fullH := raster.PixelDims(bounds, resolution)

	cols := pixelBoundaries(bounds.Width(), sizeDeg, resolution, fullW)
	rows := pixelBoundaries(bounds.Height(), sizeDeg, resolution, fullH)

	chunks := make([]GeoChunk, 0, (len(rows)-1)*(len(cols)-1))
	id := 0
	for j := 0; j < len(rows)-1; j++ {
		for i := 0; i < len(cols)-1; i++ {
			x0, x1 := cols[i], cols[i+1]
			y0, y1 := rows[j], rows[j+1]
			if x1 <= x0 || y1 <= y0 {
				continue
			}
			chunks = append(chunks, GeoChunk{
				ID: id,
				Bounds: raster.BBox{
					LonMin: bounds.LonMin + float64(x0)*resolution,
					LonMax: bounds.LonMin + float64(x1)*resolution,
					LatMin: bounds.LatMax - float64(y1)*resolution,
					LatMax: bounds.LatMax - float64(y0)*resolution,
				},
				X0: x0,
				Y0: y0,
				W:  x1 - x0,
				H:  y1 - y0,
			})
			id++
		}
	}
	return chunks, nil
}

// pixelBoundaries converts degree-sized tile boundaries to pixel column (or
// row) boundaries on the full lattice. The first boundary is pinned to 0 and
// the last to the full dimension, so tiles never leave gaps or overlap.
func pixelBoundaries(extentDeg, sizeDeg, resolution float64, fullPx int) []int {
	if sizeDeg <= 0 || sizeDeg >= extentDeg {
		return []int{0, fullPx}
	}
	n := int(math.Ceil(extentDeg / sizeDeg))
	boundaries := make([]int, 0, n+1)
	boundaries = append(boundaries, 0)
	for i := 1; i < n; i++ {
		px := int(math.Round(float64(i) * sizeDeg / resolution))
		if px <= boundaries[len(boundaries)-1] {
			continue
		}
		if px >= fullPx {
			break
		}
		boundaries = append(boundaries, px)
	}
	return append(boundaries, fullPx)
}

// CreateTimeChunks partitions the acquisition dates into contiguous runs of
// at most size dates, preserving order; the last run may be shorter. A
// non-positive size yields a single chunk. With reversed set, the date list
// is flipped before partitioning.
func CreateTimeChunks(dates []time.Time, size int, reversed bool) []TimeChunk {
	ordered := make([]time.Time, len(dates))
	copy(ordered, dates)
	if reversed {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}
	if size <= 0 || size >= len(ordered) {
		return []TimeChunk{{ID: 0, Dates: ordered}}
	}
	chunks := make([]TimeChunk, 0, (len(ordered)+size-1)/size)
	for start := 0; start < len(ordered); start += size {
		end := start + size
		if end > len(ordered) {
			end = len(ordered)
		}
		chunks = append(chunks, TimeChunk{ID: len(chunks), Dates: ordered[start:end]})
	}
	return chunks
}
