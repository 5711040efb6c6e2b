// Package recombine merges per-chunk results into a single mosaic. The
// merge is commutative: recombining the same results in any order yields
// identical rasters and metadata.
package recombine

import (
	"fmt"
	"sort"

	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
	"github.com/forest-guardian/spectral-anomaly-service/internal/processor"
	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
)

// Mosaic is the geographically complete difference raster with its merged
// masks and metadata. Exactly one mosaic is produced per request.
type Mosaic struct {
	Bounds     raster.BBox
	W, H       int
	Diff       *raster.Grid
	OutOfRange *raster.Mask
	NoData     *raster.Mask
	Meta       *analysis.Metadata
}

// Empty reports whether no chunk contributed any data.
func (m *Mosaic) Empty() bool {
	return m.Diff == nil
}

// Recombine stitches chunk results into one mosaic. Nil entries (skipped
// chunks) are filtered out first. Results for the same geographic chunk
// across different time chunks are merged temporally before stitching;
// spatial overlap between distinct geographic chunks is an invariant
// violation and raises an error rather than overwriting.
func Recombine(results []*processor.ChunkResult, bounds raster.BBox, resolution, noData float64) (*Mosaic, error) {
	present := make([]*processor.ChunkResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			present = append(present, r)
		}
	}
	if len(present) == 0 {
		return &Mosaic{Meta: analysis.NewMetadata()}, nil
	}

	merged, err := mergeTimeChunks(present)
	if err != nil {
		return nil, err
	}
	// Deterministic stitch order regardless of completion order.
	sort.Slice(merged, func(i, j int) bool { return merged[i].GeoChunkID < merged[j].GeoChunkID })

	w, h := raster.PixelDims(bounds, resolution)
	mosaic := &Mosaic{
		Bounds:     bounds,
		W:          w,
		H:          h,
		Diff:       raster.NewGridFill(w, h, noData),
		OutOfRange: raster.NewMask(w, h),
		NoData:     raster.NewMask(w, h),
		Meta:       analysis.NewMetadata(),
	}
	// Pixels never covered by any chunk stay no-data.
	for i := range mosaic.NoData.V {
		mosaic.NoData.V[i] = true
	}

	claimed := make([]bool, w*h)
	for _, r := range merged {
		if r.X0 < 0 || r.Y0 < 0 || r.X0+r.Diff.W > w || r.Y0+r.Diff.H > h {
			return nil, fmt.Errorf("chunk %d extends outside the mosaic: offset (%d,%d) size %dx%d in %dx%d",
				r.GeoChunkID, r.X0, r.Y0, r.Diff.W, r.Diff.H, w, h)
		}
		for y := 0; y < r.Diff.H; y++ {
			for x := 0; x < r.Diff.W; x++ {
				dst := (r.Y0+y)*w + (r.X0 + x)
				if claimed[dst] {
					return nil, fmt.Errorf("%w: chunk %d claims pixel (%d,%d)",
						analysis.ErrChunkOverlap, r.GeoChunkID, r.X0+x, r.Y0+y)
				}
				claimed[dst] = true
				src := y*r.Diff.W + x
				mosaic.Diff.V[dst] = r.Diff.V[src]
				mosaic.OutOfRange.V[dst] = r.OutOfRange.V[src]
				mosaic.NoData.V[dst] = r.NoData.V[src]
			}
		}
		mosaic.Meta.Merge(r.Meta)
	}
	return mosaic, nil
}

// mergeTimeChunks reduces results sharing a geographic chunk to one result
// per geographic chunk. Later time chunks contribute where they have data;
// pixels no chunk observed stay no-data (most-recent-clean mosaicking).
func mergeTimeChunks(results []*processor.ChunkResult) ([]*processor.ChunkResult, error) {
	byGeo := make(map[int][]*processor.ChunkResult)
	for _, r := range results {
		byGeo[r.GeoChunkID] = append(byGeo[r.GeoChunkID], r)
	}

	merged := make([]*processor.ChunkResult, 0, len(byGeo))
	for geoID, group := range byGeo {
		sort.Slice(group, func(i, j int) bool { return group[i].TimeChunkID < group[j].TimeChunkID })
		first := group[0]
		out := &processor.ChunkResult{
			GeoChunkID: geoID,
			X0:         first.X0,
			Y0:         first.Y0,
			Diff:       raster.NewGrid(first.Diff.W, first.Diff.H),
			OutOfRange: raster.NewMask(first.Diff.W, first.Diff.H),
			NoData:     raster.NewMask(first.Diff.W, first.Diff.H),
			Meta:       analysis.NewMetadata(),
		}
		copy(out.Diff.V, first.Diff.V)
		copy(out.OutOfRange.V, first.OutOfRange.V)
		copy(out.NoData.V, first.NoData.V)
		out.Meta.Merge(first.Meta)

		for _, r := range group[1:] {
			if r.Diff.W != out.Diff.W || r.Diff.H != out.Diff.H || r.X0 != out.X0 || r.Y0 != out.Y0 {
				return nil, fmt.Errorf("inconsistent extents for geographic chunk %d across time chunks", geoID)
			}
			for i := range out.Diff.V {
				if !r.NoData.V[i] {
					out.Diff.V[i] = r.Diff.V[i]
					out.OutOfRange.V[i] = r.OutOfRange.V[i]
					out.NoData.V[i] = false
				}
			}
			out.Meta.Merge(r.Meta)
		}
		merged = append(merged, out)
	}
	return merged, nil
}
