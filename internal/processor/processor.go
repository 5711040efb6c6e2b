// Package processor computes the change-detection result for one
// (geographic chunk, time chunk) pair. Workers are share-nothing: they read
// the imagery source and write only chunk-private files named by their own
// chunk indices.
package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
	"github.com/forest-guardian/spectral-anomaly-service/internal/chunk"
	"github.com/forest-guardian/spectral-anomaly-service/internal/datacube"
	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
	"github.com/forest-guardian/spectral-anomaly-service/internal/spectral"
)

// ChunkResult is the output of one chunk: produced once here, consumed once
// by the recombiner, then discarded.
type ChunkResult struct {
	GeoChunkID  int
	TimeChunkID int
	X0, Y0      int
	Diff        *raster.Grid
	OutOfRange  *raster.Mask
	NoData      *raster.Mask
	Meta        *analysis.Metadata
}

type roleComposite struct {
	composite  *raster.Grid
	outOfRange *raster.Mask
}

// Process runs the full per-chunk algorithm: load both composite roles,
// derive the spectral index, composite clean observations, threshold, and
// difference. Returns (nil, nil) when the task workspace is missing, which
// means "skip this chunk, do not fail the pipeline".
func Process(geo chunk.GeoChunk, tc chunk.TimeChunk, req *analysis.AnalysisRequest, source datacube.Source, workspace string) (*ChunkResult, error) {
	if _, err := os.Stat(workspace); os.IsNotExist(err) {
		return nil, nil
	}

	index, err := spectral.Get(req.Index)
	if err != nil {
		return nil, err
	}

	meta := analysis.NewMetadata()
	roles := []struct {
		name string
		time analysis.TimeRange
	}{
		{"baseline", req.BaselineTime},
		{"analysis", req.AnalysisTime},
	}

	composites := make(map[string]roleComposite, 2)
	for _, role := range roles {
		rc, err := buildComposite(geo, tc, role.name, role.time, req, source, index, meta)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s composite for chunk %d_%d: %w", role.name, geo.ID, tc.ID, err)
		}
		composites[role.name] = rc
	}

	diff, err := raster.Sub(composites["analysis"].composite, composites["baseline"].composite)
	if err != nil {
		return nil, err
	}
	outOfRange, err := raster.Or(composites["baseline"].outOfRange, composites["analysis"].outOfRange)
	if err != nil {
		return nil, err
	}
	noData, err := raster.Or(
		raster.Equals(composites["baseline"].composite, req.NoData),
		raster.Equals(composites["analysis"].composite, req.NoData))
	if err != nil {
		return nil, err
	}

	// A difference of two values where either side is no-data is
	// meaningless; pin those pixels to the sentinel so the written raster
	// is consistent.
	for i, nd := range noData.V {
		if nd {
			diff.V[i] = req.NoData
		}
	}

	chunkPath := filepath.Join(workspace, fmt.Sprintf("%d_%d.tif", geo.ID, tc.ID))
	if err := datacube.WriteGeoTIFF(chunkPath, diff, geo.Bounds, req.NoData); err != nil {
		return nil, fmt.Errorf("failed to persist chunk %d_%d: %v", geo.ID, tc.ID, err)
	}

	return &ChunkResult{
		GeoChunkID:  geo.ID,
		TimeChunkID: tc.ID,
		X0:          geo.X0,
		Y0:          geo.Y0,
		Diff:        diff,
		OutOfRange:  outOfRange,
		NoData:      noData,
		Meta:        meta,
	}, nil
}

// buildComposite loads one role's imagery for the chunk, derives the index
// band, and reduces it to a cloud-free median composite.
func buildComposite(geo chunk.GeoChunk, tc chunk.TimeChunk, role string, tr analysis.TimeRange, req *analysis.AnalysisRequest, source datacube.Source, index spectral.Index, meta *analysis.Metadata) (roleComposite, error) {
	roleDates, err := source.ListDates(geo.Bounds, tr)
	if err != nil {
		return roleComposite{}, err
	}
	dates := intersectDates(roleDates, tc.Dates)

	if len(dates) == 0 {
		// This role has no acquisitions inside this time chunk; its
		// composite is entirely no-data.
		return roleComposite{
			composite:  raster.NewGridFill(geo.W, geo.H, req.NoData),
			outOfRange: raster.NewMask(geo.W, geo.H),
		}, nil
	}

	cube, err := source.Load(geo.Bounds, dates, req.Measurements)
	if err != nil {
		return roleComposite{}, err
	}
	if cube.W != geo.W || cube.H != geo.H {
		return roleComposite{}, fmt.Errorf("loaded cube is %dx%d, chunk expects %dx%d", cube.W, cube.H, geo.W, geo.H)
	}

	if err := index.Compute(cube); err != nil {
		return roleComposite{}, err
	}
	clean := datacube.CleanMasks(cube, index.Name)
	cube.Drop(req.Measurements...)

	total := cube.W * cube.H
	for t, date := range cube.Dates {
		meta.Add(role, date, 100*float64(clean[t].Count())/float64(total))
	}

	indexGrids, ok := cube.Band(index.Name)
	if !ok {
		return roleComposite{}, fmt.Errorf("index band %s missing after compute", index.Name)
	}
	composite, err := raster.MedianComposite(indexGrids, clean, req.NoData)
	if err != nil {
		return roleComposite{}, err
	}

	outOfRange := raster.NewMask(geo.W, geo.H)
	if req.CompositeRange != nil {
		outOfRange = raster.OutOfRange(composite, req.CompositeRange.Min, req.CompositeRange.Max)
	}
	return roleComposite{composite: composite, outOfRange: outOfRange}, nil
}

func intersectDates(roleDates, chunkDates []time.Time) []time.Time {
	inChunk := make(map[time.Time]struct{}, len(chunkDates))
	for _, d := range chunkDates {
		inChunk[d] = struct{}{}
	}
	out := []time.Time{}
	for _, d := range roleDates {
		if _, ok := inChunk[d]; ok {
			out = append(out, d)
		}
	}
	return out
}
