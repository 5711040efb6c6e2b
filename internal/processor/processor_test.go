package processor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
	"github.com/forest-guardian/spectral-anomaly-service/internal/chunk"
	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
)

func TestMain(m *testing.M) {
	godal.RegisterInternalDrivers()
	os.Exit(m.Run())
}

// fakeSource synthesizes acquisitions with a constant NDVI per date. It fixes
// B04 to 1 and solves B08 so that (B08-B04)/(B08+B04) equals the requested
// value; cloudy dates carry CLD=1 everywhere.
type fakeSource struct {
	resolution float64
	dates      []time.Time
	ndvi       map[time.Time]float64
	cloudy     map[time.Time]bool
}

func (s *fakeSource) Measurements() []string {
	return []string{"B02", "B03", "B04", "B08", "B11", "CLD", "SCL"}
}

func (s *fakeSource) ListDates(bounds raster.BBox, tr analysis.TimeRange) ([]time.Time, error) {
	out := []time.Time{}
	for _, d := range s.dates {
		if tr.Contains(d) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeSource) Load(bounds raster.BBox, dates []time.Time, measurements []string) (*raster.Cube, error) {
	w, h := raster.PixelDims(bounds, s.resolution)
	cube := raster.NewCube(dates, w, h)
	for _, m := range measurements {
		grids := make([]*raster.Grid, len(dates))
		for t, date := range dates {
			v := s.ndvi[date]
			var fill float64
			switch m {
			case "B04":
				fill = 1
			case "B08":
				fill = (1 + v) / (1 - v)
			case "SCL":
				fill = 4
			case "CLD":
				if s.cloudy[date] {
					fill = 1
				}
			}
			grids[t] = raster.NewGridFill(w, h, fill)
		}
		if err := cube.SetBand(m, grids); err != nil {
			return nil, err
		}
	}
	return cube, nil
}

func testRequest(bounds raster.BBox) *analysis.AnalysisRequest {
	return &analysis.AnalysisRequest{
		TaskID:       "test_task",
		Bounds:       bounds,
		BaselineTime: analysis.TimeRange{Start: date(2023, 1, 1), End: date(2023, 1, 31)},
		AnalysisTime: analysis.TimeRange{Start: date(2023, 2, 1), End: date(2023, 2, 28)},
		Index:        "ndvi",
		Measurements: []string{"B04", "B08", "B02", "CLD", "SCL"},
		NoData:       -9999,
		Resolution:   1,
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func singleChunk(t *testing.T, bounds raster.BBox, resolution float64) chunk.GeoChunk {
	t.Helper()
	chunks, err := chunk.CreateGeographicChunks(bounds, 0, resolution)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	return chunks[0]
}

func TestProcessComputesDifference(t *testing.T) {
	bounds := raster.BBox{LonMin: 0, LatMin: 0, LonMax: 4, LatMax: 4}
	baseline := date(2023, 1, 10)
	anomaly := date(2023, 2, 10)
	source := &fakeSource{
		resolution: 1,
		dates:      []time.Time{baseline, anomaly},
		ndvi:       map[time.Time]float64{baseline: 0.2, anomaly: 0.5},
	}
	req := testRequest(bounds)
	geo := singleChunk(t, bounds, req.Resolution)
	tc := chunk.TimeChunk{ID: 0, Dates: []time.Time{baseline, anomaly}}
	workspace := t.TempDir()

	result, err := Process(geo, tc, req, source, workspace)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, geo.W, result.Diff.W)
	assert.Equal(t, geo.H, result.Diff.H)
	for _, v := range result.Diff.V {
		assert.InDelta(t, 0.3, v, 1e-9)
	}
	assert.Equal(t, 0, result.OutOfRange.Count())
	assert.Equal(t, 0, result.NoData.Count())

	// Both acquisitions were fully clean.
	stats := result.Meta.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, 100.0, stats[0].CleanPixelPercentage)
	assert.Equal(t, 100.0, stats[1].CleanPixelPercentage)
	assert.Equal(t, 1, result.Meta.MaxRoleDateCount())

	// The chunk persists its own raster into the workspace.
	_, err = os.Stat(filepath.Join(workspace, "0_0.tif"))
	assert.NoError(t, err)
}

func TestProcessAllCloudyRoleIsNoData(t *testing.T) {
	bounds := raster.BBox{LonMin: 0, LatMin: 0, LonMax: 2, LatMax: 2}
	baseline := date(2023, 1, 10)
	anomaly := date(2023, 2, 10)
	source := &fakeSource{
		resolution: 1,
		dates:      []time.Time{baseline, anomaly},
		ndvi:       map[time.Time]float64{baseline: 0.2, anomaly: 0.5},
		cloudy:     map[time.Time]bool{anomaly: true},
	}
	req := testRequest(bounds)
	geo := singleChunk(t, bounds, req.Resolution)
	tc := chunk.TimeChunk{ID: 0, Dates: []time.Time{baseline, anomaly}}

	result, err := Process(geo, tc, req, source, t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, result)

	// A fully cloudy analysis composite leaves every pixel without data,
	// and the difference is pinned to the sentinel there.
	assert.Equal(t, geo.W*geo.H, result.NoData.Count())
	for _, v := range result.Diff.V {
		assert.Equal(t, req.NoData, v)
	}

	stats := result.Meta.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, 0.0, stats[1].CleanPixelPercentage)
}

func TestProcessCompositeRangeFlagsOutOfRange(t *testing.T) {
	bounds := raster.BBox{LonMin: 0, LatMin: 0, LonMax: 2, LatMax: 2}
	baseline := date(2023, 1, 10)
	anomaly := date(2023, 2, 10)
	source := &fakeSource{
		resolution: 1,
		dates:      []time.Time{baseline, anomaly},
		ndvi:       map[time.Time]float64{baseline: 0.2, anomaly: 0.5},
	}
	req := testRequest(bounds)
	req.CompositeRange = &analysis.Range{Min: 0.3, Max: 1}
	geo := singleChunk(t, bounds, req.Resolution)
	tc := chunk.TimeChunk{ID: 0, Dates: []time.Time{baseline, anomaly}}

	result, err := Process(geo, tc, req, source, t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, result)

	// The baseline composite sits below the range, so every pixel is
	// flagged even though the analysis composite is inside it.
	assert.Equal(t, geo.W*geo.H, result.OutOfRange.Count())
}

func TestProcessSkipsWhenWorkspaceMissing(t *testing.T) {
	bounds := raster.BBox{LonMin: 0, LatMin: 0, LonMax: 2, LatMax: 2}
	source := &fakeSource{resolution: 1}
	req := testRequest(bounds)
	geo := singleChunk(t, bounds, req.Resolution)

	result, err := Process(geo, chunk.TimeChunk{}, req, source, filepath.Join(t.TempDir(), "gone"))
	assert.NoError(t, err)
	assert.Nil(t, result)
}
