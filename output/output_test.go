package output

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
	"github.com/forest-guardian/spectral-anomaly-service/internal/recombine"
	"github.com/forest-guardian/spectral-anomaly-service/internal/spectral"
)

func testMosaic(w, h int, fill float64) *recombine.Mosaic {
	return &recombine.Mosaic{
		Bounds:     raster.BBox{LonMin: 0, LatMin: 0, LonMax: float64(w), LatMax: float64(h)},
		W:          w,
		H:          h,
		Diff:       raster.NewGridFill(w, h, fill),
		OutOfRange: raster.NewMask(w, h),
		NoData:     raster.NewMask(w, h),
		Meta:       analysis.NewMetadata(),
	}
}

func ndviIndex(t *testing.T) spectral.Index {
	t.Helper()
	index, err := spectral.Get("ndvi")
	require.NoError(t, err)
	return index
}

func TestClassifyImageZeroChangeIsMidpoint(t *testing.T) {
	m := testMosaic(2, 2, 0)
	req := &analysis.AnalysisRequest{Index: "ndvi", NoData: -9999}

	img := ClassifyImage(m, req, ndviIndex(t))

	// Zero change normalizes to the middle of the diverging colormap.
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 191, A: 255}, img.RGBAAt(0, 0))
}

func TestClassifyImageEndpoints(t *testing.T) {
	req := &analysis.AnalysisRequest{Index: "ndvi", NoData: -9999}
	index := ndviIndex(t)

	// Maximum negative change maps to the red end, maximum positive to the
	// green end.
	loss := ClassifyImage(testMosaic(1, 1, -2), req, index)
	assert.Equal(t, color.RGBA{R: 165, B: 38, A: 255}, loss.RGBAAt(0, 0))

	gain := ClassifyImage(testMosaic(1, 1, 2), req, index)
	assert.Equal(t, color.RGBA{G: 104, B: 55, A: 255}, gain.RGBAAt(0, 0))
}

func TestClassifyImagePrecedence(t *testing.T) {
	req := &analysis.AnalysisRequest{
		Index:       "ndvi",
		NoData:      -9999,
		ChangeRange: &analysis.Range{Min: -0.1, Max: 0.1},
	}
	index := ndviIndex(t)

	// Change outside the change range: opaque black.
	m := testMosaic(1, 1, 0.5)
	img := ClassifyImage(m, req, index)
	assert.Equal(t, color.RGBA{A: 255}, img.RGBAAt(0, 0))

	// A flagged composite overrides the change classification: white.
	m.OutOfRange.V[0] = true
	img = ClassifyImage(m, req, index)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(0, 0))

	// No-data overrides everything: fully transparent.
	m.NoData.V[0] = true
	img = ClassifyImage(m, req, index)
	assert.Equal(t, color.RGBA{}, img.RGBAAt(0, 0))
}

func TestClassifyImageNilChangeRange(t *testing.T) {
	// Without a change range nothing is classified black, however large the
	// change.
	req := &analysis.AnalysisRequest{Index: "ndvi", NoData: -9999}
	img := ClassifyImage(testMosaic(1, 1, 1.9), req, ndviIndex(t))
	c := img.RGBAAt(0, 0)
	assert.NotEqual(t, color.RGBA{A: 255}, c)
	assert.EqualValues(t, 255, c.A)
}

func TestNormalizeClamps(t *testing.T) {
	assert.Equal(t, 0.0, normalize(-5, -2, 2))
	assert.Equal(t, 1.0, normalize(5, -2, 2))
	assert.Equal(t, 0.5, normalize(0, -2, 2))
	assert.Equal(t, 0.0, normalize(1, 1, 1))
}

func TestRdYlGnInterpolates(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 165, B: 38, A: 255}, RdYlGn(0))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 191, A: 255}, RdYlGn(0.5))
	assert.Equal(t, color.RGBA{G: 104, B: 55, A: 255}, RdYlGn(1))
	// Out-of-range input clamps to the endpoints.
	assert.Equal(t, RdYlGn(0), RdYlGn(-1))
	assert.Equal(t, RdYlGn(1), RdYlGn(2))
}

func TestCreateCleanPixelPlotNeedsTwoPoints(t *testing.T) {
	meta := analysis.NewMetadata()
	meta.Add("baseline", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 80)

	err := CreateCleanPixelPlot(filepath.Join(t.TempDir(), "plot.png"), meta)
	assert.Error(t, err)
}

func TestCreateCleanPixelPlotWritesPNG(t *testing.T) {
	meta := analysis.NewMetadata()
	meta.Add("baseline", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), 80)
	meta.Add("baseline", time.Date(2023, 1, 11, 0, 0, 0, 0, time.UTC), 60)
	meta.Add("analysis", time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC), 95)

	path := filepath.Join(t.TempDir(), "plot.png")
	require.NoError(t, CreateCleanPixelPlot(path, meta))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRenderRejectsEmptyMosaic(t *testing.T) {
	m := &recombine.Mosaic{Meta: analysis.NewMetadata()}
	req := &analysis.AnalysisRequest{Index: "ndvi", NoData: -9999}

	_, err := Render(m, req, t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, analysis.ErrNoData)
}
