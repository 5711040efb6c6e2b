package spectral

import (
	"testing"
	"time"

	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnknownIndexFails(t *testing.T) {
	_, err := Get("ndsi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported spectral index")
}

func TestNamesAreSorted(t *testing.T) {
	assert.Equal(t, []string{"evi", "fractional_cover", "ndbi", "ndvi", "ndwi"}, Names())
}

func TestRanges(t *testing.T) {
	for name, want := range map[string][2]float64{
		"ndvi": {-1, 1},
		"ndwi": {0, 1},
		"ndbi": {-1, 1},
		"evi":  {-1, 1},
	} {
		index, err := Get(name)
		require.NoError(t, err)
		min, max := index.Range()
		assert.Equal(t, want[0], min, name)
		assert.Equal(t, want[1], max, name)
	}
}

func testCube(bands map[string]float64) *raster.Cube {
	dates := []time.Time{time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)}
	c := raster.NewCube(dates, 2, 1)
	for name, v := range bands {
		c.SetBand(name, []*raster.Grid{raster.NewGridFill(2, 1, v)})
	}
	return c
}

func TestNDVIComputation(t *testing.T) {
	index, err := Get("ndvi")
	require.NoError(t, err)

	c := testCube(map[string]float64{"B08": 0.6, "B04": 0.2})
	require.NoError(t, index.Compute(c))

	grids, ok := c.Band("ndvi")
	require.True(t, ok)
	assert.InDelta(t, 0.5, grids[0].At(0, 0), 1e-9)
}

func TestNDVIZeroDenominatorIsZero(t *testing.T) {
	index, err := Get("ndvi")
	require.NoError(t, err)

	c := testCube(map[string]float64{"B08": 0, "B04": 0})
	require.NoError(t, index.Compute(c))
	grids, _ := c.Band("ndvi")
	assert.Equal(t, 0.0, grids[0].At(0, 0))
}

func TestWaterClassifyIsBinary(t *testing.T) {
	index, err := Get("ndwi")
	require.NoError(t, err)

	wet := testCube(map[string]float64{"B03": 0.6, "B08": 0.2})
	require.NoError(t, index.Compute(wet))
	grids, _ := wet.Band("ndwi")
	assert.Equal(t, 1.0, grids[0].At(0, 0))

	dry := testCube(map[string]float64{"B03": 0.2, "B08": 0.6})
	require.NoError(t, index.Compute(dry))
	grids, _ = dry.Band("ndwi")
	assert.Equal(t, 0.0, grids[0].At(0, 0))
}

func TestEVIStaysInRange(t *testing.T) {
	index, err := Get("evi")
	require.NoError(t, err)

	c := testCube(map[string]float64{"B02": 0.05, "B04": 0.02, "B08": 0.9})
	require.NoError(t, index.Compute(c))
	grids, _ := c.Band("evi")
	v := grids[0].At(0, 0)
	assert.GreaterOrEqual(t, v, -1.0)
	assert.LessOrEqual(t, v, 1.0)
}

func TestComputeFailsWithoutRequiredBand(t *testing.T) {
	index, err := Get("ndvi")
	require.NoError(t, err)

	c := testCube(map[string]float64{"B08": 0.6})
	assert.Error(t, index.Compute(c))
}
