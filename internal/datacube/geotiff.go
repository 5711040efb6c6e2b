package datacube

import (
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
)

// WriteGeoTIFF writes a grid as a single-band Float32 GeoTIFF in EPSG:4326
// with the given no-data value declared on the band.
func WriteGeoTIFF(path string, g *raster.Grid, bounds raster.BBox, noData float64) error {
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, g.W, g.H)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", path, err)
	}
	defer ds.Close()

	resX := bounds.Width() / float64(g.W)
	resY := bounds.Height() / float64(g.H)
	if err := ds.SetGeoTransform([6]float64{bounds.LonMin, resX, 0, bounds.LatMax, 0, -resY}); err != nil {
		return fmt.Errorf("failed to set geotransform on %s: %v", path, err)
	}
	sr, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return fmt.Errorf("failed to create spatial reference: %v", err)
	}
	defer sr.Close()
	if err := ds.SetSpatialRef(sr); err != nil {
		return fmt.Errorf("failed to set spatial reference on %s: %v", path, err)
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(noData); err != nil {
		return fmt.Errorf("failed to set no-data value on %s: %v", path, err)
	}
	if err := band.Write(0, 0, g.V, g.W, g.H); err != nil {
		return fmt.Errorf("failed to write raster data to %s: %v", path, err)
	}
	return nil
}
