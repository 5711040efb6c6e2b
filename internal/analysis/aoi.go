package analysis

import (
	"fmt"
	"os"

	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// LoadAOI reads a GeoJSON feature collection and returns the bounding box of
// all feature geometries plus the centroid of the largest feature, for
// requests that name an area-of-interest file instead of a literal box.
func LoadAOI(path string) (raster.BBox, [2]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return raster.BBox{}, [2]float64{}, fmt.Errorf("failed to read AOI file: %v", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return raster.BBox{}, [2]float64{}, fmt.Errorf("invalid AOI GeoJSON: %v", err)
	}
	if len(fc.Features) == 0 {
		return raster.BBox{}, [2]float64{}, fmt.Errorf("AOI file %s has no features", path)
	}

	bound := fc.Features[0].Geometry.Bound()
	var centroid orb.Point
	maxArea := -1.0
	for _, feature := range fc.Features {
		bound = bound.Union(feature.Geometry.Bound())
		c, area := planar.CentroidArea(feature.Geometry)
		if area > maxArea {
			maxArea = area
			centroid = c
		}
	}

	bbox := raster.BBox{
		LonMin: bound.Min.X(),
		LatMin: bound.Min.Y(),
		LonMax: bound.Max.X(),
		LatMax: bound.Max.Y(),
	}
	if !bbox.Valid() {
		return raster.BBox{}, [2]float64{}, fmt.Errorf("AOI file %s yields a degenerate bounding box", path)
	}
	return bbox, [2]float64{centroid.X(), centroid.Y()}, nil
}
