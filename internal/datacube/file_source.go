package datacube

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
	"github.com/forest-guardian/spectral-anomaly-service/internal/cache"
	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
)

// Band order of the GeoTIFFs this service downloads and reads. Matches the
// evalscript in remote.go.
var sentinelBands = []string{"B02", "B03", "B04", "B08", "B11", "CLD", "SCL"}

// FileSource serves acquisitions from a directory of GeoTIFF files named
// <date>.tif (2006-01-02 format), one file per acquisition covering at least
// the requested bounding box.
type FileSource struct {
	dir        string
	resolution float64
	dateCache  *cache.FileCache[[]time.Time]
}

func NewFileSource(dir string, resolution float64) *FileSource {
	return &FileSource{
		dir:        dir,
		resolution: resolution,
		dateCache:  cache.NewFileCache[[]time.Time]("acquisitions"),
	}
}

func (s *FileSource) Measurements() []string {
	return append([]string(nil), sentinelBands...)
}

func (s *FileSource) ListDates(bounds raster.BBox, tr analysis.TimeRange) ([]time.Time, error) {
	key := s.dateCache.GenerateKey(s.dir, bounds, tr.Start.Unix(), tr.End.Unix())
	if dates, ok := s.dateCache.Get(key); ok {
		return dates, nil
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read imagery directory %s: %v", s.dir, err)
	}
	dates := []time.Time{}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".tif") {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSuffix(name, ".tif"))
		if err != nil {
			continue
		}
		if tr.Contains(date) {
			dates = append(dates, date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if err := s.dateCache.Set(key, dates); err != nil {
		fmt.Printf("Failed to cache acquisition dates: %v\n", err)
	}
	return dates, nil
}

func (s *FileSource) Load(bounds raster.BBox, dates []time.Time, measurements []string) (*raster.Cube, error) {
	w, h := raster.PixelDims(bounds, s.resolution)
	cube := raster.NewCube(dates, w, h)

	bands := make(map[string][]*raster.Grid, len(measurements))
	for _, m := range measurements {
		bands[m] = make([]*raster.Grid, len(dates))
	}

	for t, date := range dates {
		path := filepath.Join(s.dir, date.Format("2006-01-02")+".tif")
		ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
			if ec == godal.CE_Warning {
				return nil
			}
			return fmt.Errorf("gdal error %d: %s", code, msg)
		}))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %v", path, err)
		}

		x0, y0, err := pixelWindow(ds, bounds)
		if err != nil {
			ds.Close()
			return nil, fmt.Errorf("%s: %v", path, err)
		}

		for _, m := range measurements {
			idx := bandIndex(m)
			if idx < 0 || idx >= len(ds.Bands()) {
				ds.Close()
				return nil, fmt.Errorf("%s does not provide measurement %s", path, m)
			}
			grid := raster.NewGrid(w, h)
			if err := ds.Bands()[idx].Read(x0, y0, grid.V, w, h); err != nil {
				ds.Close()
				return nil, fmt.Errorf("failed to read band %s from %s: %v", m, path, err)
			}
			bands[m][t] = grid
		}
		ds.Close()
	}

	for m, grids := range bands {
		if err := cube.SetBand(m, grids); err != nil {
			return nil, err
		}
	}
	return cube, nil
}

func bandIndex(measurement string) int {
	for i, name := range sentinelBands {
		if name == measurement {
			return i
		}
	}
	return -1
}

// pixelWindow maps the bounding box's top-left corner onto file pixel
// coordinates via the geotransform.
func pixelWindow(ds *godal.Dataset, bounds raster.BBox) (int, int, error) {
	gt, err := ds.GeoTransform()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read geotransform: %v", err)
	}
	x0 := int(math.Floor((bounds.LonMin - gt[0]) / gt[1]))
	y0 := int(math.Floor((bounds.LatMax - gt[3]) / gt[5]))
	if x0 < 0 || y0 < 0 || x0 >= ds.Structure().SizeX || y0 >= ds.Structure().SizeY {
		return 0, 0, fmt.Errorf("bounding box %+v is outside the image", bounds)
	}
	return x0, y0, nil
}
