// Package output converts a finished mosaic into the final artifacts: a
// georeferenced difference raster, a color-classified image, a clean-pixel
// time-series plot and a per-acquisition metadata CSV.
package output

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
	"github.com/forest-guardian/spectral-anomaly-service/internal/datacube"
	"github.com/forest-guardian/spectral-anomaly-service/internal/properties"
	"github.com/forest-guardian/spectral-anomaly-service/internal/recombine"
	"github.com/forest-guardian/spectral-anomaly-service/internal/spectral"
	"github.com/gocarina/gocsv"
)

type Artifacts struct {
	DataPath     string
	ImagePath    string
	PlotPath     string // empty when fewer than two acquisition dates
	MetadataPath string
}

// Render writes all output artifacts for a mosaic into resultDir.
func Render(m *recombine.Mosaic, req *analysis.AnalysisRequest, resultDir string) (*Artifacts, error) {
	if m.Empty() {
		return nil, fmt.Errorf("%w: cannot render an empty mosaic", analysis.ErrNoData)
	}
	index, err := spectral.Get(req.Index)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(resultDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %v", err)
	}

	artifacts := &Artifacts{
		DataPath:     filepath.Join(resultDir, "data_tif.tif"),
		ImagePath:    filepath.Join(resultDir, "png_mosaic.png"),
		MetadataPath: filepath.Join(resultDir, "acquisitions.csv"),
	}

	if err := datacube.WriteGeoTIFF(artifacts.DataPath, m.Diff, m.Bounds, req.NoData); err != nil {
		return nil, err
	}

	img := ClassifyImage(m, req, index)
	if err := writePNG(artifacts.ImagePath, img); err != nil {
		return nil, err
	}

	if err := writeMetadataCSV(artifacts.MetadataPath, m.Meta); err != nil {
		return nil, err
	}

	// A single acquisition per role is not a meaningful trend.
	if m.Meta.Len() > 1 && m.Meta.MaxRoleDateCount() > 1 {
		artifacts.PlotPath = filepath.Join(resultDir, "plot_path.png")
		if err := CreateCleanPixelPlot(artifacts.PlotPath, m.Meta); err != nil {
			return nil, err
		}
	}

	fmt.Println("All products created at", resultDir)
	return artifacts, nil
}

// ClassifyImage builds the color-classified RGBA image for a mosaic. Rules
// apply per pixel, later rules overriding earlier ones:
//  1. diverging colormap over the difference, scaled from the theoretical
//     difference range of the spectral index;
//  2. change values outside the optional change range: opaque black;
//  3. either composite outside the composite range: opaque white;
//  4. either composite no-data: fully transparent.
// No-data must always end up transparent, and an invalid composite must
// dominate an out-of-range change: the change value is meaningless when
// either input was invalid.
func ClassifyImage(m *recombine.Mosaic, req *analysis.AnalysisRequest, index spectral.Index) *image.RGBA {
	diffMin := index.Min - index.Max
	diffMax := index.Max - index.Min

	changeColor := maskColor("change_out_of_range")
	compositeColor := maskColor("composite_out_of_range")
	noDataColor := maskColor("no_data")

	img := image.NewRGBA(image.Rect(0, 0, m.W, m.H))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			i := y*m.W + x
			v := m.Diff.V[i]

			c := RdYlGn(normalize(v, diffMin, diffMax))
			if req.ChangeRange != nil && (v < req.ChangeRange.Min || req.ChangeRange.Max < v) {
				c = changeColor
			}
			if m.OutOfRange.V[i] {
				c = compositeColor
			}
			if m.NoData.V[i] {
				c = noDataColor
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func maskColor(name string) color.RGBA {
	c := properties.MaskColorMap[name]
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func normalize(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	norm := (value - min) / (max - min)
	if norm < 0 {
		return 0
	}
	if norm > 1 {
		return 1
	}
	return norm
}

func writePNG(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create PNG file: %v", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("failed to encode PNG file: %v", err)
	}
	return nil
}

func writeMetadataCSV(path string, meta *analysis.Metadata) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metadata CSV: %v", err)
	}
	defer file.Close()

	stats := meta.Stats()
	if err := gocsv.MarshalFile(&stats, file); err != nil {
		return fmt.Errorf("failed to write metadata CSV: %v", err)
	}
	return nil
}
