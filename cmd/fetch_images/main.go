// Standalone imagery downloader: fills the local imagery directory for a
// bounding box and date range without running an analysis.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
	"github.com/forest-guardian/spectral-anomaly-service/internal/datacube"
	"github.com/forest-guardian/spectral-anomaly-service/internal/properties"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Printf("Warning: no .env file loaded: %v", err)
		fmt.Println("Make sure you have set the required environment variables:")
		fmt.Println("- COPERNICUS_CLIENT_ID")
		fmt.Println("- COPERNICUS_CLIENT_SECRET")
		fmt.Println("- COPERNICUS_TOKEN_URL")
		fmt.Println("- ROOT_PATH")
	}

	if len(os.Args) < 4 {
		fmt.Println("Usage: fetch_images <aoi.geojson> <start YYYY-MM-DD> <end YYYY-MM-DD> [product]")
		os.Exit(1)
	}

	bounds, centroid, err := analysis.LoadAOI(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to load AOI: %v", err)
	}
	fmt.Printf("AOI centered at (%.5f, %.5f)\n", centroid[0], centroid[1])

	startDate, err := time.Parse("2006-01-02", os.Args[2])
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	endDate, err := time.Parse("2006-01-02", os.Args[3])
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}

	product := "sentinel-2-l2a"
	if len(os.Args) > 4 {
		product = os.Args[4]
	}

	dir := filepath.Join(properties.ImagesPath(), product)
	if err := datacube.DownloadImages(dir, bounds, startDate, endDate, 5); err != nil {
		log.Fatalf("Download failed: %v", err)
	}
	fmt.Println("✓ All images downloaded to", dir)
}
