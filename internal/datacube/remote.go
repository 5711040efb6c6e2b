package datacube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
	"golang.org/x/oauth2/clientcredentials"
)

const processURL = "https://sh.dataspace.copernicus.eu/api/v1/process"

func calculatePixels(distance float64, resolution float64) int {
	pixels := distance * (111_000.0 / resolution)
	if pixels < 1 {
		return 1
	}
	// Process API caps output at 2500 pixels per side.
	if pixels > 2500 {
		return 2500
	}
	return int(pixels)
}

// RequestImage fetches one Sentinel-2 L2A GeoTIFF from the Copernicus
// process API for the bounding box and time window, with the band layout in
// sentinelBands.
func RequestImage(startDate, endDate time.Time, bounds raster.BBox) ([]byte, error) {
	widthPixels := calculatePixels(bounds.Width(), 10)
	heightPixels := calculatePixels(bounds.Height(), 10)

	evalscript := `
    //VERSION=3
    function setup() {
      return {
        input: ["B02", "B03", "B04", "B08", "B11", "CLD", "SCL"],
        output: {
          id: "default",
          bands: 7,
          sampleType: SampleType.FLOAT32,
        },
      }
    }

    function evaluatePixel(sample) {
      return [sample.B02, sample.B03, sample.B04, sample.B08, sample.B11, sample.CLD, sample.SCL];
    }
  `

	requestPayload := map[string]interface{}{
		"input": map[string]interface{}{
			"bounds": map[string]interface{}{
				"bbox": []float64{bounds.LonMin, bounds.LatMin, bounds.LonMax, bounds.LatMax},
			},
			"data": []map[string]interface{}{
				{
					"dataFilter": map[string]interface{}{
						"timeRange": map[string]string{
							"from": startDate.Format(time.RFC3339),
							"to":   endDate.Format(time.RFC3339),
						},
					},
					"type": "sentinel-2-l2a",
				},
			},
		},
		"output": map[string]interface{}{
			"width":  widthPixels,
			"height": heightPixels,
			"responses": []map[string]interface{}{
				{
					"identifier": "default",
					"format": map[string]string{
						"type": "image/tiff",
					},
				},
			},
		},
		"evalscript": evalscript,
		"mosaicking": "mostRecent",
	}

	requestBody, err := json.Marshal(requestPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %v", err)
	}

	clientID := os.Getenv("COPERNICUS_CLIENT_ID")
	clientSecret := os.Getenv("COPERNICUS_CLIENT_SECRET")
	tokenURL := os.Getenv("COPERNICUS_TOKEN_URL")
	if clientID == "" || clientSecret == "" || tokenURL == "" {
		return nil, fmt.Errorf("missing required environment variables: COPERNICUS_CLIENT_ID, COPERNICUS_CLIENT_SECRET, or COPERNICUS_TOKEN_URL")
	}

	config := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	httpClient := config.Client(context.Background())

	retries := 10
	var response *http.Response
	for attempt := 1; attempt <= retries; attempt++ {
		response, err = httpClient.Post(processURL, "application/json", bytes.NewBuffer(requestBody))
		if err == nil && response.StatusCode == http.StatusOK {
			break
		}
		if response != nil {
			body, _ := io.ReadAll(response.Body)
			bodyStr := string(body)
			response.Body.Close()
			if strings.Contains(bodyStr, "403") {
				return nil, fmt.Errorf("unauthorized access, check your client ID and secret")
			}
			if response.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("image not found")
			}
			fmt.Printf("Attempt %d failed: %s\n", attempt, bodyStr)
		} else {
			fmt.Printf("Attempt %d failed: %v\n", attempt, err)
		}
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to request image after %d attempts: %v", retries, err)
	}
	if response == nil || response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to request image after %d attempts", retries)
	}
	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	return content, nil
}

// DownloadImages fills dir with date-named GeoTIFFs for every acquisition
// interval in [startDate, endDate], skipping files already on disk and dates
// previously recorded as unavailable.
func DownloadImages(dir string, bounds raster.BBox, startDate, endDate time.Time, intervalDays int) error {
	if intervalDays < 1 {
		intervalDays = 1
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("failed to create imagery directory: %v", err)
	}

	notFoundFile := filepath.Join(dir, "invalid_images.json")
	var notFound []string
	if data, err := os.ReadFile(notFoundFile); err == nil {
		if err := json.Unmarshal(data, &notFound); err != nil {
			return fmt.Errorf("invalid JSON in %s: %v", notFoundFile, err)
		}
	}

	for currentDate := startDate; !currentDate.After(endDate); currentDate = currentDate.AddDate(0, 0, intervalDays) {
		name := currentDate.Format("2006-01-02") + ".tif"
		path := filepath.Join(dir, name)

		if contains(notFound, name) {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}

		dayEnd := currentDate.Add(time.Hour*23 + time.Minute*59 + time.Second*59)
		imageBytes, err := RequestImage(currentDate, dayEnd, bounds)
		if err != nil {
			if strings.Contains(err.Error(), "image not found") {
				notFound = append(notFound, name)
				saveNotFound(notFoundFile, notFound)
				continue
			}
			return fmt.Errorf("error requesting image for %s: %v", currentDate.Format("2006-01-02"), err)
		}

		if err := os.WriteFile(path, imageBytes, 0644); err != nil {
			return fmt.Errorf("failed to write image file: %v", err)
		}
		fmt.Println("Downloaded", path)
	}
	return nil
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func saveNotFound(path string, notFound []string) {
	data, err := json.MarshalIndent(notFound, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Printf("Failed to update %s: %v\n", path, err)
	}
}
