package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/godal"
	"github.com/common-nighthawk/go-figure"
	bannercolor "github.com/fatih/color"
	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
	"github.com/forest-guardian/spectral-anomaly-service/internal/datacube"
	"github.com/forest-guardian/spectral-anomaly-service/internal/notification"
	"github.com/forest-guardian/spectral-anomaly-service/internal/pipeline"
	"github.com/forest-guardian/spectral-anomaly-service/internal/properties"
	"github.com/joho/godotenv"
)

func printBanner() {
	figure1 := figure.NewFigure("Spectral", "isometric1", true)
	figure2 := figure.NewFigure("Anomaly", "isometric1", true)
	bannercolor.Cyan(figure1.String())
	bannercolor.Cyan(figure2.String())
	fmt.Println()
}

func parseArgs() (requestPath, aoiPath, product string, fetch bool) {
	product = "sentinel-2-l2a"
	for i, arg := range os.Args {
		switch {
		case strings.HasPrefix(arg, "--request="):
			requestPath = strings.TrimPrefix(arg, "--request=")
		case arg == "--request" && i+1 < len(os.Args):
			requestPath = os.Args[i+1]
		case strings.HasPrefix(arg, "--aoi="):
			aoiPath = strings.TrimPrefix(arg, "--aoi=")
		case arg == "--aoi" && i+1 < len(os.Args):
			aoiPath = os.Args[i+1]
		case strings.HasPrefix(arg, "--product="):
			product = strings.TrimPrefix(arg, "--product=")
		case arg == "--fetch":
			fetch = true
		}
	}
	return requestPath, aoiPath, product, fetch
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			fmt.Println("\033[33mNo .env file found, relying on process environment.\033[0m")
		}
	}

	printBanner()
	godal.RegisterInternalDrivers()

	requestPath, aoiPath, product, fetch := parseArgs()
	if requestPath == "" {
		fmt.Println("\033[31mUsage: spectral-anomaly --request request.json [--aoi area.geojson] [--product name] [--fetch]\033[0m")
		os.Exit(1)
	}

	req, err := analysis.LoadRequest(requestPath)
	if err != nil {
		fmt.Printf("\033[31mError loading request: %s\033[0m\n", err.Error())
		os.Exit(1)
	}

	if aoiPath != "" {
		bounds, centroid, err := analysis.LoadAOI(aoiPath)
		if err != nil {
			fmt.Printf("\033[31mError loading AOI: %s\033[0m\n", err.Error())
			os.Exit(1)
		}
		req.Bounds = bounds
		fmt.Printf("AOI %s centered at (%.5f, %.5f)\n", aoiPath, centroid[0], centroid[1])
	}

	imageryDir := filepath.Join(properties.ImagesPath(), product)
	if fetch {
		fmt.Println("Downloading imagery for both time ranges...")
		for _, tr := range []analysis.TimeRange{req.BaselineTime, req.AnalysisTime} {
			if err := datacube.DownloadImages(imageryDir, req.Bounds, tr.Start, tr.End, 5); err != nil {
				fmt.Printf("\033[31mError downloading imagery: %s\033[0m\n", err.Error())
				notification.SendDiscordErrorNotification(fmt.Sprintf("Spectral anomaly task %s\n\nError downloading imagery: %s", req.TaskID, err.Error()))
				os.Exit(1)
			}
		}
	}

	source := datacube.NewFileSource(imageryDir, req.Resolution)
	p := pipeline.New(source, pipeline.ConsoleReporter{})

	artifacts, err := p.Run(req)
	if err != nil {
		if errors.Is(err, analysis.ErrValidation) {
			fmt.Printf("\033[31mRequest rejected: %s\033[0m\n", err.Error())
		} else {
			notification.SendDiscordErrorNotification(fmt.Sprintf("Spectral anomaly task %s failed: %s", req.TaskID, err.Error()))
		}
		os.Exit(1)
	}

	fmt.Printf("\n\033[32mSuccessful analysis!\n Difference raster: %s\n Classified image: %s\033[0m\n", artifacts.DataPath, artifacts.ImagePath)
	if artifacts.PlotPath != "" {
		fmt.Printf("\033[32m Clean pixel plot: %s\033[0m\n", artifacts.PlotPath)
	}
	notification.SendDiscordSuccessNotification(fmt.Sprintf("Spectral anomaly task %s complete.\nDifference raster: %s\nClassified image: %s", req.TaskID, artifacts.DataPath, artifacts.ImagePath))
}
