// Package pipeline sequences the change-detection stages: validation,
// chunk planning, parallel chunk processing, geographic recombination and
// output rendering.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/forest-guardian/spectral-anomaly-service/internal/analysis"
	"github.com/forest-guardian/spectral-anomaly-service/internal/chunk"
	"github.com/forest-guardian/spectral-anomaly-service/internal/datacube"
	"github.com/forest-guardian/spectral-anomaly-service/internal/processor"
	"github.com/forest-guardian/spectral-anomaly-service/internal/properties"
	"github.com/forest-guardian/spectral-anomaly-service/internal/recombine"
	"github.com/forest-guardian/spectral-anomaly-service/internal/spectral"
	"github.com/forest-guardian/spectral-anomaly-service/output"
	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"
)

type Pipeline struct {
	Source   datacube.Source
	Reporter StatusReporter
	// TempDir and ResultDir override the default data directories, mainly
	// for tests. Empty means the properties defaults.
	TempDir   string
	ResultDir string
}

func New(source datacube.Source, reporter StatusReporter) *Pipeline {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Pipeline{Source: source, Reporter: reporter}
}

// Run executes one request end to end and returns the rendered artifacts.
// The task workspace is removed only after rendering succeeds; a failed run
// leaves it behind for diagnosis.
func (p *Pipeline) Run(req *analysis.AnalysisRequest) (*output.Artifacts, error) {
	p.Reporter.Update(StateQueued, "Parsed out parameters.")

	baselineDates, analysisDates, err := p.validate(req)
	if err != nil {
		p.Reporter.Update(StateError, err.Error())
		return nil, err
	}
	p.Reporter.Update(StateRunning, "Validated parameters.")

	geoChunks, timeChunks, err := p.plan(req, baselineDates, analysisDates)
	if err != nil {
		p.Reporter.Update(StateError, err.Error())
		return nil, err
	}
	p.Reporter.Update(StateRunning, fmt.Sprintf("Chunked parameter set: %d geographic, %d time.", len(geoChunks), len(timeChunks)))

	workspace := filepath.Join(p.tempDir(), req.TaskID)
	if err := os.MkdirAll(workspace, os.ModePerm); err != nil {
		err = fmt.Errorf("failed to create task workspace: %v", err)
		p.Reporter.Update(StateError, err.Error())
		return nil, err
	}

	results := p.fanOut(req, geoChunks, timeChunks, workspace)

	mosaic, err := recombine.Recombine(results, req.Bounds, req.Resolution, req.NoData)
	if err != nil {
		p.Reporter.Update(StateError, err.Error())
		return nil, err
	}
	if mosaic.Empty() {
		err = fmt.Errorf("%w: every chunk was skipped", analysis.ErrNoData)
		p.Reporter.Update(StateError, err.Error())
		return nil, err
	}
	p.Reporter.Update(StateRunning, "Combined chunk results.")

	resultDir := filepath.Join(p.resultDir(), req.TaskID)
	artifacts, err := output.Render(mosaic, req, resultDir)
	if err != nil {
		// Partial artifacts are not kept; the workspace is, for diagnosis.
		os.RemoveAll(resultDir)
		p.Reporter.Update(StateError, err.Error())
		return nil, err
	}

	os.RemoveAll(workspace)
	p.Reporter.Update(StateOK, "All products have been generated.")
	return artifacts, nil
}

// validate runs all pre-chunking checks. Any failure here terminates the
// request before chunk work is scheduled.
func (p *Pipeline) validate(req *analysis.AnalysisRequest) ([]time.Time, []time.Time, error) {
	if err := req.CheckShape(); err != nil {
		return nil, nil, err
	}

	index, err := spectral.Get(req.Index)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", analysis.ErrValidation, err)
	}

	available := make(map[string]bool)
	for _, m := range p.Source.Measurements() {
		available[m] = true
	}
	if len(req.Measurements) == 0 {
		// Default to the index bands plus whatever masking bands the source
		// offers, so clean-observation filtering works out of the box.
		req.Measurements = append([]string(nil), index.Measurements...)
		for _, m := range []string{"B02", "CLD", "SCL"} {
			if available[m] && !containsString(req.Measurements, m) {
				req.Measurements = append(req.Measurements, m)
			}
		}
	}
	for _, m := range req.Measurements {
		if !available[m] {
			return nil, nil, fmt.Errorf("%w: measurement %s is not provided by the imagery source", analysis.ErrValidation, m)
		}
	}
	for _, m := range index.Measurements {
		if !containsString(req.Measurements, m) {
			return nil, nil, fmt.Errorf("%w: index %s requires measurement %s", analysis.ErrValidation, req.Index, m)
		}
	}

	baselineDates, err := p.Source.ListDates(req.Bounds, req.BaselineTime)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list baseline acquisitions: %v", err)
	}
	if len(baselineDates) == 0 {
		return nil, nil, fmt.Errorf("%w: there are no acquisitions for this parameter set for the baseline time period", analysis.ErrValidation)
	}
	analysisDates, err := p.Source.ListDates(req.Bounds, req.AnalysisTime)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list analysis acquisitions: %v", err)
	}
	if len(analysisDates) == 0 {
		return nil, nil, fmt.Errorf("%w: there are no acquisitions for this parameter set for the analysis time period", analysis.ErrValidation)
	}
	return baselineDates, analysisDates, nil
}

func (p *Pipeline) plan(req *analysis.AnalysisRequest, baselineDates, analysisDates []time.Time) ([]chunk.GeoChunk, []chunk.TimeChunk, error) {
	geoChunks, err := chunk.CreateGeographicChunks(req.Bounds, req.GeoChunkSizeDeg, req.Resolution)
	if err != nil {
		return nil, nil, err
	}
	allDates := unionDates(baselineDates, analysisDates)
	timeChunks := chunk.CreateTimeChunks(allDates, req.TimeChunkSize, req.ReverseTime)
	return geoChunks, timeChunks, nil
}

// fanOut processes every (geographic, time) chunk pair on a bounded worker
// pool. Chunk failures are isolated: a failed chunk contributes nothing and
// sibling chunks keep running. StopWait is the barrier; recombination never
// sees a partial group.
func (p *Pipeline) fanOut(req *analysis.AnalysisRequest, geoChunks []chunk.GeoChunk, timeChunks []chunk.TimeChunk, workspace string) []*processor.ChunkResult {
	workers := req.Workers
	if workers <= 0 {
		workers = properties.Workers()
	}
	wp := workerpool.New(workers)

	total := len(geoChunks) * len(timeChunks)
	progressBar := progressbar.Default(int64(total), "Processing chunks")

	var (
		mu        sync.Mutex
		results   []*processor.ChunkResult
		processed int
	)
	for _, geo := range geoChunks {
		for _, tc := range timeChunks {
			geo, tc := geo, tc
			wp.Submit(func() {
				result, err := processor.Process(geo, tc, req, p.Source, workspace)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					fmt.Printf("Chunk %d_%d failed: %v\n", geo.ID, tc.ID, err)
				} else {
					results = append(results, result)
				}
				processed++
				p.Reporter.SceneProgress(processed, total)
				progressBar.Add(1)
			})
		}
	}
	wp.StopWait()
	fmt.Println()
	return results
}

func (p *Pipeline) tempDir() string {
	if p.TempDir != "" {
		return p.TempDir
	}
	return properties.TempPath()
}

func (p *Pipeline) resultDir() string {
	if p.ResultDir != "" {
		return p.ResultDir
	}
	return properties.ResultPath()
}

func unionDates(a, b []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(a)+len(b))
	out := make([]time.Time, 0, len(a)+len(b))
	for _, list := range [][]time.Time{a, b} {
		for _, d := range list {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
