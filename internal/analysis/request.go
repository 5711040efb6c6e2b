package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/forest-guardian/spectral-anomaly-service/internal/raster"
)

// Range is an optional numeric pair; requests use a nil *Range for "unset".
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (r *Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

// TimeRange is a closed acquisition time interval.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && !t.After(tr.End)
}

// AnalysisRequest is the immutable parameter bundle for one change-detection
// run. It is validated once, before chunking; pipeline stages only read it.
type AnalysisRequest struct {
	TaskID          string      `json:"task_id"`
	Bounds          raster.BBox `json:"bounds"`
	BaselineTime    TimeRange   `json:"baseline_time"`
	AnalysisTime    TimeRange   `json:"analysis_time"`
	Index           string      `json:"index"`
	CompositeRange  *Range      `json:"composite_range,omitempty"`
	ChangeRange     *Range      `json:"change_range,omitempty"`
	Measurements    []string    `json:"measurements"`
	NoData          float64     `json:"no_data"`
	GeoChunkSizeDeg float64     `json:"geo_chunk_size_deg"`
	TimeChunkSize   int         `json:"time_chunk_size"`
	ReverseTime     bool        `json:"reverse_time"`
	Resolution      float64     `json:"resolution"`
	Workers         int         `json:"workers"`
}

// LoadRequest reads a request from a JSON file and applies defaults for
// optional sizing fields.
func LoadRequest(path string) (*AnalysisRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %v", err)
	}
	var req AnalysisRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid request JSON: %v", err)
	}
	if req.TaskID == "" {
		req.TaskID = fmt.Sprintf("task_%d", time.Now().Unix())
	}
	if req.Resolution <= 0 {
		// Sentinel-2 ground resolution, expressed in degrees.
		req.Resolution = 10.0 / 111_000.0
	}
	return &req, nil
}

// CheckShape rejects requests that are malformed regardless of available
// data. Data-dependent validation happens in the pipeline against the
// imagery source.
func (r *AnalysisRequest) CheckShape() error {
	if !r.Bounds.Valid() {
		return fmt.Errorf("%w: bounding box min must be below max: %+v", ErrValidation, r.Bounds)
	}
	if r.Resolution <= 0 {
		return fmt.Errorf("%w: resolution must be positive, got %f", ErrValidation, r.Resolution)
	}
	if r.BaselineTime.End.Before(r.BaselineTime.Start) {
		return fmt.Errorf("%w: baseline time range ends before it starts", ErrValidation)
	}
	if r.AnalysisTime.End.Before(r.AnalysisTime.Start) {
		return fmt.Errorf("%w: analysis time range ends before it starts", ErrValidation)
	}
	if r.CompositeRange != nil && r.CompositeRange.Max < r.CompositeRange.Min {
		return fmt.Errorf("%w: composite range max below min", ErrValidation)
	}
	if r.ChangeRange != nil && r.ChangeRange.Max < r.ChangeRange.Min {
		return fmt.Errorf("%w: change range max below min", ErrValidation)
	}
	return nil
}
