package analysis

import "errors"

var (
	// ErrValidation marks failures detected before any chunk work starts.
	// Requests failing validation produce no partial artifacts.
	ErrValidation = errors.New("request validation failed")

	// ErrNoData is raised when no chunk contributed data, so there is
	// nothing to render.
	ErrNoData = errors.New("no data available")

	// ErrChunkOverlap indicates two chunk results claim the same mosaic
	// pixels. Chunks are disjoint by construction, so this is a planner bug
	// and must not be silently overwritten.
	ErrChunkOverlap = errors.New("chunk results overlap")
)
