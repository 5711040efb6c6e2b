package pipeline

import "fmt"

// State is a coarse lifecycle phase reported to the external status model.
type State string

const (
	StateQueued  State = "QUEUED"
	StateRunning State = "RUNNING"
	StateOK      State = "OK"
	StateError   State = "ERROR"
)

// StatusReporter receives lifecycle transitions and scene progress. The
// service does not own persistence of this state; callers plug in whatever
// their task model needs.
type StatusReporter interface {
	Update(state State, message string)
	SceneProgress(processed, total int)
}

// ConsoleReporter prints status transitions to stdout.
type ConsoleReporter struct{}

func (ConsoleReporter) Update(state State, message string) {
	switch state {
	case StateError:
		fmt.Printf("\033[31m[%s] %s\033[0m\n", state, message)
	case StateOK:
		fmt.Printf("\033[32m[%s] %s\033[0m\n", state, message)
	default:
		fmt.Printf("\033[34m[%s] %s\033[0m\n", state, message)
	}
}

func (ConsoleReporter) SceneProgress(processed, total int) {}

// NopReporter discards all status updates.
type NopReporter struct{}

func (NopReporter) Update(state State, message string) {}
func (NopReporter) SceneProgress(processed, total int) {}
