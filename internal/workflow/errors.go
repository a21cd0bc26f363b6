package workflow

import (
	"errors"

	"fxagent/internal/pipeline"
)

var (
	// ErrParseDegraded marks a context built without the structured parser.
	// It is recorded on the context, never returned.
	ErrParseDegraded = errors.New("query parsed heuristically")

	// Per-task faults live in the task's AgentResult.
	ErrTaskTimeout   = pipeline.ErrTaskTimeout
	ErrTaskCancelled = pipeline.ErrTaskCancelled

	ErrSynthesisFailed  = errors.New("synthesis failed")
	ErrSynthesisTimeout = errors.New("synthesis timed out")
	ErrRunTimeout       = errors.New("analysis timed out")

	// ErrCancelled is returned when the caller went away. No event reports it.
	ErrCancelled = errors.New("run cancelled")
)

// userMessage is what the error event carries; details stay in the log.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrSynthesisTimeout):
		return "The final decision took too long to produce. Please try again."
	case errors.Is(err, ErrSynthesisFailed):
		return "The final decision could not be produced. Please try again."
	case errors.Is(err, ErrRunTimeout):
		return "The analysis took too long and was stopped. Please try again."
	default:
		return "The analysis failed unexpectedly."
	}
}
