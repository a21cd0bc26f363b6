package provider

import (
	"context"
	"errors"
	"strconv"
)

// ChatPayload is one chat-completion request.
type ChatPayload struct {
	System      string
	User        string
	ExpectJSON  bool
	MaxTokens   int
	Temperature float64
	// Purpose tags transcripts and breaker logs, e.g. "synthesis".
	Purpose string
}

// ModelProvider is a text model endpoint.
type ModelProvider interface {
	ID() string
	Call(ctx context.Context, payload ChatPayload) (string, error)
}

var (
	ErrEmptyResponse = errors.New("model returned no choices")
	ErrCircuitOpen   = errors.New("model circuit open")
)

// StatusError is a non-2xx response from the endpoint.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return "status=" + strconv.Itoa(e.Status) + ": " + e.Message
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.Status {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
