package pipeline

import (
	"context"
	"errors"

	"fxagent/internal/model"
)

// Task is one independent analysis unit. Run must return a result built with
// model.Succeeded or model.Failed; panics are contained by the coordinator.
type Task interface {
	Name() string
	Run(ctx context.Context, qc model.QueryContext) model.AgentResult
}

// TaskFunc adapts a function into a Task.
type TaskFunc struct {
	TaskName string
	Fn       func(ctx context.Context, qc model.QueryContext) model.AgentResult
}

func (f TaskFunc) Name() string { return f.TaskName }

func (f TaskFunc) Run(ctx context.Context, qc model.QueryContext) model.AgentResult {
	return f.Fn(ctx, qc)
}

var (
	ErrTaskTimeout   = errors.New("timeout")
	ErrTaskCancelled = errors.New("cancelled")
	ErrNoPayload     = errors.New("task reported success without payload")
)

// TaskError records why a task slot ended up failed.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Task
	}
	return e.Task + ": " + e.Err.Error()
}

func (e *TaskError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
