package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fxagent/internal/logger"
	"fxagent/internal/model"

	"golang.org/x/sync/errgroup"
)

// Coordinator fans a query out to every registered task and waits for all
// of them. The returned map always has one entry per task.
type Coordinator struct {
	tasks   []Task
	timeout func(task string) time.Duration
}

type Option func(*Coordinator)

// WithTimeouts sets the per-task budget. A non-positive budget means the
// task is bounded only by the parent context.
func WithTimeouts(fn func(task string) time.Duration) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.timeout = fn
		}
	}
}

// WithTimeout applies the same budget to every task.
func WithTimeout(d time.Duration) Option {
	return WithTimeouts(func(string) time.Duration { return d })
}

func NewCoordinator(tasks []Task, opts ...Option) (*Coordinator, error) {
	seen := make(map[string]bool, len(tasks))
	kept := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t == nil {
			continue
		}
		name := strings.TrimSpace(t.Name())
		if name == "" {
			return nil, fmt.Errorf("task with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate task name: %s", name)
		}
		seen[name] = true
		kept = append(kept, t)
	}
	c := &Coordinator{
		tasks:   kept,
		timeout: func(string) time.Duration { return 0 },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Names lists the registered tasks in registration order.
func (c *Coordinator) Names() []string {
	out := make([]string, len(c.tasks))
	for i, t := range c.tasks {
		out[i] = strings.TrimSpace(t.Name())
	}
	return out
}

func (c *Coordinator) Size() int { return len(c.tasks) }

// Run executes every task concurrently and blocks until each slot is filled.
// onResult is called once per task, in completion order, never concurrently.
func (c *Coordinator) Run(ctx context.Context, qc model.QueryContext, onResult func(model.AgentResult)) map[string]model.AgentResult {
	results := make(map[string]model.AgentResult, len(c.tasks))
	if len(c.tasks) == 0 {
		return results
	}
	var mu sync.Mutex
	group := new(errgroup.Group)
	group.SetLimit(len(c.tasks))
	for _, task := range c.tasks {
		task := task
		group.Go(func() error {
			res := c.runOne(ctx, task, qc)
			mu.Lock()
			defer mu.Unlock()
			results[res.Task] = res
			if onResult != nil {
				onResult(res)
			}
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (c *Coordinator) runOne(ctx context.Context, task Task, qc model.QueryContext) model.AgentResult {
	name := strings.TrimSpace(task.Name())
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if d := c.timeout(name); d > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	resCh := make(chan model.AgentResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorf("[coordinator] task %s panicked: %v", name, rec)
				resCh <- model.Failed(name, fmt.Sprintf("panic: %v", rec))
			}
		}()
		resCh <- task.Run(runCtx, qc)
	}()

	var res model.AgentResult
	select {
	case res = <-resCh:
	case <-runCtx.Done():
	}
	// a result that raced the deadline is discarded along with late ones
	if runCtx.Err() != nil {
		reason := ErrTaskTimeout
		if ctx.Err() != nil {
			reason = ErrTaskCancelled
		}
		logger.Warnf("[coordinator] %s", (&TaskError{Task: name, Err: reason}).Error())
		return model.Failed(name, reason.Error()).WithElapsed(time.Since(start))
	}
	return normalizeResult(name, res).WithElapsed(time.Since(start))
}

func normalizeResult(name string, res model.AgentResult) model.AgentResult {
	res.Task = name
	if res.Success && res.Payload == nil {
		logger.Warnf("[coordinator] %s", (&TaskError{Task: name, Err: ErrNoPayload}).Error())
		return model.Failed(name, ErrNoPayload.Error())
	}
	if !res.Success {
		out := model.Failed(name, res.Error)
		out.Summary = res.Summary
		return out
	}
	res.Error = ""
	return res
}
