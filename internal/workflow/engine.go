package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"fxagent/internal/logger"
	"fxagent/internal/model"
	"fxagent/internal/pipeline"
	"fxagent/internal/stream"
	"fxagent/internal/synthesis"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "fxagent/workflow"

// QueryBuilder turns the raw request into a context; it never fails.
type QueryBuilder interface {
	Build(ctx context.Context, raw string) model.QueryContext
}

// RiskGate judges the run's trade setup.
type RiskGate interface {
	Evaluate(state model.RunState) model.RiskDecision
}

// Settings are the engine's immutable budgets.
type Settings struct {
	SynthesisTimeout time.Duration
	RunTimeout       time.Duration
	StreamBuffer     int
}

// Engine drives one run through parsing, analysis, the risk gate and
// synthesis, reporting every transition as an event.
type Engine struct {
	builder  QueryBuilder
	coord    *pipeline.Coordinator
	gate     RiskGate
	synth    synthesis.Synthesizer
	settings Settings
	observer Observer
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

type Option func(*Engine)

func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

func NewEngine(builder QueryBuilder, coord *pipeline.Coordinator, gate RiskGate, synth synthesis.Synthesizer, s Settings, opts ...Option) (*Engine, error) {
	switch {
	case builder == nil:
		return nil, errors.New("workflow: query builder is required")
	case coord == nil:
		return nil, errors.New("workflow: coordinator is required")
	case gate == nil:
		return nil, errors.New("workflow: risk gate is required")
	case synth == nil:
		return nil, errors.New("workflow: synthesizer is required")
	}
	e := &Engine{
		builder:  builder,
		coord:    coord,
		gate:     gate,
		synth:    synth,
		settings: s,
		observer: nopObserver{},
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Settings() Settings { return e.settings }

// Tasks lists the registered analysis tasks.
func (e *Engine) Tasks() []string { return e.coord.Names() }

// Stream starts a run in the background. The channel is closed after the
// terminal event, or as soon as ctx is cancelled.
func (e *Engine) Stream(ctx context.Context, raw string) <-chan stream.Event {
	sink := stream.NewChannelSink(e.settings.StreamBuffer)
	go func() {
		defer sink.Close()
		_, _ = e.Run(ctx, raw, sink)
	}()
	return sink.Events()
}

// Analyze runs synchronously and returns only the terminal state.
func (e *Engine) Analyze(ctx context.Context, raw string) (model.RunState, error) {
	return e.Run(ctx, raw, stream.Discard)
}

// run carries the mutable bookkeeping of one execution.
type run struct {
	e       *Engine
	caller  context.Context
	ctx     context.Context
	emitter *stream.Emitter
	state   model.RunState
	log     *slog.Logger
	span    trace.Span
}

// Run executes one request and publishes its events to sink. The returned
// error is nil when the run reached done.
func (e *Engine) Run(ctx context.Context, raw string, sink stream.Sink) (model.RunState, error) {
	runID := e.newID()
	runCtx := ctx
	if e.settings.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.settings.RunTimeout)
		defer cancel()
	}
	runCtx, span := e.tracer.Start(runCtx, "workflow.run", trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	r := &run{
		e:       e,
		caller:  ctx,
		ctx:     runCtx,
		emitter: stream.NewEmitter(runID, sink, e.now),
		state:   model.NewRunState(runID, e.now().UTC()),
		log:     logger.With("run_id", runID),
		span:    span,
	}
	e.observer.RunStarted()
	err := r.execute(raw)
	action := model.Action("")
	if r.state.Decision != nil {
		action = r.state.Decision.Action
	}
	e.observer.RunFinished(r.state.State, action, e.now().Sub(r.state.StartedAt))
	return r.state, err
}

func (r *run) execute(raw string) error {
	r.log.Info("run started", "query", raw)
	r.emit(stream.EventStart, stream.StartData{RunID: r.state.RunID, Query: raw})

	if err := r.advance(model.StateParsing); err != nil {
		return r.fail(err)
	}
	qc := r.parse(raw)
	if err := r.interrupted(); err != nil {
		return r.abort(err)
	}
	r.state = r.state.Merge(model.Delta{Query: &qc})
	if err := r.advance(model.StateAnalyzing); err != nil {
		return r.fail(err)
	}
	r.emit(stream.EventQueryParsed, stream.QueryParsedData{Context: qc})

	results := r.analyze(qc)
	if err := r.interrupted(); err != nil {
		return r.abort(err)
	}
	r.state = r.state.Merge(model.Delta{Results: results})
	if err := r.advance(model.StateRiskCheck); err != nil {
		return r.fail(err)
	}

	decision := r.e.gate.Evaluate(r.state)
	r.e.observer.RiskEvaluated(decision)
	r.state = r.state.Merge(model.Delta{Risk: &decision})
	r.span.SetAttributes(attribute.Bool("risk.approved", decision.Approved))
	r.log.Info("risk gate evaluated", "approved", decision.Approved, "reasons", decision.Reasons)

	r.emit(stream.EventRiskUpdate, stream.RiskUpdateData{RiskDecision: decision})

	if !decision.Approved {
		// rejected runs never reach the synthesizer
		wait := model.WaitDecision(decision)
		r.state = r.state.Merge(model.Delta{Decision: &wait})
		return r.complete()
	}
	if err := r.advance(model.StateSynthesizing); err != nil {
		return r.fail(err)
	}

	final, err := r.synthesize()
	if err != nil {
		if ierr := r.interrupted(); ierr != nil {
			return r.abort(ierr)
		}
		return r.fail(err)
	}
	r.state = r.state.Merge(model.Delta{Decision: &final})
	r.emit(stream.EventDecision, stream.DecisionData{FinalDecision: final})
	return r.complete()
}

func (r *run) parse(raw string) model.QueryContext {
	ctx, span := r.e.tracer.Start(r.ctx, "workflow.parse")
	defer span.End()
	qc := r.e.builder.Build(ctx, raw)
	if qc.Degraded {
		span.AddEvent(ErrParseDegraded.Error())
		r.log.Warn("query context degraded", "pair", qc.Pair())
	}
	span.SetAttributes(attribute.String("query.pair", qc.Pair()), attribute.Bool("query.degraded", qc.Degraded))
	return qc
}

func (r *run) analyze(qc model.QueryContext) map[string]model.AgentResult {
	ctx, span := r.e.tracer.Start(r.ctx, "workflow.analyze", trace.WithAttributes(attribute.Int("tasks", r.e.coord.Size())))
	defer span.End()
	total := r.e.coord.Size()
	completed := 0
	return r.e.coord.Run(ctx, qc, func(res model.AgentResult) {
		completed++
		r.e.observer.TaskFinished(res)
		if res.Success {
			r.log.Info("task finished", "task", res.Task, "elapsed_ms", res.ElapsedMS)
		} else {
			r.log.Warn("task failed", "task", res.Task, "error", res.Error)
		}
		r.emit(stream.EventAgentUpdate, stream.NewAgentUpdate(res, completed, total))
	})
}

// synthesize runs the synthesizer under its own budget. A synthesizer that
// ignores its context is abandoned when the budget ends.
func (r *run) synthesize() (model.FinalDecision, error) {
	ctx, span := r.e.tracer.Start(r.ctx, "workflow.synthesize")
	defer span.End()
	if d := r.e.settings.SynthesisTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	type outcome struct {
		decision model.FinalDecision
		err      error
	}
	done := make(chan outcome, 1)
	state := r.state
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("synthesizer panicked", "panic", rec, "stack", string(debug.Stack()))
				done <- outcome{err: fmt.Errorf("%w: panic: %v", ErrSynthesisFailed, rec)}
			}
		}()
		d, err := r.e.synth.Synthesize(ctx, state)
		done <- outcome{decision: d, err: err}
	}()

	var out outcome
	expired := false
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
		expired = true
	}
	out.err = r.classifySynthesis(out.decision, out.err, expired || (out.err != nil && ctx.Err() != nil))
	if out.err != nil {
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
		return model.FinalDecision{}, out.err
	}
	span.SetAttributes(attribute.String("decision.action", string(out.decision.Action)))
	return out.decision, nil
}

// classifySynthesis maps a synthesizer outcome onto the run's error taxonomy.
// budgetSpent is true only when the synthesis budget, not the synthesizer,
// ended the call.
func (r *run) classifySynthesis(d model.FinalDecision, err error, budgetSpent bool) error {
	switch {
	case budgetSpent && r.ctx.Err() == nil:
		return fmt.Errorf("%w after %s", ErrSynthesisTimeout, r.e.settings.SynthesisTimeout)
	case err != nil && errors.Is(err, ErrSynthesisFailed):
		return err
	case err != nil:
		return fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	if verr := d.Validate(); verr != nil {
		return fmt.Errorf("%w: %v", ErrSynthesisFailed, verr)
	}
	return nil
}

// interrupted distinguishes caller cancellation from the run budget.
func (r *run) interrupted() error {
	switch {
	case r.caller.Err() != nil:
		return ErrCancelled
	case r.ctx.Err() != nil:
		return fmt.Errorf("%w after %s", ErrRunTimeout, r.e.settings.RunTimeout)
	}
	return nil
}

func (r *run) abort(err error) error {
	if errors.Is(err, ErrCancelled) {
		r.log.Info("run cancelled by caller", "state", r.state.State)
		r.span.SetStatus(codes.Error, "cancelled")
		r.state = r.state.Merge(model.Delta{State: model.StateFailed, Error: ErrCancelled.Error(), FinishedAt: r.e.now().UTC()})
		return err
	}
	return r.fail(err)
}

func (r *run) advance(next model.WorkflowState) error {
	if !model.CanTransition(r.state.State, next) {
		return fmt.Errorf("illegal transition %s -> %s", r.state.State, next)
	}
	r.log.Debug("state transition", "from", r.state.State, "to", next)
	r.state = r.state.Merge(model.Delta{State: next})
	return nil
}

func (r *run) complete() error {
	if err := r.advance(model.StateDone); err != nil {
		return r.fail(err)
	}
	r.state = r.state.Merge(model.Delta{FinishedAt: r.e.now().UTC()})
	data := stream.CompleteData{
		State:      model.StateDone,
		DurationMS: r.state.FinishedAt.Sub(r.state.StartedAt).Milliseconds(),
	}
	if r.state.Decision != nil {
		data.Action = r.state.Decision.Action
	}
	r.log.Info("run complete", "action", data.Action, "duration_ms", data.DurationMS)
	r.emit(stream.EventComplete, data)
	return nil
}

func (r *run) fail(err error) error {
	msg := userMessage(err)
	r.log.Error("run failed", "state", r.state.State, "error", err)
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, err.Error())
	r.state = r.state.Merge(model.Delta{State: model.StateFailed, Error: msg, FinishedAt: r.e.now().UTC()})
	r.emit(stream.EventError, stream.ErrorData{Message: msg})
	return err
}

// emit uses the caller's context: the run budget expiring must not silence
// the error event, only the caller leaving may.
func (r *run) emit(typ stream.EventType, data any) {
	if !r.emitter.Emit(r.caller, typ, data) && r.caller.Err() == nil {
		r.log.Debug("event dropped", "type", typ)
	}
}
