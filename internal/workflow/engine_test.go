package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fxagent/internal/config"
	"fxagent/internal/model"
	"fxagent/internal/pipeline"
	"fxagent/internal/risk"
	"fxagent/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type builderFunc func(ctx context.Context, raw string) model.QueryContext

func (f builderFunc) Build(ctx context.Context, raw string) model.QueryContext { return f(ctx, raw) }

type synthFunc func(ctx context.Context, st model.RunState) (model.FinalDecision, error)

func (f synthFunc) Synthesize(ctx context.Context, st model.RunState) (model.FinalDecision, error) {
	return f(ctx, st)
}

type setupPayload struct{ setup model.TradeSetup }

func (p setupPayload) TradeSetup() (model.TradeSetup, bool) { return p.setup, true }

var eurusd = builderFunc(func(_ context.Context, raw string) model.QueryContext {
	return model.QueryContext{Raw: raw, Base: "EUR", Quote: "USD", Category: model.CategoryForex}.Normalize()
})

func technical(setup model.TradeSetup) pipeline.Task {
	return pipeline.TaskFunc{TaskName: "technical", Fn: func(context.Context, model.QueryContext) model.AgentResult {
		return model.Succeeded("technical", setupPayload{setup}, "setup ready")
	}}
}

func okTask(name string) pipeline.Task {
	return pipeline.TaskFunc{TaskName: name, Fn: func(context.Context, model.QueryContext) model.AgentResult {
		return model.Succeeded(name, map[string]string{"view": "neutral"}, name+" done")
	}}
}

func blockingTask(name string) pipeline.Task {
	return pipeline.TaskFunc{TaskName: name, Fn: func(ctx context.Context, _ model.QueryContext) model.AgentResult {
		<-ctx.Done()
		return model.Failed(name, ctx.Err().Error())
	}}
}

var (
	tightStop = model.TradeSetup{Direction: model.DirectionBuy, Entry: 1.1, StopLoss: 1.0995, TakeProfit: 1.102}
	goodSetup = model.TradeSetup{Direction: model.DirectionBuy, Entry: 1.1, StopLoss: 1.096, TakeProfit: 1.108}
)

type fixture struct {
	tasks    []pipeline.Task
	taskTime time.Duration
	synth    synthFunc
	settings Settings
	observer *countingObserver
}

func (f fixture) engine(t *testing.T) *Engine {
	t.Helper()
	coord, err := pipeline.NewCoordinator(f.tasks, pipeline.WithTimeout(f.taskTime))
	require.NoError(t, err)
	gate := risk.NewGate(risk.SettingsFromConfig(config.Default().Risk))
	synth := f.synth
	if synth == nil {
		synth = buySynth(nil)
	}
	var seq atomic.Int64
	opts := []Option{WithIDGenerator(func() string { return "run-" + string(rune('a'+seq.Add(1)-1)) })}
	if f.observer != nil {
		opts = append(opts, WithObserver(f.observer))
	}
	e, err := NewEngine(eurusd, coord, gate, synth, f.settings, opts...)
	require.NoError(t, err)
	return e
}

func buySynth(calls *atomic.Int32) synthFunc {
	return func(ctx context.Context, st model.RunState) (model.FinalDecision, error) {
		if calls != nil {
			calls.Add(1)
		}
		return model.FinalDecision{
			Action:     model.ActionBuy,
			Confidence: 0.8,
			Reasoning:  "aligned",
			Trade:      &model.TradeParameters{Entry: st.Risk.Entry, StopLoss: st.Risk.StopLoss, TakeProfit: st.Risk.TakeProfit, PositionSize: st.Risk.PositionSize},
			Source:     model.SourceSynthesis,
		}, nil
	}
}

type countingObserver struct {
	mu       sync.Mutex
	started  int
	finished []model.WorkflowState
	tasks    int
	risks    int
}

func (o *countingObserver) RunStarted() {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *countingObserver) RunFinished(s model.WorkflowState, _ model.Action, _ time.Duration) {
	o.mu.Lock()
	o.finished = append(o.finished, s)
	o.mu.Unlock()
}

func (o *countingObserver) TaskFinished(model.AgentResult) {
	o.mu.Lock()
	o.tasks++
	o.mu.Unlock()
}

func (o *countingObserver) RiskEvaluated(model.RiskDecision) {
	o.mu.Lock()
	o.risks++
	o.mu.Unlock()
}

func TestRejectedSetupEndsWithWait(t *testing.T) {
	var calls atomic.Int32
	obs := &countingObserver{}
	e := fixture{
		tasks:    []pipeline.Task{technical(tightStop), okTask("news"), okTask("fundamental")},
		synth:    buySynth(&calls),
		observer: obs,
	}.engine(t)

	rec := &stream.Recorder{}
	st, err := e.Run(context.Background(), "eurusd", rec)
	require.NoError(t, err)

	assert.Equal(t, model.StateDone, st.State)
	require.NotNil(t, st.Risk)
	assert.False(t, st.Risk.Approved)
	assert.Contains(t, st.Risk.Reasons[0], "below the minimum")
	require.NotNil(t, st.Decision)
	assert.Equal(t, model.ActionWait, st.Decision.Action)
	assert.Equal(t, model.SourceRiskGate, st.Decision.Source)
	assert.Zero(t, calls.Load())

	types := rec.Types()
	assert.Equal(t, []stream.EventType{
		stream.EventStart, stream.EventQueryParsed,
		stream.EventAgentUpdate, stream.EventAgentUpdate, stream.EventAgentUpdate,
		stream.EventRiskUpdate, stream.EventComplete,
	}, types)
	last := rec.Events()[len(types)-1].Data.(stream.CompleteData)
	assert.Equal(t, model.ActionWait, last.Action)

	assert.Equal(t, 1, obs.started)
	assert.Equal(t, []model.WorkflowState{model.StateDone}, obs.finished)
	assert.Equal(t, 3, obs.tasks)
	assert.Equal(t, 1, obs.risks)
}

func TestApprovedSetupIsSynthesized(t *testing.T) {
	var calls atomic.Int32
	e := fixture{
		tasks: []pipeline.Task{technical(goodSetup), okTask("news"), okTask("fundamental")},
		synth: buySynth(&calls),
	}.engine(t)

	rec := &stream.Recorder{}
	st, err := e.Run(context.Background(), "buy eurusd", rec)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, st.Risk.Approved)
	assert.Equal(t, 40.0, st.Risk.StopDistance)
	assert.Equal(t, 2.0, st.Risk.RewardRisk)
	assert.Equal(t, model.ActionBuy, st.Decision.Action)
	assert.Len(t, st.Results, 3)
	assert.False(t, st.FinishedAt.IsZero())

	events := rec.Events()
	types := rec.Types()
	require.Len(t, types, 8)
	assert.Equal(t, stream.EventDecision, types[6])
	assert.Equal(t, stream.EventComplete, types[7])
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, st.RunID, ev.RunID)
	}
	update := events[4].Data.(stream.AgentUpdateData)
	assert.Equal(t, 3, update.Completed)
	assert.Equal(t, 3, update.Total)
}

func TestTaskTimeoutDoesNotStopTheRun(t *testing.T) {
	e := fixture{
		tasks:    []pipeline.Task{technical(goodSetup), blockingTask("news"), okTask("fundamental")},
		taskTime: 50 * time.Millisecond,
	}.engine(t)

	st, err := e.Analyze(context.Background(), "eurusd")
	require.NoError(t, err)
	require.Len(t, st.Results, 3)
	news := st.Results["news"]
	assert.False(t, news.Success)
	assert.Equal(t, "timeout", news.Error)
	assert.True(t, st.Risk.Approved)
	assert.Equal(t, model.StateDone, st.State)
}

func TestSynthesisFailureEndsWithSingleError(t *testing.T) {
	e := fixture{
		tasks: []pipeline.Task{technical(goodSetup), okTask("news"), okTask("fundamental")},
		synth: func(context.Context, model.RunState) (model.FinalDecision, error) {
			return model.FinalDecision{}, errors.New("model exploded")
		},
	}.engine(t)

	rec := &stream.Recorder{}
	st, err := e.Run(context.Background(), "eurusd", rec)
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.Equal(t, model.StateFailed, st.State)
	assert.Nil(t, st.Decision)

	types := rec.Types()
	assert.Equal(t, stream.EventError, types[len(types)-1])
	assert.NotContains(t, types, stream.EventComplete)
	assert.NotContains(t, types, stream.EventDecision)
	msg := rec.Events()[len(types)-1].Data.(stream.ErrorData).Message
	assert.NotContains(t, msg, "exploded")
	assert.Equal(t, msg, st.Error)
}

func TestSynthesisTimeout(t *testing.T) {
	e := fixture{
		tasks:    []pipeline.Task{technical(goodSetup)},
		settings: Settings{SynthesisTimeout: 30 * time.Millisecond},
		synth: func(ctx context.Context, _ model.RunState) (model.FinalDecision, error) {
			time.Sleep(time.Second)
			return model.FinalDecision{Action: model.ActionBuy}, nil
		},
	}.engine(t)

	start := time.Now()
	rec := &stream.Recorder{}
	_, err := e.Run(context.Background(), "eurusd", rec)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, err, ErrSynthesisTimeout)
	assert.Equal(t, stream.EventError, rec.Types()[len(rec.Types())-1])
}

func TestSynthesisPanicIsContained(t *testing.T) {
	e := fixture{
		tasks: []pipeline.Task{technical(goodSetup)},
		synth: func(context.Context, model.RunState) (model.FinalDecision, error) {
			panic("nil map")
		},
	}.engine(t)
	st, err := e.Analyze(context.Background(), "eurusd")
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.Equal(t, model.StateFailed, st.State)
}

func TestRunTimeoutFailsTheRun(t *testing.T) {
	e := fixture{
		tasks:    []pipeline.Task{technical(goodSetup), blockingTask("news")},
		settings: Settings{RunTimeout: 50 * time.Millisecond},
	}.engine(t)

	rec := &stream.Recorder{}
	st, err := e.Run(context.Background(), "eurusd", rec)
	assert.ErrorIs(t, err, ErrRunTimeout)
	assert.Equal(t, model.StateFailed, st.State)
	types := rec.Types()
	assert.Equal(t, stream.EventError, types[len(types)-1])
	assert.NotContains(t, types, stream.EventRiskUpdate)
}

func TestCallerCancelIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var mu sync.Mutex
	var seen []stream.EventType
	sink := stream.SinkFunc(func(_ context.Context, ev stream.Event) bool {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
		if ev.Type == stream.EventQueryParsed {
			cancel()
		}
		return true
	})
	e := fixture{tasks: []pipeline.Task{technical(goodSetup), blockingTask("news")}}.engine(t)

	st, err := e.Run(ctx, "eurusd", sink)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, model.StateFailed, st.State)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []stream.EventType{stream.EventStart, stream.EventQueryParsed}, seen)
}

func TestRunsAreDeterministic(t *testing.T) {
	e := fixture{tasks: []pipeline.Task{technical(goodSetup), okTask("news"), okTask("fundamental")}}.engine(t)
	first, second := &stream.Recorder{}, &stream.Recorder{}
	a, err := e.Run(context.Background(), "eurusd", first)
	require.NoError(t, err)
	b, err := e.Run(context.Background(), "eurusd", second)
	require.NoError(t, err)

	assert.Equal(t, a.Risk, b.Risk)
	assert.Equal(t, first.Types(), second.Types())
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestEventOrderIsSubsequenceOfLifecycle(t *testing.T) {
	lifecycle := []stream.EventType{stream.EventStart, stream.EventQueryParsed, stream.EventAgentUpdate,
		stream.EventRiskUpdate, stream.EventDecision, stream.EventComplete}
	rank := map[stream.EventType]int{}
	for i, typ := range lifecycle {
		rank[typ] = i
	}
	rank[stream.EventError] = len(lifecycle)

	for _, setup := range []model.TradeSetup{tightStop, goodSetup} {
		e := fixture{tasks: []pipeline.Task{technical(setup), okTask("news")}}.engine(t)
		rec := &stream.Recorder{}
		_, _ = e.Run(context.Background(), "eurusd", rec)
		prev := -1
		for _, typ := range rec.Types() {
			assert.GreaterOrEqual(t, rank[typ], prev, "%v out of order", typ)
			prev = rank[typ]
		}
	}
}

func TestStreamClosesAfterTerminalEvent(t *testing.T) {
	e := fixture{
		tasks:    []pipeline.Task{technical(goodSetup), okTask("news"), okTask("fundamental")},
		settings: Settings{StreamBuffer: 1},
	}.engine(t)

	var got []stream.Event
	for ev := range e.Stream(context.Background(), "eurusd") {
		got = append(got, ev)
	}
	require.NotEmpty(t, got)
	assert.Equal(t, stream.EventStart, got[0].Type)
	assert.Equal(t, stream.EventComplete, got[len(got)-1].Type)
	for i, ev := range got {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
}

func TestNewEngineValidatesDependencies(t *testing.T) {
	coord, err := pipeline.NewCoordinator([]pipeline.Task{okTask("news")})
	require.NoError(t, err)
	gate := risk.NewGate(risk.Settings{})
	_, err = NewEngine(nil, coord, gate, buySynth(nil), Settings{})
	assert.Error(t, err)
	_, err = NewEngine(eurusd, nil, gate, buySynth(nil), Settings{})
	assert.Error(t, err)
	_, err = NewEngine(eurusd, coord, nil, buySynth(nil), Settings{})
	assert.Error(t, err)
	_, err = NewEngine(eurusd, coord, gate, nil, Settings{})
	assert.Error(t, err)

	e, err := NewEngine(eurusd, coord, gate, buySynth(nil), Settings{})
	require.NoError(t, err)
	assert.Equal(t, []string{"news"}, e.Tasks())
}

func TestOutOfRangeDecisionFailsTheRun(t *testing.T) {
	for name, bad := range map[string]model.FinalDecision{
		"action":     {Action: "HOLD", Confidence: 0.5},
		"confidence": {Action: model.ActionBuy, Confidence: 5},
	} {
		t.Run(name, func(t *testing.T) {
			e := fixture{
				tasks: []pipeline.Task{technical(goodSetup)},
				synth: func(context.Context, model.RunState) (model.FinalDecision, error) { return bad, nil },
			}.engine(t)

			rec := &stream.Recorder{}
			st, err := e.Run(context.Background(), "eurusd", rec)
			assert.ErrorIs(t, err, ErrSynthesisFailed)
			assert.Equal(t, model.StateFailed, st.State)
			assert.Nil(t, st.Decision)
			assert.NotContains(t, rec.Types(), stream.EventDecision)
		})
	}
}

func TestClassifySynthesisOnlyTimesOutOnSpentBudget(t *testing.T) {
	e := fixture{tasks: []pipeline.Task{okTask("news")}, settings: Settings{SynthesisTimeout: time.Second}}.engine(t)
	r := &run{e: e, ctx: context.Background()}
	good := model.FinalDecision{Action: model.ActionWait, Confidence: 0.4}

	assert.NoError(t, r.classifySynthesis(good, nil, false))
	assert.ErrorIs(t, r.classifySynthesis(good, context.DeadlineExceeded, true), ErrSynthesisTimeout)
	assert.ErrorIs(t, r.classifySynthesis(model.FinalDecision{}, errors.New("bad json"), false), ErrSynthesisFailed)

	gone, cancel := context.WithCancel(context.Background())
	cancel()
	r.ctx = gone
	err := r.classifySynthesis(good, context.Canceled, true)
	assert.ErrorIs(t, err, ErrSynthesisFailed)
	assert.NotErrorIs(t, err, ErrSynthesisTimeout)
}
