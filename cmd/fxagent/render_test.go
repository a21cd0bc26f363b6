package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"fxagent/internal/model"
	"fxagent/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRejectedRun(t *testing.T) {
	st := model.NewRunState("run-7", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	st.State = model.StateDone
	st.Query = model.QueryContext{Base: "EUR", Quote: "USD", Category: model.CategoryForex}
	st.Results = map[string]model.AgentResult{
		"technical": model.Succeeded("technical", struct{}{}, "bullish"),
		"news":      model.Failed("news", "task timed out"),
	}
	risk := model.RiskDecision{Reasons: []string{"stop loss too tight"}}
	st.Risk = &risk
	wait := model.WaitDecision(risk)
	st.Decision = &wait

	out := renderRun(st)
	assert.Contains(t, out, "run-7")
	assert.Contains(t, out, "EUR/USD")
	assert.Contains(t, out, "rejected")
	assert.Contains(t, out, "stop loss too tight")
	assert.Contains(t, out, "task timed out")
	assert.Contains(t, out, "WAIT")
}

func TestRenderEvent(t *testing.T) {
	ev := stream.Event{Type: stream.EventAgentUpdate, Seq: 3, Data: stream.AgentUpdateData{Task: "news", Success: true, Completed: 1, Total: 3}}
	line := renderEvent(ev)
	assert.True(t, strings.HasPrefix(line, "[03] agent_update"))
	assert.Contains(t, line, "news 1/3")
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "fxagent dev")
}

func TestAnalyzeRequiresQuery(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"analyze"})
	assert.Error(t, cmd.Execute())
}
