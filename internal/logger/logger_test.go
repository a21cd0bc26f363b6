package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" warning "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestLevelFiltersRecords(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	SetLevel("warn")
	defer SetLevel("info")

	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	With("run_id", "r-1").Warn("tagged")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "run_id=r-1")
}

func TestTranscriptWriter(t *testing.T) {
	var buf bytes.Buffer
	SetLLMWriter(&buf)
	defer SetLLMWriter(nil)

	LogLLMRequest("gpt", "synthesis", "sys", "user prompt")
	LogLLMResponse("gpt", "synthesis", `{"action":"WAIT"}`)

	out := buf.String()
	assert.Contains(t, out, "[llm][request][gpt][synthesis]")
	assert.Contains(t, out, "--- USER ---\nuser prompt\n")
	assert.Equal(t, 2, strings.Count(out, "====="))

	SetLLMWriter(nil)
	LogLLMResponse("gpt", "synthesis", "dropped")
	assert.NotContains(t, buf.String(), "dropped")
}
