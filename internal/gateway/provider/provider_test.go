package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fxagent/internal/config"
	"fxagent/internal/pkg/circuit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func TestCompletionsURL(t *testing.T) {
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", completionsURL(""))
	assert.Equal(t, "http://x/v1/chat/completions", completionsURL("http://x/v1/"))
	assert.Equal(t, "http://x/v1/chat/completions", completionsURL("http://x/v1/chat/completions"))
}

func TestCallSendsRequestAndReadsReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-x", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "json_object", req.ResponseFormat["type"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClient(ClientConfig{ID: "m", BaseURL: srv.URL + "/v1", APIKey: "sk-test", Model: "gpt-x", Headers: map[string]string{"X-Extra": "yes"}})
	out, err := c.Call(context.Background(), ChatPayload{System: "sys", User: "hi", ExpectJSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestCallRetriesRetryableStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"done"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClient(ClientConfig{ID: "m", BaseURL: srv.URL, MaxRetries: 2})
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	out, err := c.Call(context.Background(), ChatPayload{User: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, waits)
}

func TestCallDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIChatClient(ClientConfig{ID: "m", BaseURL: srv.URL, MaxRetries: 3})
	c.sleep = noSleep
	_, err := c.Call(context.Background(), ChatPayload{User: "hi"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.Status)
	assert.Equal(t, "bad key", se.Message)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCallEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()
	_, err := NewOpenAIChatClient(ClientConfig{ID: "m", BaseURL: srv.URL}).Call(context.Background(), ChatPayload{User: "x"})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestMaskedHeaders(t *testing.T) {
	c := NewOpenAIChatClient(ClientConfig{APIKey: "sk-123456789", Headers: map[string]string{"X-Api-Key": "secretvalue", "X-Trace": "abc"}})
	h := c.maskedHeaders()
	assert.Equal(t, "Bearer ****6789", h["Authorization"])
	assert.Equal(t, "****alue", h["X-Api-Key"])
	assert.Equal(t, "abc", h["X-Trace"])
}

type stubProvider struct {
	err   error
	calls int
}

func (s *stubProvider) ID() string { return "stub" }

func (s *stubProvider) Call(ctx context.Context, p ChatPayload) (string, error) {
	s.calls++
	return "ok", s.err
}

func TestGuardedOpensAfterFailures(t *testing.T) {
	inner := &stubProvider{err: errors.New("boom")}
	cb := circuit.NewCircuitBreaker("stub", 2, time.Hour)
	cb.SetStateChangeHandler(func(string, circuit.State, circuit.State) {})
	g := NewGuarded(inner, cb)

	for i := 0; i < 2; i++ {
		_, err := g.Call(context.Background(), ChatPayload{})
		assert.Error(t, err)
	}
	_, err := g.Call(context.Background(), ChatPayload{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "stub", g.ID())
}

func TestGuardedIgnoresCallerCancel(t *testing.T) {
	inner := &stubProvider{err: context.Canceled}
	cb := circuit.NewCircuitBreaker("stub", 1, time.Hour)
	g := NewGuarded(inner, cb)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = g.Call(ctx, ChatPayload{})
	assert.Equal(t, circuit.StateClosed, cb.State())
}

func TestBuildProvidersSkipsDisabled(t *testing.T) {
	off := false
	cfg := config.Default().AI
	cfg.ProviderPresets = map[string]config.ModelPreset{"p": {APIURL: "http://local/v1"}}
	cfg.Models = []config.AIModelConfig{
		{ID: "a", Preset: "p", Model: "m1"},
		{ID: "b", Preset: "p", Model: "m2", Enabled: &off},
	}
	providers, err := BuildProviders(cfg)
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.NotNil(t, Pick(providers, "a"))
	assert.Nil(t, Pick(providers, "b"))
	assert.Nil(t, Pick(providers, ""))

	cfg.Models = append(cfg.Models, config.AIModelConfig{ID: "c", Preset: "missing"})
	_, err = BuildProviders(cfg)
	assert.Error(t, err)
}

func TestBuildProvidersInstallsBreakerHook(t *testing.T) {
	cfg := config.Default().AI
	cfg.BreakerFailures = 1
	cfg.ProviderPresets = map[string]config.ModelPreset{"p": {APIURL: "http://local/v1"}}
	cfg.Models = []config.AIModelConfig{{ID: "a", Preset: "p", Model: "m1"}}

	var seen []string
	providers, err := BuildProviders(cfg, WithBreakerHook(func(name string, from, to circuit.State) {
		seen = append(seen, name+":"+to.String())
	}))
	require.NoError(t, err)
	g, ok := providers["a"].(*Guarded)
	require.True(t, ok)

	g.breaker.RecordFailure()
	assert.Equal(t, []string{"model:a:OPEN"}, seen)
}
