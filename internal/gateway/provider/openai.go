package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fxagent/internal/logger"
)

// OpenAIChatClient speaks the /chat/completions protocol shared by OpenAI,
// DeepSeek, Qwen, Gemini's compatibility endpoint and local servers.
type OpenAIChatClient struct {
	id          string
	baseURL     string
	apiKey      string
	model       string
	headers     map[string]string
	temperature float64
	maxRetries  int
	httpClient  *http.Client
	sleep       func(ctx context.Context, d time.Duration) error
}

// ClientConfig is the resolved endpoint for one model.
type ClientConfig struct {
	ID          string
	BaseURL     string
	APIKey      string
	Model       string
	Headers     map[string]string
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	HTTPClient  *http.Client
}

func NewOpenAIChatClient(cfg ClientConfig) *OpenAIChatClient {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &OpenAIChatClient{
		id:          cfg.ID,
		baseURL:     completionsURL(cfg.BaseURL),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		headers:     cfg.Headers,
		temperature: cfg.Temperature,
		maxRetries:  retries,
		httpClient:  hc,
		sleep:       sleepCtx,
	}
}

func (c *OpenAIChatClient) ID() string { return c.id }

func completionsURL(base string) string {
	url := strings.TrimRight(strings.TrimSpace(base), "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Call sends the payload, retrying 429/5xx with Retry-After or exponential
// backoff. ctx cancellation aborts both the request and the backoff wait.
func (c *OpenAIChatClient) Call(ctx context.Context, payload ChatPayload) (string, error) {
	req := chatRequest{Model: c.model, Temperature: c.temperature, MaxTokens: payload.MaxTokens}
	if payload.Temperature > 0 {
		req.Temperature = payload.Temperature
	}
	if payload.System != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: payload.System})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: payload.User})
	if payload.ExpectJSON {
		req.ResponseFormat = map[string]any{"type": "json_object"}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	logger.Debugf("[ai] POST %s model=%s headers=%v", c.baseURL, c.model, c.maskedHeaders())
	logger.LogLLMRequest(c.id, payload.Purpose, payload.System, payload.User)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		out, wait, err := c.do(ctx, body)
		if err == nil {
			logger.LogLLMResponse(c.id, payload.Purpose, out)
			return out, nil
		}
		lastErr = err
		var se *StatusError
		if !errors.As(err, &se) || !se.Retryable() || attempt == c.maxRetries {
			break
		}
		if wait <= 0 {
			wait = (800 * time.Millisecond) << attempt
			if wait > 8*time.Second {
				wait = 8 * time.Second
			}
		}
		logger.Warnf("[ai] %s attempt %d failed (%v), retrying in %s", c.id, attempt+1, err, wait)
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("model %s: %w", c.id, lastErr)
}

func (c *OpenAIChatClient) do(ctx context.Context, body []byte) (string, time.Duration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		var r chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return "", 0, fmt.Errorf("decode response: %w", err)
		}
		if len(r.Choices) == 0 {
			return "", 0, ErrEmptyResponse
		}
		return r.Choices[0].Message.Content, 0, nil
	}
	var eresp errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&eresp)
	msg := strings.TrimSpace(eresp.Error.Message)
	if msg == "" {
		msg = resp.Status
	}
	var wait time.Duration
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if secs, perr := strconv.Atoi(ra); perr == nil {
			wait = time.Duration(secs) * time.Second
		}
	}
	return "", wait, &StatusError{Status: resp.StatusCode, Message: msg}
}

func (c *OpenAIChatClient) maskedHeaders() map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if c.apiKey != "" {
		out["Authorization"] = "Bearer " + maskTail(c.apiKey)
	}
	for k, v := range c.headers {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "key") || strings.Contains(lk, "token") || strings.Contains(lk, "auth") {
			v = maskTail(v)
		}
		out[k] = v
	}
	return out
}

func maskTail(v string) string {
	if len(v) > 4 {
		return "****" + v[len(v)-4:]
	}
	return "****"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
