package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"fxagent/internal/gateway/provider"
	"fxagent/internal/model"
	"fxagent/internal/pkg/jsonutil"
	"fxagent/internal/pkg/text"

	"github.com/tidwall/gjson"
)

// NewsDigest is the news task payload. Sentiment is in [-1, 1].
type NewsDigest struct {
	Sentiment float64          `json:"sentiment"`
	Label     string           `json:"label"`
	Summary   string           `json:"summary"`
	Events    []string         `json:"key_events,omitempty"`
	Headlines []model.Citation `json:"headlines,omitempty"`
	Offline   bool             `json:"offline"`
}

const newsSystemPrompt = `You are a macro and FX news analyst.
Summarise the news flow that matters for the instrument over the last week.
Reply with ONE JSON object:
{"sentiment": number between -1 (bearish for the base) and 1 (bullish),
 "summary": "two or three sentences",
 "key_events": ["..."],
 "headlines": [{"title": "...", "url": "..."}]}`

// NewsAnalyst asks the news model for a sentiment digest. Without a model
// it reports a neutral offline digest.
type NewsAnalyst struct {
	model provider.ModelProvider
	now   func() time.Time
}

func NewNewsAnalyst(m provider.ModelProvider, now func() time.Time) *NewsAnalyst {
	if now == nil {
		now = time.Now
	}
	return &NewsAnalyst{model: m, now: now}
}

func (n *NewsAnalyst) Name() string { return TaskNews }

func (n *NewsAnalyst) Run(ctx context.Context, qc model.QueryContext) model.AgentResult {
	if n.model == nil {
		d := &NewsDigest{
			Label:   "neutral",
			Summary: "no news source configured; sentiment treated as neutral",
			Offline: true,
		}
		return model.Succeeded(TaskNews, d, "news offline, neutral sentiment")
	}
	user := fmt.Sprintf("Instrument: %s (%s)\nDate: %s\nTrader intent: %s",
		qc.Pair(), qc.Category, n.now().UTC().Format("2006-01-02"), qc.Intent)
	raw, err := n.model.Call(ctx, provider.ChatPayload{
		System:     newsSystemPrompt,
		User:       user,
		ExpectJSON: true,
		MaxTokens:  800,
		Purpose:    "news",
	})
	if err != nil {
		return model.Failed(TaskNews, fmt.Sprintf("news model: %v", err))
	}
	d, err := decodeDigest(raw)
	if err != nil {
		return model.Failed(TaskNews, err.Error())
	}
	return model.Succeeded(TaskNews, d, fmt.Sprintf("news sentiment %s (%+.2f)", d.Label, d.Sentiment))
}

func decodeDigest(raw string) (*NewsDigest, error) {
	obj, ok := jsonutil.ExtractObject(raw)
	if !ok || !gjson.Valid(obj) {
		return nil, fmt.Errorf("news reply is not a JSON object: %q", text.Truncate(raw, 80))
	}
	res := gjson.Parse(obj)
	if !res.Get("sentiment").Exists() {
		return nil, fmt.Errorf("news reply missing sentiment")
	}
	d := &NewsDigest{
		Sentiment: math.Round(clamp(res.Get("sentiment").Float(), -1, 1)*100) / 100,
		Summary:   strings.TrimSpace(res.Get("summary").String()),
	}
	res.Get("key_events").ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			d.Events = append(d.Events, s)
		}
		return true
	})
	res.Get("headlines").ForEach(func(_, v gjson.Result) bool {
		c := model.Citation{Title: v.Get("title").String(), URL: v.Get("url").String()}
		if c.Title != "" || c.URL != "" {
			d.Headlines = append(d.Headlines, c)
		}
		return true
	})
	d.Label = sentimentLabel(d.Sentiment)
	return d, nil
}

func sentimentLabel(v float64) string {
	switch {
	case v >= 0.2:
		return "bullish"
	case v <= -0.2:
		return "bearish"
	}
	return "neutral"
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
