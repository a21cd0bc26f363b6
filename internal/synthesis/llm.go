package synthesis

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"fxagent/internal/gateway/provider"
	"fxagent/internal/model"
	"fxagent/internal/pkg/jsonutil"
	"fxagent/internal/pkg/text"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

var (
	//go:embed prompt.tmpl
	promptTemplate string
	//go:embed system.txt
	systemPrompt string
	//go:embed schema.json
	decisionSchema string
)

var ErrInvalidReply = errors.New("synthesis reply rejected")

// LLMSynthesizer asks the synthesis model for the final call.
type LLMSynthesizer struct {
	model    provider.ModelProvider
	settings Settings
	tmpl     *template.Template
	schema   *jsonschema.Schema
}

func NewLLMSynthesizer(m provider.ModelProvider, s Settings) (*LLMSynthesizer, error) {
	if m == nil {
		return nil, errors.New("synthesis model is required")
	}
	tmpl, err := template.New("synthesis").Parse(promptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse synthesis prompt: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("decision.json", strings.NewReader(decisionSchema)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("decision.json")
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}
	return &LLMSynthesizer{model: m, settings: s, tmpl: tmpl, schema: schema}, nil
}

type promptReport struct {
	Task    string
	Success bool
	Summary string
	Error   string
	Payload string
}

type promptData struct {
	Query   model.QueryContext
	Reports []promptReport
	Risk    model.RiskDecision
}

// Prompt renders the user message for state.
func (l *LLMSynthesizer) Prompt(state model.RunState) (string, error) {
	data := promptData{Query: state.Query}
	if state.Risk != nil {
		data.Risk = *state.Risk
	}
	names := make([]string, 0, len(state.Results))
	for name := range state.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := state.Results[name]
		rep := promptReport{Task: name, Success: r.Success, Summary: r.Summary, Error: r.Error}
		if r.Success && r.Payload != nil {
			if raw, err := json.Marshal(r.Payload); err == nil {
				rep.Payload = jsonutil.Pretty(string(raw))
			}
		}
		data.Reports = append(data.Reports, rep)
	}
	var buf bytes.Buffer
	if err := l.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render synthesis prompt: %w", err)
	}
	return buf.String(), nil
}

func (l *LLMSynthesizer) Synthesize(ctx context.Context, state model.RunState) (model.FinalDecision, error) {
	user, err := l.Prompt(state)
	if err != nil {
		return model.FinalDecision{}, err
	}
	raw, err := l.model.Call(ctx, provider.ChatPayload{
		System:     systemPrompt,
		User:       user,
		ExpectJSON: true,
		MaxTokens:  1200,
		Purpose:    "synthesis",
	})
	if err != nil {
		return model.FinalDecision{}, err
	}
	d, err := l.decode(raw)
	if err != nil {
		return model.FinalDecision{}, err
	}
	return finalize(d, state.Risk, l.settings), nil
}

func (l *LLMSynthesizer) decode(raw string) (model.FinalDecision, error) {
	obj, ok := jsonutil.ExtractObject(raw)
	if !ok {
		return model.FinalDecision{}, fmt.Errorf("%w: no JSON object in %q", ErrInvalidReply, text.Truncate(raw, 80))
	}
	var doc any
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return model.FinalDecision{}, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	doc = sanitizeNumbers(doc)
	if err := l.schema.Validate(doc); err != nil {
		return model.FinalDecision{}, fmt.Errorf("%w: %v", ErrInvalidReply, err)
	}
	// re-encode so string numbers the model produced read as numbers
	clean, err := json.Marshal(doc)
	if err != nil {
		return model.FinalDecision{}, err
	}
	res := gjson.ParseBytes(clean)
	d := model.FinalDecision{
		Action:     parseAction(res.Get("action").String()),
		Confidence: res.Get("confidence").Float(),
		Reasoning:  strings.TrimSpace(res.Get("reasoning").String()),
		KeyFactors: stringList(res.Get("key_factors")),
		Risks:      stringList(res.Get("risks")),
	}
	if t := res.Get("trade"); t.IsObject() {
		d.Trade = &model.TradeParameters{
			Entry:      t.Get("entry").Float(),
			StopLoss:   t.Get("stop_loss").Float(),
			TakeProfit: t.Get("take_profit").Float(),
		}
	}
	res.Get("sources").ForEach(func(_, v gjson.Result) bool {
		c := model.Citation{Title: v.Get("title").String(), URL: v.Get("url").String()}
		if c.URL != "" || c.Title != "" {
			d.Citations = append(d.Citations, c)
		}
		return true
	})
	return d, nil
}

func stringList(res gjson.Result) []string {
	var out []string
	res.ForEach(func(_, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

var numericFields = map[string]bool{"confidence": true, "entry": true, "stop_loss": true, "take_profit": true}

// sanitizeNumbers turns quoted numeric fields into float64; models sometimes
// write "0.8" instead of 0.8.
func sanitizeNumbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if s, ok := child.(string); ok && numericFields[k] {
				if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
					out[k] = f
					continue
				}
			}
			out[k] = sanitizeNumbers(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = sanitizeNumbers(child)
		}
		return out
	default:
		return v
	}
}
