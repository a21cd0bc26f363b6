package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fxagent/internal/gateway/provider"
	"fxagent/internal/model"
	"fxagent/internal/pkg/jsonutil"

	"github.com/tidwall/gjson"
)

// Parser turns free text into a structured context.
type Parser interface {
	Parse(ctx context.Context, raw string) (model.QueryContext, error)
}

var ErrNoSubject = errors.New("no tradable subject in query")

const parserSystemPrompt = `You extract trading request parameters.
Reply with ONE JSON object and nothing else:
{"base":"EUR","quote":"USD","category":"forex|commodity|crypto","timeframe":"15m|1h|4h|1d|1w or empty","intent":"analyze|buy|sell","risk_tolerance":"conservative|moderate|aggressive"}
Use ISO currency codes, XAU/XAG for metals, WTI/BRENT for oil, and USDT as the quote for crypto.
Leave base empty when no instrument is mentioned.`

// LLMParser asks a chat model for the context.
type LLMParser struct {
	model provider.ModelProvider
}

func NewLLMParser(m provider.ModelProvider) *LLMParser {
	return &LLMParser{model: m}
}

func (p *LLMParser) Parse(ctx context.Context, raw string) (model.QueryContext, error) {
	out, err := p.model.Call(ctx, provider.ChatPayload{
		System:     parserSystemPrompt,
		User:       raw,
		ExpectJSON: true,
		MaxTokens:  200,
		Purpose:    "parse",
	})
	if err != nil {
		return model.QueryContext{}, err
	}
	return decodeContext(raw, out)
}

func decodeContext(raw, reply string) (model.QueryContext, error) {
	obj, ok := jsonutil.ExtractObject(reply)
	if !ok || !gjson.Valid(obj) {
		return model.QueryContext{}, fmt.Errorf("parser reply is not a JSON object")
	}
	res := gjson.Parse(obj)
	qc := model.QueryContext{
		Raw:           raw,
		Base:          res.Get("base").String(),
		Quote:         res.Get("quote").String(),
		Category:      model.Category(strings.ToLower(res.Get("category").String())),
		Timeframe:     res.Get("timeframe").String(),
		Intent:        model.Intent(strings.ToLower(res.Get("intent").String())),
		RiskTolerance: model.RiskTolerance(strings.ToLower(res.Get("risk_tolerance").String())),
	}
	if qc.Base == "" {
		if pair := res.Get("pair").String(); pair != "" {
			qc.Base, qc.Quote, _ = SplitPair(pair)
		}
	}
	qc = qc.Normalize()
	if !qc.HasSubject() {
		return qc, ErrNoSubject
	}
	switch qc.Category {
	case model.CategoryForex, model.CategoryCommodity, model.CategoryCrypto:
	default:
		qc.Category = Classify(qc.Base, qc.Quote)
	}
	return qc, nil
}
