package model

import (
	"encoding/json"
	"strings"
)

// Category groups instruments that share pricing conventions.
type Category string

const (
	CategoryForex     Category = "forex"
	CategoryCommodity Category = "commodity"
	CategoryCrypto    Category = "crypto"
	CategoryUnknown   Category = "unknown"
)

type Intent string

const (
	IntentAnalyze Intent = "analyze"
	IntentBuy     Intent = "buy"
	IntentSell    Intent = "sell"
)

type RiskTolerance string

const (
	RiskConservative RiskTolerance = "conservative"
	RiskModerate     RiskTolerance = "moderate"
	RiskAggressive   RiskTolerance = "aggressive"
)

// QueryContext is the structured form of the user's free-text request.
// Base/Quote identify the subject; Pair() is derived from them.
type QueryContext struct {
	Raw           string        `json:"raw"`
	Base          string        `json:"base"`
	Quote         string        `json:"quote"`
	Category      Category      `json:"category"`
	Timeframe     string        `json:"timeframe"`
	Intent        Intent        `json:"intent"`
	RiskTolerance RiskTolerance `json:"risk_tolerance"`
	Degraded      bool          `json:"degraded"`
}

// Pair returns the legacy "BASE/QUOTE" identifier.
func (q QueryContext) Pair() string {
	base := strings.ToUpper(strings.TrimSpace(q.Base))
	quote := strings.ToUpper(strings.TrimSpace(q.Quote))
	if base == "" {
		return ""
	}
	if quote == "" {
		return base
	}
	return base + "/" + quote
}

// HasSubject reports whether a tradable subject was identified.
func (q QueryContext) HasSubject() bool {
	return strings.TrimSpace(q.Base) != ""
}

// MarshalJSON adds the derived pair field for clients that still read it.
func (q QueryContext) MarshalJSON() ([]byte, error) {
	type alias QueryContext
	return json.Marshal(struct {
		alias
		Pair string `json:"pair"`
	}{alias: alias(q), Pair: q.Pair()})
}

// Normalize upper-cases the subject and fills unset enum fields.
func (q QueryContext) Normalize() QueryContext {
	q.Base = strings.ToUpper(strings.TrimSpace(q.Base))
	q.Quote = strings.ToUpper(strings.TrimSpace(q.Quote))
	q.Timeframe = strings.ToLower(strings.TrimSpace(q.Timeframe))
	if q.Category == "" {
		q.Category = CategoryUnknown
	}
	switch q.Intent {
	case IntentBuy, IntentSell, IntentAnalyze:
	default:
		q.Intent = IntentAnalyze
	}
	switch q.RiskTolerance {
	case RiskConservative, RiskModerate, RiskAggressive:
	default:
		q.RiskTolerance = RiskModerate
	}
	return q
}
