package query

import (
	"regexp"
	"strings"

	"fxagent/internal/model"
)

var (
	tokenRe     = regexp.MustCompile(`[a-z0-9]+`)
	timeframeRe = regexp.MustCompile(`\b(\d{1,2})\s*(m|min|mins|minute|minutes|h|hr|hrs|hour|hours|d|day|days|w|wk|week|weeks)\b`)
)

var namedTimeframes = map[string]string{
	"scalp":    "15m",
	"scalping": "15m",
	"hourly":   "1h",
	"intraday": "1h",
	"swing":    "4h",
	"daily":    "1d",
	"weekly":   "1w",
}

var intentWords = map[string]model.Intent{
	"buy": model.IntentBuy, "long": model.IntentBuy, "bullish": model.IntentBuy,
	"sell": model.IntentSell, "short": model.IntentSell, "bearish": model.IntentSell,
}

var riskWords = map[string]model.RiskTolerance{
	"conservative": model.RiskConservative, "safe": model.RiskConservative, "cautious": model.RiskConservative,
	"aggressive": model.RiskAggressive, "risky": model.RiskAggressive,
}

// PatternParser extracts a context with regular expressions and a fixed
// vocabulary. It never calls out and is deterministic.
type PatternParser struct{}

// Extract returns the context and whether a subject was found.
func (PatternParser) Extract(raw string) (model.QueryContext, bool) {
	text := strings.ToLower(raw)
	tokens := tokenRe.FindAllString(text, -1)

	qc := model.QueryContext{Raw: raw}
	qc.Base, qc.Quote = subject(tokens)
	if qc.Base != "" {
		qc.Category = Classify(qc.Base, qc.Quote)
	}
	qc.Timeframe = timeframe(text, tokens)
	qc.Intent = intent(tokens)
	qc.RiskTolerance = tolerance(text, tokens)
	return qc.Normalize(), qc.Base != ""
}

func subject(tokens []string) (string, string) {
	for i := 0; i+1 < len(tokens); i++ {
		a, b := strings.ToUpper(tokens[i]), strings.ToUpper(tokens[i+1])
		if known(a) && known(b) && a != b {
			return a, b
		}
	}
	for _, tok := range tokens {
		if base, quote, ok := splitCompact(tok); ok {
			return base, quote
		}
	}
	for _, tok := range tokens {
		if pair, ok := aliases[tok]; ok {
			return pair[0], pair[1]
		}
	}
	for _, tok := range tokens {
		code := strings.ToUpper(tok)
		switch {
		case commodities[code]:
			return code, "USD"
		case cryptos[code] && code != "USDT" && code != "USDC":
			return code, "USDT"
		}
	}
	return "", ""
}

func timeframe(text string, tokens []string) string {
	if m := timeframeRe.FindStringSubmatch(text); m != nil {
		n := strings.TrimLeft(m[1], "0")
		if n != "" {
			return n + m[2][:1]
		}
	}
	for _, tok := range tokens {
		if tf, ok := namedTimeframes[tok]; ok {
			return tf
		}
	}
	return ""
}

func intent(tokens []string) model.Intent {
	var found model.Intent
	for _, tok := range tokens {
		if in, ok := intentWords[tok]; ok {
			if found != "" && found != in {
				return model.IntentAnalyze
			}
			found = in
		}
	}
	if found == "" {
		return model.IntentAnalyze
	}
	return found
}

func tolerance(text string, tokens []string) model.RiskTolerance {
	switch {
	case strings.Contains(text, "low risk"):
		return model.RiskConservative
	case strings.Contains(text, "high risk"):
		return model.RiskAggressive
	}
	for _, tok := range tokens {
		if r, ok := riskWords[tok]; ok {
			return r
		}
	}
	return model.RiskModerate
}
