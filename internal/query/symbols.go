package query

import (
	"strings"

	"fxagent/internal/model"
)

var fiat = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CHF": true, "AUD": true,
	"NZD": true, "CAD": true, "CNY": true, "CNH": true, "HKD": true, "SGD": true,
	"SEK": true, "NOK": true, "DKK": true, "MXN": true, "ZAR": true, "TRY": true,
	"PLN": true, "INR": true,
}

var commodities = map[string]bool{
	"XAU": true, "XAG": true, "XPT": true, "WTI": true, "BRENT": true,
}

var cryptos = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "XRP": true, "BNB": true, "DOGE": true,
	"ADA": true, "USDT": true, "USDC": true,
}

// aliases maps everyday names to a subject.
var aliases = map[string][2]string{
	"gold":     {"XAU", "USD"},
	"silver":   {"XAG", "USD"},
	"platinum": {"XPT", "USD"},
	"oil":      {"WTI", "USD"},
	"crude":    {"WTI", "USD"},
	"brent":    {"BRENT", "USD"},
	"bitcoin":  {"BTC", "USDT"},
	"ether":    {"ETH", "USDT"},
	"ethereum": {"ETH", "USDT"},
	"solana":   {"SOL", "USDT"},
	"cable":    {"GBP", "USD"},
	"fiber":    {"EUR", "USD"},
	"loonie":   {"USD", "CAD"},
	"aussie":   {"AUD", "USD"},
	"kiwi":     {"NZD", "USD"},
}

func known(code string) bool {
	return fiat[code] || commodities[code] || cryptos[code]
}

// Classify derives the instrument category from its legs.
func Classify(base, quote string) model.Category {
	base = strings.ToUpper(base)
	quote = strings.ToUpper(quote)
	switch {
	case commodities[base]:
		return model.CategoryCommodity
	case cryptos[base] || cryptos[quote]:
		return model.CategoryCrypto
	case fiat[base] && (quote == "" || fiat[quote]):
		return model.CategoryForex
	}
	return model.CategoryUnknown
}

// SplitPair reads "EUR/USD", "EUR-USD", "EURUSD" or "BTCUSDT".
func SplitPair(pair string) (string, string, bool) {
	p := strings.ToUpper(strings.TrimSpace(pair))
	for _, sep := range []string{"/", "-", "_", " "} {
		if base, quote, ok := strings.Cut(p, sep); ok {
			base, quote = strings.TrimSpace(base), strings.TrimSpace(quote)
			return base, quote, base != "" && quote != ""
		}
	}
	return splitCompact(p)
}

func splitCompact(tok string) (string, string, bool) {
	tok = strings.ToUpper(tok)
	for _, n := range []int{3, 4, 5} {
		if len(tok) <= n {
			break
		}
		base, quote := tok[:n], tok[n:]
		if known(base) && known(quote) && base != quote {
			return base, quote, true
		}
	}
	return "", "", false
}
