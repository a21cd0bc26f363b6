package risk

import (
	"strings"

	"fxagent/internal/model"

	"github.com/shopspring/decimal"
)

var (
	forexPip     = decimal.New(1, -4) // 0.0001
	jpyPip       = decimal.New(1, -2) // 0.01
	basisPoint   = decimal.New(1, -4)
	commodityPip = map[string]decimal.Decimal{
		"XAU":   decimal.New(1, -1),
		"XAG":   decimal.New(1, -2),
		"XPT":   decimal.New(1, -1),
		"WTI":   decimal.New(1, -2),
		"BRENT": decimal.New(1, -2),
	}
)

// PipSize returns the price increment one pip represents for the query's
// instrument. Overrides are matched on "BASE/QUOTE" first, then on BASE.
// Crypto and unknown instruments use one basis point of entry.
func PipSize(qc model.QueryContext, entry decimal.Decimal, overrides map[string]float64) decimal.Decimal {
	base := strings.ToUpper(strings.TrimSpace(qc.Base))
	if v, ok := overrides[qc.Pair()]; ok && v > 0 {
		return decimal.NewFromFloat(v)
	}
	if v, ok := overrides[base]; ok && v > 0 {
		return decimal.NewFromFloat(v)
	}
	if pip, ok := commodityPip[base]; ok {
		return pip
	}
	switch qc.Category {
	case model.CategoryForex:
		if strings.EqualFold(qc.Quote, "JPY") {
			return jpyPip
		}
		return forexPip
	case model.CategoryCommodity:
		return jpyPip
	}
	if entry.IsPositive() {
		return entry.Mul(basisPoint)
	}
	return forexPip
}
