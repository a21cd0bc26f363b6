package analysis

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"strings"

	"fxagent/internal/model"

	"gopkg.in/yaml.v3"
)

//go:embed data/fundamentals.yaml
var fundamentalsYAML []byte

// Profile is the macro snapshot for one currency or asset.
type Profile struct {
	Code         string   `yaml:"-" json:"code"`
	Name         string   `yaml:"name" json:"name"`
	PolicyRate   *float64 `yaml:"policy_rate" json:"policy_rate,omitempty"`
	GDPGrowth    *float64 `yaml:"gdp_growth" json:"gdp_growth,omitempty"`
	Inflation    *float64 `yaml:"inflation" json:"inflation,omitempty"`
	Unemployment *float64 `yaml:"unemployment" json:"unemployment,omitempty"`
	Stance       string   `yaml:"stance" json:"stance,omitempty"`
	Bias         float64  `yaml:"bias" json:"bias,omitempty"`
	Drivers      []string `yaml:"drivers" json:"drivers,omitempty"`
}

func (p Profile) macro() bool { return p.PolicyRate != nil }

type Dataset struct {
	AsOf     string             `yaml:"as_of"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadDataset decodes a fundamentals document.
func LoadDataset(raw []byte) (Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(raw, &ds); err != nil {
		return Dataset{}, fmt.Errorf("decode fundamentals: %w", err)
	}
	for code, p := range ds.Profiles {
		p.Code = strings.ToUpper(code)
		ds.Profiles[code] = p
	}
	return ds, nil
}

// FundamentalView is the fundamental task payload. Score is in [-1, 1];
// positive favours the base.
type FundamentalView struct {
	AsOf    string   `json:"as_of"`
	Base    *Profile `json:"base,omitempty"`
	Quote   *Profile `json:"quote,omitempty"`
	Score   float64  `json:"score"`
	Outlook string   `json:"outlook"`
	Drivers []string `json:"drivers"`
}

type FundamentalAnalyst struct {
	data Dataset
}

// NewFundamentalAnalyst uses the bundled snapshot.
func NewFundamentalAnalyst() (*FundamentalAnalyst, error) {
	ds, err := LoadDataset(fundamentalsYAML)
	if err != nil {
		return nil, err
	}
	return &FundamentalAnalyst{data: ds}, nil
}

func (f *FundamentalAnalyst) Name() string { return TaskFundamental }

func (f *FundamentalAnalyst) Run(ctx context.Context, qc model.QueryContext) model.AgentResult {
	if err := ctx.Err(); err != nil {
		return model.Failed(TaskFundamental, err.Error())
	}
	base, okBase := f.lookup(qc.Base)
	quote, okQuote := f.lookup(qc.Quote)
	if !okBase && !okQuote {
		return model.Failed(TaskFundamental, fmt.Sprintf("no fundamental data for %s", qc.Pair()))
	}
	view := &FundamentalView{AsOf: f.data.AsOf}
	if okBase {
		view.Base = &base
	}
	if okQuote {
		view.Quote = &quote
	}
	view.Score, view.Drivers = compare(view.Base, view.Quote)
	view.Outlook = outlook(view.Score)
	summary := fmt.Sprintf("%s fundamentals %s (score %+.2f)", qc.Pair(), view.Outlook, view.Score)
	return model.Succeeded(TaskFundamental, view, summary)
}

func (f *FundamentalAnalyst) lookup(code string) (Profile, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "USDT" || code == "USDC" {
		code = "USD"
	}
	p, ok := f.data.Profiles[code]
	return p, ok
}

// compare weighs rate, growth, inflation and unemployment differentials for
// currency pairs; assets contribute their fixed bias.
func compare(base, quote *Profile) (float64, []string) {
	var score float64
	var drivers []string
	if base != nil && quote != nil && base.macro() && quote.macro() {
		rate := *base.PolicyRate - *quote.PolicyRate
		growth := *base.GDPGrowth - *quote.GDPGrowth
		infl := *base.Inflation - *quote.Inflation
		unemp := *base.Unemployment - *quote.Unemployment
		score = 0.15*rate + 0.10*growth - 0.05*infl - 0.05*unemp
		drivers = append(drivers,
			fmt.Sprintf("rate differential %+.2f%% (%s %s vs %s %s)", rate, base.Code, base.Stance, quote.Code, quote.Stance),
			fmt.Sprintf("growth differential %+.1f%%", growth),
			fmt.Sprintf("inflation differential %+.1f%%", infl),
		)
	} else {
		if base != nil && !base.macro() {
			score += base.Bias
			drivers = append(drivers, base.Drivers...)
		}
		if quote != nil && quote.macro() && quote.Stance == "hawkish" {
			score -= 0.1
			drivers = append(drivers, fmt.Sprintf("%s policy is hawkish", quote.Code))
		}
	}
	score = math.Max(-1, math.Min(1, score))
	return math.Round(score*100) / 100, drivers
}

func outlook(score float64) string {
	switch {
	case score >= 0.15:
		return "bullish"
	case score <= -0.15:
		return "bearish"
	}
	return "neutral"
}
