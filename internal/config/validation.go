package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Timeouts.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.HTTP.validate(); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.AccountBalance <= 0 {
		return fmt.Errorf("risk.account_balance must be > 0")
	}
	if r.MaxRiskPerTrade <= 0 || r.MaxRiskPerTrade > 1 {
		return fmt.Errorf("risk.max_risk_per_trade must be in (0, 1]")
	}
	if r.MinStopPips <= 0 || r.MaxStopPips <= 0 {
		return fmt.Errorf("risk.min_stop_pips and risk.max_stop_pips must be > 0")
	}
	if r.MinStopPips > r.MaxStopPips {
		return fmt.Errorf("risk.min_stop_pips (%g) exceeds risk.max_stop_pips (%g)", r.MinStopPips, r.MaxStopPips)
	}
	if r.MinRewardRisk <= 0 {
		return fmt.Errorf("risk.min_reward_risk must be > 0")
	}
	if r.PipValuePerLot <= 0 {
		return fmt.Errorf("risk.pip_value_per_lot must be > 0")
	}
	for sym, size := range r.PipSizes {
		if size <= 0 {
			return fmt.Errorf("risk.pip_sizes.%s must be > 0", sym)
		}
	}
	return nil
}

func (t *TimeoutConfig) validate() error {
	if t.ParseSeconds <= 0 || t.TaskSeconds <= 0 || t.SynthesisSeconds <= 0 || t.RunSeconds <= 0 {
		return fmt.Errorf("timeouts must all be > 0")
	}
	for name, v := range t.PerTask {
		if v <= 0 {
			return fmt.Errorf("timeouts.per_task.%s must be > 0", name)
		}
	}
	return nil
}

var marketSources = map[string]bool{"synthetic": true, "yahoo": true, "binance": true}

func (m *MarketConfig) validate() error {
	if !marketSources[m.Source] {
		return fmt.Errorf("market.source must be one of synthetic|yahoo|binance, got %q", m.Source)
	}
	if !marketSources[m.CryptoSource] {
		return fmt.Errorf("market.crypto_source must be one of synthetic|yahoo|binance, got %q", m.CryptoSource)
	}
	if m.Source == "binance" {
		return fmt.Errorf("market.source=binance only serves crypto pairs, use crypto_source")
	}
	if !IsValidInterval(m.Interval) {
		return fmt.Errorf("market.interval %q is invalid", m.Interval)
	}
	if m.Lookback < 60 {
		return fmt.Errorf("market.lookback must be >= 60")
	}
	return nil
}

func (h *HTTPConfig) validate() error {
	if strings.TrimSpace(h.Addr) == "" {
		return fmt.Errorf("http.addr cannot be empty")
	}
	if h.StreamBuffer <= 0 {
		return fmt.Errorf("http.stream_buffer must be > 0")
	}
	return nil
}

func (a *AIConfig) validate() error {
	if a.MinConfidence < 0 || a.MinConfidence > 1 {
		return fmt.Errorf("ai.min_confidence must be in [0, 1]")
	}
	if a.MaxRetries < 0 {
		return fmt.Errorf("ai.max_retries must be >= 0")
	}
	models, err := a.ResolveModelConfigs()
	if err != nil {
		return err
	}
	known := make(map[string]ResolvedModelConfig, len(models))
	for _, m := range models {
		if strings.TrimSpace(m.Model) == "" {
			return fmt.Errorf("ai.models contains entry without model (id=%s)", m.ID)
		}
		if strings.TrimSpace(m.APIURL) == "" {
			return fmt.Errorf("ai.models.%s missing api_url (can inherit from preset)", m.ID)
		}
		known[m.ID] = m
	}
	for role, id := range map[string]string{
		"parser_model":    a.ParserModel,
		"news_model":      a.NewsModel,
		"synthesis_model": a.SynthesisModel,
	} {
		if id == "" {
			continue
		}
		if _, ok := known[id]; !ok {
			return fmt.Errorf("ai.%s references unconfigured model id: %s", role, id)
		}
	}
	return nil
}

// IsValidInterval checks for a number followed by m/h/d/w, e.g. 15m or 4h.
func IsValidInterval(s string) bool {
	if len(s) < 2 {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
