package config

import (
	"strings"
)

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultHTTPAddr          = ":8000"
	defaultStreamBuffer      = 32
	defaultAccountBalance    = 10000
	defaultMaxRiskPerTrade   = 0.02
	defaultMinStopPips       = 10
	defaultMaxStopPips       = 100
	defaultMinRewardRisk     = 1.5
	defaultPipValuePerLot    = 10
	defaultSetupTask         = "technical"
	defaultParseSeconds      = 10
	defaultTaskSeconds       = 20
	defaultSynthesisSeconds  = 45
	defaultRunSeconds        = 120
	defaultMarketSource      = "synthetic"
	defaultMarketInterval    = "1h"
	defaultMarketLookback    = 250
	defaultMarketCacheTTL    = 300
	defaultMarketMaxCached   = 500
	defaultBinanceREST       = "https://fapi.binance.com"
	defaultMarketHTTPTimeout = 10
	defaultQueryPair         = "EUR/USD"
	defaultQueryCacheSize    = 256
	defaultAIMinConfidence   = 0.7
	defaultAITimeout         = 60
	defaultAIMaxRetries      = 2
	defaultBreakerFailures   = 3
	defaultBreakerCooldown   = 30
)

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults(nil)
	return &cfg
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.HTTP.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Timeouts.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Query.applyDefaults(keys)
	c.AI.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
	)
}

func (h *HTTPConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("http.addr", &h.Addr, defaultHTTPAddr),
		intFieldDefault("http.stream_buffer", &h.StreamBuffer, defaultStreamBuffer),
	)
	h.CORSOrigins = normalizeList(h.CORSOrigins)
	if len(h.CORSOrigins) == 0 {
		h.CORSOrigins = []string{"*"}
	}
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		floatFieldDefault("risk.account_balance", &r.AccountBalance, defaultAccountBalance),
		floatFieldDefault("risk.max_risk_per_trade", &r.MaxRiskPerTrade, defaultMaxRiskPerTrade),
		floatFieldDefault("risk.min_stop_pips", &r.MinStopPips, defaultMinStopPips),
		floatFieldDefault("risk.max_stop_pips", &r.MaxStopPips, defaultMaxStopPips),
		floatFieldDefault("risk.min_reward_risk", &r.MinRewardRisk, defaultMinRewardRisk),
		floatFieldDefault("risk.pip_value_per_lot", &r.PipValuePerLot, defaultPipValuePerLot),
		stringFieldDefault("risk.setup_task", &r.SetupTask, defaultSetupTask),
	)
	if len(r.PipSizes) > 0 {
		sizes := make(map[string]float64, len(r.PipSizes))
		for k, v := range r.PipSizes {
			sizes[strings.ToUpper(strings.TrimSpace(k))] = v
		}
		r.PipSizes = sizes
	}
}

func (t *TimeoutConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("timeouts.parse_seconds", &t.ParseSeconds, defaultParseSeconds),
		intFieldDefault("timeouts.task_seconds", &t.TaskSeconds, defaultTaskSeconds),
		intFieldDefault("timeouts.synthesis_seconds", &t.SynthesisSeconds, defaultSynthesisSeconds),
		intFieldDefault("timeouts.run_seconds", &t.RunSeconds, defaultRunSeconds),
	)
	if len(t.PerTask) > 0 {
		per := make(map[string]int, len(t.PerTask))
		for k, v := range t.PerTask {
			per[strings.ToLower(strings.TrimSpace(k))] = v
		}
		t.PerTask = per
	}
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("market.source", &m.Source, defaultMarketSource),
		stringFieldDefault("market.interval", &m.Interval, defaultMarketInterval),
		stringFieldDefault("market.binance_rest_url", &m.BinanceRESTURL, defaultBinanceREST),
		intFieldDefault("market.lookback", &m.Lookback, defaultMarketLookback),
		intFieldDefault("market.cache_ttl_seconds", &m.CacheTTLSeconds, defaultMarketCacheTTL),
		intFieldDefault("market.max_cached", &m.MaxCached, defaultMarketMaxCached),
		intFieldDefault("market.http_timeout_seconds", &m.HTTPTimeoutSeconds, defaultMarketHTTPTimeout),
	)
	m.Source = strings.ToLower(strings.TrimSpace(m.Source))
	m.CryptoSource = strings.ToLower(strings.TrimSpace(m.CryptoSource))
	if m.CryptoSource == "" {
		m.CryptoSource = m.Source
	}
	m.Interval = strings.ToLower(strings.TrimSpace(m.Interval))
}

func (q *QueryConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("query.default_pair", &q.DefaultPair, defaultQueryPair),
		intFieldDefault("query.cache_size", &q.CacheSize, defaultQueryCacheSize),
	)
}

func (a *AIConfig) applyDefaults(keys keySet) {
	if a.ProviderPresets == nil {
		a.ProviderPresets = make(map[string]ModelPreset)
	}
	applyFieldDefaults(keys,
		floatFieldDefault("ai.min_confidence", &a.MinConfidence, defaultAIMinConfidence),
		intFieldDefault("ai.timeout_seconds", &a.TimeoutSeconds, defaultAITimeout),
		intFieldDefault("ai.breaker_failures", &a.BreakerFailures, defaultBreakerFailures),
		intFieldDefault("ai.breaker_cooldown_seconds", &a.BreakerCooldown, defaultBreakerCooldown),
		fieldDefault{
			key:   "ai.max_retries",
			need:  func() bool { return a.MaxRetries == 0 },
			apply: func() { a.MaxRetries = defaultAIMaxRetries },
		},
	)
	a.ParserModel = strings.TrimSpace(a.ParserModel)
	a.NewsModel = strings.TrimSpace(a.NewsModel)
	a.SynthesisModel = strings.TrimSpace(a.SynthesisModel)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func normalizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
