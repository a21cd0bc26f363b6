package config

import (
	"strings"
	"time"
)

// Config is the read-only process configuration.
type Config struct {
	App      AppConfig      `yaml:"app"`
	HTTP     HTTPConfig     `yaml:"http"`
	Risk     RiskConfig     `yaml:"risk"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Market   MarketConfig   `yaml:"market"`
	Query    QueryConfig    `yaml:"query"`
	AI       AIConfig       `yaml:"ai"`
	Include  []string       `yaml:"include,omitempty"`
}

type AppConfig struct {
	Env        string `yaml:"env"`
	LogLevel   string `yaml:"log_level"`
	LogPath    string `yaml:"log_path"`
	LLMLogPath string `yaml:"llm_log_path"`
}

type HTTPConfig struct {
	Addr         string   `yaml:"addr"`
	CORSOrigins  []string `yaml:"cors_origins"`
	StreamBuffer int      `yaml:"stream_buffer"`
}

// RiskConfig holds the account and rule thresholds used by the risk gate.
type RiskConfig struct {
	AccountBalance  float64            `yaml:"account_balance"`
	MaxRiskPerTrade float64            `yaml:"max_risk_per_trade"`
	MinStopPips     float64            `yaml:"min_stop_pips"`
	MaxStopPips     float64            `yaml:"max_stop_pips"`
	MinRewardRisk   float64            `yaml:"min_reward_risk"`
	PipValuePerLot  float64            `yaml:"pip_value_per_lot"`
	SetupTask       string             `yaml:"setup_task"`
	PipSizes        map[string]float64 `yaml:"pip_sizes"`
}

// TimeoutConfig is expressed in seconds.
type TimeoutConfig struct {
	ParseSeconds     int            `yaml:"parse_seconds"`
	TaskSeconds      int            `yaml:"task_seconds"`
	SynthesisSeconds int            `yaml:"synthesis_seconds"`
	RunSeconds       int            `yaml:"run_seconds"`
	PerTask          map[string]int `yaml:"per_task"`
}

func (t TimeoutConfig) Parse() time.Duration     { return seconds(t.ParseSeconds) }
func (t TimeoutConfig) Synthesis() time.Duration { return seconds(t.SynthesisSeconds) }
func (t TimeoutConfig) Run() time.Duration       { return seconds(t.RunSeconds) }

// Task returns the budget for the named task, falling back to task_seconds.
func (t TimeoutConfig) Task(name string) time.Duration {
	if v, ok := t.PerTask[strings.ToLower(strings.TrimSpace(name))]; ok && v > 0 {
		return seconds(v)
	}
	return seconds(t.TaskSeconds)
}

func seconds(v int) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v) * time.Second
}

// MarketConfig selects where candles come from. Source applies to forex and
// commodities, CryptoSource to crypto pairs.
type MarketConfig struct {
	Source             string `yaml:"source"`
	CryptoSource       string `yaml:"crypto_source"`
	Interval           string `yaml:"interval"`
	Lookback           int    `yaml:"lookback"`
	CacheTTLSeconds    int    `yaml:"cache_ttl_seconds"`
	MaxCached          int    `yaml:"max_cached"`
	BinanceRESTURL     string `yaml:"binance_rest_url"`
	HTTPTimeoutSeconds int    `yaml:"http_timeout_seconds"`
}

type QueryConfig struct {
	DefaultPair string `yaml:"default_pair"`
	CacheSize   int    `yaml:"cache_size"`
}

// AIConfig lists the model endpoints and which one serves each role. An empty
// role model means the offline implementation is used.
type AIConfig struct {
	ProviderPresets map[string]ModelPreset `yaml:"provider_presets"`
	Models          []AIModelConfig        `yaml:"models"`
	ParserModel     string                 `yaml:"parser_model"`
	NewsModel       string                 `yaml:"news_model"`
	SynthesisModel  string                 `yaml:"synthesis_model"`
	MinConfidence   float64                `yaml:"min_confidence"`
	TimeoutSeconds  int                    `yaml:"timeout_seconds"`
	MaxRetries      int                    `yaml:"max_retries"`
	BreakerFailures int                    `yaml:"breaker_failures"`
	BreakerCooldown int                    `yaml:"breaker_cooldown_seconds"`
}

// ModelPreset is a reusable endpoint definition.
type ModelPreset struct {
	APIURL  string            `yaml:"api_url"`
	APIKey  string            `yaml:"api_key"`
	Headers map[string]string `yaml:"headers"`
}

type AIModelConfig struct {
	ID          string            `yaml:"id"`
	Preset      string            `yaml:"preset"`
	Enabled     *bool             `yaml:"enabled"`
	APIURL      string            `yaml:"api_url"`
	APIKey      string            `yaml:"api_key"`
	Model       string            `yaml:"model"`
	Headers     map[string]string `yaml:"headers"`
	Temperature float64           `yaml:"temperature"`
}

// ResolvedModelConfig is a model entry with its preset merged in.
type ResolvedModelConfig struct {
	ID          string
	Enabled     bool
	APIURL      string
	APIKey      string
	Model       string
	Headers     map[string]string
	Temperature float64
}

// keySet tracks the config paths that were set explicitly.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
