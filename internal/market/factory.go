package market

import (
	"fmt"
	"time"

	"fxagent/internal/config"
)

// NewSourceFromConfig builds the cached router described by cfg.
func NewSourceFromConfig(cfg config.MarketConfig, now func() time.Time) (Source, error) {
	if now == nil {
		now = time.Now
	}
	build := func(name string) (Source, error) {
		switch name {
		case "synthetic":
			return NewSynthetic(now), nil
		case "yahoo":
			return NewYahooSource(now), nil
		case "binance":
			return NewBinanceSource(cfg.BinanceRESTURL, time.Duration(cfg.HTTPTimeoutSeconds)*time.Second, now), nil
		}
		return nil, fmt.Errorf("unknown market source %q", name)
	}
	def, err := build(cfg.Source)
	if err != nil {
		return nil, err
	}
	crypto := def
	if cfg.CryptoSource != "" && cfg.CryptoSource != cfg.Source {
		if crypto, err = build(cfg.CryptoSource); err != nil {
			return nil, err
		}
	}
	store := NewMemoryStore(time.Duration(cfg.CacheTTLSeconds)*time.Second, cfg.MaxCached, now)
	return NewCachedSource(Router{Default: def, Crypto: crypto}, store), nil
}
