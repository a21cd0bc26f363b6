package query

import (
	"context"
	"strings"
	"time"

	"fxagent/internal/config"
	"fxagent/internal/logger"
	"fxagent/internal/model"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Builder produces a QueryContext for every input. The structured parser is
// tried first; the pattern parser and then the default pair back it up.
type Builder struct {
	primary  Parser
	fallback PatternParser
	cache    *lru.Cache[string, model.QueryContext]
	timeout  time.Duration
	defBase  string
	defQuote string
}

func NewBuilder(primary Parser, cfg config.QueryConfig, timeout time.Duration) (*Builder, error) {
	b := &Builder{primary: primary, timeout: timeout}
	base, quote, ok := SplitPair(cfg.DefaultPair)
	if !ok {
		base, quote = "EUR", "USD"
	}
	b.defBase, b.defQuote = base, quote
	if primary != nil && cfg.CacheSize > 0 {
		cache, err := lru.New[string, model.QueryContext](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		b.cache = cache
	}
	return b, nil
}

// Structured reports whether a structured parser is configured.
func (b *Builder) Structured() bool { return b.primary != nil }

// Build never fails. Degraded is set whenever the structured path was not used.
func (b *Builder) Build(ctx context.Context, raw string) model.QueryContext {
	key := cacheKey(raw)
	if b.primary != nil {
		if qc, ok := b.structured(ctx, key, raw); ok {
			return qc
		}
	}

	qc, found := b.fallback.Extract(raw)
	qc.Degraded = true
	if !found {
		logger.Debugf("[query] no subject in %q, using default %s/%s", raw, b.defBase, b.defQuote)
		qc.Base, qc.Quote = b.defBase, b.defQuote
		qc.Category = Classify(qc.Base, qc.Quote)
	}
	return qc.Normalize()
}

func (b *Builder) structured(ctx context.Context, key, raw string) (model.QueryContext, bool) {
	if b.cache != nil {
		if qc, ok := b.cache.Get(key); ok {
			qc.Raw = raw
			return qc, true
		}
	}
	pctx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	qc, err := b.primary.Parse(pctx, raw)
	if err != nil {
		logger.Warnf("[query] structured parse failed, falling back to patterns: %v", err)
		return model.QueryContext{}, false
	}
	// the model tends to omit details the text states plainly
	hints, _ := b.fallback.Extract(raw)
	if qc.Timeframe == "" {
		qc.Timeframe = hints.Timeframe
	}
	qc.Raw = raw
	qc.Degraded = false
	qc = qc.Normalize()
	if b.cache != nil {
		b.cache.Add(key, qc)
	}
	return qc, true
}

func cacheKey(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}
