package app

import (
	"context"
	"fmt"
	"time"

	"fxagent/internal/analysis"
	"fxagent/internal/config"
	"fxagent/internal/gateway/provider"
	"fxagent/internal/logger"
	"fxagent/internal/market"
	"fxagent/internal/metrics"
	"fxagent/internal/pipeline"
	"fxagent/internal/query"
	"fxagent/internal/risk"
	"fxagent/internal/synthesis"
	apihttp "fxagent/internal/transport/http/api"
	"fxagent/internal/workflow"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is overridden at link time.
var Version = "dev"

// AppBuilder assembles the engine and its HTTP surface from configuration.
// The build steps are swappable so tests can avoid the network.
type AppBuilder struct {
	cfg *config.Config

	providersFn    func(config.AIConfig) (map[string]provider.ModelProvider, error)
	marketSourceFn func(config.MarketConfig, func() time.Time) (market.Source, error)
	now            func() time.Time
	registry       *prometheus.Registry
}

type AppBuilderOption func(*AppBuilder)

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:            cfg,
		marketSourceFn: market.NewSourceFromConfig,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func WithModelProviders(fn func(config.AIConfig) (map[string]provider.ModelProvider, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.providersFn = fn
		}
	}
}

func WithMarketSource(fn func(config.MarketConfig, func() time.Time) (market.Source, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.marketSourceFn = fn
		}
	}
}

func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) AppBuilderOption {
	return func(b *AppBuilder) {
		b.registry = reg
	}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	reg := b.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.MustNewMetrics(reg)

	providersFn := b.providersFn
	if providersFn == nil {
		providersFn = func(c config.AIConfig) (map[string]provider.ModelProvider, error) {
			return provider.BuildProviders(c, provider.WithBreakerHook(m.BreakerStateChanged))
		}
	}
	providers, err := providersFn(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("build model providers: %w", err)
	}
	parserModel := pickModel(providers, "parser", cfg.AI.ParserModel)
	newsModel := pickModel(providers, "news", cfg.AI.NewsModel)
	synthModel := pickModel(providers, "synthesis", cfg.AI.SynthesisModel)

	builder, err := buildQueryBuilder(parserModel, cfg)
	if err != nil {
		return nil, err
	}

	// startup can be interrupted between the provider and market steps
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}
	source, err := b.marketSourceFn(cfg.Market, b.now)
	if err != nil {
		return nil, fmt.Errorf("build market source: %w", err)
	}
	tasks, err := buildTasks(source, newsModel, cfg, b.now)
	if err != nil {
		return nil, err
	}
	coord, err := pipeline.NewCoordinator(tasks, pipeline.WithTimeouts(cfg.Timeouts.Task))
	if err != nil {
		return nil, err
	}

	gate := risk.NewGate(risk.SettingsFromConfig(cfg.Risk))
	synth, err := buildSynthesizer(synthModel, cfg.AI)
	if err != nil {
		return nil, err
	}

	engine, err := workflow.NewEngine(builder, coord, gate, synth, workflow.Settings{
		SynthesisTimeout: cfg.Timeouts.Synthesis(),
		RunTimeout:       cfg.Timeouts.Run(),
		StreamBuffer:     cfg.HTTP.StreamBuffer,
	}, workflow.WithObserver(m), workflow.WithClock(b.now))
	if err != nil {
		return nil, err
	}

	server, err := apihttp.NewServer(apihttp.ServerConfig{
		Addr:     cfg.HTTP.Addr,
		Analyzer: engine,
		Info: apihttp.Info{
			Version:             Version,
			SynthesisConfigured: synthModel != nil,
			Risk:                gate.Settings(),
			Timeouts:            cfg.Timeouts,
		},
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:    cfg,
		engine: engine,
		server: server,
		Summary: &StartupSummary{
			Version:      Version,
			Addr:         server.Addr(),
			MarketSource: source.Name(),
			Interval:     cfg.Market.Interval,
			Tasks:        engine.Tasks(),
			Models: ModelSummary{
				Parser:    modelID(parserModel),
				News:      modelID(newsModel),
				Synthesis: modelID(synthModel),
			},
			Risk:     gate.Settings(),
			Timeouts: cfg.Timeouts,
		},
	}, nil
}

// pickModel resolves a role's model. A configured id that did not produce a
// provider (disabled entry) falls back to the offline path.
func pickModel(providers map[string]provider.ModelProvider, role, id string) provider.ModelProvider {
	if id == "" {
		return nil
	}
	m := provider.Pick(providers, id)
	if m == nil {
		logger.Warnf("[app] %s model %s not available, running %s offline", role, id, role)
	}
	return m
}

func modelID(m provider.ModelProvider) string {
	if m == nil {
		return ""
	}
	return m.ID()
}

func buildQueryBuilder(m provider.ModelProvider, cfg *config.Config) (*query.Builder, error) {
	var parser query.Parser
	if m != nil {
		parser = query.NewLLMParser(m)
	}
	return query.NewBuilder(parser, cfg.Query, cfg.Timeouts.Parse())
}

func buildTasks(source market.Source, newsModel provider.ModelProvider, cfg *config.Config, now func() time.Time) ([]pipeline.Task, error) {
	fundamental, err := analysis.NewFundamentalAnalyst()
	if err != nil {
		return nil, fmt.Errorf("load fundamentals: %w", err)
	}
	return []pipeline.Task{
		analysis.NewTechnicalAnalyst(source, cfg.Market),
		fundamental,
		analysis.NewNewsAnalyst(newsModel, now),
	}, nil
}

func buildSynthesizer(m provider.ModelProvider, cfg config.AIConfig) (synthesis.Synthesizer, error) {
	s := synthesis.Settings{MinConfidence: cfg.MinConfidence}
	if m == nil {
		logger.Infof("[app] no synthesis model configured, using rules synthesizer")
		return synthesis.NewRulesSynthesizer(s), nil
	}
	llm, err := synthesis.NewLLMSynthesizer(m, s)
	if err != nil {
		return nil, fmt.Errorf("build synthesizer: %w", err)
	}
	return llm, nil
}
