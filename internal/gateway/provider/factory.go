package provider

import (
	"time"

	"fxagent/internal/config"
	"fxagent/internal/logger"
	"fxagent/internal/pkg/circuit"
)

type factoryOptions struct {
	breakerHook func(name string, from, to circuit.State)
}

type FactoryOption func(*factoryOptions)

// WithBreakerHook observes every model breaker's state changes.
func WithBreakerHook(fn func(name string, from, to circuit.State)) FactoryOption {
	return func(o *factoryOptions) {
		o.breakerHook = fn
	}
}

// BuildProviders returns one guarded client per enabled model, keyed by id.
func BuildProviders(cfg config.AIConfig, opts ...FactoryOption) (map[string]ModelProvider, error) {
	var o factoryOptions
	for _, opt := range opts {
		opt(&o)
	}
	models, err := cfg.ResolveModelConfigs()
	if err != nil {
		return nil, err
	}
	out := make(map[string]ModelProvider, len(models))
	for _, m := range models {
		if !m.Enabled {
			logger.Infof("[ai] model %s disabled, skipping", m.ID)
			continue
		}
		client := NewOpenAIChatClient(ClientConfig{
			ID:          m.ID,
			BaseURL:     m.APIURL,
			APIKey:      m.APIKey,
			Model:       m.Model,
			Headers:     m.Headers,
			Temperature: m.Temperature,
			Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
			MaxRetries:  cfg.MaxRetries,
		})
		breaker := circuit.NewCircuitBreaker("model:"+m.ID, cfg.BreakerFailures, time.Duration(cfg.BreakerCooldown)*time.Second)
		if o.breakerHook != nil {
			breaker.SetStateChangeHandler(o.breakerHook)
		}
		out[m.ID] = NewGuarded(client, breaker)
	}
	return out, nil
}

// Pick returns the provider for id, or nil when it is not configured.
func Pick(providers map[string]ModelProvider, id string) ModelProvider {
	if id == "" || providers == nil {
		return nil
	}
	return providers[id]
}
