package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

// ResolveModelConfigs merges every model entry with its preset. Explicit
// fields win over the preset; ${VAR} references in keys are expanded.
func (a AIConfig) ResolveModelConfigs() ([]ResolvedModelConfig, error) {
	out := make([]ResolvedModelConfig, 0, len(a.Models))
	seen := make(map[string]bool, len(a.Models))
	for i, m := range a.Models {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return nil, fmt.Errorf("ai.models[%d] missing id", i)
		}
		if seen[id] {
			return nil, fmt.Errorf("ai.models contains duplicate id: %s", id)
		}
		seen[id] = true
		res := ResolvedModelConfig{
			ID:          id,
			Enabled:     true,
			Model:       strings.TrimSpace(m.Model),
			Temperature: m.Temperature,
			Headers:     map[string]string{},
		}
		if m.Enabled != nil {
			res.Enabled = *m.Enabled
		}
		if name := strings.TrimSpace(m.Preset); name != "" {
			preset, ok := a.ProviderPresets[name]
			if !ok {
				return nil, fmt.Errorf("ai.models.%s references unknown preset: %s", id, name)
			}
			res.APIURL = preset.APIURL
			res.APIKey = preset.APIKey
			copyHeaders(res.Headers, preset.Headers)
		}
		if v := strings.TrimSpace(m.APIURL); v != "" {
			res.APIURL = v
		}
		if v := strings.TrimSpace(m.APIKey); v != "" {
			res.APIKey = v
		}
		copyHeaders(res.Headers, m.Headers)
		res.APIKey = os.ExpandEnv(res.APIKey)
		out = append(out, res)
	}
	return out, nil
}

// viper lowercases map keys
func copyHeaders(dst, src map[string]string) {
	for k, v := range src {
		dst[http.CanonicalHeaderKey(strings.TrimSpace(k))] = v
	}
}

// Model looks up a resolved model by id.
func (a AIConfig) Model(id string) (ResolvedModelConfig, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ResolvedModelConfig{}, false
	}
	models, err := a.ResolveModelConfigs()
	if err != nil {
		return ResolvedModelConfig{}, false
	}
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return ResolvedModelConfig{}, false
}

// Masked returns a copy safe to print: API keys are reduced to their tail.
func (c Config) Masked() Config {
	out := c
	out.AI.ProviderPresets = make(map[string]ModelPreset, len(c.AI.ProviderPresets))
	for name, p := range c.AI.ProviderPresets {
		p.APIKey = maskSecret(p.APIKey)
		out.AI.ProviderPresets[name] = p
	}
	out.AI.Models = make([]AIModelConfig, len(c.AI.Models))
	for i, m := range c.AI.Models {
		m.APIKey = maskSecret(m.APIKey)
		out.AI.Models[i] = m
	}
	return out
}

func maskSecret(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "${") {
		return v
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}
