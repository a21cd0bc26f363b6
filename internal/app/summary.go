package app

import (
	"fmt"
	"sort"
	"strings"

	"fxagent/internal/config"
	"fxagent/internal/risk"
)

type StartupSummary struct {
	Version      string
	Addr         string
	MarketSource string
	Interval     string
	Tasks        []string
	Models       ModelSummary
	Risk         risk.Settings
	Timeouts     config.TimeoutConfig
}

// ModelSummary names the model serving each role; empty means offline.
type ModelSummary struct {
	Parser    string
	News      string
	Synthesis string
}

func (s *StartupSummary) Print() {
	fmt.Println(s.String())
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 72)
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "%*s\n", 36+len("FXAGENT STARTUP SUMMARY")/2, "FXAGENT STARTUP SUMMARY")
	fmt.Fprintln(&b, line)

	fmt.Fprintln(&b, "[SERVICE]")
	fmt.Fprintf(&b, "  version: %s\n", s.Version)
	fmt.Fprintf(&b, "  listen:  %s\n", s.Addr)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[MARKET DATA]")
	fmt.Fprintf(&b, "  source:   %s\n", s.MarketSource)
	fmt.Fprintf(&b, "  interval: %s\n", s.Interval)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[MODELS]")
	fmt.Fprintf(&b, "  parser:    %s\n", orOffline(s.Models.Parser))
	fmt.Fprintf(&b, "  news:      %s\n", orOffline(s.Models.News))
	fmt.Fprintf(&b, "  synthesis: %s\n", orOffline(s.Models.Synthesis))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[TASKS]")
	for _, name := range s.Tasks {
		fmt.Fprintf(&b, "  - %s (%s)\n", name, s.Timeouts.Task(name))
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[RISK]")
	fmt.Fprintf(&b, "  balance: %.2f  risk/trade: %.2f%%\n", s.Risk.AccountBalance, s.Risk.MaxRiskPerTrade*100)
	fmt.Fprintf(&b, "  stop: %.0f-%.0f pips  min R:R: %.2f\n", s.Risk.MinStopPips, s.Risk.MaxStopPips, s.Risk.MinRewardRisk)
	if len(s.Risk.PipSizes) > 0 {
		keys := make([]string, 0, len(s.Risk.PipSizes))
		for k := range s.Risk.PipSizes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  pip %s: %g\n", k, s.Risk.PipSizes[k])
		}
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[TIMEOUTS]")
	fmt.Fprintf(&b, "  parse: %s  synthesis: %s  run: %s\n", s.Timeouts.Parse(), s.Timeouts.Synthesis(), s.Timeouts.Run())
	b.WriteString(line)
	return b.String()
}

func orOffline(id string) string {
	if id == "" {
		return "(offline)"
	}
	return id
}
