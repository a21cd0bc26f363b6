package main

import (
	"fmt"
	"sort"
	"strings"

	"fxagent/internal/model"
	"fxagent/internal/stream"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2).
			Width(76)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(14)

	buyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	sellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	waitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

func actionStyle(a model.Action) lipgloss.Style {
	switch a {
	case model.ActionBuy:
		return buyStyle
	case model.ActionSell:
		return sellStyle
	}
	return waitStyle
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// renderRun formats the terminal state of a run for the terminal.
func renderRun(st model.RunState) string {
	var lines []string
	lines = append(lines, row("run", st.RunID))
	lines = append(lines, row("instrument", fmt.Sprintf("%s (%s)", st.Query.Pair(), st.Query.Category)))
	if st.Query.Degraded {
		lines = append(lines, row("", mutedStyle.Render("parsed heuristically")))
	}

	names := make([]string, 0, len(st.Results))
	for name := range st.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		res := st.Results[name]
		status := buyStyle.Render("ok")
		detail := res.Summary
		if !res.Success {
			status = errorStyle.Render("failed")
			detail = res.Error
		}
		lines = append(lines, row(name, status+" "+mutedStyle.Render(detail)))
	}

	if r := st.Risk; r != nil {
		if r.Approved {
			lines = append(lines, row("risk", buyStyle.Render("approved")+fmt.Sprintf(" %s size=%.2f lots R:R=%.2f", r.Direction, r.PositionSize, r.RewardRisk)))
		} else {
			lines = append(lines, row("risk", waitStyle.Render("rejected")+" "+strings.Join(r.Reasons, "; ")))
		}
	}

	if st.State == model.StateFailed {
		lines = append(lines, row("error", errorStyle.Render(st.Error)))
	}
	if d := st.Decision; d != nil {
		lines = append(lines, row("decision", actionStyle(d.Action).Render(string(d.Action))+fmt.Sprintf(" confidence=%.2f", d.Confidence)))
		if t := d.Trade; t != nil {
			lines = append(lines, row("trade", fmt.Sprintf("entry=%g stop=%g target=%g size=%.2f", t.Entry, t.StopLoss, t.TakeProfit, t.PositionSize)))
		}
		if d.Reasoning != "" {
			lines = append(lines, row("reasoning", d.Reasoning))
		}
		for _, f := range d.KeyFactors {
			lines = append(lines, row("", "+ "+f))
		}
		for _, r := range d.Risks {
			lines = append(lines, row("", mutedStyle.Render("! "+r)))
		}
	}
	body := panelStyle.Render(strings.Join(lines, "\n"))
	return titleStyle.Render("fxagent analysis") + "\n" + body
}

// renderEvent is the one-line form used by analyze --stream.
func renderEvent(ev stream.Event) string {
	head := fmt.Sprintf("[%02d] %-13s", ev.Seq, ev.Type)
	var detail string
	switch d := ev.Data.(type) {
	case stream.StartData:
		detail = d.Query
	case stream.QueryParsedData:
		detail = d.Context.Pair()
	case stream.AgentUpdateData:
		detail = fmt.Sprintf("%s %d/%d", d.Task, d.Completed, d.Total)
		if !d.Success {
			detail += " " + errorStyle.Render(d.Error)
		}
	case stream.RiskUpdateData:
		if d.Approved {
			detail = buyStyle.Render("approved")
		} else {
			detail = waitStyle.Render("rejected") + " " + strings.Join(d.Reasons, "; ")
		}
	case stream.DecisionData:
		detail = actionStyle(d.Action).Render(string(d.Action))
	case stream.CompleteData:
		detail = fmt.Sprintf("%s in %dms", d.Action, d.DurationMS)
	case stream.ErrorData:
		detail = errorStyle.Render(d.Message)
	}
	return head + " " + detail
}
