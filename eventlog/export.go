package eventlog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ExportFormat selects the rendering of a reasoning export.
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
)

// ExportReasoning renders the retained reasoning events (the four reasoning
// kinds only), oldest first, optionally filtered by agent and session.
// JSON renders a plain event array; markdown renders a human-readable
// transcript grouped by session.
func (l *Log) ExportReasoning(agentID, sessionID string, format ExportFormat) ([]byte, error) {
	all := l.Events(Filter{AgentID: agentID}) // newest first

	var events []Event
	for i := len(all) - 1; i >= 0; i-- {
		e := all[i]
		if !e.Type.Reasoning() {
			continue
		}
		if sessionID != "" && e.SessionID() != sessionID {
			continue
		}
		events = append(events, e)
	}

	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(events, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("eventlog: export reasoning: %w", err)
		}
		return b, nil
	case FormatMarkdown:
		return renderMarkdown(events), nil
	}
	return nil, fmt.Errorf("eventlog: unknown export format %q", format)
}

// renderMarkdown groups reasoning events by session id and renders each
// group as a transcript section.
func renderMarkdown(events []Event) []byte {
	bySession := make(map[string][]Event)
	var order []string
	for _, e := range events {
		sid := e.SessionID()
		if sid == "" {
			sid = "(no session)"
		}
		if _, seen := bySession[sid]; !seen {
			order = append(order, sid)
		}
		bySession[sid] = append(bySession[sid], e)
	}
	sort.SliceStable(order, func(i, j int) bool {
		return bySession[order[i]][0].Timestamp.Before(bySession[order[j]][0].Timestamp)
	})

	var b strings.Builder
	b.WriteString("# Reasoning Log\n")
	for _, sid := range order {
		group := bySession[sid]
		fmt.Fprintf(&b, "\n## Session %s (agent %s)\n\n", sid, group[0].AgentID)
		for _, e := range group {
			writeMarkdownEvent(&b, e)
		}
	}
	return []byte(b.String())
}

func writeMarkdownEvent(b *strings.Builder, e Event) {
	ts := e.Timestamp.Format("15:04:05")
	switch e.Type {
	case EventReasoningStarted:
		fmt.Fprintf(b, "- %s **Started:** %s\n", ts, e.Message)
	case EventReasoningStep:
		label := "Thinking"
		if stepType, _ := e.Metadata["step_type"].(string); stepType == "conclusion" {
			label = "Conclusion"
		}
		fmt.Fprintf(b, "- %s **%s:** %s\n", ts, label, e.Message)
		if conf, ok := e.Metadata["confidence"].(float64); ok {
			fmt.Fprintf(b, "  - Confidence: %.2f\n", conf)
		}
	case EventDecisionPoint:
		fmt.Fprintf(b, "- %s **Decision:** %s\n", ts, e.Message)
		if opts, ok := e.Metadata["options"].([]string); ok && len(opts) > 0 {
			fmt.Fprintf(b, "  - Options: %s\n", strings.Join(opts, ", "))
		} else if opts, ok := e.Metadata["options"].([]any); ok && len(opts) > 0 {
			strs := make([]string, len(opts))
			for i, o := range opts {
				strs[i] = fmt.Sprint(o)
			}
			fmt.Fprintf(b, "  - Options: %s\n", strings.Join(strs, ", "))
		}
		if chosen, ok := e.Metadata["chosen_option"].(string); ok {
			fmt.Fprintf(b, "  - Chosen: %s\n", chosen)
		}
		if reason, ok := e.Metadata["reasoning"].(string); ok && reason != "" {
			fmt.Fprintf(b, "  - Reasoning: %s\n", reason)
		}
	case EventReasoningChain:
		fmt.Fprintf(b, "- %s **Chain complete** (%d steps)\n", ts, len(e.ThinkingChain))
		if final, ok := e.Metadata["final_conclusion"].(string); ok && final != "" {
			fmt.Fprintf(b, "  - Final conclusion: %s\n", final)
		}
	}
}
