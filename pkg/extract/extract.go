// Package extract normalizes automation-agent outcomes into plain text.
//
// The agent's result shape varies run to run: full completion, early
// termination, and partial failure all produce structurally different
// payloads. Extraction therefore tries an ordered list of shapes and
// falls back to a synthesized summary so callers always receive text,
// never a raw error or an empty structure dump.
package extract

import (
	"fmt"
	"strings"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/agent"
)

// NoResultMessage is returned when an outcome carries no usable content.
const NoResultMessage = "The task finished, but no result content was produced."

// Result extracts final text from an agent outcome. Shapes are tried in
// order, first match wins:
//
//  1. plain text, returned as-is
//  2. step list: last step marked done with non-empty content
//  3. step list: last step with non-empty content, done or not
//  4. stringification of the raw value, falling back to a synthesized
//     step summary so the user is never shown a raw failure
func Result(outcome agent.Outcome) string {
	switch o := outcome.(type) {
	case agent.TextOutcome:
		return string(o)
	case agent.StepsOutcome:
		return fromSteps(o.Steps)
	case agent.OpaqueOutcome:
		return stringify(o.Value)
	case nil:
		return NoResultMessage
	default:
		return stringify(outcome)
	}
}

func fromSteps(steps []agent.Step) string {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Done && steps[i].Content != "" {
			return steps[i].Content
		}
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Content != "" {
			return steps[i].Content
		}
	}
	return summarizeSteps(steps)
}

// summarizeSteps assembles a human-readable trace from whatever fields
// the steps carry. Last resort before giving up entirely.
func summarizeSteps(steps []agent.Step) string {
	if len(steps) == 0 {
		return NoResultMessage
	}

	var b strings.Builder
	b.WriteString("Here is what was attempted:\n")
	for i, step := range steps {
		action := step.Action
		if action == "" {
			action = "step"
		}
		fmt.Fprintf(&b, "%d. %s", i+1, action)
		if step.Done {
			b.WriteString(" (completed)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// stringify renders an arbitrary value as text. A panicking Stringer is
// absorbed; the caller still gets a sentence.
func stringify(value any) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = NoResultMessage
		}
	}()

	if value == nil {
		return NoResultMessage
	}
	if s, ok := value.(fmt.Stringer); ok {
		if out := s.String(); out != "" {
			return out
		}
		return NoResultMessage
	}
	if s, ok := value.(string); ok {
		if s == "" {
			return NoResultMessage
		}
		return s
	}
	if out := fmt.Sprintf("%v", value); out != "" && out != "<nil>" {
		return out
	}
	return NoResultMessage
}
