// Package conversation is the layer between the chat transport and the
// session manager: it classifies what the user wants, builds the
// browser-task prompt from resolved context, and formats agent results
// into replies sized for the transport.
package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/history"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/llm"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/logging"
)

// Intent is the numeric category a user message classifies into. The
// numbers are part of the classification contract with the model.
type Intent int

const (
	// IntentRecommendation asks for suggestions without needing
	// current information.
	IntentRecommendation Intent = 1

	// IntentSearch needs real-time information (availability, what's
	// happening now). The default when classification fails.
	IntentSearch Intent = 2

	// IntentBooking is specifically about making a reservation.
	IntentBooking Intent = 3

	// IntentGeneral is anything else the concierge can answer directly.
	IntentGeneral Intent = 4
)

func (i Intent) String() string {
	switch i {
	case IntentRecommendation:
		return "recommendation"
	case IntentSearch:
		return "search"
	case IntentBooking:
		return "booking"
	case IntentGeneral:
		return "general"
	default:
		return "unknown"
	}
}

// Classifier decides the intent of a message via the completion
// service.
type Classifier struct {
	provider llm.Provider
	log      *logging.Logger
}

// NewClassifier builds a Classifier. A nil logger is allowed.
func NewClassifier(provider llm.Provider, log *logging.Logger) *Classifier {
	return &Classifier{provider: provider, log: log}
}

// Classify returns the intent of message given recent history. Any
// classification failure defaults to search, which degrades to a
// harmless lookup rather than a wrong action.
func (c *Classifier) Classify(ctx context.Context, message string, turns []history.Turn) Intent {
	prompt := intentPrompt(message, turns)
	out, err := c.provider.Complete(ctx, []llm.Message{llm.SystemMessage(prompt)})
	if err != nil {
		if c.log != nil {
			c.log.Errorf("classifying intent: %v", err)
		}
		return IntentSearch
	}
	return parseIntent(out)
}

func intentPrompt(message string, turns []history.Turn) string {
	var b strings.Builder
	if ctx := historyContext(turns); ctx != "" {
		b.WriteString(ctx)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, `Current message: %q

Classify this request into exactly one category by returning ONLY its number:
2 - If the request needs real-time information (sports games, current availability, what's happening now)
1 - If it's only asking for general recommendations without needing current information
3 - If it's specifically about making a booking
4 - If it's general conversation not covered above

Examples:
"What's a good Italian restaurant?" -> 2
"Where can I watch the game tonight?" -> 2
"Find me a bar showing hockey" -> 2
"Make a reservation" -> 3

Return ONLY the number (1, 2, 3 or 4). Do not include any other text or explanation.`, message)
	return b.String()
}

// parseIntent reads the first category digit out of the model reply.
// Anything unparseable falls back to search.
func parseIntent(s string) Intent {
	for _, r := range strings.TrimSpace(s) {
		switch r {
		case '1':
			return IntentRecommendation
		case '2':
			return IntentSearch
		case '3':
			return IntentBooking
		case '4':
			return IntentGeneral
		}
	}
	return IntentSearch
}

// historyContext renders turns the way the classifier prompt expects.
func historyContext(turns []history.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Previous conversation:")
	for _, turn := range turns {
		label := "Assistant"
		if turn.Role == history.RoleUser {
			label = "User"
		}
		fmt.Fprintf(&b, "\n%s: %s", label, turn.Content)
	}
	return b.String()
}
