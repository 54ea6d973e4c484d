package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/history"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/resolve"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/session"
)

// historyEncoding is the tokenizer used to budget folded history.
const historyEncoding = "cl100k_base"

// PromptBuilder renders the browser-task prompt for a dispatch. It
// implements session.Prompter.
type PromptBuilder struct {
	tokenBudget int
	now         func() time.Time
}

// NewPromptBuilder creates a builder whose folded history is capped at
// tokenBudget tokens.
func NewPromptBuilder(tokenBudget int) *PromptBuilder {
	if tokenBudget <= 0 {
		tokenBudget = 2000
	}
	return &PromptBuilder{tokenBudget: tokenBudget, now: time.Now}
}

// TaskPrompt resolves structured context out of the query and history
// and renders the task template for kind. Unresolved slots are stated
// as "not specified" so the agent never fabricates them.
func (b *PromptBuilder) TaskPrompt(query string, kind session.TaskKind, turns []history.Turn) string {
	tc := resolve.ResolveAt(b.now(), query, turns)

	var p strings.Builder
	if ctx := b.foldHistory(turns); ctx != "" {
		p.WriteString("Context from the conversation so far:\n")
		p.WriteString(ctx)
		p.WriteString("\n\n")
	}
	p.WriteString(renderContext(tc))
	p.WriteString("\n\n")

	switch kind {
	case session.TaskBooking:
		fmt.Fprintf(&p, bookingTemplate, query)
	default:
		fmt.Fprintf(&p, searchTemplate, query)
	}
	return p.String()
}

// renderContext lists the resolved slots for the agent.
func renderContext(tc resolve.TaskContext) string {
	var b strings.Builder
	b.WriteString("Resolved details:\n")
	fmt.Fprintf(&b, "- Date: %s\n", orNotSpecified(tc.Date))
	fmt.Fprintf(&b, "- Time: %s\n", orNotSpecified(tc.Time))
	fmt.Fprintf(&b, "- Party size: %s\n", orNotSpecified(tc.PartySize))
	fmt.Fprintf(&b, "- Selected option: %s\n", orNotSpecified(tc.ReferencedItem))
	fmt.Fprintf(&b, "- Venue: %s", orNotSpecified(tc.NamedEntity))
	return b.String()
}

func orNotSpecified(v string) string {
	if v == "" {
		return "not specified"
	}
	return v
}

// foldHistory renders turns oldest-first, dropping the oldest turns
// first when the token budget would be exceeded.
func (b *PromptBuilder) foldHistory(turns []history.Turn) string {
	if len(turns) == 0 {
		return ""
	}

	enc, err := tiktoken.GetEncoding(historyEncoding)

	lines := make([]string, 0, len(turns))
	budget := b.tokenBudget
	for i := len(turns) - 1; i >= 0; i-- {
		label := "Assistant"
		if turns[i].Role == history.RoleUser {
			label = "User"
		}
		line := fmt.Sprintf("%s: %s", label, turns[i].Content)

		cost := len(line) / 4
		if err == nil {
			cost = len(enc.Encode(line, nil, nil))
		}
		if cost > budget && len(lines) > 0 {
			break
		}
		budget -= cost
		lines = append(lines, line)
		if budget <= 0 {
			break
		}
	}

	// Reverse back to chronological order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

const searchTemplate = `TASK: Find real-time information for: %q

TIME LIMIT: 90 seconds total

SEARCH STEPS:
1. [20s] Quick search on Google for best options
2. [30s] Check official websites/platforms:
   - If restaurants: OpenTable, official websites
   - If events: Ticketmaster, venue sites
   - If hotels: Booking.com, hotel sites
   - If activities: TripAdvisor, official sites
3. [20s] Verify current information:
   - Availability
   - Pricing
   - Ratings/Reviews
   - Contact details
4. [20s] Get booking details:
   - Direct booking links
   - Contact information
   - Important notes

FORMAT RESULTS:
1. OPTIONS FOUND:
   - Names/details
   - Current prices
   - Available times
   - Direct booking URLs

2. IMPORTANT INFO:
   - Special conditions
   - Additional fees
   - Requirements

3. BOOKING OPTIONS:
   - Direct booking links
   - Phone numbers
   - Alternative booking methods`

const bookingTemplate = `TASK: Make a booking for: %q

TIME LIMIT: 90 seconds

STEPS:
1. [30s] Access booking system
2. [30s] Enter required details
3. [30s] Complete reservation

FORMAT RESULTS:
- Booking confirmation
- Important details
- Next steps`
