package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/llm"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/logging"
)

// DefaultMaxMessageLength is the chunk size for transports with a hard
// message cap (Telegram allows 4096; headroom for formatting).
const DefaultMaxMessageLength = 4000

// Formatter turns raw agent output into a concierge-style reply.
type Formatter struct {
	provider llm.Provider
	log      *logging.Logger
}

// NewFormatter builds a Formatter. A nil logger is allowed.
func NewFormatter(provider llm.Provider, log *logging.Logger) *Formatter {
	return &Formatter{provider: provider, log: log}
}

// Format rewrites agentResult for user display. On any failure the raw
// result is returned untouched, which is always safe to show.
func (f *Formatter) Format(ctx context.Context, userRequest, agentResult string) string {
	prompt := fmt.Sprintf(`USER REQUEST: %s

SEARCH RESULTS: %s

FORMAT GUIDELINES:
1. Structure the response clearly with sections
2. Highlight key information (prices, times, contact details)
3. Include all URLs and contact information exactly as provided
4. Add helpful context where needed
5. Keep the tone friendly and helpful
6. Use bullet points for better readability
7. Keep total response under 4000 characters when possible

IMPORTANT:
- Keep all URLs and contact information intact
- Maintain accuracy of prices and availability
- Include booking instructions if relevant`, userRequest, agentResult)

	out, err := f.provider.Complete(ctx, []llm.Message{llm.SystemMessage(prompt)})
	if err != nil {
		if f.log != nil {
			f.log.Errorf("formatting reply: %v", err)
		}
		return agentResult
	}
	return strings.TrimSpace(out)
}

// SplitMessage breaks text into chunks no longer than maxLength,
// preferring newline boundaries, then sentence boundaries, then a hard
// cut. Used for transports that reject long messages.
func SplitMessage(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = DefaultMaxMessageLength
	}
	if len(text) <= maxLength {
		return []string{text}
	}

	var parts []string
	for len(text) > maxLength {
		window := text[:maxLength]
		split := strings.LastIndex(window, "\n")
		if split <= 0 {
			if idx := strings.LastIndex(window, ". "); idx > 0 {
				split = idx + 1
			}
		}
		if split <= 0 {
			split = maxLength
		}
		parts = append(parts, strings.TrimSpace(text[:split]))
		text = strings.TrimSpace(text[split:])
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
