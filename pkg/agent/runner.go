package agent

import (
	"context"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/llm"
)

// CompletionRunner answers task prompts through the completion service
// directly. It is the default backend when no full automation agent is
// wired in; the browser handle on the task is left for backends that
// drive the page themselves.
type CompletionRunner struct {
	provider llm.Provider
}

// NewCompletionRunner builds a runner on provider.
func NewCompletionRunner(provider llm.Provider) *CompletionRunner {
	return &CompletionRunner{provider: provider}
}

// Run implements Runner.
func (r *CompletionRunner) Run(ctx context.Context, task Task) (Outcome, error) {
	out, err := r.provider.Complete(ctx, []llm.Message{llm.SystemMessage(task.Prompt)})
	if err != nil {
		return nil, err
	}
	return TextOutcome(out), nil
}
