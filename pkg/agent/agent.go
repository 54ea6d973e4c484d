// Package agent defines the automation-agent boundary. The concierge
// core treats running one browser task as an atomic, possibly expensive
// remote operation; this package holds the interface and the outcome
// shapes that cross it.
package agent

import (
	"context"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/browser"
)

// Task is a single unit of work dispatched to the automation agent.
type Task struct {
	// Prompt is the fully resolved browser-task instruction.
	Prompt string

	// Handle is the browser the agent drives. Owned by the session
	// manager; the agent must not close it.
	Handle *browser.Handle

	// SensitiveData maps placeholder keys to secret values the agent
	// may substitute into form fields. Values must never be logged.
	SensitiveData map[string]string
}

// Runner executes browser tasks. Implementations are external to this
// core; tests use scripted fakes.
type Runner interface {
	Run(ctx context.Context, task Task) (Outcome, error)
}

// Outcome is the result of an agent run. The agent's result shape is
// not predictable run to run, so it is modeled as a closed set:
// TextOutcome, StepsOutcome, or OpaqueOutcome.
type Outcome interface {
	isOutcome()
}

// TextOutcome is a run that produced plain text directly.
type TextOutcome string

func (TextOutcome) isOutcome() {}

// Step is one action the agent took during a run.
type Step struct {
	// Action names what the agent did (navigate, click, extract...).
	Action string

	// Content is the text the step extracted, if any.
	Content string

	// Done marks the step that completed the task.
	Done bool
}

// StepsOutcome is a run that produced an ordered list of step results,
// possibly partial.
type StepsOutcome struct {
	Steps []Step
}

func (StepsOutcome) isOutcome() {}

// OpaqueOutcome wraps any other result shape. Value may implement
// fmt.Stringer.
type OpaqueOutcome struct {
	Value any
}

func (OpaqueOutcome) isOutcome() {}
