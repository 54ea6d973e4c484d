// Package session owns the per-user browser session lifecycle and is
// the entry point for running automation tasks. The Manager composes
// the resilience controller, the context-aware prompt builder, and the
// result extractor around each dispatch, and converts every failure
// into a user-safe sentence at this boundary.
package session

import (
	"errors"
	"time"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/browser"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/history"
)

// TaskKind selects the prompt template used for a dispatch.
type TaskKind string

const (
	// TaskSearch looks availability and options up without committing.
	TaskSearch TaskKind = "search"

	// TaskBooking attempts to complete a reservation.
	TaskBooking TaskKind = "booking"
)

// State is the lifecycle state of one user's session.
type State int

const (
	// StateUninitialized means bookkeeping exists but no handle yet.
	StateUninitialized State = iota

	// StateActive means the session holds a live browser handle.
	StateActive

	// StateClosing means teardown has begun. A Closing session is never
	// handed out; callers get a fresh one.
	StateClosing

	// StateClosed means the handle is gone and the session is retired.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the per-user wrapper around one browser handle. At most
// one live handle exists per user at any time.
type Session struct {
	UserID       string
	Handle       *browser.Handle
	State        State
	LastActivity time.Time

	// budget is this session's inactivity allowance. Starts at the
	// configured timeout and grows via ExtendTimeout.
	budget time.Duration
}

// Prompter builds the browser-task prompt for a query given recent
// conversation history. The conversation layer provides the production
// implementation.
type Prompter interface {
	TaskPrompt(query string, kind TaskKind, turns []history.Turn) string
}

// Sentinel errors returned alongside user-safe text.
var (
	// ErrEmptyQuery rejects a dispatch with no request text.
	ErrEmptyQuery = errors.New("empty query")

	// ErrSessionInit marks a browser handle that could not be created.
	// Terminal for the call; triggers a forced reset.
	ErrSessionInit = errors.New("session initialization failed")

	// ErrCircuitOpen marks a dispatch refused or aborted by an open
	// circuit breaker.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// User-safe messages. No raw error text crosses the session boundary.
const (
	msgEmptyQuery        = "I didn't catch a request there. What would you like me to look into?"
	msgSessionInitFailed = "I couldn't start a browser for that request. Please try again shortly."
	msgTaskFailed        = "Sorry, I wasn't able to finish that just now. Please try again in a moment."
)
