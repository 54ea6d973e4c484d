package llm

import (
	"context"
	"sync"
)

// MockProvider is a scripted Provider for tests. Responses are returned
// in order; once exhausted, the last response repeats. A non-nil Err is
// returned for every call instead.
type MockProvider struct {
	Responses []string
	Err       error

	mu    sync.Mutex
	calls []([]Message)
	next  int
}

// Complete implements Provider.
func (m *MockProvider) Complete(_ context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, messages)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	if m.next >= len(m.Responses) {
		return m.Responses[len(m.Responses)-1], nil
	}
	resp := m.Responses[m.next]
	m.next++
	return resp, nil
}

// Calls returns the message slices passed to Complete, in order.
func (m *MockProvider) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}
