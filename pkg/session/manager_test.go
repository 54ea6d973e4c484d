package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/agent"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/browser"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/history"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/resilience"
)

type fakeLauncher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeLauncher) NewHandle(ctx context.Context) (*browser.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &browser.Handle{ID: fmt.Sprintf("handle-%d", f.calls), CreatedAt: time.Now()}, nil
}

func (f *fakeLauncher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRunner replays errs in order; a nil entry or exhausting the list
// means success, unless sticky repeats the last error forever. delay
// simulates a slow agent run.
type fakeRunner struct {
	mu      sync.Mutex
	calls   int
	errs    []error
	sticky  bool
	outcome agent.Outcome
	delay   time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, task agent.Task) (agent.Outcome, error) {
	f.mu.Lock()
	f.calls++
	i := f.calls - 1
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var err error
	switch {
	case i < len(f.errs):
		err = f.errs[i]
	case f.sticky && len(f.errs) > 0:
		err = f.errs[len(f.errs)-1]
	}
	if err != nil {
		return nil, err
	}
	if f.outcome != nil {
		return f.outcome, nil
	}
	return agent.TextOutcome("done"), nil
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type staticPrompter struct{}

func (staticPrompter) TaskPrompt(query string, kind TaskKind, turns []history.Turn) string {
	return fmt.Sprintf("%s task: %s", kind, query)
}

func newTestManager(t *testing.T, launcher *fakeLauncher, runner *fakeRunner, maxRetries int) *Manager {
	t.Helper()
	ctrl := resilience.NewController(resilience.Config{
		FailureThreshold: 3,
		Cooldown:         5 * time.Minute,
		RetryBaseDelay:   2 * time.Second,
		RetryMaxDelay:    2 * time.Minute,
	}, nil)
	m := NewManager(Config{
		InactivityTimeout: time.Minute,
		KeepAliveInterval: 10 * time.Millisecond,
		SweepInterval:     time.Minute,
		MaxRetries:        maxRetries,
	}, launcher, runner, ctrl, history.NewMemoryStore(), staticPrompter{}, nil)
	m.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return m
}

func TestExecuteTaskSuccess(t *testing.T) {
	launcher := &fakeLauncher{}
	runner := &fakeRunner{outcome: agent.TextOutcome("Found 3 options for you.")}
	m := newTestManager(t, launcher, runner, 3)

	text, err := m.ExecuteTask(context.Background(), "user-1", "find sushi tonight", TaskSearch)
	require.NoError(t, err)
	assert.Equal(t, "Found 3 options for you.", text)
	assert.Equal(t, 1, launcher.callCount())
	assert.Equal(t, 1, runner.callCount())

	state, ok := m.SessionState("user-1")
	require.True(t, ok)
	assert.Equal(t, StateActive, state)
}

func TestExecuteTaskEmptyQuery(t *testing.T) {
	m := newTestManager(t, &fakeLauncher{}, &fakeRunner{}, 3)

	text, err := m.ExecuteTask(context.Background(), "user-1", "   ", TaskSearch)
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.NotEmpty(t, text)
}

func TestExecuteTaskRetriesTransient(t *testing.T) {
	launcher := &fakeLauncher{}
	runner := &fakeRunner{
		errs:    []error{errors.New("read tcp: connection reset by peer"), errors.New("i/o timeout"), nil},
		outcome: agent.TextOutcome("recovered"),
	}
	m := newTestManager(t, launcher, runner, 3)

	text, err := m.ExecuteTask(context.Background(), "user-1", "book a table", TaskBooking)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 3, runner.callCount())

	// Transient failures that recover never count toward the breakers.
	assert.Equal(t, resilience.StateClosed, m.ctrl.GeneralState())
	assert.Equal(t, resilience.StateClosed, m.ctrl.ProviderState())
}

func TestBreakerOpensOnThirdOverload(t *testing.T) {
	launcher := &fakeLauncher{}
	runner := &fakeRunner{errs: []error{errors.New("upstream returned 429 too many requests")}, sticky: true}
	m := newTestManager(t, launcher, runner, 0)

	ctx := context.Background()

	_, err := m.ExecuteTask(ctx, "user-1", "find ramen", TaskSearch)
	require.Error(t, err)
	_, err = m.ExecuteTask(ctx, "user-1", "find ramen", TaskSearch)
	require.Error(t, err)

	// Third overload trips the breaker mid-call.
	text, err := m.ExecuteTask(ctx, "user-1", "find ramen", TaskSearch)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, text, "high demand")
	assert.Equal(t, resilience.StateOpen, m.ctrl.ProviderState())
	assert.Equal(t, 3, runner.callCount())

	// Fourth call fails fast without dispatching.
	text, err = m.ExecuteTask(ctx, "user-1", "find ramen", TaskSearch)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.NotEmpty(t, text)
	assert.Equal(t, 3, runner.callCount())
	assert.Equal(t, 3, launcher.callCount())
}

func TestExecuteTaskSessionInitFailed(t *testing.T) {
	launcher := &fakeLauncher{err: errors.New("browser exited during startup")}
	m := newTestManager(t, launcher, &fakeRunner{}, 3)

	text, err := m.ExecuteTask(context.Background(), "user-1", "find pizza", TaskSearch)
	assert.ErrorIs(t, err, ErrSessionInit)
	assert.NotEmpty(t, text)

	_, ok := m.SessionState("user-1")
	assert.False(t, ok)
}

func TestExecuteTaskHonorsTaskTimeout(t *testing.T) {
	launcher := &fakeLauncher{}
	runner := &fakeRunner{delay: 200 * time.Millisecond}
	m := newTestManager(t, launcher, runner, 0)
	m.cfg.TaskTimeout = 20 * time.Millisecond

	_, err := m.ExecuteTask(context.Background(), "user-1", "slow task", TaskSearch)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCleanupIsIdempotent(t *testing.T) {
	launcher := &fakeLauncher{}
	m := newTestManager(t, launcher, &fakeRunner{}, 3)

	// No session at all.
	m.Cleanup("ghost")
	m.Cleanup("ghost")

	_, err := m.ExecuteTask(context.Background(), "user-1", "find tacos", TaskSearch)
	require.NoError(t, err)

	m.Cleanup("user-1")
	m.Cleanup("user-1")
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestCleanupAll(t *testing.T) {
	m := newTestManager(t, &fakeLauncher{}, &fakeRunner{}, 3)
	ctx := context.Background()

	for _, user := range []string{"a", "b", "c"} {
		_, err := m.ExecuteTask(ctx, user, "find brunch", TaskSearch)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, m.ActiveSessions())

	m.CleanupAll()
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestForceResetRemovesSession(t *testing.T) {
	m := newTestManager(t, &fakeLauncher{}, &fakeRunner{}, 3)

	_, err := m.ExecuteTask(context.Background(), "user-1", "find a bar", TaskSearch)
	require.NoError(t, err)

	m.ForceReset("user-1")
	_, ok := m.SessionState("user-1")
	assert.False(t, ok)
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	m := newTestManager(t, &fakeLauncher{}, &fakeRunner{}, 3)

	_, err := m.ExecuteTask(context.Background(), "user-1", "find coffee", TaskSearch)
	require.NoError(t, err)
	require.Equal(t, 1, m.ActiveSessions())

	// Jump the clock past the inactivity timeout and sweep.
	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	m.sweepExpired()
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestSweepSparesRecentlyActive(t *testing.T) {
	m := newTestManager(t, &fakeLauncher{}, &fakeRunner{}, 3)

	_, err := m.ExecuteTask(context.Background(), "user-1", "find coffee", TaskSearch)
	require.NoError(t, err)

	m.sweepExpired()
	assert.Equal(t, 1, m.ActiveSessions())
}

func TestExtendTimeoutCreatesBookkeeping(t *testing.T) {
	m := newTestManager(t, &fakeLauncher{}, &fakeRunner{}, 3)

	m.ExtendTimeout("new-user", 10*time.Minute)
	state, ok := m.SessionState("new-user")
	require.True(t, ok)
	assert.Equal(t, StateUninitialized, state)
}

func TestExtendTimeoutRaisesBudget(t *testing.T) {
	m := newTestManager(t, &fakeLauncher{}, &fakeRunner{}, 3)

	_, err := m.ExecuteTask(context.Background(), "user-1", "find dinner", TaskSearch)
	require.NoError(t, err)

	m.ExtendTimeout("user-1", 5*time.Minute)

	// Past the base timeout but inside the extended budget.
	m.now = func() time.Time { return time.Now().Add(3 * time.Minute) }
	m.sweepExpired()
	assert.Equal(t, 1, m.ActiveSessions())

	// Past the extended budget as well.
	m.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	m.sweepExpired()
	assert.Equal(t, 0, m.ActiveSessions())
}

func TestKeepAliveRefreshesActivity(t *testing.T) {
	m := newTestManager(t, &fakeLauncher{}, &fakeRunner{}, 3)
	m.ExtendTimeout("user-1", 0)

	m.mu.Lock()
	before := m.sessions["user-1"].LastActivity
	m.mu.Unlock()

	stop := m.startKeepAlive("user-1")
	defer stop()
	time.Sleep(50 * time.Millisecond)

	m.mu.Lock()
	after := m.sessions["user-1"].LastActivity
	m.mu.Unlock()
	assert.True(t, after.After(before))
}

func TestStartStopSweep(t *testing.T) {
	m := newTestManager(t, &fakeLauncher{}, &fakeRunner{}, 3)
	m.cfg.SweepInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	m.Stop()
	// Stop twice must not panic.
	m.Stop()
}

func TestFreshHandlePerTask(t *testing.T) {
	launcher := &fakeLauncher{}
	m := newTestManager(t, launcher, &fakeRunner{}, 3)
	ctx := context.Background()

	_, err := m.ExecuteTask(ctx, "user-1", "first task", TaskSearch)
	require.NoError(t, err)
	_, err = m.ExecuteTask(ctx, "user-1", "second task", TaskSearch)
	require.NoError(t, err)

	assert.Equal(t, 2, launcher.callCount())
	assert.Equal(t, 1, m.ActiveSessions())
}
