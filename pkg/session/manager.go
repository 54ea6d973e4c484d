package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/agent"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/browser"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/extract"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/history"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/logging"
	"github.com/Dhilan-Panjabi/concierge-agent/pkg/resilience"
)

// Config bounds the Manager's timers and retry budget.
type Config struct {
	// InactivityTimeout is how long an idle session survives before the
	// sweep evicts it.
	InactivityTimeout time.Duration

	// KeepAliveInterval is how often an in-flight dispatch refreshes
	// its session's activity timestamp. Must be strictly shorter than
	// InactivityTimeout so a slow task is never evicted mid-flight.
	KeepAliveInterval time.Duration

	// SweepInterval is the cadence of the background eviction pass.
	SweepInterval time.Duration

	// TaskTimeout is the wall-clock deadline for one dispatch attempt.
	// Zero disables the deadline.
	TaskTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// MaxHistoryTurns caps how much conversation history feeds the
	// prompt builder.
	MaxHistoryTurns int

	// SensitiveData is substituted into form fields by the agent. The
	// values never appear in logs or prompts.
	SensitiveData map[string]string
}

// Manager owns one browser session per user. One Manager is created at
// process start and injected into callers; the session map and the
// breaker state behind the controller are the only shared mutable
// state.
type Manager struct {
	cfg      Config
	launcher browser.Launcher
	runner   agent.Runner
	ctrl     *resilience.Controller
	store    history.Store
	prompter Prompter
	log      *logging.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewManager wires a Manager from its collaborators. A nil logger
// disables logging.
func NewManager(cfg Config, launcher browser.Launcher, runner agent.Runner, ctrl *resilience.Controller, store history.Store, prompter Prompter, log *logging.Logger) *Manager {
	if cfg.MaxHistoryTurns <= 0 {
		cfg.MaxHistoryTurns = 10
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 5 * time.Minute
	}
	return &Manager{
		cfg:      cfg,
		launcher: launcher,
		runner:   runner,
		ctrl:     ctrl,
		store:    store,
		prompter: prompter,
		log:      log,
		sessions: make(map[string]*Session),
		now:      time.Now,
		sleep:    sleepCtx,
		stop:     make(chan struct{}),
	}
}

// ExecuteTask runs one automation task for a user and returns text on
// every code path. The returned error carries the internal cause for
// callers that log or branch on it; the text is always safe to show.
func (m *Manager) ExecuteTask(ctx context.Context, userID, query string, kind TaskKind) (string, error) {
	if strings.TrimSpace(query) == "" {
		return msgEmptyQuery, ErrEmptyQuery
	}

	if d := m.ctrl.CheckCircuits(); !d.Allowed {
		m.infof("dispatch for user %s blocked, retry after %s", userID, d.RetryAfter)
		return d.Reason, fmt.Errorf("%w: retry after %s", ErrCircuitOpen, d.RetryAfter)
	}

	sess, err := m.acquire(ctx, userID)
	if err != nil {
		return msgSessionInitFailed, err
	}

	prompt := m.prompter.TaskPrompt(query, kind, m.recentTurns(userID))

	stopKeepAlive := m.startKeepAlive(userID)
	defer stopKeepAlive()

	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := m.ctrl.NextRetryDelay(attempt - 1)
			m.infof("retrying task for user %s in %s (attempt %d of %d)", userID, delay, attempt+1, m.cfg.MaxRetries+1)
			if err := m.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		outcome, runErr := m.dispatch(ctx, prompt, sess)
		if runErr == nil {
			m.ctrl.RecordSuccess()
			m.touch(userID)
			return extract.Result(outcome), nil
		}
		lastErr = runErr

		if ctx.Err() != nil {
			break
		}

		class := resilience.Classify(runErr)
		m.warnf("task attempt %d for user %s failed (%s): %v", attempt+1, userID, class, runErr)

		record := class
		if class == resilience.ClassTransient {
			// Transient failures only count once the retry budget is
			// exhausted.
			if attempt < m.cfg.MaxRetries {
				continue
			}
			record = resilience.ClassFatal
		}
		if m.ctrl.RecordFailure(record) {
			m.ForceReset(userID)
			reason := msgTaskFailed
			if d := m.ctrl.CheckCircuits(); !d.Allowed {
				reason = d.Reason
			}
			return reason, fmt.Errorf("%w: %v", ErrCircuitOpen, runErr)
		}
	}

	m.ForceReset(userID)
	return msgTaskFailed, lastErr
}

// acquire replaces any pre-existing handle for the user with a fresh
// one. A clean handle per task trades latency for a known-good browser
// state on every dispatch.
func (m *Manager) acquire(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	sess := m.sessions[userID]
	if sess == nil {
		sess = &Session{UserID: userID, budget: m.cfg.InactivityTimeout}
		m.sessions[userID] = sess
	}
	old := sess.Handle
	sess.Handle = nil
	sess.State = StateUninitialized
	sess.LastActivity = m.now()
	m.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			// The old handle is unusable either way; proceed as closed.
			m.warnf("closing previous handle for user %s: %v", userID, err)
		}
	}

	handle, err := m.launcher.NewHandle(ctx)
	if err != nil {
		m.ForceReset(userID)
		return nil, fmt.Errorf("%w: %v", ErrSessionInit, err)
	}

	m.mu.Lock()
	sess.Handle = handle
	sess.State = StateActive
	sess.LastActivity = m.now()
	m.mu.Unlock()

	m.debugf("session for user %s active with handle %s", userID, handle.ID)
	return sess, nil
}

// dispatch runs one attempt against the agent, honoring both the
// caller's context and the per-attempt deadline. The runner call comes
// back through a channel so a hung run cannot block the session layer
// past its deadline.
func (m *Manager) dispatch(ctx context.Context, prompt string, sess *Session) (agent.Outcome, error) {
	rctx := ctx
	if m.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, m.cfg.TaskTimeout)
		defer cancel()
	}

	type result struct {
		outcome agent.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := m.runner.Run(rctx, agent.Task{
			Prompt:        prompt,
			Handle:        sess.Handle,
			SensitiveData: m.cfg.SensitiveData,
		})
		done <- result{outcome, err}
	}()

	select {
	case r := <-done:
		return r.outcome, r.err
	case <-rctx.Done():
		return nil, rctx.Err()
	}
}

func (m *Manager) recentTurns(userID string) []history.Turn {
	if m.store == nil {
		return nil
	}
	turns, err := m.store.Recent(userID, m.cfg.MaxHistoryTurns)
	if err != nil {
		m.warnf("loading history for user %s: %v", userID, err)
		return nil
	}
	return turns
}

// startKeepAlive refreshes the user's activity timestamp for the
// duration of a dispatch so the sweep cannot evict a session mid-task.
func (m *Manager) startKeepAlive(userID string) (stop func()) {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(m.cfg.KeepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.touch(userID)
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

func (m *Manager) touch(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess := m.sessions[userID]; sess != nil {
		sess.LastActivity = m.now()
	}
}

// ExtendTimeout refreshes the user's activity timestamp and raises the
// inactivity budget by additional. Creates the bookkeeping entry when
// the user has no session yet.
func (m *Manager) ExtendTimeout(userID string, additional time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.sessions[userID]
	if sess == nil {
		sess = &Session{UserID: userID, budget: m.cfg.InactivityTimeout}
		m.sessions[userID] = sess
	}
	sess.LastActivity = m.now()
	if additional > 0 {
		sess.budget += additional
	}
}

// Cleanup closes the user's handle if present and clears bookkeeping.
// Idempotent; safe on a user with no session.
func (m *Manager) Cleanup(userID string) {
	m.evict(userID, false)
}

// CleanupAll closes every session. Used on shutdown.
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		m.evict(id, false)
	}
}

// ForceReset unconditionally closes and removes the user's session,
// bypassing graceful shutdown. Used after unrecoverable errors.
func (m *Manager) ForceReset(userID string) {
	m.evict(userID, true)
}

func (m *Manager) evict(userID string, forced bool) {
	m.mu.Lock()
	sess := m.sessions[userID]
	var handle *browser.Handle
	if sess != nil {
		sess.State = StateClosing
		handle = sess.Handle
		sess.Handle = nil
		delete(m.sessions, userID)
	}
	m.mu.Unlock()

	if sess == nil {
		return
	}
	if handle != nil {
		if err := handle.Close(); err != nil && !forced {
			m.warnf("closing handle for user %s: %v", userID, err)
		}
	}

	m.mu.Lock()
	sess.State = StateClosed
	m.mu.Unlock()

	if forced {
		m.infof("forced reset of session for user %s", userID)
	} else {
		m.debugf("cleaned up session for user %s", userID)
	}
}

// Start launches the background inactivity sweep. One sweep goroutine
// runs per Manager; it stops on ctx cancellation or Stop.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				m.sweepExpired()
			}
		}
	}()
}

// Stop halts the sweep and waits for it to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// sweepExpired evicts every session idle past its inactivity budget.
// Handles are closed outside the lock so a slow close never blocks
// dispatches.
func (m *Manager) sweepExpired() {
	now := m.now()

	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if sess.State == StateClosing {
			continue
		}
		if now.Sub(sess.LastActivity) >= sess.budget {
			sess.State = StateClosing
			delete(m.sessions, id)
			expired = append(expired, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		if sess.Handle != nil {
			if err := sess.Handle.Close(); err != nil {
				m.warnf("closing handle for idle user %s: %v", sess.UserID, err)
			}
		}
		m.mu.Lock()
		sess.Handle = nil
		sess.State = StateClosed
		m.mu.Unlock()
		m.infof("evicted idle session for user %s", sess.UserID)
	}
}

// SessionState reports the current lifecycle state for a user.
func (m *Manager) SessionState(userID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.sessions[userID]
	if sess == nil {
		return StateClosed, false
	}
	return sess.State, true
}

// ActiveSessions reports how many sessions the Manager is tracking.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Manager) debugf(format string, v ...any) {
	if m.log != nil {
		m.log.Debugf(format, v...)
	}
}

func (m *Manager) infof(format string, v ...any) {
	if m.log != nil {
		m.log.Infof(format, v...)
	}
}

func (m *Manager) warnf(format string, v ...any) {
	if m.log != nil {
		m.log.Warnf(format, v...)
	}
}
