package resilience

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Dhilan-Panjabi/concierge-agent/pkg/logging"
)

// Breaker names, also used in blocked reasons and logs.
const (
	generalBreakerName  = "general"
	providerBreakerName = "provider"
)

// Decision is the outcome of a circuit check before a dispatch.
type Decision struct {
	// Allowed is true when both breakers admit the dispatch.
	Allowed bool

	// Reason is a user-safe sentence explaining a block.
	Reason string

	// RetryAfter is the remaining cooldown of the blocking breaker.
	RetryAfter time.Duration
}

// Config bounds the controller's breakers and backoff schedule.
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
}

// Controller owns the two circuit breakers and the retry delay policy.
// The session manager consults it before every dispatch and reports
// every classified failure back to it.
type Controller struct {
	general  *Breaker
	provider *Breaker
	base     time.Duration
	max      time.Duration
	log      *logging.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewController builds a Controller from cfg. A nil logger disables
// breaker transition logging.
func NewController(cfg Config, log *logging.Logger) *Controller {
	return &Controller{
		general:  NewBreaker(generalBreakerName, cfg.FailureThreshold, cfg.Cooldown),
		provider: NewBreaker(providerBreakerName, cfg.FailureThreshold, cfg.Cooldown),
		base:     cfg.RetryBaseDelay,
		max:      cfg.RetryMaxDelay,
		log:      log,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CheckCircuits is a pure read of breaker state (modulo cooldown expiry,
// which resets an open breaker whose window has passed). Called before
// any dispatch.
func (c *Controller) CheckCircuits() Decision {
	if allowed, retryAfter := c.provider.Allow(); !allowed {
		return Decision{
			Reason:     "The assistant is experiencing high demand right now. Please try again in a few minutes.",
			RetryAfter: retryAfter,
		}
	}
	if allowed, retryAfter := c.general.Allow(); !allowed {
		return Decision{
			Reason:     "I'm having trouble reaching the booking services right now. Please try again shortly.",
			RetryAfter: retryAfter,
		}
	}
	return Decision{Allowed: true}
}

// RecordFailure routes a classified failure to the breakers it counts
// toward and reports whether any breaker opened on this call.
//
// Overload counts toward both breakers; Fatal counts toward the general
// breaker only; Transient counts toward neither (it is retried locally).
func (c *Controller) RecordFailure(class Class) (opened bool) {
	switch class {
	case ClassOverload:
		if c.provider.RecordFailure() {
			c.logOpened(providerBreakerName)
			opened = true
		}
		if c.general.RecordFailure() {
			c.logOpened(generalBreakerName)
			opened = true
		}
	case ClassFatal:
		if c.general.RecordFailure() {
			c.logOpened(generalBreakerName)
			opened = true
		}
	}
	return opened
}

// RecordSuccess resets both breakers' failure counts. Success on any
// task is evidence the upstream has recovered.
func (c *Controller) RecordSuccess() {
	c.general.RecordSuccess()
	c.provider.RecordSuccess()
}

// NextRetryDelay computes the backoff before retry number attempt
// (zero-based): base * 2^attempt with ±25% uniform jitter, capped at
// the configured ceiling.
func (c *Controller) NextRetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := c.base
	for i := 0; i < attempt && delay < c.max; i++ {
		delay *= 2
	}
	if delay > c.max {
		delay = c.max
	}

	// ±25% jitter to avoid synchronized retry storms.
	c.rngMu.Lock()
	factor := 0.75 + c.rng.Float64()*0.5
	c.rngMu.Unlock()

	jittered := time.Duration(float64(delay) * factor)
	if jittered > c.max {
		jittered = c.max
	}
	return jittered
}

// GeneralState exposes the general breaker state for observability.
func (c *Controller) GeneralState() BreakerState { return c.general.State() }

// ProviderState exposes the provider breaker state for observability.
func (c *Controller) ProviderState() BreakerState { return c.provider.State() }

func (c *Controller) logOpened(name string) {
	if c.log != nil {
		c.log.Warnf("circuit breaker %q opened", name)
	}
}

// String renders the controller state for diagnostics.
func (c *Controller) String() string {
	return fmt.Sprintf("general=%s provider=%s", c.general.State(), c.provider.State())
}
