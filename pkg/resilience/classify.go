package resilience

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/gobwas/glob"
)

// Class buckets an upstream failure for retry and breaker decisions.
type Class int

const (
	// ClassTransient covers network blips and timeouts. Retried locally
	// without counting toward any breaker.
	ClassTransient Class = iota

	// ClassOverload covers rate-limit and capacity signatures. Counts
	// toward both breakers.
	ClassOverload

	// ClassFatal is everything else. Retried up to the budget and
	// counted toward the general breaker, since repeated unknown
	// failures also indicate systemic trouble.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassOverload:
		return "overload"
	default:
		return "fatal"
	}
}

// Overload and transient signatures are matched against the lowercased
// error text. The vocabulary follows the failure modes of hosted LLM
// and browser providers.
var (
	overloadPatterns = compilePatterns([]string{
		"*rate limit*",
		"*rate_limit*",
		"*ratelimit*",
		"*too many requests*",
		"*429*",
		"*502*",
		"*503*",
		"*504*",
		"*bad gateway*",
		"*service unavailable*",
		"*gateway timeout*",
		"*capacity*",
		"*overloaded*",
		"*quota*",
	})

	transientPatterns = compilePatterns([]string{
		"*timeout*",
		"*timed out*",
		"*deadline exceeded*",
		"*connection reset*",
		"*connection refused*",
		"*connection closed*",
		"*broken pipe*",
		"*no such host*",
		"*temporarily unavailable*",
		"*eof*",
	})
)

func compilePatterns(patterns []string) []glob.Glob {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, glob.MustCompile(p))
	}
	return compiled
}

func matchesAny(patterns []glob.Glob, text string) bool {
	for _, p := range patterns {
		if p.Match(text) {
			return true
		}
	}
	return false
}

// Classify buckets err by its failure signature. Overload markers win
// over transient ones: a gateway timeout from a saturated provider is
// evidence of overload, not a local blip.
func Classify(err error) Class {
	if err == nil {
		return ClassTransient
	}

	text := strings.ToLower(err.Error())
	if matchesAny(overloadPatterns, text) {
		return ClassOverload
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	if matchesAny(transientPatterns, text) {
		return ClassTransient
	}

	return ClassFatal
}
