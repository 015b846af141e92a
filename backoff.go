package foanalytics

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ============================================================================
// Reconnection Policy
// ============================================================================

// reconnectPolicy yields the delay before each reconnect attempt: the base
// delay doubled per attempt and capped, with no jitter (5s, 10s, 20s, 30s,
// 30s, ...) for the defaults. It is reset whenever a connection opens, so
// attempts count consecutive failures only.
type reconnectPolicy struct {
	maxAttempts int
	exp         *backoff.ExponentialBackOff
}

func newReconnectPolicy(base, maxDelay time.Duration, maxAttempts int) *reconnectPolicy {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = base
	exp.MaxInterval = maxDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &reconnectPolicy{maxAttempts: maxAttempts, exp: exp}
}

// exhausted reports whether attempt is past the allowed maximum, at which
// point the client stops retrying and emits a terminal failure event.
func (p *reconnectPolicy) exhausted(attempt int) bool {
	return attempt > p.maxAttempts
}

func (p *reconnectPolicy) next() time.Duration {
	return p.exp.NextBackOff()
}

func (p *reconnectPolicy) reset() {
	p.exp.Reset()
}
