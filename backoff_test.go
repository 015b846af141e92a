package foanalytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffSequence(t *testing.T) {
	policy := newReconnectPolicy(5*time.Second, 30*time.Second, 10)

	var delays []time.Duration
	for i := 0; i < 6; i++ {
		delays = append(delays, policy.next())
	}

	assert.Equal(t, []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}, delays)
}

func TestBackoffResetStartsOver(t *testing.T) {
	policy := newReconnectPolicy(5*time.Second, 30*time.Second, 10)

	policy.next()
	policy.next()
	policy.reset()

	assert.Equal(t, 5*time.Second, policy.next())
}

func TestBackoffExhaustion(t *testing.T) {
	policy := newReconnectPolicy(5*time.Second, 30*time.Second, 10)

	assert.False(t, policy.exhausted(1))
	assert.False(t, policy.exhausted(10))
	assert.True(t, policy.exhausted(11))
}

func TestBackoffCustomParameters(t *testing.T) {
	policy := newReconnectPolicy(time.Second, 4*time.Second, 3)

	assert.Equal(t, time.Second, policy.next())
	assert.Equal(t, 2*time.Second, policy.next())
	assert.Equal(t, 4*time.Second, policy.next())
	assert.Equal(t, 4*time.Second, policy.next())
	assert.True(t, policy.exhausted(4))
}
