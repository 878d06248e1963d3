package outbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_GrowsExponentially(t *testing.T) {
	assert.Equal(t, 2*time.Minute, Backoff(1))
	assert.Equal(t, 4*time.Minute, Backoff(2))
	assert.Equal(t, 8*time.Minute, Backoff(3))
	assert.Equal(t, 16*time.Minute, Backoff(4))
	assert.Equal(t, 32*time.Minute, Backoff(5))
}

func TestBackoff_CapsAtSixtyFourMinutes(t *testing.T) {
	assert.Equal(t, 64*time.Minute, Backoff(6))
	assert.Equal(t, 64*time.Minute, Backoff(7))
	assert.Equal(t, 64*time.Minute, Backoff(100))
}

func TestBackoff_ClampsNegativeRetryCount(t *testing.T) {
	assert.Equal(t, time.Minute, Backoff(0))
	assert.Equal(t, time.Minute, Backoff(-5))
}

func TestBackoff_Monotonic(t *testing.T) {
	for i := 1; i < 20; i++ {
		assert.GreaterOrEqual(t, Backoff(i+1), Backoff(i), "backoff must never shrink as retries grow")
	}
}
