package usage

import (
	"math/rand"
	"time"
)

// Retry delays between write attempts. Attempt 1 follows the first failure.
var retryDelays = []time.Duration{
	50 * time.Millisecond,
	250 * time.Millisecond,
}

const (
	// DefaultMaxAttempts is the number of times a queued event is written
	// before it is dropped.
	DefaultMaxAttempts = 3

	// JitterFactor is the ±percentage of jitter applied to delays.
	JitterFactor = 0.2
)

// nextRetryDelay returns the backoff before retry number attempt (0-indexed)
// with ±20% jitter.
func nextRetryDelay(delays []time.Duration, attempt int) time.Duration {
	if len(delays) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(delays) {
		attempt = len(delays) - 1
	}

	base := delays[attempt]
	jitterRange := float64(base) * JitterFactor
	jitter := (rand.Float64()*2 - 1) * jitterRange

	return time.Duration(float64(base) + jitter)
}
