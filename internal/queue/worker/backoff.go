package worker

import (
	"math/rand/v2"
	"time"
)

const (
	backoffBase   = 2 * time.Second
	backoffCap    = 5 * time.Minute
	backoffJitter = 250 * time.Millisecond
)

// ExponentialBackoff is 2s doubled per prior attempt, capped at 5m, plus up
// to 250ms of jitter so workers retrying the same outage spread out.
func ExponentialBackoff(attempt int) time.Duration {
	delay := backoffCap

	switch {
	case attempt <= 0:
		delay = backoffBase
	case attempt < 16:
		delay = min(backoffBase<<attempt, backoffCap)
	}

	return delay + rand.N(backoffJitter)
}
