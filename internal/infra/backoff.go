package infra

import (
	"math"
	"time"
)

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// CalculateBackoff returns the delay before reconnect attempt retryCount.
// Exponential: 1s, 2s, 4s, ... capped at 60s.
func CalculateBackoff(retryCount int) time.Duration {
	delay := backoffBase * time.Duration(math.Pow(2, float64(retryCount)))
	if delay > backoffMax || delay <= 0 {
		delay = backoffMax
	}
	return delay
}
