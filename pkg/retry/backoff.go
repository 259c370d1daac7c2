package retry

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func newBackOff(policy Policy) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.InitialInterval
	exp.MaxInterval = policy.MaxInterval
	exp.Multiplier = policy.Multiplier
	exp.RandomizationFactor = policy.Jitter
	exp.MaxElapsedTime = policy.MaxElapsedTime
	exp.Reset()
	return exp
}

// Delay returns the un-jittered wait before retry number attempt (0-based).
func Delay(policy Policy, attempt int) time.Duration {
	d := float64(policy.InitialInterval) * math.Pow(policy.Multiplier, float64(attempt))
	if policy.MaxInterval > 0 && d > float64(policy.MaxInterval) {
		return policy.MaxInterval
	}
	return time.Duration(d)
}
