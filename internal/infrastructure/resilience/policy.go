package resilience

import "time"

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	// OnBreakerStateChange is called after the breaker logs a transition.
	OnBreakerStateChange func(operation, from, to string)
}

// DefaultConfig makes a single attempt with the breaker off.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    1,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          false,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// SummaryPolicy guards the summary generator. Zero values keep the defaults.
func SummaryPolicy(maxAttempts int, breakerEnabled bool, breakerMinRequests int) Config {
	policy := DefaultConfig()
	policy.RetryMaxAttempts = maxAttempts
	policy.BreakerEnabled = breakerEnabled
	if breakerMinRequests > 0 {
		policy.BreakerMinRequests = uint32(breakerMinRequests)
	}
	return policy.normalize()
}

// PublishPolicy guards event publishing, which tolerates a short reconnect.
func PublishPolicy() Config {
	policy := DefaultConfig()
	policy.RetryMaxAttempts = 3
	policy.RetryInitialBackoff = 50 * time.Millisecond
	policy.RetryMaxBackoff = 200 * time.Millisecond
	policy.BreakerEnabled = true
	return policy
}

func (c Config) normalize() Config {
	def := DefaultConfig()

	c.RetryMaxAttempts = positiveOr(c.RetryMaxAttempts, def.RetryMaxAttempts)
	c.RetryInitialBackoff = positiveOr(c.RetryInitialBackoff, def.RetryInitialBackoff)
	c.RetryMaxBackoff = max(positiveOr(c.RetryMaxBackoff, def.RetryMaxBackoff), c.RetryInitialBackoff)
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = def.RetryMultiplier
	}

	c.BreakerMinRequests = positiveOr(c.BreakerMinRequests, def.BreakerMinRequests)
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	c.BreakerOpenTimeout = positiveOr(c.BreakerOpenTimeout, def.BreakerOpenTimeout)
	c.BreakerHalfOpenMaxCalls = positiveOr(c.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return c
}

func positiveOr[T int | uint32 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
