package resilience

import "time"

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	BreakerEnabled     bool
	BreakerMinRequests uint32
	BreakerFailureRate float64
	BreakerOpenFor     time.Duration
	BreakerProbeCalls  uint32
}

// DefaultPolicy allows a single automatic retry. Callers that must not
// retry at the transport level use SingleAttemptPolicy instead.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    2,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     400 * time.Millisecond,
		Multiplier:     2.0,

		BreakerEnabled:     true,
		BreakerMinRequests: 10,
		BreakerFailureRate: 0.5,
		BreakerOpenFor:     30 * time.Second,
		BreakerProbeCalls:  2,
	}
}

// SingleAttemptPolicy keeps the circuit breaker but never retries. Retry
// decisions for calls behind it belong to the caller, which can tell a
// malformed response from a transport fault.
func SingleAttemptPolicy() Policy {
	out := DefaultPolicy()
	out.MaxAttempts = 1
	return out
}

func (p Policy) normalize() Policy {
	out := p
	def := DefaultPolicy()

	if out.MaxAttempts <= 0 {
		out.MaxAttempts = def.MaxAttempts
	}
	if out.InitialBackoff <= 0 {
		out.InitialBackoff = def.InitialBackoff
	}
	if out.MaxBackoff < out.InitialBackoff {
		out.MaxBackoff = out.InitialBackoff
	}
	if out.Multiplier < 1.0 {
		out.Multiplier = def.Multiplier
	}
	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRate <= 0 || out.BreakerFailureRate > 1 {
		out.BreakerFailureRate = def.BreakerFailureRate
	}
	if out.BreakerOpenFor <= 0 {
		out.BreakerOpenFor = def.BreakerOpenFor
	}
	if out.BreakerProbeCalls == 0 {
		out.BreakerProbeCalls = def.BreakerProbeCalls
	}
	return out
}
