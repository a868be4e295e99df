package dispatch

import (
	"sync"
	"time"
)

// Breakers holds one circuit breaker per model, created on first use.
type Breakers struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	failureThreshold      int
	recoveryProbeInterval time.Duration
}

// NewBreakers returns nil when failureThreshold is zero or negative, which
// disables circuit breaking.
func NewBreakers(failureThreshold int, recoveryProbeInterval time.Duration) *Breakers {
	if failureThreshold <= 0 {
		return nil
	}
	return &Breakers{
		breakers:              make(map[string]*CircuitBreaker),
		failureThreshold:      failureThreshold,
		recoveryProbeInterval: recoveryProbeInterval,
	}
}

// Get returns (or lazily creates) the breaker for model.
func (b *Breakers) Get(model string) *CircuitBreaker {
	b.mu.RLock()
	cb, ok := b.breakers[model]
	b.mu.RUnlock()
	if ok {
		return cb
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[model]; ok {
		return cb
	}
	cb = NewCircuitBreaker(b.failureThreshold, b.recoveryProbeInterval)
	b.breakers[model] = cb
	return cb
}

// States returns a snapshot of every known breaker state.
func (b *Breakers) States() map[string]CircuitState {
	out := make(map[string]CircuitState)
	if b == nil {
		return out
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for model, cb := range b.breakers {
		out[model] = cb.State()
	}
	return out
}
