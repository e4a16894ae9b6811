package taskpay

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// PaymentProcessor performs the external payment side effect.
//
// Execute is synchronous and side-effecting. At-most-once invocation per
// idempotency key is enforced by the ledger admission protocol, not by the
// processor itself.
//
// The return contract separates terminal outcomes from infrastructure
// failures:
//   - (PaymentStatusSuccess, nil): the charge went through
//   - (PaymentStatusFailed, nil): the provider declined; retrying the same
//     request would decline again, so callers may cache this outcome
//   - ("", err): the attempt itself failed (timeout, cancellation, transport);
//     a legitimate retry should redo it and the outcome must NOT be cached
type PaymentProcessor interface {
	Execute(ctx context.Context, req PaymentRequest) (PaymentStatus, error)
}

// SimulatedProvider is a stand-in for an external payment gateway with
// configurable latency and decline rate. The zero configuration processes
// every payment instantly and successfully, which keeps tests deterministic.
type SimulatedProvider struct {
	latency     time.Duration
	declineRate float64

	mu  sync.Mutex // guards rng; rand.Rand is not safe for concurrent use
	rng *rand.Rand
}

// ProviderOption configures a SimulatedProvider.
type ProviderOption func(*SimulatedProvider)

// WithLatency sets the simulated network delay per payment attempt.
func WithLatency(d time.Duration) ProviderOption {
	return func(p *SimulatedProvider) {
		p.latency = d
	}
}

// WithDeclineRate sets the fraction of payments (0.0 to 1.0) the provider
// declines with a terminal FAILED outcome.
func WithDeclineRate(rate float64) ProviderOption {
	return func(p *SimulatedProvider) {
		p.declineRate = rate
	}
}

// WithRandSource sets the random source used for decline decisions.
// Useful for reproducing a specific decline sequence in tests.
func WithRandSource(src rand.Source) ProviderOption {
	return func(p *SimulatedProvider) {
		p.rng = rand.New(src)
	}
}

// NewSimulatedProvider creates a simulated payment provider.
func NewSimulatedProvider(opts ...ProviderOption) *SimulatedProvider {
	p := &SimulatedProvider{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute simulates charging the external reference.
// Cancellation during the simulated delay surfaces as an error, never as a
// terminal outcome.
func (p *SimulatedProvider) Execute(ctx context.Context, req PaymentRequest) (PaymentStatus, error) {
	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if p.declineRate > 0 {
		p.mu.Lock()
		declined := p.rng.Float64() < p.declineRate
		p.mu.Unlock()
		if declined {
			return PaymentStatusFailed, nil
		}
	}
	return PaymentStatusSuccess, nil
}

// Ensure SimulatedProvider implements PaymentProcessor
var _ PaymentProcessor = (*SimulatedProvider)(nil)
