package retry

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Config describes a retry policy: how many extra attempts a failed
// operation gets and the fixed delay between attempts.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// Delay is the fixed wait between attempts.
	Delay time.Duration
}

// DefaultConfig returns the policy applied to pipeline-level fallbacks:
// one extra attempt with a short fixed delay.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 1,
		Delay:      250 * time.Millisecond,
	}
}

// Policy is a reusable retry policy. The same policy instance is shared by
// every external call site so retry behavior stays uniform across the service.
type Policy struct {
	cfg Config
}

// NewPolicy creates a policy from the given configuration, applying defaults
// for zero values.
func NewPolicy(cfg Config) *Policy {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultConfig().Delay
	}
	return &Policy{cfg: cfg}
}

// Do runs fn under the policy, retrying on any error.
func (p *Policy) Do(ctx context.Context, fn func() error) error {
	_, err := Get(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Get runs fn under the policy and returns its result. The last failure is
// returned unwrapped once retries are exhausted.
func Get[T any](ctx context.Context, p *Policy, fn func() (T, error)) (T, error) {
	rp := retrypolicy.NewBuilder[T]().
		WithMaxRetries(p.cfg.MaxRetries).
		WithDelay(p.cfg.Delay).
		ReturnLastFailure().
		Build()
	return failsafe.With(rp).WithContext(ctx).Get(fn)
}
