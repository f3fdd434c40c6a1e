package resilience

import "context"

// Policy runs every retry attempt through the breaker. A breaker rejection
// is never retried, so an open circuit fails the caller at once.
type Policy struct {
	breaker *Breaker
	retry   *Retry
}

func NewPolicy(breaker *Breaker, retry *Retry) *Policy {
	retryable := retry.settings.Retryable
	retry.settings.Retryable = func(err error) bool {
		if IsCircuitOpen(err) {
			return false
		}

		return retryable(err)
	}

	return &Policy{breaker: breaker, retry: retry}
}

func (p *Policy) Breaker() *Breaker {
	return p.breaker
}

func Execute[T any](ctx context.Context, p *Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T

	err := p.retry.Do(ctx, func(ctx context.Context) error {
		res, err := ExecuteWithBreaker(p.breaker, func() (T, error) {
			return fn(ctx)
		})
		if err != nil {
			return err
		}

		out = res
		return nil
	})

	return out, err
}
