package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/Yates-Labs/beanstalk/internal/metrics"
)

// WithTimeout bounds every call to g by d. A zero duration returns g unchanged.
func WithTimeout(g Gateway, d time.Duration) Gateway {
	if d <= 0 {
		return g
	}
	return GatewayFunc(func(ctx context.Context, prompt string, opts CallOptions) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return g.Complete(ctx, prompt, opts)
	})
}

// WithRateLimit caps calls to g at requestsPerMinute, allowing a 20% burst.
// A non-positive rate returns g unchanged.
func WithRateLimit(g Gateway, requestsPerMinute int) Gateway {
	if requestsPerMinute <= 0 {
		return g
	}
	rps := float64(requestsPerMinute) / 60.0
	burst := max(1, requestsPerMinute/5)
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return GatewayFunc(func(ctx context.Context, prompt string, opts CallOptions) (string, error) {
		start := time.Now()
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: rate limiter: %w", ErrLLMFailed, err)
		}
		metrics.RecordRateLimiterWait(time.Since(start))
		return g.Complete(ctx, prompt, opts)
	})
}

// WithMetrics records the duration and status of every call under name.
func WithMetrics(g Gateway, name string) Gateway {
	return GatewayFunc(func(ctx context.Context, prompt string, opts CallOptions) (string, error) {
		start := time.Now()
		reply, err := g.Complete(ctx, prompt, opts)
		metrics.RecordLLMRequest(name, time.Since(start), err == nil)
		return reply, err
	})
}
