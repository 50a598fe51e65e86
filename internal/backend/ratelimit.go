package backend

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Backend
	limiter *rate.Limiter
}

// RateLimited bounds calls to rps requests per second with the given burst.
// rps <= 0 disables limiting.
func RateLimited(b Backend, rps float64, burst int) Backend {
	if rps <= 0 {
		return b
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{next: b, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}
	return r.next.Generate(ctx, prompt, temperature)
}

func (r *rateLimited) Provider() string {
	return ProviderOf(r.next)
}
