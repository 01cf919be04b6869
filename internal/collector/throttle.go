package collector

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle paces calls to upstream sources. The cascade runner waits on it
// between attempts and the per-video walks wait between videos, so a failed
// source is never hit again without a visible pause. Implementations must
// be safe for concurrent use.
type Throttle interface {
	Wait(ctx context.Context) error
}

func waitThrottle(ctx context.Context, t Throttle) error {
	if t == nil {
		return nil
	}
	return t.Wait(ctx)
}

type fixedDelay time.Duration

// FixedDelay returns a throttle that sleeps d between calls. Non-positive
// d disables the wait.
func FixedDelay(d time.Duration) Throttle { return fixedDelay(d) }

func (f fixedDelay) Wait(ctx context.Context) error {
	d := time.Duration(f)
	if d <= 0 {
		return ctx.Err()
	}
	return sleepWithContext(ctx, d)
}

type rateThrottle struct {
	limiter *rate.Limiter
}

// RateThrottle returns a token-bucket throttle admitting rps calls per
// second with the given burst.
func RateThrottle(rps float64, burst int) Throttle {
	if burst < 1 {
		burst = 1
	}
	return rateThrottle{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r rateThrottle) Wait(ctx context.Context) error { return r.limiter.Wait(ctx) }
