// Package resilience provides retry with exponential backoff and a token
// bucket rate limiter. Both read time through a clock.Clock so callers can
// drive them with a mock clock in tests.
//
//	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{Name: "gcd", Rate: 50, Burst: 10})
//	if err := rl.Wait(ctx); err != nil {
//	    return err
//	}
//
//	err := resilience.RetryFunc(ctx, resilience.RetryConfig{
//	    MaxAttempts: resilience.UnlimitedAttempts,
//	    MaxElapsed:  time.Hour,
//	}, call)
package resilience
