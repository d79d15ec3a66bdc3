package runner

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	baseBackoffMillis = 1000
	maxBackoffMillis  = 120_000
)

// BackoffDelay computes the wait before retry attempt, per spec §4.D
// "Resilience": the server's Retry-After when supplied (in seconds,
// converted to ms), otherwise exponential back-off of 1000·2^attempt
// ms, each capped at 120 000 ms.
func BackoffDelay(retryAfterSeconds int, attempt int) time.Duration {
	var millis int
	if retryAfterSeconds > 0 {
		millis = retryAfterSeconds * 1000
	} else {
		millis = baseBackoffMillis
		for i := 0; i < attempt; i++ {
			millis *= 2
			if millis >= maxBackoffMillis {
				millis = maxBackoffMillis
				break
			}
		}
	}
	if millis > maxBackoffMillis {
		millis = maxBackoffMillis
	}
	return time.Duration(millis) * time.Millisecond
}

// abortableSleep waits for dur or until ctx is cancelled, whichever
// comes first. An already-cancelled context resolves immediately; a
// mid-sleep cancellation resolves promptly (spec §4.D "Sleeping is
// cancellation-aware"). The wait itself is paced through a
// rate.Limiter rather than a bare timer, so every cancellation-aware
// delay in the engine (retry back-off here, capacity pacing in the
// scheduler) goes through the same primitive.
func abortableSleep(ctx context.Context, dur time.Duration) {
	if ctx.Err() != nil || dur <= 0 {
		return
	}
	lim := rate.NewLimiter(rate.Every(dur), 1)
	lim.Allow() // drain the initial full burst so WaitN actually paces by dur
	if err := lim.WaitN(ctx, 1); err != nil && ctx.Err() == nil {
		// WaitN refuses up front when ctx's deadline falls before dur
		// elapses; wait out the remaining time until ctx ends instead.
		<-ctx.Done()
	}
}
