package retry

import (
	"context"
	"math"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Policy retries an operation with exponential backoff and no jitter.
// Every error is retried until MaxAttempts is reached.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64

	// NewTimer overrides the wait timer. nil uses the system timer.
	NewTimer func() backoff.Timer
}

// Default is 5 attempts with waits of 1s, 2s, 4s and 8s between them.
func Default() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: time.Second, Multiplier: 2}
}

// Attempt describes one failed try, reported before the wait that follows it.
type Attempt struct {
	Number int
	Err    error
	Wait   time.Duration
}

// Do runs op until it succeeds, the attempts are exhausted or ctx is done. It returns the
// number of attempts made and the last error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, notify func(Attempt)) (int, error) {
	attempts := 0
	operation := func() error {
		attempts++
		return op(ctx)
	}
	var onRetry backoff.Notify
	if notify != nil {
		onRetry = func(err error, wait time.Duration) {
			notify(Attempt{Number: attempts, Err: err, Wait: wait})
		}
	}

	var timer backoff.Timer
	if p.NewTimer != nil {
		timer = p.NewTimer()
	}
	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(p.backOff(), ctx), onRetry, timer)
	return attempts, err
}

// MaxWait is the sum of all waits when every attempt fails.
func (p Policy) MaxWait() time.Duration {
	var total time.Duration
	for i := 0; i < p.MaxAttempts-1; i++ {
		total += time.Duration(float64(p.BaseDelay) * math.Pow(p.multiplier(), float64(i)))
	}
	return total
}

func (p Policy) backOff() backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          p.multiplier(),
		MaxInterval:         time.Duration(math.MaxInt64),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()

	retries := p.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(exp, uint64(retries))
}

func (p Policy) multiplier() float64 {
	if p.Multiplier < 1 {
		return 1
	}
	return p.Multiplier
}
