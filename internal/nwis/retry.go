package nwis

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"
)

// RetryPolicy controls exponential backoff between attempts. The zero value
// performs exactly one request.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var errCircuitOpen = errors.New("circuit breaker open")

func (p RetryPolicy) delay(attempt int) time.Duration {
	initial := p.InitialInterval
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	d := initial * time.Duration(math.Pow(2, float64(attempt)))
	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}
	return d
}

// retryable reports whether a failed attempt may succeed when repeated:
// network failures, rate limiting and server errors. Context errors are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
