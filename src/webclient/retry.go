package webclient

import (
	"context"
	"net/http"
	"time"
)

type AttemptFunc func() (status int, body []byte, err error)

// Retry bounds DoWithRetry. Zero fields take the defaults.
type Retry struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func (r Retry) withDefaults() Retry {
	if r.Attempts <= 0 {
		r.Attempts = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = 30 * time.Second
	}
	return r
}

// Transient reports whether a response status is worth retrying.
func Transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry retries fn on transport errors and transient statuses,
// doubling the delay up to MaxDelay.
func DoWithRetry(ctx context.Context, r Retry, fn AttemptFunc) (int, []byte, error) {
	r = r.withDefaults()
	delay := r.InitialDelay
	for i := 0; ; i++ {
		status, body, err := fn()
		if err == nil && !Transient(status) {
			return status, body, nil
		}
		if i == r.Attempts-1 {
			return status, body, err
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
		if delay *= 2; delay > r.MaxDelay {
			delay = r.MaxDelay
		}
	}
}
