package fetchers

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry defaults: three attempts waiting 2s..10s between them.
const (
	DefaultRetryAttempts = 3
	retryMinWait         = 2 * time.Second
	retryMaxWait         = 10 * time.Second
)

// RetryFetcher retries network failures of the wrapped PageFetcher.
// Any other error is returned immediately.
type RetryFetcher struct {
	fetcher    PageFetcher
	attempts   int
	newBackOff func() backoff.BackOff
}

// RetryOption configures RetryFetcher.
type RetryOption func(*RetryFetcher)

// WithAttempts sets the maximum number of attempts (at least one).
func WithAttempts(n int) RetryOption {
	return func(rf *RetryFetcher) {
		if n < 1 {
			n = 1
		}
		rf.attempts = n
	}
}

// WithBackOff replaces the wait policy between attempts.
// BackOff implementations are stateful, so a constructor is expected.
func WithBackOff(newBackOff func() backoff.BackOff) RetryOption {
	return func(rf *RetryFetcher) {
		rf.newBackOff = newBackOff
	}
}

// NewRetryFetcher wraps fetcher with exponential backoff retries.
func NewRetryFetcher(fetcher PageFetcher, opts ...RetryOption) *RetryFetcher {
	rf := &RetryFetcher{
		fetcher:    fetcher,
		attempts:   DefaultRetryAttempts,
		newBackOff: newExponentialBackOff,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

func newExponentialBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryMinWait
	bo.MaxInterval = retryMaxWait
	bo.MaxElapsedTime = 0 // bounded by the attempts count
	return bo
}

// Fetch fetches url, retrying on ErrNetwork.
func (rf *RetryFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	op := func() error {
		b, err := rf.fetcher.Fetch(ctx, url)
		if err != nil {
			if errors.Is(err, ErrNetwork) {
				return err
			}
			return backoff.Permanent(err)
		}
		body = b
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(rf.newBackOff(), uint64(rf.attempts-1)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return body, nil
}
