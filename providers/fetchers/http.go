package fetchers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultUserAgent identifies packastack requests to upstream services.
	DefaultUserAgent = "packastack-uscan/0.1"
	// DefaultTimeout bounds every page fetch.
	DefaultTimeout = 10 * time.Second
)

// ErrNetwork marks transport failures: connection errors, timeouts and non-2xx responses.
// Only errors of this kind are worth retrying.
var ErrNetwork = errors.New("network failure")

// NetworkError describes a failed fetch. It matches ErrNetwork with errors.Is.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

// Is reports whether target is ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// PageFetcher fetches the raw content of an upstream listing page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher is a PageFetcher backed by net/http.
type HTTPFetcher struct {
	httpClient *http.Client
	// UserAgent is sent with every request.
	UserAgent string
}

// NewHTTPFetcher constructs HTTPFetcher.
//
// If httpClient is nil a new client is created. A zero timeout means DefaultTimeout;
// the timeout is applied to a copy of the passed client, the original is not modified.
func NewHTTPFetcher(httpClient *http.Client, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var cl http.Client
	if httpClient != nil {
		cl = *httpClient
	}
	cl.Timeout = timeout

	return &HTTPFetcher{httpClient: &cl, UserAgent: DefaultUserAgent}
}

// Fetch performs a GET request and returns the response body.
func (hf *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("unable to create a request: %w", err)}
	}
	req.Header.Set("User-Agent", hf.UserAgent)

	resp, err := hf.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: fmt.Errorf("unable to read the response body: %w", err)}
	}

	return body, nil
}
