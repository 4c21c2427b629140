// Package executors provides example Executor constructors that the agent
// runtime can supply to confirmation.PrepareAction. Each constructor closes
// only over the tool_args it was built from plus its integration config
// (endpoint, credentials, Doer), never over any confirmation-core state.
package executors

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Doer is the minimal HTTP surface an executor needs, narrowed from
// *http.Client so callers can substitute a test double without dragging in
// the whole client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPDoer builds a *http.Client tuned the way the teacher tunes its
// outbound webhook client: bounded connection pool, explicit timeouts, no
// unbounded retries left to the caller.
func NewHTTPDoer(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}
