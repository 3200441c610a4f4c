package venue

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPDoer sends HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPTimeout bounds a single venue request.
const DefaultHTTPTimeout = 30 * time.Second

// RateLimitedClient spaces outgoing requests with a token bucket.
type RateLimitedClient struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewRateLimitedClient allows one request per interval with the given burst.
// A nil client uses a default client with DefaultHTTPTimeout.
func NewRateLimitedClient(client *http.Client, interval time.Duration, burst int) *RateLimitedClient {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &RateLimitedClient{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Do waits for the limiter, then sends the request.
func (c *RateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.client.Do(req)
}
