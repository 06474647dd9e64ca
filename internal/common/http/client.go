// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

// Client is the shared outbound HTTP client. Every external call in this
// service goes through one of these with an explicit timeout; cancellation
// rides on the request context the caller builds.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
