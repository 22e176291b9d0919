package source

import (
	"net/http"
	"time"
)

// SharedHTTPClient returns an HTTP client with a bounded timeout and
// connection reuse suitable for low-frequency polling.
func SharedHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
