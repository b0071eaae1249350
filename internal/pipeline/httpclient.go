package pipeline

import (
	"net/http"
	"time"
)

// NewPooledHTTPClient creates an http.Client with connection pooling. Non-streamed
// completions only send headers once the whole answer is ready, so the header
// timeout matches the overall timeout.
func NewPooledHTTPClient(poolSize int, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: timeout,
			ForceAttemptHTTP2:     true,
		},
	}
}
