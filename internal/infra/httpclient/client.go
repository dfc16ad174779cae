package httpclient

import (
	"net"
	"net/http"
	"time"
)

// New returns a client with its own pooled transport. Outbound calls to the
// payment gateway and file downloads share this shape.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
