// Package httpc builds the HTTP clients used for outbound API calls.
// Never use http.DefaultClient: it has no timeout.
package httpc

import (
	"net"
	"net/http"
	"time"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// UserAgent identifies this service to public APIs such as Nominatim,
// whose usage policy rejects anonymous clients.
const UserAgent = "go-guide/1.0 (+https://github.com/teslashibe/go-guide)"

// New returns a client with the given overall timeout (DefaultTimeout when
// zero) and a transport that stamps UserAgent on every request.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: WithUserAgent(NewTransport(), UserAgent),
	}
}

// NewTransport returns a pooled transport with connect and TLS timeouts.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// WithUserAgent wraps base so requests without a User-Agent get ua.
func WithUserAgent(base http.RoundTripper, ua string) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return userAgent{base: base, ua: ua}
}

type userAgent struct {
	base http.RoundTripper
	ua   string
}

func (u userAgent) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return u.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", u.ua)
	return u.base.RoundTrip(r)
}
