package session

import (
	"net/http"
	"time"
)

// DefaultHTTPTimeout is the request timeout of clients returned by HTTPClient.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPClient returns an HTTP client configured from the session: requests go
// through the session's proxy resolver and carry its client identification.
// A timeout of zero uses DefaultHTTPTimeout.
func (s *Session) HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	if s.Proxy != nil {
		base.Proxy = s.Proxy.Proxy
	} else {
		base.Proxy = nil
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &userAgentTransport{next: base, userAgent: s.UserAgent},
	}
}

// userAgentTransport sets the User-Agent header on every request.
type userAgentTransport struct {
	next      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" {
		return t.next.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(req)
}
