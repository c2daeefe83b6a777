package probe

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/net/http/httpguts"

	"github.com/hamed0406/probevisor/internal/config"
)

// Version is stamped at build time with -ldflags "-X ...probe.Version=v1.2.3".
var Version = "dev"

var ErrInvalidHeader = errors.New("invalid header")

// UserAgent identifies every request the supervisor makes.
func UserAgent() string {
	return "probevisor/" + Version
}

// NewClient returns the client reused by every probe of one service. It fails
// only when a declared header is not valid HTTP.
func NewClient(p *config.HTTPProbe) (*http.Client, error) {
	headers := make(http.Header, len(p.Headers))
	for k, v := range p.Headers {
		if !httpguts.ValidHeaderFieldName(k) {
			return nil, fmt.Errorf("%w name %q", ErrInvalidHeader, k)
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			return nil, fmt.Errorf("%w value for %q", ErrInvalidHeader, k)
		}
		headers.Set(k, v)
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	c := &http.Client{
		Timeout: p.Timeout,
		Transport: &headerTransport{
			base:      base,
			userAgent: UserAgent(),
			headers:   headers,
		},
	}
	if !p.FollowRedirects {
		// hand the 3xx itself to the evaluator
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c, nil
}

// headerTransport adds the service headers and the user agent to requests
// that do not already carry them.
type headerTransport struct {
	base      http.RoundTripper
	userAgent string
	headers   http.Header
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, vs := range t.headers {
		if k == "Host" {
			req.Host = vs[0]
			continue
		}
		if _, ok := req.Header[k]; !ok {
			req.Header[k] = vs
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}
