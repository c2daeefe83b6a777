package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hamed0406/probevisor/internal/config"
)

var ErrNoURL = errors.New("http probe has no url")

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// BuildRequest creates a fresh request for one probe. JSON and form bodies
// get a Content-Type unless the service declares its own.
func BuildRequest(ctx context.Context, p *config.HTTPProbe) (*http.Request, error) {
	if p == nil || p.URL == "" {
		return nil, ErrNoURL
	}

	var (
		body        io.Reader
		contentType string
	)
	switch b := p.Body.(type) {
	case nil:
	case config.JSONBody:
		data, err := json.Marshal(b.Value)
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		body, contentType = bytes.NewReader(data), contentTypeJSON
	case config.FormBody:
		vals := make(url.Values, len(b.Values))
		for k, v := range b.Values {
			vals.Set(k, v)
		}
		body, contentType = strings.NewReader(vals.Encode()), contentTypeForm
	case config.TextBody:
		body = strings.NewReader(b.Text)
	default:
		return nil, fmt.Errorf("unsupported body type %T", b)
	}

	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" && !declaresContentType(p.Headers) {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func declaresContentType(headers map[string]string) bool {
	for k := range headers {
		if http.CanonicalHeaderKey(k) == "Content-Type" {
			return true
		}
	}
	return false
}
