// Package probe issues HTTP and command probes and evaluates their outcome.
package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/probevisor/internal/config"
	"github.com/hamed0406/probevisor/internal/shell"
)

// retryBackoff separates retried HTTP attempts.
const retryBackoff = 250 * time.Millisecond

// Outcome is a completed probe: an HTTP response or a command exit.
type Outcome struct {
	Status   int           // HTTP status code or process exit code
	Header   http.Header   // nil for command probes
	Body     io.ReadCloser // nil for command probes
	Attempts int
}

// Close releases the response body, if any.
func (o *Outcome) Close() {
	if o != nil && o.Body != nil {
		_ = o.Body.Close()
	}
}

// Prober performs one probe. An error means the probe could not complete
// (transport failure, timeout, spawn failure, signal), not a mismatch.
type Prober interface {
	Probe(ctx context.Context) (*Outcome, error)
}

// New returns the prober for svc. client is required for HTTP services.
func New(svc config.Service, client *http.Client) (Prober, error) {
	switch p := svc.Probe.(type) {
	case *config.HTTPProbe:
		if client == nil {
			return nil, fmt.Errorf("service %q: http client required", svc.Name)
		}
		var pr Prober = &HTTPProber{Client: client, Def: p}
		if p.Retries > 0 {
			pr = &RetryProber{Inner: pr, Attempts: p.Retries + 1, Backoff: retryBackoff}
		}
		return pr, nil
	case *config.CommandProbe:
		return &CommandProber{Def: p}, nil
	default:
		return nil, fmt.Errorf("service %q: unsupported probe %T", svc.Name, p)
	}
}

type HTTPProber struct {
	Client *http.Client
	Def    *config.HTTPProbe
}

// Probe returns the response with its body still open; the caller must Close
// the outcome.
func (h *HTTPProber) Probe(ctx context.Context) (*Outcome, error) {
	req, err := BuildRequest(ctx, h.Def)
	if err != nil {
		return nil, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, err
	}
	return &Outcome{
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Body:     resp.Body,
		Attempts: 1,
	}, nil
}

type CommandProber struct {
	Def *config.CommandProbe
}

func (c *CommandProber) Probe(ctx context.Context) (*Outcome, error) {
	if c.Def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Def.Timeout)
		defer cancel()
	}
	code, err := shell.Run(ctx, c.Def.Command)
	if err != nil {
		return nil, err
	}
	return &Outcome{Status: code, Attempts: 1}, nil
}
