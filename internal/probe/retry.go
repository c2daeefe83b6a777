package probe

import (
	"context"
	"fmt"
	"time"
)

// RetryProber repeats Inner while it returns transport errors. Completed
// probes are returned as-is, whatever their status.
type RetryProber struct {
	Inner    Prober
	Attempts int
	Backoff  time.Duration
}

func (r *RetryProber) Probe(ctx context.Context) (*Outcome, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var out *Outcome
		out, err = r.Inner.Probe(ctx)
		if err == nil {
			out.Attempts = i + 1
			return out, nil
		}
		if i < attempts-1 {
			t := time.NewTimer(r.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, fmt.Errorf("%w (after %d attempts)", err, i+1)
			case <-t.C:
			}
		}
	}
	// annotate so the log shows it was a retry series
	return nil, fmt.Errorf("%w (after %d attempts)", err, attempts)
}
