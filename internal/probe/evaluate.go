package probe

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hamed0406/probevisor/internal/config"
	"github.com/hamed0406/probevisor/internal/metrics"
)

// Verdict is the pass/fail result of comparing an outcome with expectations.
type Verdict struct {
	Match  bool
	Status int
	Reason string // empty on match
}

// Evaluator is the one place a service's status gauge is written.
type Evaluator struct {
	Metrics *metrics.Registry
}

// Evaluate compares out against exp, sets the status gauge, and closes the
// outcome. maxBytes caps how much body is read; 0 reads everything.
func (e *Evaluator) Evaluate(service string, out *Outcome, exp config.Expect, maxBytes int64) Verdict {
	v := evaluate(out, exp, maxBytes)
	if e.Metrics != nil {
		e.Metrics.SetStatus(service, v.Match)
	}
	return v
}

func evaluate(out *Outcome, exp config.Expect, maxBytes int64) Verdict {
	defer out.Close()

	v := Verdict{Status: out.Status}
	if out.Status != exp.Status {
		v.Reason = fmt.Sprintf("status %d, expected %d", out.Status, exp.Status)
		return v
	}

	keys := make([]string, 0, len(exp.Header))
	for k := range exp.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		want := exp.Header[k]
		if got := out.Header.Get(k); !strings.HasPrefix(got, want) {
			v.Reason = fmt.Sprintf("header %s: %q does not start with %q", k, got, want)
			return v
		}
	}

	if exp.BodyPattern != nil {
		if out.Body == nil {
			v.Reason = "no body to match"
			return v
		}
		var r io.Reader = out.Body
		if maxBytes > 0 {
			r = io.LimitReader(r, maxBytes)
		}
		body, err := io.ReadAll(r)
		if err != nil {
			v.Reason = "read body: " + err.Error()
			return v
		}
		if !exp.BodyPattern.Match(body) {
			v.Reason = fmt.Sprintf("body does not match %q", exp.Body)
			return v
		}
	}

	v.Match = true
	return v
}
