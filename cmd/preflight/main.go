// cmd/preflight/main.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"

	"github.com/hamed0406/probevisor/internal/config"
	"github.com/hamed0406/probevisor/internal/metrics"
	"github.com/hamed0406/probevisor/internal/probe"
)

func main() {
	path := "probevisor.yml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	os.Exit(run(path, os.Stdout, os.Stderr))
}

// run checks the environment and the service file without starting any
// probe. It returns the process exit code.
func run(path string, stdout, stderr io.Writer) int {
	failed := false
	fail := func(msg string) {
		fmt.Fprintln(stderr, "✖", msg)
		failed = true
	}
	warn := func(msg string) { fmt.Fprintln(stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Fprintln(stdout, "✔", msg) }

	cfg := config.FromEnv()

	keys := strings.TrimSpace(os.Getenv("API_KEYS"))
	if keys == "" {
		warn("API_KEYS is empty; /api/services is open to anyone who can reach the port.")
	} else if strings.Contains(keys, " ") {
		warn("API_KEYS contains spaces; use comma-separated with no spaces, e.g. key1,key2")
	}

	if len(cfg.CORSOrigins) == 0 {
		warn("ALLOWED_ORIGINS empty; any origin may read /api/services from a browser.")
	} else {
		ok("ALLOWED_ORIGINS=" + strings.Join(cfg.CORSOrigins, ","))
	}

	if _, err := metrics.New(cfg.MetricsPrefix); err != nil {
		fail(err.Error())
	} else {
		ok(fmt.Sprintf("metrics on :%d as %s_*", cfg.MetricsPort, cfg.MetricsPrefix))
	}

	switch cfg.TraceExporter {
	case "none", "stdout", "otlp":
		ok("OTEL_TRACES_EXPORTER=" + cfg.TraceExporter)
	default:
		fail("OTEL_TRACES_EXPORTER must be none, stdout or otlp, got " + cfg.TraceExporter)
	}

	file, err := config.Load(path)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			fail(e.Error())
		}
		return 1
	}

	for _, svc := range file.Services {
		if hp := svc.HTTP(); hp != nil {
			if _, err := probe.NewClient(hp); err != nil {
				fail(fmt.Sprintf("service %q: %v", svc.Name, err))
				continue
			}
		}
		line := fmt.Sprintf("%s: %s every %s, expect %d", svc.Name, svc.Probe.Kind(), svc.Every, svc.Expect.Status)
		if a := svc.OnFailure; a != nil && a.MaxAttempts != nil && *a.MaxAttempts == 0 {
			warn(fmt.Sprintf("service %q: if_not.stop is 0, its fallback will never run", svc.Name))
		}
		ok(line)
	}
	if file.Alerts != nil {
		ok(fmt.Sprintf("slack alerts every %s, cooldown %s", file.Alerts.Every, file.Alerts.Cooldown))
	}

	if failed {
		return 1
	}
	ok("preflight passed")
	return 0
}
