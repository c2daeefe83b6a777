package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hamed0406/probevisor/internal/config"
	"github.com/hamed0406/probevisor/internal/domain"
	"github.com/hamed0406/probevisor/internal/fallback"
	"github.com/hamed0406/probevisor/internal/metrics"
	"github.com/hamed0406/probevisor/internal/probe"
	"github.com/hamed0406/probevisor/internal/repo"
)

const tracerName = "github.com/hamed0406/probevisor/internal/scheduler"

// CertChecker refreshes a service's certificate-expiry gauge.
type CertChecker interface {
	Check(ctx context.Context, service, rawURL string) (int64, error)
}

// Scheduler runs one service's probe loop. Iterations never overlap.
type Scheduler struct {
	Logger    *zap.Logger
	Service   config.Service
	Prober    probe.Prober
	Evaluator *probe.Evaluator
	Metrics   *metrics.Registry
	Fallback  *fallback.Controller
	Results   repo.ResultStore // optional
	Certs     CertChecker      // optional; used for https URLs only
	Diagnose  func(ctx context.Context, rawURL string) probe.DNSStatus
}

// Run probes immediately, then on every tick, until ctx is cancelled. A tick
// missed while an iteration overruns fires as soon as it finishes.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.Service.Every <= 0 {
		return fmt.Errorf("service %q: interval must be positive", s.Service.Name)
	}
	t := time.NewTicker(s.Service.Every)
	defer t.Stop()

	s.Logger.Info("scheduler_started",
		zap.String("service", s.Service.Name),
		zap.String("kind", s.Service.Probe.Kind()),
		zap.Duration("every", s.Service.Every),
	)

	// immediate pass
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler_stopped", zap.String("service", s.Service.Name))
			return nil
		case <-t.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce performs one iteration. Nothing it does escapes the loop: a panic
// is logged and counted as a failure.
func (s *Scheduler) runOnce(ctx context.Context) {
	name := s.Service.Name
	log := s.Logger.With(zap.String("service", name), zap.String("probe_id", uuid.NewString()))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "probe", trace.WithAttributes(
		attribute.String("service.name", name),
		attribute.String("probe.kind", s.Service.Probe.Kind()),
	))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.Metrics.IncFailures(name)
			s.Metrics.SetStatus(name, false)
			span.SetStatus(codes.Error, "panic")
			log.Error("probe_panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	res := &domain.CheckResult{
		Service: name,
		Kind:    s.Service.Probe.Kind(),
		Target:  s.target(),
	}

	start := time.Now()
	out, err := s.Prober.Probe(ctx)
	elapsed := time.Since(start)
	s.Metrics.ObserveResponseTime(name, elapsed)
	res.LatencyMS = float64(elapsed.Microseconds()) / 1000

	if err != nil {
		s.Metrics.IncFailures(name)
		s.Metrics.SetStatus(name, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		res.Reason = err.Error()
		log.Warn("probe_transport_error", zap.Error(err), zap.Duration("latency", elapsed))
		if hp := s.Service.HTTP(); hp != nil && s.Diagnose != nil && !errors.Is(err, context.Canceled) {
			d := s.Diagnose(ctx, hp.URL)
			log.Info("dns_check",
				zap.String("domain", d.Domain),
				zap.String("class", d.Class),
				zap.String("cname", d.CNAME),
				zap.Strings("nameservers", d.Nameservers),
				zap.String("resolver_error", d.ResolverError),
			)
		}
		s.record(ctx, log, res)
		return
	}
	span.SetAttributes(attribute.Int("probe.status", out.Status), attribute.Int("probe.attempts", out.Attempts))

	if hp := s.Service.HTTP(); hp != nil && s.Certs != nil && isHTTPS(hp.URL) {
		secs, err := s.Certs.Check(ctx, name, hp.URL)
		if err != nil {
			log.Warn("tls_check_error", zap.Error(err))
		} else {
			res.CertSecondsLeft = &secs
			log.Debug("tls_checked", zap.Int64("seconds_left", secs))
		}
	}

	var maxBytes int64
	if hp := s.Service.HTTP(); hp != nil {
		maxBytes = hp.MaxBytes
	}
	v := s.Evaluator.Evaluate(name, out, s.Service.Expect, maxBytes)
	res.Up = v.Match
	res.Status = v.Status
	res.Reason = v.Reason

	if v.Match {
		log.Debug("probe_ok",
			zap.Int("status", v.Status),
			zap.Int("attempts", out.Attempts),
			zap.Duration("latency", elapsed),
		)
		s.record(ctx, log, res)
		return
	}

	span.SetStatus(codes.Error, v.Reason)
	log.Warn("probe_mismatch",
		zap.Int("status", v.Status),
		zap.Int("expected_status", s.Service.Expect.Status),
		zap.String("reason", v.Reason),
		zap.Duration("latency", elapsed),
	)

	if s.Service.OnFailure != nil && s.Fallback != nil {
		fr, err := s.Fallback.Execute(ctx, name, s.Service.OnFailure)
		res.FallbackAttempts = fr.Attempt
		if err != nil {
			span.RecordError(err)
		}
	}
	s.record(ctx, log, res)
}

func (s *Scheduler) record(ctx context.Context, log *zap.Logger, res *domain.CheckResult) {
	if s.Results == nil {
		return
	}
	res.CheckedAt = time.Now().UTC()
	if err := s.Results.Append(ctx, res); err != nil {
		log.Warn("result_append_error", zap.Error(err))
	}
}

func (s *Scheduler) target() string {
	switch p := s.Service.Probe.(type) {
	case *config.HTTPProbe:
		return p.URL
	case *config.CommandProbe:
		return p.Command
	}
	return ""
}

func isHTTPS(rawURL string) bool {
	return len(rawURL) >= 8 && strings.EqualFold(rawURL[:8], "https://")
}
