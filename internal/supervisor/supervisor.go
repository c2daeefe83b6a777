// Package supervisor wires one scheduler per configured service together with
// the metrics server and the optional alerter, and runs them as one fleet.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/probevisor/internal/config"
	"github.com/hamed0406/probevisor/internal/fallback"
	"github.com/hamed0406/probevisor/internal/httpapi"
	"github.com/hamed0406/probevisor/internal/metrics"
	"github.com/hamed0406/probevisor/internal/notify"
	"github.com/hamed0406/probevisor/internal/probe"
	"github.com/hamed0406/probevisor/internal/repo/memory"
	"github.com/hamed0406/probevisor/internal/scheduler"
	"github.com/hamed0406/probevisor/internal/shell"
)

type Supervisor struct {
	logger     *zap.Logger
	port       int
	metrics    *metrics.Registry
	store      *memory.Store
	counters   *fallback.Counters
	schedulers []*scheduler.Scheduler
	alerter    *scheduler.Alerter
	server     *httpapi.Server
}

// New validates everything that can fail before scheduling starts: the
// metrics prefix and every service's HTTP client.
func New(logger *zap.Logger, file *config.File, env config.Config) (*Supervisor, error) {
	reg, err := metrics.New(env.MetricsPrefix)
	if err != nil {
		return nil, err
	}

	s := &Supervisor{
		logger:   logger,
		port:     env.MetricsPort,
		metrics:  reg,
		store:    memory.New(),
		counters: fallback.NewCounters(),
	}

	fb := &fallback.Controller{
		Logger:   logger,
		Counters: s.counters,
		Run:      shell.Run,
		HTTP:     notify.NewHook(probe.UserAgent()),
	}
	ev := &probe.Evaluator{Metrics: reg}
	certs := &probe.CertProber{Metrics: reg}

	for _, svc := range file.Services {
		var client *http.Client
		if hp := svc.HTTP(); hp != nil {
			if client, err = probe.NewClient(hp); err != nil {
				return nil, fmt.Errorf("service %q: %w", svc.Name, err)
			}
		}
		pr, err := probe.New(svc, client)
		if err != nil {
			return nil, err
		}
		reg.Init(svc.Name)

		s.schedulers = append(s.schedulers, &scheduler.Scheduler{
			Logger:    logger,
			Service:   svc,
			Prober:    pr,
			Evaluator: ev,
			Metrics:   reg,
			Fallback:  fb,
			Results:   s.store,
			Certs:     certs,
			Diagnose:  probe.Diagnose,
		})
	}

	if a := file.Alerts; a != nil {
		s.alerter = scheduler.NewAlerter(logger, s.store, s.store,
			notify.Multi{notify.NewSlack(a.SlackWebhook, probe.UserAgent())},
			scheduler.AlerterConfig{
				AlertOnRecovery: a.AlertOnRecovery,
				Cooldown:        a.Cooldown,
				PollInterval:    a.Every,
			})
	}

	s.server = &httpapi.Server{
		Logger:      logger,
		Gatherer:    reg,
		Results:     s.store,
		APIKeys:     env.APIKeys,
		APIRPM:      env.APIRPM,
		CORSOrigins: env.CORSOrigins,
	}
	return s, nil
}

// Run binds the metrics port and then runs the fleet. A bind failure is
// returned before any probe starts.
func (s *Supervisor) Run(ctx context.Context) error {
	ln, err := httpapi.Listen(s.port)
	if err != nil {
		return fmt.Errorf("bind metrics port %d: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs every scheduler, the alerter and the metrics server on ln until
// ctx is cancelled, which returns nil. If any task fails, including the
// metrics server stopping on its own, the rest are cancelled and that error
// is returned.
func (s *Supervisor) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, sched := range s.schedulers {
		g.Go(func() error { return sched.Run(gctx) })
	}
	if s.alerter != nil {
		g.Go(func() error { return s.alerter.Run(gctx) })
	}
	g.Go(func() error { return s.server.Serve(gctx, ln) })

	s.logger.Info("supervisor_started",
		zap.Int("services", len(s.schedulers)),
		zap.Bool("alerts", s.alerter != nil),
	)
	err := g.Wait()
	if err != nil {
		s.logger.Error("supervisor_stopped", zap.Error(err))
	} else {
		s.logger.Info("supervisor_stopped")
	}
	return err
}

// Metrics exposes the registry the fleet writes to.
func (s *Supervisor) Metrics() *metrics.Registry { return s.metrics }

// FallbackAttempts reports how many times service's fallback has run.
func (s *Supervisor) FallbackAttempts(service string) int { return s.counters.Get(service) }
