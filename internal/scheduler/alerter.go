package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/probevisor/internal/domain"
	"github.com/hamed0406/probevisor/internal/notify"
	"github.com/hamed0406/probevisor/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
	PollInterval    time.Duration
}

// Alerter watches the latest results and notifies on UP/DOWN transitions.
type Alerter struct {
	logger   *zap.Logger
	results  repo.ResultStore
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
}

func NewAlerter(
	logger *zap.Logger,
	results repo.ResultStore,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	cfg AlerterConfig,
) *Alerter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	return &Alerter{
		logger:   logger,
		results:  results,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
	}
}

// Run scans immediately and then every PollInterval until ctx is cancelled.
func (a *Alerter) Run(ctx context.Context) error {
	t := time.NewTicker(a.cfg.PollInterval)
	defer t.Stop()

	// initial pass
	a.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.scan(ctx)
		}
	}
}

func (a *Alerter) scan(ctx context.Context) {
	if err := a.scanOnce(ctx); err != nil {
		a.logger.Warn("alerter_scan_error", zap.Error(err))
	}
}

func (a *Alerter) scanOnce(ctx context.Context) error {
	rows, err := a.results.Latest(ctx)
	if err != nil {
		return err
	}

	now := time.Now()

	for _, r := range rows {
		rec, err := a.alertDB.Get(ctx, r.Service)
		if err != nil {
			return err
		}

		// Has the up/down state changed compared to what we last recorded?
		stateChanged := rec == nil || rec.LastState != r.Up

		// Cooldown only matters for DOWN alerts (suppresses noisy repeats).
		cooled := true
		if rec != nil && rec.LastSentAt != nil {
			cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
		}

		downAlert := stateChanged && !r.Up && cooled
		// a service seen UP for the first time has nothing to recover from
		recoveryAlert := stateChanged && rec != nil && r.Up && a.cfg.AlertOnRecovery

		if downAlert || recoveryAlert {
			title, text := alertMessage(r)
			if err := a.notifier.Send(ctx, title, text); err != nil {
				a.logger.Warn("alert_send_error", zap.String("service", r.Service), zap.Error(err))
			} else {
				a.logger.Info("alert_sent", zap.String("service", r.Service), zap.Bool("up", r.Up))
			}
			if err := a.alertDB.Set(ctx, r.Service, r.Up, now); err != nil {
				return err
			}
			continue
		}

		// If state changed but we did not send (e.g., DOWN within cooldown or
		// recovery alerts disabled), still record the new state without a send time.
		if stateChanged {
			if err := a.alertDB.Set(ctx, r.Service, r.Up, time.Time{}); err != nil {
				return err
			}
		}
	}

	return nil
}

func alertMessage(r domain.CheckResult) (string, string) {
	title := "🔴 Service DOWN: " + r.Service
	if r.Up {
		title = "🟢 Service RECOVERED: " + r.Service
	}

	statusTxt := "n/a"
	if r.Status != 0 {
		statusTxt = fmt.Sprintf("%d", r.Status)
	}

	reason := r.Reason
	if reason == "" {
		reason = "-"
	}

	text := fmt.Sprintf(
		"Target: %s\nStatus: %s\nLatency: %.0f ms\nReason: %s\nFallback attempts: %d\nChecked: %s",
		r.Target, statusTxt, r.LatencyMS, reason, r.FallbackAttempts, r.CheckedAt.Format(time.RFC3339),
	)
	return title, text
}
