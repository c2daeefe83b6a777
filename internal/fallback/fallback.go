// Package fallback runs the remediation configured for a service whose probe
// did not match, within the service's lifetime attempt cap.
package fallback

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/probevisor/internal/config"
)

// Result describes one fallback invocation.
type Result struct {
	Suppressed  bool // cap reached, nothing ran
	Attempt     int  // counter value after admission
	CommandExit *int // nil when no command ran or it failed to finish
	HTTPStatus  int  // 0 when no request was made or it failed
}

// CommandRunner runs a shell command and returns its exit code.
type CommandRunner func(ctx context.Context, command string) (int, error)

// Getter issues the fallback GET and returns its status code.
type Getter interface {
	Get(ctx context.Context, url string) (int, error)
}

type Controller struct {
	Logger   *zap.Logger
	Counters *Counters
	Run      CommandRunner
	HTTP     Getter
}

// Execute admits and runs action for service. The command and the HTTP call
// run independently; failures of either are combined in the returned error
// and never affect admission.
func (c *Controller) Execute(ctx context.Context, service string, action *config.Action) (Result, error) {
	if action == nil {
		return Result{Suppressed: true}, nil
	}

	n, ok := c.Counters.Admit(service, action.MaxAttempts)
	if !ok {
		c.Logger.Info("fallback_suppressed",
			zap.String("service", service),
			zap.Int("attempts", n),
			zap.Intp("max_attempts", action.MaxAttempts),
		)
		return Result{Suppressed: true, Attempt: n}, nil
	}

	res := Result{Attempt: n}
	var errs error

	if action.Command != "" {
		code, err := c.Run(ctx, action.Command)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fallback command: %w", err))
		} else {
			res.CommandExit = &code
		}
	}

	if action.HTTPURL != "" {
		status, err := c.HTTP.Get(ctx, action.HTTPURL)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("fallback http: %w", err))
		} else {
			res.HTTPStatus = status
		}
	}

	fields := []zap.Field{
		zap.String("service", service),
		zap.Int("attempt", n),
		zap.Intp("command_exit", res.CommandExit),
		zap.Int("http_status", res.HTTPStatus),
	}
	if errs != nil {
		c.Logger.Warn("fallback_error", append(fields, zap.Error(errs))...)
	} else {
		c.Logger.Info("fallback_executed", fields...)
	}
	return res, errs
}
