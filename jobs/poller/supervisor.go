package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"ddbstream/infra/metrics"
)

// Policy decides what happens when a poll run fails.
type Policy int

const (
	// FailFast returns the first error; the process exits.
	FailFast Policy = iota
	// Restart re-runs the poller with exponential backoff.
	Restart
)

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fail-fast":
		return FailFast, nil
	case "restart":
		return Restart, nil
	default:
		return 0, fmt.Errorf("unknown failure policy %q", s)
	}
}

func (p Policy) String() string {
	if p == Restart {
		return "restart"
	}
	return "fail-fast"
}

// Runner is satisfied by *Poller.
type Runner interface {
	Run(ctx context.Context) error
}

type SupervisorConfig struct {
	Policy   Policy
	Delay    time.Duration
	MaxDelay time.Duration
	// MaxRestarts < 0 means unlimited.
	MaxRestarts int
}

// Supervisor applies a Policy around a Runner.
type Supervisor struct {
	runner  Runner
	cfg     SupervisorConfig
	clock   clock.Clock
	metrics *metrics.Collector
	logger  *slog.Logger
}

func NewSupervisor(
	r Runner,
	cfg SupervisorConfig,
	clk clock.Clock,
	m *metrics.Collector,
	logger *slog.Logger,
) *Supervisor {
	return &Supervisor{runner: r, cfg: cfg, clock: clk, metrics: m, logger: logger}
}

// Run returns nil on ctx cancellation, otherwise the error that ended the
// last run.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.cfg.Policy == FailFast {
		return s.runner.Run(ctx)
	}

	attempts := -1
	if s.cfg.MaxRestarts >= 0 {
		attempts = s.cfg.MaxRestarts + 1
	}

	runs := 0
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			if runs > 0 {
				s.metrics.Restarted()
				s.logger.Info("restarting poller", "restart", runs)
			}
			runs++
			return s.runner.Run(ctx)
		},
		NotifyFunc: func(err error, attempt int) {
			s.logger.Warn("poller failed", "attempt", attempt, "err", err)
		},
		Attempts:    attempts,
		Delay:       s.cfg.Delay,
		MaxDelay:    s.cfg.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       s.clock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return nil
	case retry.IsRetryStopped(err):
		return nil
	default:
		return retry.LastError(err)
	}
}
