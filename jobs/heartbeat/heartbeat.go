package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"ddbstream/domain/changelog"
	"ddbstream/service"
)

// Heartbeat pings every subscriber on a fixed cadence so clients can tell
// a quiet stream from a dead one. Each pass also prunes subscribers whose
// streams have gone away.
type Heartbeat struct {
	registry *service.Registry
	clock    clock.Clock
	interval time.Duration
	log      *slog.Logger
}

func New(r *service.Registry, clk clock.Clock, interval time.Duration, logger *slog.Logger) *Heartbeat {
	return &Heartbeat{registry: r, clock: clk, interval: interval, log: logger}
}

// Run pings immediately and then every interval until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	h.log.Info("heartbeat started", "interval", h.interval)

	for {
		pass := h.registry.Broadcast(changelog.Ping())
		if len(pass.Evicted) > 0 {
			h.log.Debug("ping pruned subscribers", "evicted", len(pass.Evicted))
		}

		select {
		case <-ctx.Done():
			h.log.Info("heartbeat stopped")
			return
		case <-h.clock.After(h.interval):
		}
	}
}
