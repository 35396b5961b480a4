package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"ddbstream/domain/changelog"
	"ddbstream/infra/metrics"
	"ddbstream/service"
)

// Poller tails every shard of the change log, enriches each record and
// broadcasts it to the registry.
//
// The cursor map is owned by the goroutine calling Run. It survives a
// failed Run, so a supervisor can call Run again and resume where the
// previous run stopped.
type Poller struct {
	log      changelog.ChangeLog
	enricher *service.Enricher
	registry *service.Registry
	clock    clock.Clock
	interval time.Duration
	metrics  *metrics.Collector
	logger   *slog.Logger

	cursors   map[changelog.ShardID]changelog.Cursor
	exhausted bool
}

func New(
	log changelog.ChangeLog,
	cursors map[changelog.ShardID]changelog.Cursor,
	enricher *service.Enricher,
	registry *service.Registry,
	clk clock.Clock,
	interval time.Duration,
	m *metrics.Collector,
	logger *slog.Logger,
) *Poller {
	owned := make(map[changelog.ShardID]changelog.Cursor, len(cursors))
	for s, c := range cursors {
		owned[s] = c
	}
	return &Poller{
		log:      log,
		enricher: enricher,
		registry: registry,
		clock:    clk,
		interval: interval,
		metrics:  m,
		logger:   logger,
		cursors:  owned,
	}
}

// Run polls until ctx is cancelled (returns nil) or a cycle fails
// (returns the tagged error).
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", "shards", len(p.cursors), "interval", p.interval)

	for {
		if err := p.cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.metrics.PollFailed(changelog.KindOf(err).String())
			return err
		}

		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return nil
		case <-p.clock.After(p.interval):
		}
	}
}

// Shards returns the shards still being polled, sorted.
func (p *Poller) Shards() []changelog.ShardID {
	shards := make([]changelog.ShardID, 0, len(p.cursors))
	for s := range p.cursors {
		shards = append(shards, s)
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i] < shards[j] })
	return shards
}

// -------------------- Cycle --------------------

func (p *Poller) cycle(ctx context.Context) error {
	shards := p.Shards()
	batches := make([]changelog.Batch, len(shards))

	// 1. fetch every shard concurrently
	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		cur := p.cursors[shard]
		g.Go(func() error {
			b, err := p.log.GetRecords(gctx, shard, cur)
			if err != nil {
				return fmt.Errorf("shard %s: %w", shard, err)
			}
			batches[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// 2. advance or drop cursors
	for i, shard := range shards {
		if batches[i].Closed() {
			delete(p.cursors, shard)
			p.logger.Info("shard closed, no longer polled", "shard", shard)
			continue
		}
		p.cursors[shard] = *batches[i].Next
	}

	// 3. enrich and broadcast, shard by shard, records in log order
	for i, shard := range shards {
		for _, rec := range batches[i].Records {
			ev, err := p.enricher.Enrich(ctx, rec)
			if err != nil {
				return fmt.Errorf("shard %s: %w", shard, err)
			}
			pass := p.registry.Broadcast(ev)
			p.metrics.RecordProcessed(string(shard))
			p.logger.Debug("record broadcast",
				"shard", shard, "seq", rec.Sequence, "delivered", pass.Delivered)
		}
	}

	p.metrics.CycleDone(len(p.cursors))
	if len(p.cursors) == 0 && !p.exhausted {
		p.exhausted = true
		p.logger.Warn("every shard is closed, nothing left to poll")
	}
	return nil
}
