package poller

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ddbstream/domain/changelog"
)

// Bootstrap discovers the shards of the log and positions every shard at
// its latest cursor, so records written before startup are skipped. It
// runs once, before the server accepts subscribers; any failure aborts
// startup.
func Bootstrap(
	ctx context.Context,
	log changelog.ChangeLog,
	logger *slog.Logger,
) (map[changelog.ShardID]changelog.Cursor, error) {
	shards, err := log.ListShards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}

	cursors := make([]changelog.Cursor, len(shards))

	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		g.Go(func() error {
			cur, err := log.LatestCursor(gctx, shard)
			if err != nil {
				return fmt.Errorf("shard %s: %w", shard, err)
			}
			cursors[i] = cur
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[changelog.ShardID]changelog.Cursor, len(shards))
	for i, shard := range shards {
		out[shard] = cursors[i]
	}

	logger.Info("shards positioned at latest", "shards", len(out))
	return out, nil
}
