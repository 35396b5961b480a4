package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ddbstream/config"
	"ddbstream/domain/changelog"
	"ddbstream/infra/backends"
	"ddbstream/infra/logging"
)

func main() {
	var (
		configPath string
		serverURL  string
		count      int
		value      float64
	)

	rootCmd := &cobra.Command{
		Use:          "putitem",
		Short:        "Write items into the configured table",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := func(it changelog.Item) {
				fmt.Fprintf(cmd.OutOrStdout(), "put %s = %g\n", it.ID, *it.Value)
			}

			if serverURL != "" {
				return put(cmd.Context(), newRemoteWriter(serverURL), count, value, report)
			}

			cfg, err := config.Read(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := cfg.ValidateStore(); err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger, err := logging.New(os.Stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}

			set, err := openLocal(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer set.Close()

			return put(cmd.Context(), set.Writer, count, value, report)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a config file")
	rootCmd.Flags().StringVar(&serverURL, "server", "", "write through a running server's item API (e.g. http://localhost:9090)")
	rootCmd.Flags().IntVar(&count, "count", 1, "number of items to write")
	rootCmd.Flags().Float64Var(&value, "value", -1, "value to write; negative picks a random value in [0,100)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openLocal opens the configured store in this process. A pebble store
// is locked by whichever process opened it first, which is usually the
// server.
func openLocal(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backends.Set, error) {
	set, err := backends.OpenStore(ctx, cfg, logger)
	if err != nil && cfg.Store.Backend == config.BackendPebble {
		return nil, fmt.Errorf("%w (if a server holds %s, enable server.item_api there and pass --server)", err, cfg.Pebble.Dir)
	}
	return set, err
}

// put writes count fresh items, each under a new random id.
func put(ctx context.Context, w backends.Writer, count int, value float64, done func(changelog.Item)) error {
	for i := 0; i < count; i++ {
		v := value
		if v < 0 {
			v = float64(rand.IntN(100))
		}
		item := changelog.Item{ID: uuid.NewString(), Value: &v}
		if err := w.PutItem(ctx, item); err != nil {
			return fmt.Errorf("put item %d: %w", i, err)
		}
		done(item)
	}
	return nil
}
