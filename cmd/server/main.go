package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"ddbstream/api/grpcserver"
	"ddbstream/api/httpapi"
	"ddbstream/config"
	"ddbstream/domain/changelog"
	"ddbstream/infra/backends"
	"ddbstream/infra/logging"
	"ddbstream/infra/metrics"
	"ddbstream/infra/sequence"
	"ddbstream/jobs/heartbeat"
	"ddbstream/jobs/mirror"
	"ddbstream/jobs/poller"
	"ddbstream/service"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "ddbstream",
		Short:        "Stream enriched table changes to gRPC subscribers",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger, err := logging.New(os.Stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a config file (yaml, toml or json)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// ---------------- Metrics ----------------

	m := metrics.New()
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		m,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// ---------------- Backends ----------------

	set, err := backends.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := set.Close(); err != nil {
			logger.Warn("closing backends", "err", err)
		}
	}()

	// ---------------- Registry ----------------

	registry := service.NewRegistry(
		cfg.Server.SubscriberBuffer,
		sequence.New(0),
		m,
		logging.Component(logger, "registry"),
	)

	// ---------------- Poller ----------------

	cursors, err := poller.Bootstrap(ctx, set.Log, logging.Component(logger, "bootstrap"))
	if err != nil {
		return err
	}

	policy, err := poller.ParsePolicy(cfg.Poll.FailurePolicy)
	if err != nil {
		return err
	}

	p := poller.New(
		set.Log,
		cursors,
		service.NewEnricher(set.Store, cfg.Table.KeyAttribute),
		registry,
		clock.WallClock,
		cfg.Poll.Interval,
		m,
		logging.Component(logger, "poller"),
	)
	supervisor := poller.NewSupervisor(p, poller.SupervisorConfig{
		Policy:      policy,
		Delay:       cfg.Poll.RestartDelay,
		MaxDelay:    cfg.Poll.RestartMaxDelay,
		MaxRestarts: cfg.Poll.MaxRestarts,
	}, clock.WallClock, m, logging.Component(logger, "supervisor"))

	hb := heartbeat.New(registry, clock.WallClock, cfg.Heartbeat.Interval, logging.Component(logger, "heartbeat"))

	var mr *mirror.Mirror
	if cfg.Kafka.Mirror.Enabled {
		producer, err := mirror.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return changelog.Connectivity("kafka mirror producer", err)
		}
		mr = mirror.New(registry, producer, cfg.Kafka.Mirror.Topic, m, logging.Component(logger, "mirror"))
		defer mr.Close()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.Server.GRPCListen)
	if err != nil {
		return changelog.Connectivity("grpc listen", err)
	}

	grpcSrv := grpc.NewServer()
	hs := grpcserver.Register(grpcSrv, grpcserver.NewServer(registry, logging.Component(logger, "grpc")))

	// ---------------- Run ----------------

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hb.Run(gctx)
		return nil
	})

	g.Go(func() error {
		err := supervisor.Run(gctx)
		if err != nil {
			logger.Error("change log polling ended", "err", err, "kind", changelog.KindOf(err).String())
		}
		return err
	})

	if mr != nil {
		g.Go(func() error {
			mr.Run(gctx)
			return nil
		})
	}

	if cfg.Server.MetricsListen != "" {
		var routes []func(*http.ServeMux)
		if cfg.Server.ItemAPI {
			items := httpapi.NewItemsController(set.Writer, logging.Component(logger, "items"))
			routes = append(routes, items.RegisterRoutes)
		}
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Server.MetricsListen, reg, logging.Component(logger, "metrics"), routes...)
		})
	}

	g.Go(func() error {
		logger.Info("grpc listening", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		hs.Shutdown()
		registry.Close()
		grpcSrv.GracefulStop()
		return nil
	})

	return g.Wait()
}
