package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ddbstream"

// Collector holds the service counters. A nil *Collector is valid and
// records nothing, so components can be built without metrics in tests.
type Collector struct {
	subscribers   prometheus.Gauge
	delivered     *prometheus.CounterVec
	evicted       prometheus.Counter
	records       *prometheus.CounterVec
	pollCycles    prometheus.Counter
	pollErrors    *prometheus.CounterVec
	activeShards  prometheus.Gauge
	restarts      prometheus.Counter
	mirrorResults *prometheus.CounterVec
}

// New returns a Collector. Register it with a prometheus.Registerer.
func New() *Collector {
	return &Collector{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Number of registered subscribers.",
		}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Events queued to subscribers, by event type.",
		}, []string{"type"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscribers_evicted_total",
			Help:      "Subscribers removed after a failed send.",
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_processed_total",
			Help:      "Change records enriched and broadcast, by shard.",
		}, []string{"shard"}),
		pollCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Completed poll cycles.",
		}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_errors_total",
			Help:      "Poll runs that ended with an error, by error kind.",
		}, []string{"kind"}),
		activeShards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_shards",
			Help:      "Shards still being polled.",
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poller_restarts_total",
			Help:      "Poller restarts under the restart policy.",
		}),
		mirrorResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_messages_total",
			Help:      "Broadcasts republished to Kafka, by result.",
		}, []string{"result"}),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.subscribers.Describe(ch)
	c.delivered.Describe(ch)
	c.evicted.Describe(ch)
	c.records.Describe(ch)
	c.pollCycles.Describe(ch)
	c.pollErrors.Describe(ch)
	c.activeShards.Describe(ch)
	c.restarts.Describe(ch)
	c.mirrorResults.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.subscribers.Collect(ch)
	c.delivered.Collect(ch)
	c.evicted.Collect(ch)
	c.records.Collect(ch)
	c.pollCycles.Collect(ch)
	c.pollErrors.Collect(ch)
	c.activeShards.Collect(ch)
	c.restarts.Collect(ch)
	c.mirrorResults.Collect(ch)
}

// -------------------- Registry --------------------

func (c *Collector) SetSubscribers(n int) {
	if c == nil {
		return
	}
	c.subscribers.Set(float64(n))
}

func (c *Collector) ObservePass(eventType string, delivered, evicted int) {
	if c == nil {
		return
	}
	c.delivered.WithLabelValues(eventType).Add(float64(delivered))
	c.evicted.Add(float64(evicted))
}

// -------------------- Poller --------------------

func (c *Collector) RecordProcessed(shard string) {
	if c == nil {
		return
	}
	c.records.WithLabelValues(shard).Inc()
}

func (c *Collector) CycleDone(active int) {
	if c == nil {
		return
	}
	c.pollCycles.Inc()
	c.activeShards.Set(float64(active))
}

func (c *Collector) PollFailed(kind string) {
	if c == nil {
		return
	}
	c.pollErrors.WithLabelValues(kind).Inc()
}

func (c *Collector) Restarted() {
	if c == nil {
		return
	}
	c.restarts.Inc()
}

// -------------------- Mirror --------------------

func (c *Collector) MirrorResult(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.mirrorResults.WithLabelValues(result).Inc()
}

// -------------------- HTTP --------------------

// Serve exposes g on addr under /metrics until ctx is cancelled. Each
// route registers extra handlers on the same mux.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger, routes ...func(*http.ServeMux)) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, lis, g, logger, routes...)
}

func serve(ctx context.Context, lis net.Listener, g prometheus.Gatherer, logger *slog.Logger, routes ...func(*http.ServeMux)) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	for _, route := range routes {
		route(mux)
	}

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
