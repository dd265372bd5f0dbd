package utils

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ingestion counters exposed on /metrics.
type Metrics struct {
	Registry      *prometheus.Registry
	PagesFetched  prometheus.Counter
	PagesDegraded prometheus.Counter
	Listings      *prometheus.CounterVec
	CrawlDuration prometheus.Histogram
}

// NewMetrics creates the ingestion metrics on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "pages_fetched_total",
			Help:      "Provider result pages visited, including degraded ones.",
		}),
		PagesDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "pages_degraded_total",
			Help:      "Provider result pages whose fetch failed and were treated as empty.",
		}),
		Listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ingest",
			Name:      "listings_total",
			Help:      "Listings processed, by outcome.",
		}, []string{"outcome"}),
		CrawlDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ingest",
			Name:      "crawl_duration_seconds",
			Help:      "Wall time of one crawl invocation.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	m.Registry.MustRegister(m.PagesFetched, m.PagesDegraded, m.Listings, m.CrawlDuration)
	return m
}

// Serve exposes the registry on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info("[metrics] serving /metrics on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("[metrics] server stopped: %v", err)
		}
	}()
}

// ObservePage counts one visited page. A nil Metrics records nothing.
func (m *Metrics) ObservePage(degraded bool) {
	if m == nil {
		return
	}
	m.PagesFetched.Inc()
	if degraded {
		m.PagesDegraded.Inc()
	}
}

// ObserveListing counts one processed listing under the given outcome.
func (m *Metrics) ObserveListing(outcome string) {
	if m == nil {
		return
	}
	m.Listings.WithLabelValues(outcome).Inc()
}

// ObserveCrawl records the wall time of a finished crawl.
func (m *Metrics) ObserveCrawl(d time.Duration) {
	if m == nil {
		return
	}
	m.CrawlDuration.Observe(d.Seconds())
}
