package outputs

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// PrometheusOutput exposes site metrics via HTTP endpoint and/or a Pushgateway
type PrometheusOutput struct {
	config   *config.PrometheusConfig
	registry *prometheus.Registry
	server   *http.Server

	// Metrics
	resultsTotal    *prometheus.CounterVec
	phaseMs         *prometheus.GaugeVec
	totalMs         *prometheus.GaugeVec
	lcpMs           *prometheus.GaugeVec
	lcpHistogram    *prometheus.HistogramVec
	lastCollectedAt *prometheus.GaugeVec
	collectorErrors *prometheus.CounterVec
}

// NewPrometheusOutput creates a new Prometheus exporter. The HTTP endpoint
// is only started when a port is configured.
func NewPrometheusOutput(cfg *config.PrometheusConfig) (*PrometheusOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	p := &PrometheusOutput{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	p.resultsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_timing_monitor_results_total",
			Help: "Total number of site collections performed",
		},
		[]string{"site", "status"},
	)

	p.phaseMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "site_timing_monitor_phase_ms",
			Help: "Duration of each request phase in the most recent collection, in milliseconds",
		},
		[]string{"site", "phase"},
	)

	p.totalMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "site_timing_monitor_total_ms",
			Help: "Total request duration of the most recent collection, in milliseconds",
		},
		[]string{"site"},
	)

	p.lcpMs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "site_timing_monitor_lcp_ms",
			Help: "Most recent Largest Contentful Paint percentile in milliseconds",
		},
		[]string{"site"},
	)

	// Use configured buckets or default
	buckets := cfg.LCPBuckets
	if len(buckets) == 0 {
		buckets = []float64{500, 1000, 1500, 2000, 2500, 3000, 4000, 6000, 10000}
	}

	p.lcpHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "site_timing_monitor_lcp_histogram_ms",
			Help:    "Histogram of Largest Contentful Paint percentiles in milliseconds",
			Buckets: buckets,
		},
		[]string{"site"},
	)

	p.lastCollectedAt = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "site_timing_monitor_last_timing_timestamp_seconds",
			Help: "Unix timestamp of the last successful timing collection",
		},
		[]string{"site"},
	)

	p.collectorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_timing_monitor_collector_errors_total",
			Help: "Collector failures by collector and error type",
		},
		[]string{"site", "collector", "error_type"},
	)

	p.registry.MustRegister(
		p.resultsTotal,
		p.phaseMs,
		p.totalMs,
		p.lcpMs,
		p.lcpHistogram,
		p.lastCollectedAt,
		p.collectorErrors,
	)

	if cfg.IncludeGoMetrics {
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Port > 0 {
		mux := http.NewServeMux()
		mux.Handle(cfg.Path, promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))

		addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port)
		p.server = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Start HTTP server in goroutine
		go func() {
			log.Printf("Starting Prometheus exporter on %s%s", addr, cfg.Path)
			if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Prometheus server error: %v", err)
			}
		}()
	}

	return p, nil
}

// Write updates Prometheus metrics with the site result
func (p *PrometheusOutput) Write(result *models.SiteResult) error {
	if p == nil {
		return nil
	}

	site := result.Site.Name
	if site == "" {
		site = result.Site.URL
	}

	status := "failure"
	if result.Success() {
		status = "success"
	}
	p.resultsTotal.WithLabelValues(site, status).Inc()

	if t := result.Timing; t != nil {
		p.phaseMs.WithLabelValues(site, "name_lookup").Set(float64(t.NameLookupMs))
		p.phaseMs.WithLabelValues(site, "connection").Set(float64(t.ConnectionMs))
		p.phaseMs.WithLabelValues(site, "handshake").Set(float64(t.HandshakeMs))
		p.phaseMs.WithLabelValues(site, "server_processing").Set(float64(t.ServerProcessingMs))
		p.phaseMs.WithLabelValues(site, "content_transfer").Set(float64(t.ContentTransferMs))
		p.totalMs.WithLabelValues(site).Set(float64(t.TotalMs()))
		p.lastCollectedAt.WithLabelValues(site).Set(float64(result.Timestamp.Unix()))
	}

	if result.LCP != nil {
		v := float64(result.LCP.PercentileMs)
		p.lcpMs.WithLabelValues(site).Set(v)
		p.lcpHistogram.WithLabelValues(site).Observe(v)
	}

	for _, e := range result.Errors {
		p.collectorErrors.WithLabelValues(site, e.Collector, e.ErrorType).Inc()
	}

	return nil
}

// Push sends the current registry contents to the configured Pushgateway
func (p *PrometheusOutput) Push() error {
	if p == nil || p.config.PushGatewayURL == "" {
		return nil
	}

	if err := push.New(p.config.PushGatewayURL, p.config.PushJob).Gatherer(p.registry).Push(); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", p.config.PushGatewayURL, err)
	}
	return nil
}

// Registry returns the registry backing this exporter
func (p *PrometheusOutput) Registry() *prometheus.Registry {
	return p.registry
}

// Name returns the output module name
func (p *PrometheusOutput) Name() string {
	return "prometheus"
}

// Close pushes final values and shuts down the HTTP server
func (p *PrometheusOutput) Close() error {
	if p == nil {
		return nil
	}

	if err := p.Push(); err != nil {
		log.Printf("Prometheus push error: %v", err)
	}

	if p.server == nil {
		return nil
	}

	log.Println("Shutting down Prometheus exporter...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return p.server.Shutdown(ctx)
}
