package testloop

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/metrics"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/probe"
)

// Collector names recorded in ErrorInfo
const (
	CollectorTiming = "timing"
	CollectorLCP    = "lcp"
)

// TimingCollector measures per-phase request timings for a site
type TimingCollector interface {
	Collect(ctx context.Context, site models.SiteDefinition, timeout time.Duration) (*models.TimingSample, error)
}

// LCPCollector queries the Largest Contentful Paint percentile for a site
type LCPCollector interface {
	Collect(ctx context.Context, site models.SiteDefinition, timeout time.Duration) (*models.LCPSample, error)
}

// SweepRecorder is notified after every completed sweep
type SweepRecorder interface {
	RecordSweep(sites, failures int)
}

// SweepSummary describes one pass over the site list
type SweepSummary struct {
	RunID          string
	Sites          int
	TimingRows     int
	LCPRows        int
	Failures       int
	TimingFailures int
	Duration       time.Duration
}

// TestLoop drives the collectors over the configured sites
type TestLoop struct {
	config     *config.Config
	iterator   *SiteIterator
	timing     TimingCollector
	lcp        LCPCollector
	dispatcher *metrics.Dispatcher
	recorder   SweepRecorder
	logger     *slog.Logger
	metadata   models.RunMetadata
	now        func() time.Time
	stopChan   chan struct{}
}

// NewTestLoop creates a new test loop
func NewTestLoop(cfg *config.Config, timing TimingCollector, lcp LCPCollector, dispatcher *metrics.Dispatcher, logger *slog.Logger) *TestLoop {
	if logger == nil {
		logger = slog.Default()
	}

	hostname, _ := os.Hostname()

	return &TestLoop{
		config:     cfg,
		iterator:   NewSiteIterator(cfg.Sites.List),
		timing:     timing,
		lcp:        lcp,
		dispatcher: dispatcher,
		logger:     logger,
		metadata: models.RunMetadata{
			Hostname:  hostname,
			UserAgent: cfg.Curl.UserAgent,
		},
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// SetVersion records the monitor version in every result
func (t *TestLoop) SetVersion(version string) {
	t.metadata.Version = version
}

// SetSweepRecorder registers r to be told about completed sweeps
func (t *TestLoop) SetSweepRecorder(r SweepRecorder) {
	t.recorder = r
}

// Run performs sweeps until the context is cancelled or Stop is called.
// With no run interval configured it performs exactly one sweep.
func (t *TestLoop) Run(ctx context.Context) error {
	interval := t.config.General.RunInterval
	if interval <= 0 {
		_, err := t.RunOnce(ctx)
		return err
	}

	t.logger.Info("Starting sweep loop",
		"sites", t.iterator.Count(),
		"run_interval", interval,
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Sweep immediately on start
	if _, err := t.RunOnce(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("Sweep loop stopped by context")
			return ctx.Err()

		case <-t.stopChan:
			t.logger.Info("Sweep loop stopped by Stop() call")
			return nil

		case <-ticker.C:
			if _, err := t.RunOnce(ctx); err != nil && ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

// RunOnce collects every configured site once, in order. A failing site is
// recorded and the sweep moves on; only cancellation ends it early.
func (t *TestLoop) RunOnce(ctx context.Context) (SweepSummary, error) {
	start := time.Now()
	summary := SweepSummary{RunID: uuid.New().String()}

	t.iterator.Reset()
	t.logger.Info("Starting sweep", "run_id", summary.RunID, "sites", t.iterator.Count())

	for {
		if err := ctx.Err(); err != nil {
			summary.Duration = time.Since(start)
			t.logger.Warn("Sweep cancelled", "run_id", summary.RunID, "remaining", t.iterator.Remaining())
			return summary, err
		}

		site, ok := t.iterator.Next()
		if !ok {
			break
		}

		result := t.collectSite(ctx, summary.RunID, site)

		summary.Sites++
		if result.Timing != nil {
			summary.TimingRows++
		}
		if result.LCP != nil {
			summary.LCPRows++
		}
		if !result.Success() {
			summary.Failures++
		}
		if result.HasError(CollectorTiming) {
			summary.TimingFailures++
		}

		if err := t.dispatcher.Dispatch(result); err != nil {
			t.logger.Warn("Some outputs failed", "site", result.Site.Name, "error", err)
		}
	}

	summary.Duration = time.Since(start)
	t.logger.Info("Sweep complete",
		"run_id", summary.RunID,
		"sites", summary.Sites,
		"timing_rows", summary.TimingRows,
		"lcp_rows", summary.LCPRows,
		"failures", summary.Failures,
		"duration", summary.Duration,
	)

	if t.recorder != nil {
		t.recorder.RecordSweep(summary.Sites, summary.Failures)
	}

	return summary, nil
}

// collectSite runs the timing collector then the LCP collector for site
func (t *TestLoop) collectSite(ctx context.Context, runID string, site models.SiteDefinition) *models.SiteResult {
	result := &models.SiteResult{
		Timestamp: t.now(),
		RunID:     runID,
		ResultID:  uuid.New().String(),
		Site: models.SiteInfo{
			URL:      site.URL,
			Name:     site.GetName(),
			Key:      site.FileKey(),
			Category: site.Category,
		},
		Metadata: t.metadata,
	}

	timeout := site.GetTimeout(t.config.General.CommandTimeout)

	t.logger.Debug("Collecting site", "site", result.Site.Name, "url", site.URL)

	timing, err := t.timing.Collect(ctx, site, timeout)
	if err != nil {
		t.recordError(result, CollectorTiming, err)
	} else {
		result.Timing = timing
	}

	lcp, err := t.lcp.Collect(ctx, site, timeout)
	if err != nil {
		t.recordError(result, CollectorLCP, err)
	} else {
		result.LCP = lcp
	}

	return result
}

func (t *TestLoop) recordError(result *models.SiteResult, collector string, err error) {
	errorType := probe.ErrorType(err)
	result.Errors = append(result.Errors, models.ErrorInfo{
		Collector:    collector,
		ErrorType:    errorType,
		ErrorMessage: err.Error(),
	})

	level := slog.LevelError
	if errors.Is(err, context.Canceled) {
		level = slog.LevelWarn
	}
	t.logger.Log(context.Background(), level, "Collector failed",
		"site", result.Site.Name,
		"collector", collector,
		"error_type", errorType,
		"error", err,
	)
}

// Stop gracefully stops the loop
func (t *TestLoop) Stop() error {
	close(t.stopChan)
	return nil
}
