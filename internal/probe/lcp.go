package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// LCPParams are the named parameters available to the PageSpeed command template
type LCPParams struct {
	Endpoint string
	URL      string
}

// BuildPageSpeedURL returns the runPagespeed request URL for target
func BuildPageSpeedURL(cfg *config.PageSpeedConfig, target string) (string, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid PageSpeed endpoint: %w", err)
	}

	q := u.Query()
	q.Set("category", cfg.Category)
	q.Set("strategy", cfg.Strategy)
	q.Set("url", target)
	if cfg.APIKey != "" {
		q.Set("key", cfg.APIKey)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// LCPCollector queries the PageSpeed API through an external HTTP client
type LCPCollector struct {
	command   *CommandSpec
	executor  Executor
	extractor LCPExtractor
	cfg       *config.PageSpeedConfig
	logger    *slog.Logger
}

// NewLCPCollector creates a collector for the configured PageSpeed command
func NewLCPCollector(cfg *config.PageSpeedConfig, executor Executor, extractor LCPExtractor, logger *slog.Logger) (*LCPCollector, error) {
	command, err := NewCommandSpec(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid pagespeed command: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LCPCollector{
		command:   command,
		executor:  executor,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Command renders the argv used for site
func (c *LCPCollector) Command(site models.SiteDefinition) ([]string, error) {
	endpoint, err := BuildPageSpeedURL(c.cfg, site.URL)
	if err != nil {
		return nil, err
	}
	return c.command.Render(LCPParams{Endpoint: endpoint, URL: site.URL})
}

// Collect queries the API for site. A response without the LCP field yields
// (nil, nil): the metric is optional and often missing for small sites.
func (c *LCPCollector) Collect(ctx context.Context, site models.SiteDefinition, timeout time.Duration) (*models.LCPSample, error) {
	args, err := c.Command(site)
	if err != nil {
		return nil, err
	}

	result, err := c.executor.Run(ctx, timeout, c.command.Binary(), args...)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		c.logger.Warn("PageSpeed command exited with non-zero status",
			"site", site.GetName(),
			"exit_code", result.ExitCode,
		)
	}

	percentile, ok := c.extractor.Extract(result.Stdout)
	if !ok {
		c.logger.Debug("No LCP value in PageSpeed response", "site", site.GetName(), "bytes", len(result.Stdout))
		return nil, nil
	}

	return &models.LCPSample{PercentileMs: percentile}, nil
}
