// Package browser measures Largest Contentful Paint in a local headless
// Chrome, as an alternative to querying the PageSpeed API.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/probe"
)

// lcpScript resolves with the last LCP candidate observed within the
// settle window, or 0 when the page reported none
const lcpScript = `new Promise((resolve) => {
	let lcp = 0;
	try {
		new PerformanceObserver((list) => {
			for (const entry of list.getEntries()) {
				lcp = entry.renderTime || entry.loadTime || entry.startTime;
			}
		}).observe({type: 'largest-contentful-paint', buffered: true});
	} catch (e) {
		resolve(0);
		return;
	}
	setTimeout(() => resolve(lcp), %d);
})`

// LCPCollector loads each site in a fresh Chrome instance and reads the
// largest-contentful-paint entry
type LCPCollector struct {
	config        *config.BrowserConfig
	allocatorOpts []chromedp.ExecAllocatorOption
	logger        *slog.Logger
}

// NewLCPCollector creates a collector launching Chrome with userAgent
func NewLCPCollector(cfg *config.BrowserConfig, userAgent string, logger *slog.Logger) *LCPCollector {
	if logger == nil {
		logger = slog.Default()
	}

	return &LCPCollector{
		config:        cfg,
		allocatorOpts: allocatorOptions(cfg, userAgent),
		logger:        logger,
	}
}

// allocatorOptions builds the Chrome flags. Caches are disabled so every
// measurement is a cold load, like the timing fetch.
func allocatorOptions(cfg *config.BrowserConfig, userAgent string) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("disable-cache", "true"),
		chromedp.Flag("disable-application-cache", "true"),
		chromedp.Flag("disk-cache-size", "0"),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	return opts
}

// Collect navigates to site and returns its LCP. A page that reports no
// candidate within the settle time yields (nil, nil).
func (c *LCPCollector) Collect(ctx context.Context, site models.SiteDefinition, timeout time.Duration) (*models.LCPSample, error) {
	// Fresh allocator per site so no connection or cache state carries over
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOpts...)
	defer cancelAlloc()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, timeout+c.config.SettleTime)
	defer cancelTimeout()

	var lcp float64
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(site.URL),
		chromedp.Evaluate(fmt.Sprintf(lcpScript, c.config.SettleTime.Milliseconds()), &lcp,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
	)
	if err != nil {
		return nil, classifyError(ctx, taskCtx, err)
	}

	ms, ok := toMillis(lcp)
	if !ok {
		c.logger.Debug("No LCP entry reported by browser", "site", site.GetName())
		return nil, nil
	}

	return &models.LCPSample{PercentileMs: ms}, nil
}

// toMillis rounds a DOMHighResTimeStamp to whole milliseconds
func toMillis(v float64) (int64, bool) {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return int64(math.Round(v)), true
}

// classifyError maps a chromedp failure onto the collector error sentinels
func classifyError(parent, task context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return fmt.Errorf("browser interrupted: %w", parent.Err())
	case isChromeStartupFailure(err):
		return fmt.Errorf("%w: chrome: %v", probe.ErrCommandStart, err)
	case errors.Is(task.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: chrome: %v", probe.ErrCommandTimeout, err)
	default:
		return fmt.Errorf("browser navigation failed: %w", err)
	}
}

// isChromeStartupFailure detects that Chrome itself could not be launched
func isChromeStartupFailure(err error) bool {
	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "chrome failed to start") ||
		strings.Contains(errStr, "failed to start chrome") ||
		strings.Contains(errStr, "failed to allocate") ||
		strings.Contains(errStr, "cannot start chrome") ||
		strings.Contains(errStr, "executable file not found")
}
