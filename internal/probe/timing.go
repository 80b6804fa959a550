package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/datafile"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// TimingFields is the number of cumulative values in the write-out format:
// namelookup, connect, pretransfer, starttransfer, total
const TimingFields = 5

// ErrMalformedTiming indicates the fetch utility output could not be parsed
var ErrMalformedTiming = errors.New("malformed timing output")

// TimingParseError describes why a timing string was rejected
type TimingParseError struct {
	Raw    string
	Fields int
	Index  int
	Err    error
}

func (e *TimingParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: field %d of %q: %v", ErrMalformedTiming, e.Index, e.Raw, e.Err)
	}
	return fmt.Sprintf("%v: expected %d fields, got %d in %q", ErrMalformedTiming, TimingFields, e.Fields, e.Raw)
}

func (e *TimingParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedTiming, e.Err}
	}
	return []error{ErrMalformedTiming}
}

// ParseTimings converts a semicolon-separated list of cumulative seconds into
// milliseconds. Decimal commas are accepted.
func ParseTimings(raw string) ([TimingFields]int64, error) {
	var cumulative [TimingFields]int64

	normalized := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if normalized == "" {
		return cumulative, &TimingParseError{Raw: raw, Fields: 0}
	}

	fields := strings.Split(normalized, ";")
	if len(fields) != TimingFields {
		return cumulative, &TimingParseError{Raw: raw, Fields: len(fields)}
	}

	for i, field := range fields {
		seconds, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return cumulative, &TimingParseError{Raw: raw, Fields: len(fields), Index: i, Err: err}
		}
		if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
			return cumulative, &TimingParseError{Raw: raw, Fields: len(fields), Index: i, Err: fmt.Errorf("value %v out of range", seconds)}
		}
		cumulative[i] = int64(math.Round(seconds * 1000))
	}

	return cumulative, nil
}

// ToPhases converts cumulative durations into per-phase durations: the first
// value is kept, every other value has its predecessor subtracted.
func ToPhases(cumulative [TimingFields]int64) [TimingFields]int64 {
	var phases [TimingFields]int64
	for i, v := range cumulative {
		if i == 0 {
			phases[i] = v
			continue
		}
		phases[i] = v - cumulative[i-1]
	}
	return phases
}

// TimingParams are the named parameters available to the timing command template
type TimingParams struct {
	URL         string
	ArchivePath string
	WriteOut    string
	UserAgent   string
}

// TimingCollector measures load phases through the external fetch utility
type TimingCollector struct {
	command  *CommandSpec
	executor Executor
	store    *datafile.Store
	cfg      *config.CurlConfig
	logger   *slog.Logger
}

// NewTimingCollector creates a collector for the configured fetch command
func NewTimingCollector(cfg *config.CurlConfig, executor Executor, store *datafile.Store, logger *slog.Logger) (*TimingCollector, error) {
	command, err := NewCommandSpec(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid timing command: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &TimingCollector{
		command:  command,
		executor: executor,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Command renders the argv used for site
func (c *TimingCollector) Command(site models.SiteDefinition) ([]string, error) {
	return c.command.Render(TimingParams{
		URL:         site.URL,
		ArchivePath: c.store.ArchivePath(site.FileKey()),
		WriteOut:    c.cfg.WriteOut,
		UserAgent:   c.cfg.UserAgent,
	})
}

// Collect fetches site once and returns its per-phase durations
func (c *TimingCollector) Collect(ctx context.Context, site models.SiteDefinition, timeout time.Duration) (*models.TimingSample, error) {
	if err := c.store.EnsureArchiveDir(); err != nil {
		return nil, err
	}

	args, err := c.Command(site)
	if err != nil {
		return nil, err
	}

	var output string
	var startErr error

	result, err := c.executor.Run(ctx, timeout, c.command.Binary(), args...)
	switch {
	case errors.Is(err, ErrCommandStart):
		// Treated as empty output, which then fails to parse
		c.logger.Error("Timing command failed to start", "site", site.GetName(), "error", err)
		startErr = err
	case err != nil:
		return nil, err
	default:
		output = result.Stdout
		if result.ExitCode != 0 {
			c.logger.Warn("Timing command exited with non-zero status",
				"site", site.GetName(),
				"exit_code", result.ExitCode,
			)
		}
	}

	c.logger.Debug("Timing command output", "site", site.GetName(), "output", output)

	cumulative, err := ParseTimings(output)
	if err != nil {
		return nil, errors.Join(startErr, err)
	}

	return models.NewTimingSample(ToPhases(cumulative)), nil
}
