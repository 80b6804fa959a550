package outputs

import (
	"errors"
	"fmt"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/datafile"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// CSVOutput appends samples to the per-site CSV data files
type CSVOutput struct {
	store *datafile.Store
}

// NewCSVOutput creates a CSV output backed by store
func NewCSVOutput(store *datafile.Store) *CSVOutput {
	return &CSVOutput{store: store}
}

// Write appends one timing row and one LCP row when the samples exist.
// Files are created with their header on first write.
func (c *CSVOutput) Write(result *models.SiteResult) error {
	var errs []error

	if result.Timing != nil {
		row := result.Timing.CSVRow(result.Timestamp)
		if err := c.store.Append(datafile.KindTiming, result.Site.Key, row); err != nil {
			errs = append(errs, fmt.Errorf("timing row for %s: %w", result.Site.Key, err))
		}
	}

	if result.LCP != nil {
		row := result.LCP.CSVRow(result.Timestamp)
		if err := c.store.Append(datafile.KindLCP, result.Site.Key, row); err != nil {
			errs = append(errs, fmt.Errorf("lcp row for %s: %w", result.Site.Key, err))
		}
	}

	return errors.Join(errs...)
}

// Name returns the output module name
func (c *CSVOutput) Name() string {
	return "csv"
}
