package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// Dispatcher distributes site results to all output modules
type Dispatcher struct {
	outputs []Output
	logger  *slog.Logger
	mu      sync.RWMutex
}

// Output is an interface for result output modules
type Output interface {
	// Write sends a site result to the output
	Write(result *models.SiteResult) error

	// Name returns the output module name
	Name() string
}

// NewDispatcher creates a new result dispatcher
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		outputs: make([]Output, 0),
		logger:  logger,
	}
}

// RegisterOutput adds an output module to the dispatcher
func (d *Dispatcher) RegisterOutput(output Output) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs = append(d.outputs, output)
}

// Outputs returns the registered output names in dispatch order
func (d *Dispatcher) Outputs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.outputs))
	for _, o := range d.outputs {
		names = append(names, o.Name())
	}
	return names
}

// Dispatch sends a result to every registered output in registration order.
// A failing output is logged and does not stop the others.
func (d *Dispatcher) Dispatch(result *models.SiteResult) error {
	d.mu.RLock()
	outputs := make([]Output, len(d.outputs))
	copy(outputs, d.outputs)
	d.mu.RUnlock()

	var errs []error
	for _, o := range outputs {
		if err := o.Write(result); err != nil {
			d.logger.Error("Output failed to write result",
				"output", o.Name(),
				"site", result.Site.Name,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", o.Name(), err))
		}
	}

	return errors.Join(errs...)
}
