package outputs

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// Logger outputs site results as JSON lines or structured log entries
type Logger struct {
	logger *slog.Logger
	config *config.LoggingConfig
	out    io.Writer
}

// NewLogger creates a new result logger. For JSON format results are written
// as raw JSON lines to stdout; otherwise through logger.
func NewLogger(cfg *config.LoggingConfig, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return &Logger{
		logger: logger,
		config: cfg,
		out:    os.Stdout,
	}, nil
}

// Write outputs a site result
func (l *Logger) Write(result *models.SiteResult) error {
	// For JSON format, output the raw JSON directly
	if l.config.Format == "json" {
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		_, err = l.out.Write(append(data, '\n'))
		return err
	}

	attrs := []any{
		"site", result.Site.Name,
		"success", result.Success(),
	}
	if result.Timing != nil {
		attrs = append(attrs,
			"name_lookup_ms", result.Timing.NameLookupMs,
			"connection_ms", result.Timing.ConnectionMs,
			"handshake_ms", result.Timing.HandshakeMs,
			"server_processing_ms", result.Timing.ServerProcessingMs,
			"content_transfer_ms", result.Timing.ContentTransferMs,
			"total_ms", result.Timing.TotalMs(),
		)
	}
	if result.LCP != nil {
		attrs = append(attrs, "lcp_ms", result.LCP.PercentileMs)
	}
	for _, e := range result.Errors {
		attrs = append(attrs, e.Collector+"_error", e.ErrorType)
	}

	l.logger.Info("site_result", attrs...)
	return nil
}

// Name returns the output module name
func (l *Logger) Name() string {
	return "logger"
}
