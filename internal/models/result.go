package models

import (
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for every CSV row
const TimestampLayout = time.RFC3339Nano

// SiteResult represents the outcome of collecting one site
type SiteResult struct {
	// Timestamp is captured once per site, before either collector runs
	Timestamp time.Time `json:"@timestamp"`

	// RunID identifies the sweep this result belongs to
	RunID string `json:"run_id"`

	// ResultID is a unique identifier for this result
	ResultID string `json:"result_id"`

	// Site information
	Site SiteInfo `json:"site"`

	// Timing holds the per-phase durations, nil if the timing collector failed
	Timing *TimingSample `json:"timing,omitempty"`

	// LCP holds the Largest Contentful Paint percentile, nil if unavailable
	LCP *LCPSample `json:"lcp,omitempty"`

	// Errors lists every collector failure for this site
	Errors []ErrorInfo `json:"errors,omitempty"`

	// Metadata about the collection environment
	Metadata RunMetadata `json:"metadata,omitempty"`
}

// SiteInfo contains information about the collected site
type SiteInfo struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Key      string `json:"key"`
	Category string `json:"category,omitempty"`
}

// TimingSample contains the non-cumulative phase durations in milliseconds
type TimingSample struct {
	// NameLookupMs is the time spent resolving DNS
	NameLookupMs int64 `json:"name_lookup_ms"`

	// ConnectionMs is the time to establish the TCP connection
	ConnectionMs int64 `json:"connection_ms"`

	// HandshakeMs is the time between connect and the start of the transfer (TLS)
	HandshakeMs int64 `json:"handshake_ms"`

	// ServerProcessingMs is the time until the first byte arrived
	ServerProcessingMs int64 `json:"server_processing_ms"`

	// ContentTransferMs is the time spent receiving the body
	ContentTransferMs int64 `json:"content_transfer_ms"`
}

// NewTimingSample builds a sample from five non-cumulative phase durations
func NewTimingSample(phases [5]int64) *TimingSample {
	return &TimingSample{
		NameLookupMs:       phases[0],
		ConnectionMs:       phases[1],
		HandshakeMs:        phases[2],
		ServerProcessingMs: phases[3],
		ContentTransferMs:  phases[4],
	}
}

// Phases returns the phase durations in collection order
func (t *TimingSample) Phases() [5]int64 {
	return [5]int64{t.NameLookupMs, t.ConnectionMs, t.HandshakeMs, t.ServerProcessingMs, t.ContentTransferMs}
}

// TotalMs is the sum of all phases, equal to the cumulative total
func (t *TimingSample) TotalMs() int64 {
	var total int64
	for _, p := range t.Phases() {
		total += p
	}
	return total
}

// CSVRow renders the sample as a newline-terminated data row
func (t *TimingSample) CSVRow(ts time.Time) string {
	fields := make([]string, 0, 6)
	fields = append(fields, FormatTimestamp(ts))
	for _, p := range t.Phases() {
		fields = append(fields, strconv.FormatInt(p, 10))
	}
	return strings.Join(fields, ",") + "\n"
}

// LCPSample contains the Largest Contentful Paint percentile
type LCPSample struct {
	PercentileMs int64 `json:"percentile_ms"`
}

// CSVRow renders the sample as a newline-terminated data row
func (l *LCPSample) CSVRow(ts time.Time) string {
	return FormatTimestamp(ts) + "," + strconv.FormatInt(l.PercentileMs, 10) + "\n"
}

// ErrorInfo contains error details when a collector fails
type ErrorInfo struct {
	// Collector is "timing" or "lcp"
	Collector string `json:"collector"`

	// ErrorType categorizes the error (e.g., "timeout", "start", "parse")
	ErrorType string `json:"error_type"`

	// ErrorMessage is the human-readable error message
	ErrorMessage string `json:"error_message"`
}

// RunMetadata contains information about the collection environment
type RunMetadata struct {
	// Hostname of the monitor instance
	Hostname string `json:"hostname,omitempty"`

	// Version of the monitor software
	Version string `json:"version,omitempty"`

	// UserAgent sent by the fetch utility
	UserAgent string `json:"user_agent,omitempty"`
}

// Success reports whether the result carries no collector errors
func (r *SiteResult) Success() bool {
	return len(r.Errors) == 0
}

// HasError reports whether the given collector failed
func (r *SiteResult) HasError(collector string) bool {
	for _, e := range r.Errors {
		if e.Collector == collector {
			return true
		}
	}
	return false
}

// FormatTimestamp renders t as ISO-8601 in UTC
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
