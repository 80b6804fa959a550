package models

import (
	"strings"
	"time"
)

// SiteDefinition represents a website to monitor
type SiteDefinition struct {
	// URL is the full URL to test (e.g., "https://www.x-kom.pl")
	URL string `yaml:"url" json:"url"`

	// Name is a short, human-readable identifier (e.g., "x-kom")
	Name string `yaml:"name" json:"name"`

	// Category groups sites by type (e.g., "retail")
	Category string `yaml:"category" json:"category"`

	// TimeoutSeconds overrides the command timeout for this site
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// GetTimeout returns the timeout for this site, or fallback if none is set
func (s *SiteDefinition) GetTimeout(fallback time.Duration) time.Duration {
	if s.TimeoutSeconds <= 0 {
		return fallback
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// GetName returns the site name, deriving it from URL if not set
func (s *SiteDefinition) GetName() string {
	if s.Name != "" {
		return s.Name
	}
	if stripped := s.StrippedURL(); stripped != "" {
		return stripped
	}
	return "unknown"
}

// StrippedURL returns the URL without protocol scheme and leading "www."
func (s *SiteDefinition) StrippedURL() string {
	return StripURL(s.URL)
}

// FileKey returns the stripped URL made safe for use as a single file name
func (s *SiteDefinition) FileKey() string {
	return FileKey(s.URL)
}

// StripURL removes "https://", "http://" and a leading "www." from url
func StripURL(url string) string {
	stripped := strings.TrimPrefix(url, "https://")
	stripped = strings.TrimPrefix(stripped, "http://")
	return strings.TrimPrefix(stripped, "www.")
}

var fileKeyReplacer = strings.NewReplacer("/", "_", ":", "_", "?", "_", "&", "_", "\\", "_")

// FileKey strips url and replaces characters that would leave the data directory
func FileKey(url string) string {
	key := strings.TrimSuffix(StripURL(url), "/")
	return fileKeyReplacer.Replace(key)
}
