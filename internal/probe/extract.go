package probe

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// LCPExtractor finds the Largest Contentful Paint percentile in a PageSpeed response
type LCPExtractor interface {
	// Extract returns the percentile and true, or false if the field is absent
	Extract(body string) (int64, bool)
}

// NewExtractor returns the extractor registered under name
func NewExtractor(name string) (LCPExtractor, error) {
	switch name {
	case "", "regex":
		return NewRegexExtractor(), nil
	case "json":
		return JSONExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown LCP extractor %q", name)
	}
}

var lcpPattern = regexp.MustCompile(`"LARGEST_CONTENTFUL_PAINT_MS": \{\s+"percentile": (\d+),`)

// RegexExtractor matches the field in the raw response text
type RegexExtractor struct {
	pattern *regexp.Regexp
}

// NewRegexExtractor creates an extractor for the pretty-printed PageSpeed layout
func NewRegexExtractor() *RegexExtractor {
	return &RegexExtractor{pattern: lcpPattern}
}

func (r *RegexExtractor) Extract(body string) (int64, bool) {
	match := r.pattern.FindStringSubmatch(body)
	if match == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// pageSpeedResponse is the subset of the runPagespeed response we read
type pageSpeedResponse struct {
	LoadingExperience struct {
		Metrics map[string]struct {
			Percentile *int64 `json:"percentile"`
		} `json:"metrics"`
	} `json:"loadingExperience"`
}

// JSONExtractor decodes the response and reads
// loadingExperience.metrics.LARGEST_CONTENTFUL_PAINT_MS.percentile
type JSONExtractor struct{}

func (JSONExtractor) Extract(body string) (int64, bool) {
	var resp pageSpeedResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return 0, false
	}
	metric, ok := resp.LoadingExperience.Metrics["LARGEST_CONTENTFUL_PAINT_MS"]
	if !ok || metric.Percentile == nil {
		return 0, false
	}
	return *metric.Percentile, true
}
