package metrics

import (
	"sync"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// ResultsCache stores recent site results in memory (ephemeral).
// It is registered as an output and read by the health endpoint.
type ResultsCache struct {
	maxSize int
	results []*models.SiteResult
	mu      sync.RWMutex
}

// NewResultsCache creates a new results cache with the specified size
func NewResultsCache(maxSize int) *ResultsCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &ResultsCache{
		maxSize: maxSize,
		results: make([]*models.SiteResult, 0, maxSize),
	}
}

// Write adds a result, dropping the oldest one when full
func (c *ResultsCache) Write(result *models.SiteResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results = append(c.results, result)

	// Trim to max size (keep most recent)
	if len(c.results) > c.maxSize {
		c.results = c.results[len(c.results)-c.maxSize:]
	}
	return nil
}

// Name returns the output module name
func (c *ResultsCache) Name() string {
	return "cache"
}

// GetLast returns the N most recent results, oldest first
func (c *ResultsCache) GetLast(n int) []*models.SiteResult {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n > len(c.results) {
		n = len(c.results)
	}
	if n < 0 {
		n = 0
	}

	// Make a copy to avoid race conditions
	results := make([]*models.SiteResult, n)
	copy(results, c.results[len(c.results)-n:])
	return results
}

// Count returns the current number of cached results
func (c *ResultsCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}
