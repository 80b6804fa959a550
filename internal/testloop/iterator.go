package testloop

import (
	"sync"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// SiteIterator walks the configured sites once per sweep, in order
type SiteIterator struct {
	sites   []models.SiteDefinition
	current int
	mu      sync.Mutex
}

// NewSiteIterator creates a new site iterator
func NewSiteIterator(sites []models.SiteDefinition) *SiteIterator {
	return &SiteIterator{
		sites:   sites,
		current: 0,
	}
}

// Next returns the next site of the current sweep, or false when the sweep
// has visited every site
func (i *SiteIterator) Next() (models.SiteDefinition, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.current >= len(i.sites) {
		return models.SiteDefinition{}, false
	}

	site := i.sites[i.current]
	i.current++
	return site, true
}

// Remaining returns how many sites the current sweep has left
func (i *SiteIterator) Remaining() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.sites) - i.current
}

// Count returns the total number of sites
func (i *SiteIterator) Count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.sites)
}

// Reset starts a new sweep at the first site
func (i *SiteIterator) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.current = 0
}
