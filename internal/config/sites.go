package config

import (
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// DefaultSites returns the default list of sites to monitor
func DefaultSites() []models.SiteDefinition {
	return []models.SiteDefinition{
		{URL: "https://allegro.pl", Name: "allegro", Category: "retail"},
		{URL: "https://www.x-kom.pl", Name: "x-kom", Category: "retail"},
		{URL: "https://www.morele.net", Name: "morele", Category: "retail"},
		{URL: "https://www.komputronik.pl", Name: "komputronik", Category: "retail"},
		{URL: "https://www.aliexpress.com", Name: "aliexpress", Category: "marketplace"},
		{URL: "https://www.amazon.cn", Name: "amazon", Category: "marketplace"},
	}
}
