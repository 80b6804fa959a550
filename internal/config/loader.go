package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already present in the environment. Returns true if a file was loaded.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		path = ".env"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}

	if err := godotenv.Load(path); err != nil {
		return false, fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return true, nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) error {
	// General settings
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.General.DataDir = v
	}

	if v := os.Getenv("COMMAND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid COMMAND_TIMEOUT: %w", err)
		}
		cfg.General.CommandTimeout = d
	}

	if v := os.Getenv("RUN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RUN_INTERVAL: %w", err)
		}
		cfg.General.RunInterval = d
	}

	// Sites from comma-separated list
	if v := os.Getenv("SITES"); v != "" {
		sites, err := ParseSimpleSiteList(v)
		if err != nil {
			return fmt.Errorf("invalid SITES: %w", err)
		}
		cfg.Sites.List = sites
	}

	// Timing fetch
	if v := os.Getenv("CURL_BINARY"); v != "" {
		cfg.Curl.Command.Binary = v
		cfg.PageSpeed.Command.Binary = v
	}

	if v := os.Getenv("USER_AGENT"); v != "" {
		cfg.Curl.UserAgent = v
	}

	// PageSpeed
	if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		cfg.PageSpeed.APIKey = v
	}

	if v := os.Getenv("PAGESPEED_STRATEGY"); v != "" {
		cfg.PageSpeed.Strategy = strings.ToUpper(v)
	}

	if v := os.Getenv("PAGESPEED_CATEGORY"); v != "" {
		cfg.PageSpeed.Category = strings.ToUpper(v)
	}

	if v := os.Getenv("LCP_SOURCE"); v != "" {
		cfg.PageSpeed.Source = strings.ToLower(v)
	}

	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		cfg.Browser.Headless = parseBool(v)
	}

	if v := os.Getenv("BROWSER_SETTLE_TIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid BROWSER_SETTLE_TIME: %w", err)
		}
		cfg.Browser.SettleTime = d
	}

	if v := os.Getenv("LCP_EXTRACTOR"); v != "" {
		cfg.PageSpeed.Extractor = strings.ToLower(v)
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Elasticsearch
	if v := os.Getenv("ES_ENABLED"); v != "" {
		cfg.Elasticsearch.Enabled = parseBool(v)
	}

	if v := os.Getenv("ES_ENDPOINT"); v != "" {
		cfg.Elasticsearch.Endpoint = v
	}

	if v := os.Getenv("ES_INDEX_PATTERN"); v != "" {
		cfg.Elasticsearch.IndexPattern = v
	}

	if v := os.Getenv("ES_USERNAME"); v != "" {
		cfg.Elasticsearch.Username = v
	}

	if v := os.Getenv("ES_PASSWORD"); v != "" {
		cfg.Elasticsearch.Password = v
	}

	if v := os.Getenv("ES_API_KEY"); v != "" {
		cfg.Elasticsearch.APIKey = v
	}

	if v := os.Getenv("ES_BULK_SIZE"); v != "" {
		if size := parsePositiveInt(v); size > 0 {
			cfg.Elasticsearch.BulkSize = size
		}
	}

	if v := os.Getenv("ES_FLUSH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ES_FLUSH_INTERVAL: %w", err)
		}
		cfg.Elasticsearch.FlushInterval = d
	}

	// SNMP traps
	if v := os.Getenv("SNMP_ENABLED"); v != "" {
		cfg.SNMP.Enabled = parseBool(v)
	}

	if v := os.Getenv("SNMP_COMMUNITY"); v != "" {
		cfg.SNMP.Community = v
	}

	if v := os.Getenv("SNMP_TRAP_DESTINATIONS"); v != "" {
		cfg.SNMP.TrapDestinations = splitList(v)
	}

	// Prometheus
	if v := os.Getenv("PROM_ENABLED"); v != "" {
		cfg.Prometheus.Enabled = parseBool(v)
	}

	if v := os.Getenv("PROM_PORT"); v != "" {
		if port := parsePositiveInt(v); port > 0 {
			cfg.Prometheus.Port = port
		}
	}

	if v := os.Getenv("PROM_PATH"); v != "" {
		cfg.Prometheus.Path = v
	}

	if v := os.Getenv("PROM_LISTEN_ADDRESS"); v != "" {
		cfg.Prometheus.ListenAddress = v
	}

	if v := os.Getenv("PROM_PUSH_GATEWAY"); v != "" {
		cfg.Prometheus.PushGatewayURL = v
	}

	// SQLite history
	if v := os.Getenv("SQLITE_ENABLED"); v != "" {
		cfg.SQLite.Enabled = parseBool(v)
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLite.Path = v
	}

	// Advanced
	if v := os.Getenv("HEALTH_CHECK_ENABLED"); v != "" {
		cfg.Advanced.HealthCheckEnabled = parseBool(v)
	}

	if v := os.Getenv("HEALTH_CHECK_PORT"); v != "" {
		if port := parsePositiveInt(v); port > 0 {
			cfg.Advanced.HealthCheckPort = port
		}
	}

	if v := os.Getenv("HEALTH_CHECK_LISTEN_ADDRESS"); v != "" {
		cfg.Advanced.HealthCheckListenAddress = v
	}

	return nil
}

// ParseSimpleSiteList parses a comma-separated list of domains/URLs
func ParseSimpleSiteList(sitesStr string) ([]models.SiteDefinition, error) {
	if sitesStr == "" {
		return nil, nil
	}

	parts := strings.Split(sitesStr, ",")
	sites := make([]models.SiteDefinition, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.ContainsAny(part, " \t") {
			return nil, fmt.Errorf("site %q contains whitespace", part)
		}

		// Normalize to full URL
		url := part
		if !strings.HasPrefix(part, "http://") && !strings.HasPrefix(part, "https://") {
			url = "https://" + part
		}

		// Derive name from domain
		name := models.StripURL(part)
		if idx := strings.Index(name, "/"); idx > 0 {
			name = name[:idx]
		}
		if idx := strings.Index(name, "."); idx > 0 {
			name = name[:idx]
		}

		sites = append(sites, models.SiteDefinition{
			URL:  url,
			Name: name,
		})
	}

	return sites, nil
}

func parseBool(v string) bool {
	return v == "true" || v == "1"
}

func parsePositiveInt(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
