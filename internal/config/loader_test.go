package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestParseSimpleSiteList_BasicDomains tests parsing simple domain names
func TestParseSimpleSiteList_BasicDomains(t *testing.T) {
	sitesStr := "allegro.pl,x-kom.pl,example.org"
	sites, err := ParseSimpleSiteList(sitesStr)

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(sites) != 3 {
		t.Fatalf("Expected 3 sites, got %d", len(sites))
	}

	if sites[0].URL != "https://allegro.pl" {
		t.Errorf("Expected URL 'https://allegro.pl', got '%s'", sites[0].URL)
	}
	if sites[0].Name != "allegro" {
		t.Errorf("Expected name 'allegro', got '%s'", sites[0].Name)
	}

	if sites[1].URL != "https://x-kom.pl" {
		t.Errorf("Expected URL 'https://x-kom.pl', got '%s'", sites[1].URL)
	}
	if sites[1].Name != "x-kom" {
		t.Errorf("Expected name 'x-kom', got '%s'", sites[1].Name)
	}
}

// TestParseSimpleSiteList_HTTPSURLs tests parsing full HTTPS URLs
func TestParseSimpleSiteList_HTTPSURLs(t *testing.T) {
	sites, err := ParseSimpleSiteList("https://www.morele.net,https://github.com/trending")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(sites) != 2 {
		t.Fatalf("Expected 2 sites, got %d", len(sites))
	}

	// URL should remain unchanged
	if sites[0].URL != "https://www.morele.net" {
		t.Errorf("Expected URL 'https://www.morele.net', got '%s'", sites[0].URL)
	}

	// Name should strip protocol and www
	if sites[0].Name != "morele" {
		t.Errorf("Expected name 'morele', got '%s'", sites[0].Name)
	}

	// Name should strip path
	if sites[1].Name != "github" {
		t.Errorf("Expected name 'github' (path stripped), got '%s'", sites[1].Name)
	}
}

// TestParseSimpleSiteList_HTTPURLs tests parsing HTTP (non-secure) URLs
func TestParseSimpleSiteList_HTTPURLs(t *testing.T) {
	sites, err := ParseSimpleSiteList("http://example.com,http://localhost:8080")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if sites[0].URL != "http://example.com" {
		t.Errorf("Expected URL 'http://example.com', got '%s'", sites[0].URL)
	}
	if sites[1].URL != "http://localhost:8080" {
		t.Errorf("Expected URL 'http://localhost:8080', got '%s'", sites[1].URL)
	}
}

// TestParseSimpleSiteList_WithWhitespace tests trimming around entries
func TestParseSimpleSiteList_WithWhitespace(t *testing.T) {
	sites, err := ParseSimpleSiteList("  allegro.pl , www.amazon.cn  ")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(sites) != 2 {
		t.Fatalf("Expected 2 sites, got %d", len(sites))
	}
	if sites[1].URL != "https://www.amazon.cn" {
		t.Errorf("Expected URL 'https://www.amazon.cn', got '%s'", sites[1].URL)
	}
	if sites[1].Name != "amazon" {
		t.Errorf("Expected name 'amazon', got '%s'", sites[1].Name)
	}
}

// TestParseSimpleSiteList_InnerWhitespace tests rejection of entries with spaces
func TestParseSimpleSiteList_InnerWhitespace(t *testing.T) {
	if _, err := ParseSimpleSiteList("allegro.pl,exa mple.com"); err == nil {
		t.Error("Expected error for site containing whitespace")
	}
}

// TestParseSimpleSiteList_EmptyString tests that an empty list yields no sites
func TestParseSimpleSiteList_EmptyString(t *testing.T) {
	sites, err := ParseSimpleSiteList("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if sites != nil {
		t.Errorf("Expected nil sites, got %v", sites)
	}
}

// TestParseSimpleSiteList_EmptyElements tests skipping empty elements
func TestParseSimpleSiteList_EmptyElements(t *testing.T) {
	sites, err := ParseSimpleSiteList("allegro.pl,,  ,morele.net,")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(sites) != 2 {
		t.Fatalf("Expected 2 sites (empty elements skipped), got %d", len(sites))
	}
}

// TestDefaultConfig tests values the collectors depend on
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.General.CommandTimeout != 15*time.Second {
		t.Errorf("Expected command timeout 15s, got %v", cfg.General.CommandTimeout)
	}
	if cfg.General.RunInterval != 0 {
		t.Errorf("Expected single sweep by default, got interval %v", cfg.General.RunInterval)
	}
	if cfg.Curl.WriteOut != "%{time_namelookup};%{time_connect};%{time_pretransfer};%{time_starttransfer};%{time_total}" {
		t.Errorf("Unexpected write-out format: %s", cfg.Curl.WriteOut)
	}
	if cfg.PageSpeed.Strategy != "DESKTOP" || cfg.PageSpeed.Category != "PERFORMANCE" {
		t.Errorf("Expected DESKTOP/PERFORMANCE, got %s/%s", cfg.PageSpeed.Strategy, cfg.PageSpeed.Category)
	}
	if cfg.PageSpeed.Extractor != "regex" {
		t.Errorf("Expected regex extractor by default, got %s", cfg.PageSpeed.Extractor)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

// TestDefaultSites tests the built-in site list
func TestDefaultSites(t *testing.T) {
	sites := DefaultSites()
	if len(sites) != 6 {
		t.Fatalf("Expected 6 default sites, got %d", len(sites))
	}
	if sites[0].URL != "https://allegro.pl" {
		t.Errorf("Expected first site 'https://allegro.pl', got '%s'", sites[0].URL)
	}
	if sites[5].URL != "https://www.amazon.cn" {
		t.Errorf("Expected last site 'https://www.amazon.cn', got '%s'", sites[5].URL)
	}
}

// TestLoadFromEnv_CollectorSettings tests the settings read by the collectors
func TestLoadFromEnv_CollectorSettings(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("DATA_DIR", "/var/lib/monitor")
	t.Setenv("COMMAND_TIMEOUT", "20s")
	t.Setenv("CURL_BINARY", "/usr/local/bin/curl")
	t.Setenv("PAGESPEED_STRATEGY", "mobile")
	t.Setenv("LCP_EXTRACTOR", "JSON")
	t.Setenv("LCP_SOURCE", "Browser")
	t.Setenv("BROWSER_HEADLESS", "false")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.PageSpeed.APIKey != "test-key" {
		t.Errorf("Expected API key 'test-key', got '%s'", cfg.PageSpeed.APIKey)
	}
	if cfg.General.DataDir != "/var/lib/monitor" {
		t.Errorf("Expected data dir '/var/lib/monitor', got '%s'", cfg.General.DataDir)
	}
	if cfg.General.CommandTimeout != 20*time.Second {
		t.Errorf("Expected 20s timeout, got %v", cfg.General.CommandTimeout)
	}
	if cfg.Curl.Command.Binary != "/usr/local/bin/curl" || cfg.PageSpeed.Command.Binary != "/usr/local/bin/curl" {
		t.Errorf("Expected both commands to use the configured binary, got %s and %s",
			cfg.Curl.Command.Binary, cfg.PageSpeed.Command.Binary)
	}
	if cfg.PageSpeed.Strategy != "MOBILE" {
		t.Errorf("Expected strategy 'MOBILE', got '%s'", cfg.PageSpeed.Strategy)
	}
	if cfg.PageSpeed.Extractor != "json" {
		t.Errorf("Expected extractor 'json', got '%s'", cfg.PageSpeed.Extractor)
	}
	if cfg.PageSpeed.Source != "browser" || cfg.Browser.Headless {
		t.Errorf("Expected headed browser source, got %s (headless=%v)", cfg.PageSpeed.Source, cfg.Browser.Headless)
	}
}

// TestLoadFromEnv_InvalidDuration tests that bad durations are rejected
func TestLoadFromEnv_InvalidDuration(t *testing.T) {
	t.Setenv("COMMAND_TIMEOUT", "invalid")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err == nil {
		t.Error("Expected error for invalid COMMAND_TIMEOUT")
	}
}

// TestLoadFromEnv_Sites tests the SITES override
func TestLoadFromEnv_Sites(t *testing.T) {
	t.Setenv("SITES", "allegro.pl,morele.net")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(cfg.Sites.List) != 2 {
		t.Fatalf("Expected 2 sites, got %d", len(cfg.Sites.List))
	}
}

// TestLoadFromEnv_Outputs tests optional output toggles
func TestLoadFromEnv_Outputs(t *testing.T) {
	t.Setenv("ES_ENABLED", "true")
	t.Setenv("ES_ENDPOINT", "http://es:9200")
	t.Setenv("PROM_ENABLED", "1")
	t.Setenv("PROM_PORT", "9191")
	t.Setenv("PROM_PUSH_GATEWAY", "http://pushgateway:9091")
	t.Setenv("SNMP_ENABLED", "true")
	t.Setenv("SNMP_TRAP_DESTINATIONS", "10.0.0.1:162, 10.0.0.2")
	t.Setenv("SQLITE_ENABLED", "true")
	t.Setenv("SQLITE_PATH", "/tmp/history.db")
	t.Setenv("HEALTH_CHECK_PORT", "not-a-number")

	cfg := DefaultConfig()
	if err := LoadFromEnv(cfg); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !cfg.Elasticsearch.Enabled || cfg.Elasticsearch.Endpoint != "http://es:9200" {
		t.Errorf("Expected Elasticsearch enabled at http://es:9200, got %+v", cfg.Elasticsearch)
	}
	if !cfg.Prometheus.Enabled || cfg.Prometheus.Port != 9191 {
		t.Errorf("Expected Prometheus enabled on 9191, got %+v", cfg.Prometheus)
	}
	if cfg.Prometheus.PushGatewayURL != "http://pushgateway:9091" {
		t.Errorf("Expected push gateway URL, got '%s'", cfg.Prometheus.PushGatewayURL)
	}
	if len(cfg.SNMP.TrapDestinations) != 2 || cfg.SNMP.TrapDestinations[1] != "10.0.0.2" {
		t.Errorf("Expected 2 trap destinations, got %v", cfg.SNMP.TrapDestinations)
	}
	if !cfg.SQLite.Enabled || cfg.SQLite.Path != "/tmp/history.db" {
		t.Errorf("Expected SQLite enabled at /tmp/history.db, got %+v", cfg.SQLite)
	}
	// Invalid port keeps the default
	if cfg.Advanced.HealthCheckPort != 8080 {
		t.Errorf("Expected default health check port 8080, got %d", cfg.Advanced.HealthCheckPort)
	}
}

// TestLoad_YAMLWithEnvOverride tests that env variables win over the file
func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "monitor.yaml")
	content := `general:
  data_dir: /srv/monitor
  command_timeout: 10s
sites:
  list:
    - url: https://www.komputronik.pl
      name: komputronik
      timeout_seconds: 30
pagespeed:
  extractor: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("COMMAND_TIMEOUT", "25s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.General.DataDir != "/srv/monitor" {
		t.Errorf("Expected data dir from file, got '%s'", cfg.General.DataDir)
	}
	if cfg.General.CommandTimeout != 25*time.Second {
		t.Errorf("Expected env override 25s, got %v", cfg.General.CommandTimeout)
	}
	if len(cfg.Sites.List) != 1 || cfg.Sites.List[0].TimeoutSeconds != 30 {
		t.Errorf("Expected one site with 30s timeout, got %+v", cfg.Sites.List)
	}
	if cfg.PageSpeed.Extractor != "json" {
		t.Errorf("Expected json extractor from file, got '%s'", cfg.PageSpeed.Extractor)
	}
	// Defaults not mentioned in the file survive
	if cfg.Curl.Command.Binary != "curl" {
		t.Errorf("Expected default curl binary, got '%s'", cfg.Curl.Command.Binary)
	}
}

// TestLoad_DefaultSites tests that an empty site list falls back to defaults
func TestLoad_DefaultSites(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(cfg.Sites.List) != len(DefaultSites()) {
		t.Errorf("Expected %d default sites, got %d", len(DefaultSites()), len(cfg.Sites.List))
	}
}

// TestLoad_MissingFile tests that a missing config file is reported
func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected wrapped os.ErrNotExist, got %v", err)
	}
}

// TestValidate tests rejection of unusable settings
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero timeout", func(c *Config) { c.General.CommandTimeout = 0 }},
		{"negative interval", func(c *Config) { c.General.RunInterval = -time.Second }},
		{"unknown extractor", func(c *Config) { c.PageSpeed.Extractor = "xpath" }},
		{"unknown LCP source", func(c *Config) { c.PageSpeed.Source = "lighthouse" }},
		{"empty binary", func(c *Config) { c.Curl.Command.Binary = "" }},
		{"empty site URL", func(c *Config) { c.Sites.List[0].URL = "" }},
		{"elasticsearch without endpoint", func(c *Config) { c.Elasticsearch.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Sites.List = DefaultSites()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

// TestLoadEnvFile tests dotenv loading without overriding the environment
func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("STM_TEST_FROM_FILE=file\nSTM_TEST_PRESET=file\n"), 0644); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}

	t.Setenv("STM_TEST_PRESET", "env")
	t.Setenv("STM_TEST_FROM_FILE", "")
	os.Unsetenv("STM_TEST_FROM_FILE")

	loaded, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !loaded {
		t.Fatal("Expected env file to be loaded")
	}

	if v := os.Getenv("STM_TEST_FROM_FILE"); v != "file" {
		t.Errorf("Expected STM_TEST_FROM_FILE=file, got '%s'", v)
	}
	if v := os.Getenv("STM_TEST_PRESET"); v != "env" {
		t.Errorf("Expected existing variable to win, got '%s'", v)
	}
}

// TestLoadEnvFile_Missing tests that a missing file is not an error
func TestLoadEnvFile_Missing(t *testing.T) {
	loaded, err := LoadEnvFile(filepath.Join(t.TempDir(), ".env"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loaded {
		t.Error("Expected missing env file not to be loaded")
	}
}
