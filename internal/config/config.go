package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	General       GeneralConfig       `yaml:"general"`
	Sites         SitesConfig         `yaml:"sites"`
	Curl          CurlConfig          `yaml:"curl"`
	PageSpeed     PageSpeedConfig     `yaml:"pagespeed"`
	Browser       BrowserConfig       `yaml:"browser"`
	Logging       LoggingConfig       `yaml:"logging"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	SNMP          SNMPConfig          `yaml:"snmp"`
	Prometheus    PrometheusConfig    `yaml:"prometheus"`
	SQLite        SQLiteConfig        `yaml:"sqlite"`
	Advanced      AdvancedConfig      `yaml:"advanced"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// DataDir is the base path for archive/, curl-data/ and lcp-data/
	DataDir string `yaml:"data_dir"`

	// CommandTimeout bounds every external process invocation
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// RunInterval repeats sweeps; zero runs a single sweep and exits
	RunInterval time.Duration `yaml:"run_interval"`
}

// SitesConfig contains the list of sites to monitor
type SitesConfig struct {
	List []models.SiteDefinition `yaml:"list"`
}

// CommandTemplate describes an external command whose arguments are
// text/template strings rendered with named parameters
type CommandTemplate struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
}

// CurlConfig contains settings for the timing fetch
type CurlConfig struct {
	UserAgent string          `yaml:"user_agent"`
	WriteOut  string          `yaml:"write_out"`
	Command   CommandTemplate `yaml:"command"`
}

// PageSpeedConfig contains settings for the LCP query
type PageSpeedConfig struct {
	// Source selects where LCP comes from: "pagespeed" or "browser"
	Source string `yaml:"source"`

	Endpoint  string          `yaml:"endpoint"`
	APIKey    string          `yaml:"api_key"`
	Strategy  string          `yaml:"strategy"`
	Category  string          `yaml:"category"`
	Extractor string          `yaml:"extractor"`
	Command   CommandTemplate `yaml:"command"`
}

// BrowserConfig contains settings for the local headless browser LCP source
type BrowserConfig struct {
	Headless     bool          `yaml:"headless"`
	WindowWidth  int           `yaml:"window_width"`
	WindowHeight int           `yaml:"window_height"`
	SettleTime   time.Duration `yaml:"settle_time"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ElasticsearchConfig contains Elasticsearch output settings
type ElasticsearchConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Endpoint      string        `yaml:"endpoint"`
	IndexPattern  string        `yaml:"index_pattern"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	APIKey        string        `yaml:"api_key"`
	BulkSize      int           `yaml:"bulk_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxRetries    int           `yaml:"max_retries"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify"`
}

// SNMPConfig contains SNMP trap settings
type SNMPConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Community        string        `yaml:"community"`
	EnterpriseOID    string        `yaml:"enterprise_oid"`
	TrapDestinations []string      `yaml:"trap_destinations"`
	Timeout          time.Duration `yaml:"timeout"`
}

// PrometheusConfig contains Prometheus exporter settings
type PrometheusConfig struct {
	Enabled          bool      `yaml:"enabled"`
	Port             int       `yaml:"port"`
	Path             string    `yaml:"path"`
	ListenAddress    string    `yaml:"listen_address"`
	IncludeGoMetrics bool      `yaml:"include_go_metrics"`
	PushGatewayURL   string    `yaml:"push_gateway_url"`
	PushJob          string    `yaml:"push_job"`
	LCPBuckets       []float64 `yaml:"lcp_buckets"`
}

// SQLiteConfig contains local history database settings
type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AdvancedConfig contains advanced settings
type AdvancedConfig struct {
	HealthCheckEnabled       bool          `yaml:"health_check_enabled"`
	HealthCheckPort          int           `yaml:"health_check_port"`
	HealthCheckPath          string        `yaml:"health_check_path"`
	HealthCheckListenAddress string        `yaml:"health_check_listen_address"`
	ShutdownTimeout          time.Duration `yaml:"shutdown_timeout"`
}

// Load loads configuration from a YAML file and environment variables
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		if err := loadFromYAML(configFile, cfg); err != nil {
			return nil, err
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	if len(cfg.Sites.List) == 0 {
		cfg.Sites.List = DefaultSites()
	}

	return cfg, cfg.Validate()
}

// loadFromYAML merges the file at path into cfg
func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks settings that would otherwise fail in the middle of a run
func (c *Config) Validate() error {
	if c.General.CommandTimeout <= 0 {
		return fmt.Errorf("command timeout must be positive, got %v", c.General.CommandTimeout)
	}
	if c.General.RunInterval < 0 {
		return fmt.Errorf("run interval must not be negative, got %v", c.General.RunInterval)
	}
	if c.Curl.Command.Binary == "" {
		return fmt.Errorf("timing command binary is empty")
	}
	if c.PageSpeed.Command.Binary == "" {
		return fmt.Errorf("pagespeed command binary is empty")
	}
	switch c.PageSpeed.Source {
	case "pagespeed", "browser":
	default:
		return fmt.Errorf("unknown LCP source %q (want pagespeed or browser)", c.PageSpeed.Source)
	}
	switch c.PageSpeed.Extractor {
	case "regex", "json":
	default:
		return fmt.Errorf("unknown LCP extractor %q (want regex or json)", c.PageSpeed.Extractor)
	}
	for i, site := range c.Sites.List {
		if site.URL == "" {
			return fmt.Errorf("site %d has an empty URL", i)
		}
	}
	if c.Elasticsearch.Enabled && c.Elasticsearch.Endpoint == "" {
		return fmt.Errorf("elasticsearch is enabled but no endpoint is set")
	}
	if c.SQLite.Enabled && c.SQLite.Path == "" {
		return fmt.Errorf("sqlite is enabled but no path is set")
	}
	return nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		General: GeneralConfig{
			DataDir:        ".",
			CommandTimeout: 15 * time.Second,
		},
		Curl: CurlConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:80.0) Gecko/20100101 Firefox/80.0",
			WriteOut:  "%{time_namelookup};%{time_connect};%{time_pretransfer};%{time_starttransfer};%{time_total}",
			Command: CommandTemplate{
				Binary: "curl",
				// -w write-out format, -o output location, -s no progress meter, -A user agent
				Args: []string{"-w", "{{.WriteOut}}", "-o", "{{.ArchivePath}}", "-s", "-A", "{{.UserAgent}}", "{{.URL}}"},
			},
		},
		PageSpeed: PageSpeedConfig{
			Source:    "pagespeed",
			Endpoint:  "https://pagespeedonline.googleapis.com/pagespeedonline/v5/runPagespeed",
			Strategy:  "DESKTOP",
			Category:  "PERFORMANCE",
			Extractor: "regex",
			Command: CommandTemplate{
				Binary: "curl",
				Args:   []string{"--header", "Accept: application/json", "-s", "{{.Endpoint}}"},
			},
		},
		Browser: BrowserConfig{
			Headless:     true,
			WindowWidth:  1920,
			WindowHeight: 1080,
			SettleTime:   3 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:       false,
			IndexPattern:  "site-timing-monitor-%{+yyyy.MM.dd}",
			BulkSize:      50,
			FlushInterval: 10 * time.Second,
			MaxRetries:    3,
		},
		SNMP: SNMPConfig{
			Enabled:       false,
			Community:     "public",
			EnterpriseOID: ".1.3.6.1.4.1.99999",
			Timeout:       2 * time.Second,
		},
		Prometheus: PrometheusConfig{
			Enabled:       false,
			Port:          9090,
			Path:          "/metrics",
			ListenAddress: "0.0.0.0",
			PushJob:       "site_timing_monitor",
			LCPBuckets:    []float64{500, 1000, 1500, 2000, 2500, 3000, 4000, 6000, 10000},
		},
		SQLite: SQLiteConfig{
			Enabled: false,
			Path:    "history.db",
		},
		Advanced: AdvancedConfig{
			HealthCheckEnabled:       false,
			HealthCheckPort:          8080,
			HealthCheckPath:          "/health",
			HealthCheckListenAddress: "0.0.0.0",
			ShutdownTimeout:          30 * time.Second,
		},
	}
}
