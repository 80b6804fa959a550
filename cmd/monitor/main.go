package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/browser"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/datafile"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/health"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/logging"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/metrics"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/outputs"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/probe"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/testloop"
)

const version = "1.0.0"

// closer is implemented by outputs holding connections or servers
type closer interface {
	Close() error
}

func main() {
	// Print banner
	printBanner()

	// Load configuration
	loaded, err := config.LoadEnvFile(os.Getenv("ENV_FILE"))
	if err != nil {
		log.Fatalf("Failed to load env file: %v", err)
	}
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&cfg.Logging, os.Stderr)
	slog.SetDefault(logger)

	if loaded {
		log.Println("✓ Environment file loaded")
	}
	log.Printf("Loaded configuration: %d sites to monitor", len(cfg.Sites.List))
	log.Printf("  Data directory: %s", cfg.General.DataDir)
	log.Printf("  Command timeout: %v", cfg.General.CommandTimeout)
	if cfg.General.RunInterval > 0 {
		log.Printf("  Run interval: %v", cfg.General.RunInterval)
	} else {
		log.Println("  Run interval: single sweep")
	}

	if cfg.PageSpeed.Source == "pagespeed" && cfg.PageSpeed.APIKey == "" {
		logger.Warn("GOOGLE_API_KEY is not set; PageSpeed queries will likely be rejected and no LCP rows written")
	}

	// Collectors
	store := datafile.NewStore(cfg.General.DataDir)
	executor := probe.NewProcessExecutor(os.Stderr)

	timing, err := probe.NewTimingCollector(&cfg.Curl, executor, store, logger)
	if err != nil {
		log.Fatalf("Failed to create timing collector: %v", err)
	}
	var lcp testloop.LCPCollector
	switch cfg.PageSpeed.Source {
	case "browser":
		lcp = browser.NewLCPCollector(&cfg.Browser, cfg.Curl.UserAgent, logger)
	default:
		extractor, err := probe.NewExtractor(cfg.PageSpeed.Extractor)
		if err != nil {
			log.Fatalf("Failed to create LCP extractor: %v", err)
		}
		lcp, err = probe.NewLCPCollector(&cfg.PageSpeed, executor, extractor, logger)
		if err != nil {
			log.Fatalf("Failed to create LCP collector: %v", err)
		}
	}
	log.Printf("✓ Collectors initialized (LCP source: %s)", cfg.PageSpeed.Source)

	// Initialize output modules
	dispatcher := metrics.NewDispatcher(logger)
	var closers []closer

	dispatcher.RegisterOutput(outputs.NewCSVOutput(store))
	log.Println("✓ CSV output enabled")

	resultLogger, err := outputs.NewLogger(&cfg.Logging, logger)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	dispatcher.RegisterOutput(resultLogger)
	log.Println("✓ Result logger enabled")

	esOutput, err := outputs.NewElasticsearchOutput(&cfg.Elasticsearch)
	if err != nil {
		log.Fatalf("Failed to create Elasticsearch output: %v", err)
	}
	if esOutput != nil {
		dispatcher.RegisterOutput(esOutput)
		closers = append(closers, esOutput)
		log.Println("✓ Elasticsearch output enabled")
	}

	// Serve metrics only when running as a loop; one-shot runs push on close
	promCfg := cfg.Prometheus
	if cfg.General.RunInterval <= 0 {
		promCfg.Port = 0
	}
	promOutput, err := outputs.NewPrometheusOutput(&promCfg)
	if err != nil {
		log.Fatalf("Failed to create Prometheus output: %v", err)
	}
	if promOutput != nil {
		dispatcher.RegisterOutput(promOutput)
		closers = append(closers, promOutput)
		log.Println("✓ Prometheus exporter enabled")
	}

	snmpOutput, err := outputs.NewSNMPTrapOutput(&cfg.SNMP)
	if err != nil {
		log.Fatalf("Failed to create SNMP trap output: %v", err)
	}
	if snmpOutput != nil {
		dispatcher.RegisterOutput(snmpOutput)
		closers = append(closers, snmpOutput)
		log.Println("✓ SNMP traps enabled")
	}

	if cfg.SQLite.Enabled {
		dbPath := cfg.SQLite.Path
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(cfg.General.DataDir, dbPath)
		}
		sqliteOutput, err := outputs.NewSQLiteOutput(dbPath)
		if err != nil {
			log.Fatalf("Failed to create SQLite output: %v", err)
		}
		dispatcher.RegisterOutput(sqliteOutput)
		closers = append(closers, sqliteOutput)
		log.Printf("✓ SQLite history enabled (%s)", dbPath)
	}

	testLoop := testloop.NewTestLoop(cfg, timing, lcp, dispatcher, logger)
	testLoop.SetVersion(version)

	// Initialize health check endpoint (loop mode only)
	var healthServer *health.HealthServer
	if cfg.General.RunInterval > 0 {
		cache := metrics.NewResultsCache(len(cfg.Sites.List) * 2)
		healthCfg := &health.Config{
			Enabled:       cfg.Advanced.HealthCheckEnabled,
			Port:          cfg.Advanced.HealthCheckPort,
			Path:          cfg.Advanced.HealthCheckPath,
			ListenAddress: cfg.Advanced.HealthCheckListenAddress,
			StaleAfter:    3 * cfg.General.RunInterval,
			RecentResults: len(cfg.Sites.List),
		}
		healthServer, err = health.NewHealthServer(healthCfg, cache)
		if err != nil {
			log.Fatalf("Failed to create health check server: %v", err)
		}
		if healthServer != nil {
			dispatcher.RegisterOutput(cache)
			testLoop.SetSweepRecorder(healthServer)
			closers = append(closers, healthServer)
			log.Println("✓ Health check endpoint enabled")
		}
	}

	log.Printf("Outputs: %v", dispatcher.Outputs())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	if cfg.General.RunInterval <= 0 {
		go func() {
			<-sigChan
			log.Println("Received shutdown signal...")
			cancel()
		}()

		summary, err := testLoop.RunOnce(ctx)
		if err != nil {
			log.Printf("Sweep interrupted: %v", err)
			exitCode = 1
		}
		if summary.TimingFailures > 0 {
			log.Printf("%d of %d sites failed timing collection", summary.TimingFailures, summary.Sites)
			exitCode = 1
		}
	} else {
		loopDone := make(chan error, 1)
		go func() {
			loopDone <- testLoop.Run(ctx)
		}()

		log.Println("Site Timing Monitor started. Press Ctrl+C to stop.")

		select {
		case <-sigChan:
			log.Println("Received shutdown signal...")
		case err := <-loopDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("Sweep loop exited with error: %v", err)
				exitCode = 1
			}
		}

		log.Println("Shutting down gracefully...")

		// Cancel context to stop the loop and kill in-flight commands
		cancel()

		select {
		case <-loopDone:
			log.Println("✓ Sweep loop stopped")
		case <-time.After(cfg.Advanced.ShutdownTimeout):
			log.Println("⚠ Shutdown timeout exceeded")
		}
	}

	// Close outputs in reverse order of creation
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Printf("Error closing output: %v", err)
		}
	}

	log.Println("Shutdown complete")
	cancel()
	os.Exit(exitCode)
}

func printBanner() {
	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║  Site Timing Monitor                                           ║")
	fmt.Printf("║  Version: %-52s ║\n", version)
	fmt.Println("║  Request phase timings and LCP for a fixed list of sites       ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Println()
}
