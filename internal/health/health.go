package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// ResultsSource provides the most recent site results
type ResultsSource interface {
	GetLast(n int) []*models.SiteResult
}

// HealthServer provides a health check endpoint
type HealthServer struct {
	config   *Config
	server   *http.Server
	listener net.Listener
	results  ResultsSource

	mu                sync.RWMutex
	lastSweepTime     time.Time
	sweepCount        int64
	siteCount         int64
	failureCount      int64
	lastSweepFailures int
	isHealthy         bool
}

// Config contains health check server configuration
type Config struct {
	Enabled       bool
	Port          int
	Path          string
	ListenAddress string

	// StaleAfter marks the monitor unhealthy when no sweep completed
	// within this window. Zero disables the check.
	StaleAfter time.Duration

	// RecentResults is how many results the endpoint includes
	RecentResults int
}

// HealthResponse is the JSON response structure
type HealthResponse struct {
	Status            string               `json:"status"`
	Timestamp         time.Time            `json:"timestamp"`
	LastSweepTime     time.Time            `json:"last_sweep_time,omitempty"`
	SweepCount        int64                `json:"sweep_count"`
	SiteCount         int64                `json:"site_count"`
	FailureCount      int64                `json:"failure_count"`
	LastSweepFailures int                  `json:"last_sweep_failures"`
	Uptime            string               `json:"uptime"`
	RecentResults     []*models.SiteResult `json:"recent_results,omitempty"`
}

var startTime = time.Now()

// NewHealthServer creates a new health check server. Port 0 binds an
// ephemeral port, see Addr.
func NewHealthServer(cfg *Config, results ResultsSource) (*HealthServer, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	h := &HealthServer{
		config:    cfg,
		results:   results,
		isHealthy: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, h.handleHealth)

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	h.listener = listener
	h.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Health check endpoint started on %s%s", listener.Addr(), cfg.Path)
		if err := h.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Health check server error: %v", err)
		}
	}()

	return h, nil
}

// Addr returns the address the server is listening on
func (h *HealthServer) Addr() string {
	if h == nil || h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// handleHealth handles health check requests
func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()

	status := "healthy"
	statusCode := http.StatusOK

	if h.sweepCount > 0 && h.config.StaleAfter > 0 && time.Since(h.lastSweepTime) > h.config.StaleAfter {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	if !h.isHealthy {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:            status,
		Timestamp:         time.Now(),
		LastSweepTime:     h.lastSweepTime,
		SweepCount:        h.sweepCount,
		SiteCount:         h.siteCount,
		FailureCount:      h.failureCount,
		LastSweepFailures: h.lastSweepFailures,
		Uptime:            time.Since(startTime).String(),
	}
	h.mu.RUnlock()

	if h.results != nil && h.config.RecentResults > 0 {
		response.RecentResults = h.results.GetLast(h.config.RecentResults)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Error encoding health response: %v", err)
	}
}

// RecordSweep records a completed sweep over sites with the given number
// of failed sites
func (h *HealthServer) RecordSweep(sites, failures int) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastSweepTime = time.Now()
	h.sweepCount++
	h.siteCount += int64(sites)
	h.failureCount += int64(failures)
	h.lastSweepFailures = failures
}

// SetHealthy sets the health status
func (h *HealthServer) SetHealthy(healthy bool) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.isHealthy = healthy
}

// GetStats returns current health statistics
func (h *HealthServer) GetStats() (sweepCount, siteCount, failureCount int64, lastSweepTime time.Time) {
	if h == nil {
		return 0, 0, 0, time.Time{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.sweepCount, h.siteCount, h.failureCount, h.lastSweepTime
}

// Close shuts down the health check server
func (h *HealthServer) Close() error {
	if h == nil || h.server == nil {
		return nil
	}

	log.Println("Shutting down health check server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.server.Shutdown(ctx)
}
