package outputs

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
	"github.com/nickborgers/monorepo/site-timing-monitor/internal/models"
)

// ElasticsearchOutput pushes site results to Elasticsearch
type ElasticsearchOutput struct {
	config      *config.ElasticsearchConfig
	client      *elasticsearch.Client
	bulkIndexer esutil.BulkIndexer
}

// NewElasticsearchOutput creates a new Elasticsearch output
func NewElasticsearchOutput(cfg *config.ElasticsearchConfig) (*ElasticsearchOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	// Build Elasticsearch configuration
	esCfg := elasticsearch.Config{
		Addresses:     []string{cfg.Endpoint},
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	}

	// Configure authentication
	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	if cfg.TLSSkipVerify {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	// Test connection
	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned error: %s", res.Status())
	}

	log.Printf("Connected to Elasticsearch at %s", cfg.Endpoint)

	bulkIndexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        client,
		NumWorkers:    1,
		FlushBytes:    cfg.BulkSize * 1024,
		FlushInterval: cfg.FlushInterval,
		OnError: func(ctx context.Context, err error) {
			log.Printf("Elasticsearch bulk indexer error: %v", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	return &ElasticsearchOutput{
		config:      cfg,
		client:      client,
		bulkIndexer: bulkIndexer,
	}, nil
}

// Write queues a site result for bulk indexing
func (e *ElasticsearchOutput) Write(result *models.SiteResult) error {
	if e == nil {
		return nil
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	return e.bulkIndexer.Add(
		context.Background(),
		esutil.BulkIndexerItem{
			Action:     "index",
			Index:      formatIndexName(e.config.IndexPattern, result.Timestamp),
			DocumentID: result.ResultID,
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					log.Printf("Elasticsearch indexing error: %v", err)
				} else {
					log.Printf("Elasticsearch indexing failed: %s: %s", res.Error.Type, res.Error.Reason)
				}
			},
		},
	)
}

// formatIndexName substitutes %{+yyyy.MM.dd}, %{+yyyy.MM} and %{+yyyy} in pattern
func formatIndexName(pattern string, t time.Time) string {
	t = t.UTC()
	replacer := strings.NewReplacer(
		"%{+yyyy.MM.dd}", t.Format("2006.01.02"),
		"%{+yyyy.MM}", t.Format("2006.01"),
		"%{+yyyy}", t.Format("2006"),
	)
	return replacer.Replace(pattern)
}

// Name returns the output module name
func (e *ElasticsearchOutput) Name() string {
	return "elasticsearch"
}

// Close flushes pending documents
func (e *ElasticsearchOutput) Close() error {
	if e == nil {
		return nil
	}

	log.Println("Shutting down Elasticsearch output...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close the bulk indexer (flushes pending documents)
	if err := e.bulkIndexer.Close(ctx); err != nil {
		log.Printf("Error closing Elasticsearch bulk indexer: %v", err)
		return err
	}

	stats := e.bulkIndexer.Stats()
	log.Printf("Elasticsearch indexer stats: %d indexed, %d failed", stats.NumIndexed, stats.NumFailed)

	return nil
}
