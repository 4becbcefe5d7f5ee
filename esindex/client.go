// Package esindex applies compiled mappings to a live Elasticsearch
// cluster: index creation, mapping updates, deletion and refresh. It stops
// at single round-trip calls; retries, pooling and bulk orchestration
// belong to the caller.
package esindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/esodm/document"
	"github.com/jonesrussell/esodm/logger"
	"github.com/jonesrussell/esodm/mapping"
	"github.com/jonesrussell/esodm/schema"
)

// Config holds Elasticsearch connection configuration.
type Config struct {
	URL        string        `mapstructure:"url" yaml:"url"`
	Username   string        `mapstructure:"username" yaml:"username"`
	Password   string        `mapstructure:"password" yaml:"password"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = "http://localhost:9200"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client wraps the Elasticsearch client with index management operations
// for compiled entity mappings.
type Client struct {
	esClient *es.Client
	log      logger.Logger
}

// NewClient creates a new Elasticsearch client and verifies the connection
// with a ping.
func NewClient(ctx context.Context, cfg Config, log logger.Logger) (*Client, error) {
	cfg.SetDefaults()
	if log == nil {
		log = logger.NewNop()
	}

	clientConfig := es.Config{
		Addresses:  []string{normalizeURL(cfg.URL)},
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	esClient, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := esClient.Ping(esClient.Ping.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to ping Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("error pinging Elasticsearch: %s", res.String())
	}

	log.Info("Elasticsearch connection established", logger.String("url", cfg.URL))

	return &Client{esClient: esClient, log: log}, nil
}

// GetClient returns the underlying Elasticsearch client.
func (c *Client) GetClient() *es.Client {
	return c.esClient
}

// IndexBody assembles a create-index request body from optional settings,
// the entity's aliases, and a compiled mapping document.
func IndexBody(e *schema.Entity, settings, mappings *document.Document) *document.Document {
	body := document.New()
	if settings != nil && settings.Len() > 0 {
		body.Set("settings", settings)
	}
	if e != nil && len(e.Aliases) > 0 {
		body.Set("aliases", aliasesDoc(e.Aliases))
	}
	if mappings != nil && mappings.Len() > 0 {
		body.Set("mappings", mappings)
	}
	return body
}

func aliasesDoc(aliases []schema.Alias) *document.Document {
	out := document.New()
	for _, a := range aliases {
		alias := document.New()
		if a.Routing != "" {
			alias.Set("routing", a.Routing)
		}
		if a.IsWriteIndex != nil {
			alias.Set("is_write_index", *a.IsWriteIndex)
		}
		if len(a.Filter) > 0 {
			if filter, err := document.Parse(string(a.Filter)); err == nil {
				alias.Set("filter", filter)
			}
		}
		out.Set(a.Name, alias)
	}
	return out
}

// CreateForEntity compiles the entity's mapping with the given builder and
// creates its index, with optional settings.
func (c *Client) CreateForEntity(ctx context.Context, e *schema.Entity, b *mapping.Builder, settings *document.Document) error {
	if e.IndexName == "" {
		return fmt.Errorf("entity %q has no index name", e.Name)
	}
	mappings, err := b.BuildDocument(e)
	if err != nil {
		return fmt.Errorf("failed to build mapping for entity %q: %w", e.Name, err)
	}
	return c.CreateIndex(ctx, e.IndexName, IndexBody(e, settings, mappings))
}

// CreateIndex creates a new index with the given body. Creating an index
// that already exists is an error.
func (c *Client) CreateIndex(ctx context.Context, indexName string, body *document.Document) error {
	exists, err := c.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	if exists {
		return fmt.Errorf("index %s already exists", indexName)
	}

	var bodyReader io.Reader
	if body != nil {
		raw, err := body.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to serialize index body: %w", err)
		}
		bodyReader = strings.NewReader(raw)
	}

	res, err := c.esClient.Indices.Create(indexName,
		c.esClient.Indices.Create.WithBody(bodyReader),
		c.esClient.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("error creating index: %s", string(raw))
	}

	c.log.Info("index created", logger.String("index", indexName))
	return nil
}

// EnsureIndex creates the index if it does not exist yet.
func (c *Client) EnsureIndex(ctx context.Context, indexName string, body *document.Document) error {
	exists, err := c.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("failed to check if index exists: %w", err)
	}
	if exists {
		return nil
	}
	return c.CreateIndex(ctx, indexName, body)
}

// PutMapping updates an existing index's mapping with the compiled mapping
// document.
func (c *Client) PutMapping(ctx context.Context, indexName string, mappings *document.Document) error {
	raw, err := mappings.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize mapping: %w", err)
	}

	res, err := c.esClient.Indices.PutMapping([]string{indexName}, strings.NewReader(raw),
		c.esClient.Indices.PutMapping.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to put mapping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("error putting mapping: %s", string(body))
	}

	c.log.Info("mapping updated", logger.String("index", indexName))
	return nil
}

// DeleteIndex deletes an index.
func (c *Client) DeleteIndex(ctx context.Context, indexName string) error {
	res, err := c.esClient.Indices.Delete([]string{indexName},
		c.esClient.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("error deleting index: %s", string(body))
	}

	return nil
}

// IndexExists checks if an index exists.
func (c *Client) IndexExists(ctx context.Context, indexName string) (bool, error) {
	res, err := c.esClient.Indices.Exists([]string{indexName},
		c.esClient.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if res.IsError() {
		return false, fmt.Errorf("error checking index existence: %s", res.String())
	}

	return true, nil
}

// ListIndices returns the names of all indices in the cluster.
func (c *Client) ListIndices(ctx context.Context) ([]string, error) {
	res, err := c.esClient.Cat.Indices(
		c.esClient.Cat.Indices.WithContext(ctx),
		c.esClient.Cat.Indices.WithH("index"),
		c.esClient.Cat.Indices.WithFormat("json"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list indices: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("error listing indices: %s", string(body))
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode indices listing: %w", err)
	}

	names := make([]string, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Index)
	}
	return names, nil
}

// Refresh makes recent writes to the index visible to search.
func (c *Client) Refresh(ctx context.Context, indexName string) error {
	res, err := c.esClient.Indices.Refresh(
		c.esClient.Indices.Refresh.WithIndex(indexName),
		c.esClient.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to refresh index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("error refreshing index: %s", string(body))
	}

	return nil
}

// normalizeURL adds an http:// prefix if the URL has no scheme.
func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}
