package tools

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
)

// SearchClient wraps go-elasticsearch for full-text document search,
// restricted to a set of allowed index patterns.
type SearchClient struct {
	client          *elasticsearch.Client
	allowedPatterns []string
}

// SearchConfig configures the Elasticsearch connection.
type SearchConfig struct {
	Addresses       []string
	Username        string
	Password        string
	VerifyCerts     bool
	AllowedPatterns []string
}

// NewSearchClient creates a client using go-elasticsearch/v8.
func NewSearchClient(cfg SearchConfig) (*SearchClient, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}
	if !cfg.VerifyCerts {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch.NewClient: %w", err)
	}
	return &SearchClient{client: client, allowedPatterns: cfg.AllowedPatterns}, nil
}

// indexAllowed returns true if the index matches any allowed pattern. No
// patterns means all indices are allowed.
func (c *SearchClient) indexAllowed(index string) bool {
	if len(c.allowedPatterns) == 0 {
		return true
	}
	for _, pattern := range c.allowedPatterns {
		if matched, err := filepath.Match(pattern, index); err == nil && matched {
			return true
		}
		prefix := strings.TrimSuffix(pattern, "*")
		if prefix != pattern && strings.HasPrefix(index, prefix) {
			return true
		}
	}
	return false
}

// SearchHit is one matching document.
type SearchHit struct {
	ID     string                 `json:"id"`
	Score  float64                `json:"score"`
	Source map[string]interface{} `json:"source"`
}

// Search runs a match query over the given index.
func (c *SearchClient) Search(ctx context.Context, index, query string, size int) ([]SearchHit, error) {
	if !c.indexAllowed(index) {
		return nil, fmt.Errorf("access to index %q is not permitted", index)
	}
	if size <= 0 || size > 25 {
		size = 10
	}

	body := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"*"},
			},
		},
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := c.client.Search(
		c.client.Search.WithContext(ctx),
		c.client.Search.WithIndex(index),
		c.client.Search.WithBody(bytes.NewReader(bodyBytes)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string                 `json:"_id"`
				Score  float64                `json:"_score"`
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, SearchHit{ID: h.ID, Score: h.Score, Source: h.Source})
	}
	return hits, nil
}

// Ping verifies the cluster is reachable.
func (c *SearchClient) Ping(ctx context.Context) error {
	res, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping error: %s", res.Status())
	}
	return nil
}

// SearchDocumentsTool runs full-text search over an index
func SearchDocumentsTool(client *SearchClient) Tool {
	return Tool{
		Name:        "search_documents",
		Title:       "Search Documents",
		Description: "Full-text search over indexed documents. Returns the best matching documents with scores.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"index": map[string]interface{}{
					"type":        "string",
					"description": "Index to search",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Free-text query",
				},
				"size": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of hits (default 10, max 25)",
				},
			},
			"required": []string{"index", "query"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			index, _ := input["index"].(string)
			query, _ := input["query"].(string)
			if index == "" || query == "" {
				return "", fmt.Errorf("index and query are required")
			}
			size := 0
			if n, ok := toFloat(input["size"]); ok {
				size = int(n)
			}
			hits, err := client.Search(ctx, index, query, size)
			if err != nil {
				return "", err
			}
			b, _ := json.Marshal(map[string]interface{}{
				"hit_count": len(hits),
				"hits":      hits,
			})
			return string(b), nil
		},
	}
}
