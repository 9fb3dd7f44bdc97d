// Package search mirrors posts into Elasticsearch for full-text and related-post queries.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const requestTimeout = 10 * time.Second

// Options configures the Elasticsearch connection.
type Options struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client indexes and queries post documents.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// Document is the indexed projection of a post.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	Status    string    `json:"status"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewClient creates a client for opts.Index (default "posts").
func NewClient(opts Options) (*Client, error) {
	if opts.Index == "" {
		opts.Index = "posts"
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: opts.Addresses,
		Username:  opts.Username,
		Password:  opts.Password,
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Client{es: es, index: opts.Index}, nil
}

// EnsureIndex creates the posts index with its mapping when missing.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	drain(res)
	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":        map[string]string{"type": "keyword"},
				"title":     map[string]string{"type": "text"},
				"content":   map[string]string{"type": "text"},
				"tags":      map[string]string{"type": "keyword"},
				"status":    map[string]string{"type": "keyword"},
				"authorId":  map[string]string{"type": "keyword"},
				"createdAt": map[string]string{"type": "date"},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	createRes, err := c.es.Indices.Create(c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(body)))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer drain(createRes)
	if createRes.IsError() {
		return fmt.Errorf("create index: %s", createRes.Status())
	}
	return nil
}

// IndexPost upserts the post document.
func (c *Client) IndexPost(ctx context.Context, post *models.Post) (err error) {
	defer func() { observability.SearchOperations.WithLabelValues("index", observability.Result(err)).Inc() }()

	body, err := json.Marshal(Document{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		Tags:      []string(post.Tags),
		Status:    string(post.Status),
		AuthorID:  post.AuthorID,
		CreatedAt: post.CreatedAt,
	})
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: c.index, DocumentID: post.ID, Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index post %s: %w", post.ID, err)
	}
	defer drain(res)
	if res.IsError() {
		return fmt.Errorf("index post %s: %s", post.ID, res.Status())
	}
	return nil
}

// DeletePost removes the document. A missing document is not an error.
func (c *Client) DeletePost(ctx context.Context, id string) (err error) {
	defer func() { observability.SearchOperations.WithLabelValues("delete", observability.Result(err)).Inc() }()

	req := esapi.DeleteRequest{Index: c.index, DocumentID: id}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("delete post %s: %w", id, err)
	}
	defer drain(res)
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete post %s: %s", id, res.Status())
	}
	return nil
}

// Search runs a relevance query over published posts and returns matching ids
// best first, with the total hit count.
func (c *Client) Search(ctx context.Context, query string, from, size int) (ids []string, total int64, err error) {
	defer func() { observability.SearchOperations.WithLabelValues("search", observability.Result(err)).Inc() }()

	body := map[string]any{
		"from": from,
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{
						"query":  query,
						"fields": []string{"title^2", "content", "tags"},
					},
				},
				"filter": publishedOnly(),
			},
		},
	}
	return c.query(ctx, body)
}

// Related returns published posts sharing at least one tag with the given post.
func (c *Client) Related(ctx context.Context, postID string, tags []string, size int) (ids []string, err error) {
	defer func() { observability.SearchOperations.WithLabelValues("related", observability.Result(err)).Inc() }()

	if len(tags) == 0 {
		return []string{}, nil
	}
	should := make([]map[string]any, 0, len(tags))
	for _, tag := range tags {
		should = append(should, map[string]any{"term": map[string]any{"tags": tag}})
	}
	body := map[string]any{
		"size": size,
		"query": map[string]any{
			"bool": map[string]any{
				"should":               should,
				"minimum_should_match": 1,
				"must_not":             map[string]any{"ids": map[string]any{"values": []string{postID}}},
				"filter":               publishedOnly(),
			},
		},
	}
	ids, _, err = c.query(ctx, body)
	return ids, err
}

func publishedOnly() map[string]any {
	return map[string]any{"term": map[string]any{"status": string(models.PostPublished)}}
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *Client) query(ctx context.Context, body map[string]any) ([]string, int64, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
		c.es.Search.WithTrackTotalHits(true),
		c.es.Search.WithTimeout(requestTimeout),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}
	defer drain(res)
	if res.IsError() {
		return nil, 0, fmt.Errorf("search: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, 0, fmt.Errorf("decode search response: %w", err)
	}
	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, parsed.Hits.Total.Value, nil
}

func drain(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()
}
