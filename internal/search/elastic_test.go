package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"inkwell/internal/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   map[string]any
}

type fakeElastic struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeElastic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.respond(w, r)
}

func (f *fakeElastic) last() recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*Client, *fakeElastic) {
	t.Helper()
	fake := &fakeElastic{respond: respond}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{Addresses: []string{srv.URL}, Index: "posts-test"})
	require.NoError(t, err)
	return client, fake
}

const hitsBody = `{"hits":{"total":{"value":2},"hits":[{"_id":"p2"},{"_id":"p1"}]}}`

func TestIndexPost(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	post := &models.Post{ID: "p1", Title: "Hello", Content: "World", Tags: pq.StringArray{"go"}, Status: models.PostPublished, AuthorID: "u1"}
	require.NoError(t, client.IndexPost(context.Background(), post))

	req := fake.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/posts-test/_doc/p1", req.Path)
	assert.Equal(t, "Hello", req.Body["title"])
	assert.Equal(t, "PUBLISHED", req.Body["status"])
	assert.Equal(t, []any{"go"}, req.Body["tags"])
}

func TestIndexPostSurfacesErrors(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
	})

	err := client.IndexPost(context.Background(), &models.Post{ID: "p1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestDeletePostIgnoresMissingDocument(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
	})

	require.NoError(t, client.DeletePost(context.Background(), "gone"))
	assert.Equal(t, http.MethodDelete, fake.last().Method)
	assert.Equal(t, "/posts-test/_doc/gone", fake.last().Path)
}

func TestSearchReturnsIDsInScoreOrder(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(hitsBody))
	})

	ids, total, err := client.Search(context.Background(), "golang", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids)
	assert.Equal(t, int64(2), total)

	req := fake.last()
	assert.Equal(t, "/posts-test/_search", req.Path)
	assert.EqualValues(t, 10, req.Body["from"])
	assert.EqualValues(t, 5, req.Body["size"])
	raw, _ := json.Marshal(req.Body["query"])
	assert.Contains(t, string(raw), `"multi_match"`)
	assert.Contains(t, string(raw), `"status":"PUBLISHED"`)
}

func TestRelated(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(hitsBody))
	})

	ids, err := client.Related(context.Background(), "p9", []string{"go", "web"}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids)

	raw, _ := json.Marshal(fake.last().Body)
	body := string(raw)
	assert.Contains(t, body, `"must_not":{"ids":{"values":["p9"]}}`)
	assert.True(t, strings.Contains(body, `{"term":{"tags":"go"}}`) && strings.Contains(body, `{"term":{"tags":"web"}}`))
}

func TestRelatedWithoutTagsSkipsQuery(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(hitsBody))
	})

	ids, err := client.Related(context.Background(), "p9", nil, 3)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, fake.requests)
}

func TestEnsureIndexCreatesMissingIndex(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"acknowledged":true}`))
	})

	require.NoError(t, client.EnsureIndex(context.Background()))
	require.Len(t, fake.requests, 2)
	create := fake.requests[1]
	assert.Equal(t, http.MethodPut, create.Method)
	assert.Equal(t, "/posts-test", create.Path)
	raw, _ := json.Marshal(create.Body)
	assert.Contains(t, string(raw), `"tags":{"type":"keyword"}`)
}

func TestEnsureIndexExisting(t *testing.T) {
	client, fake := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, client.EnsureIndex(context.Background()))
	assert.Len(t, fake.requests, 1)
}
