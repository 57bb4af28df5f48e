package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type fakeTransport struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(req *http.Request) (int, string)
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")

	// Product check issued by the client before its first request.
	if req.Method == http.MethodGet && req.URL.Path == "/" {
		return &http.Response{
			StatusCode: 200,
			Header:     header,
			Body:       io.NopCloser(strings.NewReader(`{"version":{"number":"8.11.0"},"tagline":"You Know, for Search"}`)),
			Request:    req,
		}, nil
	}

	var body string
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		body = string(b)
	}
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: req.Method, Path: req.URL.Path, Body: body})
	f.mu.Unlock()

	status, payload := 200, `{}`
	if f.respond != nil {
		status, payload = f.respond(req)
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(payload)),
		Request:    req,
	}, nil
}

func createTestRecorder(t *testing.T, ft *fakeTransport) *ElasticsearchRecorder {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://localhost:9200"},
		Transport: ft,
	})
	require.NoError(t, err)
	return NewElasticsearchRecorder(client, "")
}

// ==========================
// Recorder Tests
// ==========================

func TestRecord_IndexesUnderStableID(t *testing.T) {
	ft := &fakeTransport{}
	r := createTestRecorder(t, ft)
	decided := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	err := r.Record(context.Background(), Decision{
		Kind: "payment", EntityID: "p-1", Outcome: "APPROVED", DecidedAt: decided,
	})
	require.NoError(t, err)

	require.Len(t, ft.requests, 1)
	assert.Equal(t, http.MethodPut, ft.requests[0].Method)
	assert.Equal(t, "/verification-decisions/_doc/payment:p-1", ft.requests[0].Path)

	var doc Decision
	require.NoError(t, json.Unmarshal([]byte(ft.requests[0].Body), &doc))
	assert.Equal(t, "APPROVED", doc.Outcome)
	assert.True(t, decided.Equal(doc.DecidedAt))
}

func TestRecord_ErrorStatus(t *testing.T) {
	ft := &fakeTransport{respond: func(*http.Request) (int, string) {
		return 400, `{"error":"mapper_parsing_exception"}`
	}}
	r := createTestRecorder(t, ft)

	err := r.Record(context.Background(), Decision{Kind: "subscription", EntityID: "s-1"})
	assert.Error(t, err)
}

func TestHistory_ParsesHits(t *testing.T) {
	ft := &fakeTransport{respond: func(*http.Request) (int, string) {
		return 200, `{"hits":{"hits":[
			{"_source":{"kind":"payment","entityId":"p-1","outcome":"REJECTED","reason":"blurry receipt","decidedAt":"2026-05-01T12:00:00Z"}}
		]}}`
	}}
	r := createTestRecorder(t, ft)

	got, err := r.History(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "blurry receipt", got[0].Reason)
	assert.Contains(t, ft.requests[0].Path, "/verification-decisions/_search")
	assert.Contains(t, ft.requests[0].Body, `"entityId":"p-1"`)
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	ft := &fakeTransport{respond: func(req *http.Request) (int, string) {
		if req.Method == http.MethodHead {
			return 404, ``
		}
		return 200, `{"acknowledged":true}`
	}}
	r := createTestRecorder(t, ft)

	require.NoError(t, r.EnsureIndex(context.Background()))
	require.Len(t, ft.requests, 2)
	assert.Equal(t, http.MethodPut, ft.requests[1].Method)
	assert.Contains(t, ft.requests[1].Body, `"entityId"`)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	assert.NoError(t, r.Record(context.Background(), Decision{}))
	got, err := r.History(context.Background(), "x")
	assert.NoError(t, err)
	assert.Empty(t, got)
}
