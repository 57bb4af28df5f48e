// Package audit keeps a searchable trail of administrator decisions in
// Elasticsearch. Recording happens after the decision committed and is
// best-effort: callers log the error and move on.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultIndex = "verification-decisions"

type Decision struct {
	Kind      string    `json:"kind"`
	EntityID  string    `json:"entityId"`
	Outcome   string    `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	ActorID   string    `json:"actorId,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}

// DocumentID is stable per decided entity so a replayed record overwrites
// instead of duplicating.
func (d Decision) DocumentID() string {
	return d.Kind + ":" + d.EntityID
}

type Recorder interface {
	Record(ctx context.Context, d Decision) error
	History(ctx context.Context, entityID string) ([]Decision, error)
}

// Nop is used when Elasticsearch is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Decision) error { return nil }

func (Nop) History(context.Context, string) ([]Decision, error) { return []Decision{}, nil }

type ElasticsearchRecorder struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchRecorder(client *elasticsearch.Client, index string) *ElasticsearchRecorder {
	if index == "" {
		index = DefaultIndex
	}
	return &ElasticsearchRecorder{client: client, index: index}
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "kind":      {"type": "keyword"},
      "entityId":  {"type": "keyword"},
      "outcome":   {"type": "keyword"},
      "reason":    {"type": "text"},
      "actorId":   {"type": "keyword"},
      "decidedAt": {"type": "date"}
    }
  }
}`

// EnsureIndex creates the index with its mapping when it does not exist.
func (r *ElasticsearchRecorder) EnsureIndex(ctx context.Context) error {
	exists := esapi.IndicesExistsRequest{Index: []string{r.index}}
	res, err := exists.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.index, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	create := esapi.IndicesCreateRequest{
		Index: r.index,
		Body:  strings.NewReader(indexMapping),
	}
	res, err = create.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("create index %s: %w", r.index, err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("create index %s: %s", r.index, res.Status())
	}
	return nil
}

func (r *ElasticsearchRecorder) Record(ctx context.Context, d Decision) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: d.DocumentID(),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("index decision: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index decision: %s", res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source Decision `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// History returns the recorded decisions for entityID, oldest first.
func (r *ElasticsearchRecorder) History(ctx context.Context, entityID string) ([]Decision, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"entityId": entityID},
		},
		"sort": []interface{}{
			map[string]interface{}{"decidedAt": map[string]interface{}{"order": "asc"}},
		},
	}
	body, _ := json.Marshal(query)

	size := 100
	req := esapi.SearchRequest{
		Index: []string{r.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return nil, fmt.Errorf("search decisions: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search decisions: %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]Decision, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		out = append(out, hit.Source)
	}
	return out, nil
}
