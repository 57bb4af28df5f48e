package database

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"marketplace-verification/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresClient_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectClose()

	c := &PostgresClient{DB: db}
	assert.NoError(t, c.Ping(context.Background()))
	assert.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisClient_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	c := NewRedis(config.RedisConfig{Address: mr.Addr()})
	defer c.Close()

	assert.NoError(t, c.Ping(context.Background()))

	mr.Close()
	assert.Error(t, c.Ping(context.Background()))
}

type pingTransport struct{ status int }

func (f pingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("X-Elastic-Product", "Elasticsearch")

	status, body := f.status, ""
	if req.Method == http.MethodGet && req.URL.Path == "/" {
		status, body = http.StatusOK, `{"version":{"number":"8.11.0"},"tagline":"You Know, for Search"}`
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func TestElasticsearchClient_Ping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"healthy", http.StatusOK, false},
		{"unhealthy", http.StatusBadRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es, err := elasticsearch.NewClient(elasticsearch.Config{
				Addresses: []string{"http://localhost:9200"},
				Transport: pingTransport{status: tt.status},
			})
			require.NoError(t, err)

			err = (&ElasticsearchClient{Client: es}).Ping(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestNewElasticsearch_UsesFallbackURL(t *testing.T) {
	c, err := NewElasticsearch(config.ElasticsearchConfig{URL: "http://es.local:9200"})
	require.NoError(t, err)
	assert.NotNil(t, c.Client)
}
