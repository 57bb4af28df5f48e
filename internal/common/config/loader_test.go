package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  postgres:
    host: localhost
    database: marketplace
    user: verifier
workers:
  decide-payment:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, int64(5000), cfg.Subscription.MonthlyFee)
	assert.Equal(t, int64(50000), cfg.Subscription.AnnualFee)
	assert.Equal(t, 5*time.Minute, cfg.Subscription.CacheTTLDuration())
	assert.Equal(t, 6, cfg.Payment.ContractValidityMonths)
	assert.Equal(t, "verification-decisions", cfg.Audit.Index)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	worker := GetWorkerConfig(cfg, "decide-payment")
	assert.True(t, worker.Enabled)
	assert.Equal(t, 5, worker.MaxJobsActive)
	assert.Equal(t, 30000, worker.Timeout)
	assert.Equal(t, 3, worker.MaxRetries)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("VERIFY_TEST_DB_PASSWORD", "s3cret")
	path := writeConfig(t, `
database:
  postgres:
    host: db
    database: marketplace
    user: verifier
    password: ${VERIFY_TEST_DB_PASSWORD}
subscription:
  monthly_fee: 7000
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, int64(7000), cfg.Subscription.MonthlyFee)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "password=s3cret")
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing postgres host",
			body:    "database:\n  postgres:\n    database: m\n    user: u\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "redis enabled without address",
			body:    "database:\n  postgres:\n    host: h\n    database: m\n    user: u\n  redis:\n    enabled: true\n",
			wantErr: "database.redis.address is required",
		},
		{
			name:    "camunda enabled without broker",
			body:    "camunda:\n  enabled: true\ndatabase:\n  postgres:\n    host: h\n    database: m\n    user: u\n",
			wantErr: "camunda.broker_address is required",
		},
		{
			name:    "tracing enabled without endpoint",
			body:    "tracing:\n  enabled: true\ndatabase:\n  postgres:\n    host: h\n    database: m\n    user: u\n",
			wantErr: "tracing.collector_endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JAEGER_ENDPOINT", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestElasticsearchConfig_GetAddresses(t *testing.T) {
	assert.Equal(t, []string{"http://a:9200"}, ElasticsearchConfig{Addresses: []string{"http://a:9200"}}.GetAddresses())
	assert.Equal(t, []string{"http://b:9200"}, ElasticsearchConfig{URL: "http://b:9200"}.GetAddresses())
	assert.Nil(t, ElasticsearchConfig{}.GetAddresses())
}

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{"simulate-payout": {Enabled: false}}}
	assert.False(t, IsWorkerEnabled(cfg, "simulate-payout"))
	assert.True(t, IsWorkerEnabled(cfg, "decide-payment"))
}
