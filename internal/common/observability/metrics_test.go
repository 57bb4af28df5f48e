package observability

import (
	"context"
	"testing"
	"time"

	"marketplace-verification/internal/common/config"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ExportsJobMetrics(t *testing.T) {
	registry := promclient.NewRegistry()
	o, err := New("verification-test", config.TracingConfig{}, registry)
	require.NoError(t, err)
	defer func() { assert.NoError(t, o.Shutdown(context.Background())) }()

	assert.Nil(t, o.tracerProvider)

	RecordJob(context.Background(), "decide-payment", "completed", 15*time.Millisecond)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["jobs_processed_total"], "got %v", names)
	assert.True(t, names["jobs_duration_milliseconds"], "got %v", names)
}

func TestNew_WithTracing(t *testing.T) {
	o, err := New("verification-test", config.TracingConfig{
		Enabled:           true,
		CollectorEndpoint: "http://localhost:14268/api/traces",
	}, promclient.NewRegistry())
	require.NoError(t, err)
	require.NotNil(t, o.tracerProvider)

	_, span := StartSpan(context.Background(), "job")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// The collector is not running; shutdown may report the failed export.
	_ = o.Shutdown(ctx)
}
