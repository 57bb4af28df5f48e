package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapWrapper_WithFieldsCarriesContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core)).WithFields(map[string]interface{}{"taskType": "decide-payment"})

	log.Info("processing job", map[string]interface{}{"jobKey": int64(42)})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "decide-payment", ctx["taskType"])
		assert.Equal(t, int64(42), ctx["jobKey"])
	}
}

func TestZapWrapper_ErrorValuesAreNamed(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.Warn("cache read failed", map[string]interface{}{"error": errors.New("connection refused")})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "connection refused", entries[0].ContextMap()["error"])
	}
}

func TestNew_LevelParsing(t *testing.T) {
	l := New("warn", "json")
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l = New("debug", "console")
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewNoOpLogger(t *testing.T) {
	log := NewNoOpLogger()
	assert.NotPanics(t, func() {
		log.WithError(errors.New("x")).Error("ignored", nil)
	})
}
