package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLevels(t *testing.T) {
	l := New("warn", "json")
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l = New("debug", "console")
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestTemporalAdapterKeyvals(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewTemporalAdapter(zap.New(core))

	a.Info("activity started", "ActivityType", "FetchBank", "attempt", 2)
	a.With("WorkflowID", "loan-A1").Error("failed", "error", errors.New("boom"), "dangling")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	fields := entries[0].ContextMap()
	assert.Equal(t, "FetchBank", fields["ActivityType"])
	assert.EqualValues(t, 2, fields["attempt"])

	fields = entries[1].ContextMap()
	assert.Equal(t, "loan-A1", fields["WorkflowID"])
	assert.Equal(t, "boom", fields["error"])
	assert.Equal(t, "dangling", fields["extra"])
}
