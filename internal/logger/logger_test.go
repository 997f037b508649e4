package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zap.AtomicLevel
	}{
		{"dev", "debug", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"prod", "info", zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"ci", "WARN", zap.NewAtomicLevelAt(zap.WarnLevel)},
	}

	for _, tt := range tests {
		t.Run(tt.env+"_"+tt.level, func(t *testing.T) {
			log, err := New(tt.env, tt.level)
			require.NoError(t, err)
			require.NotNil(t, log.Logger)
			assert.True(t, log.Core().Enabled(tt.want.Level()))
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("dev", "loud")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	log := Nop()
	require.NotNil(t, log)
	assert.False(t, log.Core().Enabled(zap.ErrorLevel))
	assert.NotNil(t, log.Named("locator"))
}
