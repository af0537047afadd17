package logger

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerInvalidLevel(t *testing.T) {
	_, err := NewLogger(LogConfig{Level: "loud", Format: "text"})
	assert.Error(t, err)
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		log, err := NewLogger(LogConfig{Level: "debug", Format: format})
		require.NoError(t, err)
		assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	}
}

func TestContextHelpers(t *testing.T) {
	log, err := NewLogger(LogConfig{Level: "info", Format: "text"})
	require.NoError(t, err)

	assert.Equal(t, "discovery", log.WithComponent("discovery").Data["component"])
	assert.Equal(t, "5VERv8NMvz", log.WithTransaction("5VERv8NMvz").Data["transaction"])
	assert.Equal(t, "9WzDXwBbmk", log.WithWallet("9WzDXwBbmk").Data["wallet"])
}

func TestCustomFormatterIncludesFields(t *testing.T) {
	formatter := &CustomFormatter{}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Level:   logrus.InfoLevel,
		Message: "endpoint selected",
		Data:    logrus.Fields{"latency_ms": 42},
	}

	out, err := formatter.Format(entry)
	require.NoError(t, err)
	assert.Contains(t, string(out), "INFO")
	assert.Contains(t, string(out), "endpoint selected")
	assert.Contains(t, string(out), "latency_ms=42")
}
