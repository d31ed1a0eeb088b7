package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"
)

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "debug", Format: FormatText, Component: "test", Output: &buf})
	t.Cleanup(func() { Init(&Config{Level: "info", Format: FormatText}) })

	Info("hello matchbot", "key", "value")
	Debug("debug line")

	out := buf.String()
	assert.Contains(t, out, "hello matchbot")
	assert.Contains(t, out, "component=test")
	assert.Contains(t, out, "key=value")
	assert.Contains(t, out, "debug line")
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "info", Format: FormatJSON, Component: "json-test", Output: &buf})
	t.Cleanup(func() { Init(&Config{Level: "info", Format: FormatText}) })

	Named("scheduler").Warn("cycle failed", "err", "boom")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "cycle failed", entry["msg"])
	assert.Equal(t, "json-test", entry["component"])
	assert.Equal(t, "scheduler", entry["module"])
	assert.Equal(t, "WARN", entry["level"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(&Config{Level: "error", Format: FormatText, Output: &buf})
	t.Cleanup(func() { Init(&Config{Level: "info", Format: FormatText}) })

	Info("should not appear")
	Error("should appear")

	assert.NotContains(t, buf.String(), "should not appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel("info"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
}
