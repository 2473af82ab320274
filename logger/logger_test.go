package logger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", NoColors: true}, &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())

	l.Info("hidden")
	l.WithField("plate", "皖AY339S").Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "皖AY339S")
}

func TestNewDefaultsToInfo(t *testing.T) {
	l, err := New(Options{}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestNewWritesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "alpr.log")
	opts := DefaultOptions()
	opts.File = file
	opts.NoColors = true

	l, err := New(opts, &bytes.Buffer{})
	require.NoError(t, err)
	l.Info("to file")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestWithRequestID(t *testing.T) {
	l := Discard()

	entry := WithRequestID(context.Background(), l)
	assert.Equal(t, "unknown", entry.Data["request_id"])

	ctx := context.WithValue(context.Background(), RequestIDKey, "abc-123")
	entry = WithRequestID(ctx, l)
	assert.Equal(t, "abc-123", entry.Data["request_id"])
}
