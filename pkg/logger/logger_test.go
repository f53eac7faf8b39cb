package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: InfoLevel, Format: "json", Service: "test-service", Output: &buf})

	log.Info("test message", StringField("test_key", "test_value"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "test message", entries[0]["msg"])
	assert.Equal(t, "test-service", entries[0]["service"])
	assert.Equal(t, "test_value", entries[0]["test_key"])
	assert.Equal(t, "info", entries[0]["level"])
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: WarnLevel, Output: &buf})

	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Error("error")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["msg"])
	assert.Equal(t, "error", entries[1]["msg"])
}

func TestWithFieldsIsImmutable(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(Config{Level: InfoLevel, Output: &buf})

	child := base.WithFields(StringField("key1", "value1"))
	base.Info("from base")
	child.Info("from child")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0], "key1")
	assert.Equal(t, "value1", entries[1]["key1"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"bogus":   InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
	assert.Equal(t, "warn", WarnLevel.String())
}

func TestEnsureCorrelationID(t *testing.T) {
	t.Run("keeps existing context id", func(t *testing.T) {
		ctx := WithCorrelationIDContext(context.Background(), "existing")
		_, id := EnsureCorrelationID(ctx)
		assert.Equal(t, "existing", id)
	})

	t.Run("reads valid id from grpc metadata", func(t *testing.T) {
		want := uuid.New().String()
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(CorrelationIDMetadataKey, want))
		ctx, id := EnsureCorrelationID(ctx)
		assert.Equal(t, want, id)
		assert.Equal(t, want, GetCorrelationIDFromContext(ctx))
	})

	t.Run("generates id when metadata is invalid", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(CorrelationIDMetadataKey, "nope"))
		_, id := EnsureCorrelationID(ctx)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
	})
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(Config{Level: InfoLevel, Output: &buf})

	var seen string
	handler := HTTPMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/invoke/dotnet_request", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotEmpty(t, seen)
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "418", entries[0]["http_status"])
	assert.Equal(t, "15", entries[0]["response_bytes"])
	assert.Equal(t, seen, entries[0][CorrelationIDFieldKey])
}
