package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/brainoverflow/internal/bridge"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
	"github.com/lewisedginton/brainoverflow/pkg/metrics"
)

func testHost(t *testing.T, mw ...bridge.Middleware) *bridge.Host {
	t.Helper()
	h := bridge.NewHost(bridge.WithMiddleware(mw...))
	require.NoError(t, h.Register(bridge.ControllerFunc{
		ControllerName: "Snippets",
		ActionMap: map[string]bridge.ActionFunc{
			"List":  bridge.NoArgs(func(context.Context) (any, error) { return []string{}, nil }),
			"Save":  bridge.NoArgs(func(context.Context) (any, error) { return nil, errors.New("disk full") }),
			"Crash": bridge.NoArgs(func(context.Context) (any, error) { panic("oops") }),
		},
	}))
	return h
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: logger.DebugLevel, Format: "json", Output: &buf})
	h := testHost(t, Logging(log))

	h.ProcessRequest(`{"controller":"Snippets","action":"List"}`)
	h.ProcessRequest(`{"controller":"Snippets","action":"Save"}`)
	h.ProcessRequest(`{"controller":"Snippets","action":"Missing"}`)

	levels := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "Bridge request received" {
			assert.NotEmpty(t, entry[logger.CorrelationIDFieldKey])
			continue
		}
		levels[entry["msg"].(string)] = entry["level"].(string)
		assert.Equal(t, "Snippets", entry["controller"])
	}

	assert.Equal(t, map[string]string{
		"Bridge request handled":  "info",
		"Bridge request failed":   "error",
		"Bridge request rejected": "warning",
	}, levels)
}

func TestMetrics(t *testing.T) {
	m := metrics.NewMetrics(false, false, true, logger.NewNopLogger())
	h := testHost(t, Metrics(m))

	h.ProcessRequest(`{"controller":"Snippets","action":"List"}`)
	h.ProcessRequest(`{"controller":"Snippets","action":"Save"}`)
	h.ProcessRequest(`{"controller":"Snippets","action":"Crash"}`)

	count, err := testutil.GatherAndCount(m.Registry(), "brainoverflow_bridge_dispatches_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per controller/action/outcome")
}
