package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

type recordingDelegate struct {
	requests []string
	reply    string
}

func (d *recordingDelegate) ProcessRequest(request string) string {
	d.requests = append(d.requests, request)
	return d.reply
}

func TestDotnetRequestIsPassThrough(t *testing.T) {
	inputs := []string{
		"",
		"not json at all",
		`{"controller":"Snippets","action":"Search","data":{"text":"go"}}`,
		"line1\nline2\r\n\t\x00unicode ✓",
	}

	for _, in := range inputs {
		d := &recordingDelegate{reply: "reply for " + in}
		out := DotnetRequest(d)(in)

		assert.Equal(t, []string{in}, d.requests, "delegate sees the exact request once")
		assert.Equal(t, "reply for "+in, out, "response is returned unchanged")
	}
}

func TestCommandTable(t *testing.T) {
	table := NewCommandTable()
	d := &recordingDelegate{reply: "pong"}

	require.NoError(t, table.Register(CommandDotnetRequest, DotnetRequest(d)))
	assert.Error(t, table.Register(CommandDotnetRequest, DotnetRequest(d)), "duplicate name")
	assert.Error(t, table.Register("", DotnetRequest(d)))

	out, err := table.Invoke(CommandDotnetRequest, "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", out)

	_, err = table.Invoke("other_request", "ping")
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Len(t, d.requests, 1, "unknown commands never reach the delegate")

	assert.Equal(t, []string{CommandDotnetRequest}, table.Names())
}

type contextDelegate struct {
	recordingDelegate
	correlationIDs []string
}

func (d *contextDelegate) ProcessRequestContext(ctx context.Context, request string) string {
	d.correlationIDs = append(d.correlationIDs, logger.GetCorrelationIDFromContext(ctx))
	return d.ProcessRequest(request)
}

func TestCommandTableCarriesContext(t *testing.T) {
	table := NewCommandTable()
	d := &contextDelegate{recordingDelegate: recordingDelegate{reply: "pong"}}

	require.NoError(t, table.RegisterContext(CommandDotnetRequest, DotnetRequestContext(d)))
	assert.Error(t, table.Register("nil_command", nil))

	ctx := logger.WithCorrelationIDContext(context.Background(), "corr-42")
	out, err := table.InvokeContext(ctx, CommandDotnetRequest, "ping")
	require.NoError(t, err)
	assert.Equal(t, "pong", out)

	_, err = table.Invoke(CommandDotnetRequest, "ping")
	require.NoError(t, err)

	assert.Equal(t, []string{"corr-42", ""}, d.correlationIDs)
	assert.Equal(t, []string{"ping", "ping"}, d.requests)
}
