package journal

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/brainoverflow/internal/app"
	"github.com/lewisedginton/brainoverflow/internal/bridge"
	"github.com/lewisedginton/brainoverflow/internal/journal/sqlc"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

type fakeQuerier struct {
	mu      sync.Mutex
	rows    []sqlc.InsertRequestParams
	listErr error
}

func (f *fakeQuerier) InsertRequest(ctx context.Context, arg sqlc.InsertRequestParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, arg)
	return nil
}

func (f *fakeQuerier) ListRecentRequests(_ context.Context, limit int32) ([]sqlc.BridgeRequest, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []sqlc.BridgeRequest
	for i := len(f.rows) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		r := f.rows[i]
		out = append(out, sqlc.BridgeRequest{
			ID:            int64(i + 1),
			CorrelationID: r.CorrelationID,
			Controller:    r.Controller,
			Action:        r.Action,
			DurationMs:    r.DurationMs,
			ErrorMessage:  r.ErrorMessage,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

func (f *fakeQuerier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func TestMiddlewareRecordsDispatches(t *testing.T) {
	q := &fakeQuerier{}
	j := New(q, 8, logger.NewNopLogger())

	host := bridge.NewHost(bridge.WithMiddleware(j.Middleware()))
	require.NoError(t, host.Register(bridge.ControllerFunc{
		ControllerName: "Test",
		ActionMap: map[string]bridge.ActionFunc{
			"Ok":   bridge.NoArgs(func(context.Context) (any, error) { return "ok", nil }),
			"Fail": bridge.NoArgs(func(context.Context) (any, error) { return nil, errors.New("nope") }),
		},
	}))

	host.ProcessRequest(`{"controller":"Test","action":"Ok"}`)
	host.ProcessRequest(`{"controller":"Test","action":"Fail"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, j.Run(ctx), "cancelled run drains the queue")

	require.Equal(t, 2, q.count())
	assert.Equal(t, "Ok", q.rows[0].Action)
	assert.False(t, q.rows[0].ErrorMessage.Valid)
	assert.NotEmpty(t, q.rows[0].CorrelationID)
	assert.Equal(t, pgtype.Text{String: "nope", Valid: true}, q.rows[1].ErrorMessage)
}

func TestRecordDropsWhenFull(t *testing.T) {
	j := New(&fakeQuerier{}, 1, nil)

	j.Record(Entry{Controller: "a"})
	j.Record(Entry{Controller: "b"})
	j.Record(Entry{Controller: "c"})

	assert.Equal(t, int64(2), j.Dropped())
}

func TestRunWritesUntilCancelled(t *testing.T) {
	q := &fakeQuerier{}
	j := New(q, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	j.Record(Entry{Controller: "Snippets", Action: "Save", At: time.Now()})
	assert.Eventually(t, func() bool { return q.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestRecent(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	q := &fakeQuerier{rows: []sqlc.InsertRequestParams{
		{CorrelationID: "c1", Controller: "Snippets", Action: "Save", DurationMs: 3, CreatedAt: pgtype.Timestamptz{Time: at, Valid: true}},
		{CorrelationID: "c2", Controller: "Snippets", Action: "Search", ErrorMessage: pgtype.Text{String: "bad", Valid: true}, CreatedAt: pgtype.Timestamptz{Time: at, Valid: true}},
	}}
	j := New(q, 0, nil)

	entries, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, Entry{ID: 2, CorrelationID: "c2", Controller: "Snippets", Action: "Search", Error: "bad", At: at}, entries[0])
	assert.Equal(t, int64(3), entries[1].Duration)

	q.listErr = errors.New("db down")
	_, err = j.Recent(context.Background(), 10)
	assert.Error(t, err)
}

func TestPluginRegistersJournalController(t *testing.T) {
	q := &fakeQuerier{}
	j := New(q, 8, nil)

	a, err := app.New(app.Services{}).Plugin(Plugin{Journal: j}).Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"request-journal"}, a.HostedServices())

	out := a.Host().ProcessRequest(`{"controller":"Journal","action":"Recent","data":{"limit":5}}`)
	assert.JSONEq(t, `{"data":[]}`, out)
}

func TestExecDrainsJournalBeforeReturning(t *testing.T) {
	q := &fakeQuerier{}
	j := New(q, 8, nil)

	a, err := app.New(app.Services{}).Plugin(Plugin{Journal: j}).InvokeHandler().Build()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		err = a.Exec(context.Background(), func(ctx context.Context) error {
			_, err := a.Commands().InvokeContext(ctx, bridge.CommandDotnetRequest,
				`{"controller":"Journal","action":"Recent","data":{"limit":1}}`)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, i+1, q.count(), "entry is written once Exec returns")
	}
	assert.Equal(t, "Journal", q.rows[0].Controller)
	assert.Equal(t, "Recent", q.rows[0].Action)
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"migrations/000001_create_bridge_requests.up.sql",
		"migrations/000001_create_bridge_requests.down.sql",
	}, names)
}
