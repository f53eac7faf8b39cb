// Package journal records every bridge dispatch in Postgres.
package journal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/lewisedginton/brainoverflow/internal/bridge"
	"github.com/lewisedginton/brainoverflow/internal/journal/sqlc"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// DefaultBufferSize is the number of entries queued before new ones are dropped.
const DefaultBufferSize = 256

const (
	drainTimeout = 5 * time.Second
	writeTimeout = 5 * time.Second
)

// Entry is one recorded dispatch.
type Entry struct {
	ID            int64     `json:"id,omitempty"`
	CorrelationID string    `json:"correlationId"`
	Controller    string    `json:"controller"`
	Action        string    `json:"action"`
	Duration      int64     `json:"durationMs"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}

// Journal queues entries and writes them from its Run loop, so recording
// never blocks a dispatch.
type Journal struct {
	queries sqlc.Querier
	entries chan Entry
	log     logger.Logger
	dropped atomic.Int64
}

// New creates a Journal writing through queries.
func New(queries sqlc.Querier, buffer int, log logger.Logger) *Journal {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Journal{
		queries: queries,
		entries: make(chan Entry, buffer),
		log:     log.WithFields(logger.StringField("component", "journal")),
	}
}

// Record queues e. A full queue drops it.
func (j *Journal) Record(e Entry) {
	select {
	case j.entries <- e:
	default:
		n := j.dropped.Add(1)
		j.log.Warn("Journal queue full, dropping entry",
			logger.ControllerField(e.Controller),
			logger.ActionField(e.Action),
			logger.Int64Field("dropped_total", n))
	}
}

// Dropped reports how many entries were discarded.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Name implements app.HostedService.
func (j *Journal) Name() string { return "request-journal" }

// Start implements app.HostedService.
func (j *Journal) Start(context.Context) error { return nil }

// Run writes queued entries until ctx is cancelled, then drains the queue.
// Writes are not cancelled with ctx, so an entry taken from the queue is
// never lost to shutdown.
func (j *Journal) Run(ctx context.Context) error {
	writeCtx := context.WithoutCancel(ctx)
	for {
		select {
		case e := <-j.entries:
			j.write(writeCtx, e)
		case <-ctx.Done():
			j.drain(writeCtx)
			return nil
		}
	}
}

func (j *Journal) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-j.entries:
			j.write(ctx, e)
		default:
			return
		}
	}
}

func (j *Journal) write(ctx context.Context, e Entry) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	err := j.queries.InsertRequest(ctx, sqlc.InsertRequestParams{
		CorrelationID: e.CorrelationID,
		Controller:    e.Controller,
		Action:        e.Action,
		DurationMs:    e.Duration,
		ErrorMessage:  pgtype.Text{String: e.Error, Valid: e.Error != ""},
		CreatedAt:     pgtype.Timestamptz{Time: e.At, Valid: true},
	})
	if err != nil {
		j.log.Error("Failed to write journal entry",
			logger.ControllerField(e.Controller),
			logger.ActionField(e.Action),
			logger.ErrorField(err))
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int32) ([]Entry, error) {
	rows, err := j.queries.ListRecentRequests(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{
			ID:            r.ID,
			CorrelationID: r.CorrelationID,
			Controller:    r.Controller,
			Action:        r.Action,
			Duration:      r.DurationMs,
			Error:         r.ErrorMessage.String,
			At:            r.CreatedAt.Time,
		})
	}
	return entries, nil
}

// Middleware records every dispatch passing through it.
func (j *Journal) Middleware() bridge.Middleware {
	return func(next bridge.Handler) bridge.Handler {
		return func(ctx context.Context, call bridge.Call) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)

			e := Entry{
				CorrelationID: logger.GetCorrelationIDFromContext(ctx),
				Controller:    call.Controller,
				Action:        call.Action,
				Duration:      time.Since(start).Milliseconds(),
				At:            start.UTC(),
			}
			if err != nil {
				e.Error = err.Error()
			}
			j.Record(e)
			return result, err
		}
	}
}
