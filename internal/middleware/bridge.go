// Package middleware provides the bridge.Middleware used around every
// controller dispatch.
package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/lewisedginton/brainoverflow/internal/bridge"
	"github.com/lewisedginton/brainoverflow/pkg/logger"
	"github.com/lewisedginton/brainoverflow/pkg/metrics"
)

// Logging logs every dispatch with its outcome and duration. Client errors
// (bad JSON, unknown names) are logged at warn, action failures at error.
func Logging(base logger.Logger) bridge.Middleware {
	return func(next bridge.Handler) bridge.Handler {
		return func(ctx context.Context, call bridge.Call) (any, error) {
			start := time.Now()
			log := logger.GetLoggerFromContext(ctx, base).WithFields(
				logger.ControllerField(call.Controller),
				logger.ActionField(call.Action),
			)
			log.Debug("Bridge request received")

			result, err := next(ctx, call)

			duration := logger.DurationField("duration", time.Since(start))
			switch {
			case err == nil:
				log.Info("Bridge request handled", duration)
			case bridge.IsClientError(err):
				log.Warn("Bridge request rejected", duration, logger.ErrorField(err))
			default:
				log.Error("Bridge request failed", duration, logger.ErrorField(err))
			}
			return result, err
		}
	}
}

// Metrics records each dispatch on m.
func Metrics(m *metrics.Metrics) bridge.Middleware {
	return func(next bridge.Handler) bridge.Handler {
		return func(ctx context.Context, call bridge.Call) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)

			outcome := metrics.OutcomeSuccess
			switch {
			case errors.Is(err, bridge.ErrPanic):
				outcome = metrics.OutcomePanicked
			case err != nil:
				outcome = metrics.OutcomeFailed
			}
			m.ObserveDispatch(call.Controller, call.Action, outcome, time.Since(start))
			return result, err
		}
	}
}
