package bridge

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// RecoveryConfig controls how panics raised by actions are reported.
type RecoveryConfig struct {
	Logger           logger.Logger
	EnableStackTrace bool
}

// DefaultRecoveryConfig logs stack traces.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{EnableStackTrace: true}
}

// Recovery turns a panic in next into an error wrapping ErrPanic.
func Recovery(config RecoveryConfig) Middleware {
	log := config.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return func(next Handler) Handler {
		return func(ctx context.Context, call Call) (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					fields := []logger.LogField{
						logger.ControllerField(call.Controller),
						logger.ActionField(call.Action),
						logger.StringField("panic", fmt.Sprint(r)),
					}
					if config.EnableStackTrace {
						fields = append(fields, logger.StringField("stack_trace", string(debug.Stack())))
					}
					logger.GetLoggerFromContext(ctx, log).Error("Recovered from panic in bridge action", fields...)

					result = nil
					err = fmt.Errorf("%w: %v", ErrPanic, r)
				}
			}()

			return next(ctx, call)
		}
	}
}
