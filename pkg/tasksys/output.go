package tasksys

import (
	"context"

	"github.com/rs/zerolog"
)

type logKey struct{}

// log pulls the logger out of the context. Every entry point into this
// package (RunTask, RunScript) expects the caller to have attached one.
func log(ctx context.Context) *zerolog.Logger {
	logger := ctx.Value(logKey{})
	if logger == nil {
		panic("tasksys: no logger in context, use WithLogger first")
	}

	return logger.(*zerolog.Logger)
}

// WithLogger returns a context carrying the given logger. Task runs and
// script evaluations report through it.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}
