// Package logger provides structured logging functionality for the application.
//
// It utilizes Go's standard library log/slog package to implement structured JSON logging
// with configurable log levels, and carries loggers through context.Context so that
// code running inside queued tasks logs with the same attributes as the queue itself.
package logger
