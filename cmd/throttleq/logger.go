package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/throttleq/internal/config"
	"github.com/phrazzld/throttleq/internal/platform/logger"
)

// setupAppLogger builds the process logger. Logs go to w so that stdout
// stays free for fetched entries.
func setupAppLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	l, err := logger.Setup(logger.LoggerConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: w,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return l, nil
}
