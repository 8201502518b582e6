package simulate

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/waypoint/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to the console and, when logFile is set,
// to that file as well.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}

	if err := logger.InitWith(logger.Options{Writer: w}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	if logFile != "" {
		logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	}
	return nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Waypoint Race Simulator
=======================

Builds a course on a running waypoint service, races synthetic players
through it tick by tick and checks the resulting ranking.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -event string
        Event type to race in (default "parkour")
  -variant string
        Variant created for the run; an existing one is replaced (default "sim")
  -players int
        Number of synthetic players (default 50)
  -checkpoints int
        Intermediate checkpoints between start and end (default 5)
  -skip float
        Share of players that skip a checkpoint and cannot finish (default 0.1)
  -win string
        Win condition of the variant: FIRST_TO_FINISH or FASTEST_TIME
  -tps int
        Tick rate the service runs at (default 20)
  -pace int
        Maximum ticks between two zones (default 60)
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Write a JSON report of the run to this file
  -log string
        Also write logs to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Race 200 players over 10 checkpoints
  go run ./cmd/simulate -players 200 -checkpoints 10

  # Rank by fastest time against another instance
  go run ./cmd/simulate -url http://localhost:8080 -win FASTEST_TIME
`)
}
