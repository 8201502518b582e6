package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/waypoint/internal/domain/model"
	"github.com/okian/waypoint/internal/simulate"
)

// Default configuration constants.
const (
	defaultPlayers     = 50
	defaultCheckpoints = 5
	defaultSkipRate    = 0.1
	defaultTPS         = 20
	defaultPace        = 60
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		event       = flag.String("event", "parkour", "Event type to race in")
		variant     = flag.String("variant", "sim", "Variant created for the run")
		players     = flag.Int("players", defaultPlayers, "Number of synthetic players")
		checkpoints = flag.Int("checkpoints", defaultCheckpoints, "Intermediate checkpoints between start and end")
		skip        = flag.Float64("skip", defaultSkipRate, "Share of players that skip a checkpoint")
		win         = flag.String("win", "", "Win condition of the variant (FIRST_TO_FINISH or FASTEST_TIME)")
		tps         = flag.Int("tps", defaultTPS, "Tick rate the service runs at")
		pace        = flag.Int("pace", defaultPace, "Maximum ticks between two zones")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile  = flag.String("output", "", "Write a JSON report of the run to this file")
		logFile     = flag.String("log", "", "Also write logs to this file")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile, *verbose); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	cfg := &simulate.Config{
		BaseURL:        *baseURL,
		Event:          *event,
		Variant:        *variant,
		Players:        *players,
		Checkpoints:    *checkpoints,
		SkipRate:       *skip,
		WinCondition:   model.WinCondition(*win),
		TicksPerSecond: *tps,
		MaxPace:        *pace,
		Timeout:        *timeout,
		OutputFile:     *outputFile,
		Verbose:        *verbose,
	}

	if _, err := simulate.Run(ctx, cfg); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
