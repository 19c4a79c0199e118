// Package main implements the unified stockyard binary.
// It can run the whole pipeline in one process or individual services based
// on the --mode flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/stockyard/stockyard/internal/app"
	"github.com/stockyard/stockyard/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		mode        string
		httpAddr    string
		logLevel    string
		logJSON     bool
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&mode, "mode", "", "Service mode: all, api, extract, commit")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP address for the API service")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	flag.BoolVar(&logJSON, "log-json", false, "Emit JSON logs instead of console output")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Stockyard - Catalog Ingestion Pipeline\n\n")
		fmt.Fprintf(os.Stderr, "Usage: stockyard [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  stockyard --data-dir /data/stockyard\n")
		fmt.Fprintf(os.Stderr, "  stockyard --mode commit --config /etc/stockyard/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  STOCKYARD_MODE            Service mode (all, api, extract, commit)\n")
		fmt.Fprintf(os.Stderr, "  STOCKYARD_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  STOCKYARD_HTTP_ADDR       HTTP address for the API service\n")
		fmt.Fprintf(os.Stderr, "  STOCKYARD_STORAGE_TYPE    Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  STOCKYARD_QUEUE_TYPE      Queue type (memory, sqs)\n")
		fmt.Fprintf(os.Stderr, "  STOCKYARD_EVENTS_TYPE     Event publisher type (inproc, sns)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("stockyard version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	setupLogging(logLevel, logJSON)

	cfg, err := loadConfig(configFile, dataDir, mode, httpAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("received signal")

	if err := application.Stop(context.Background()); err != nil {
		log.Error().Err(err).Msg("shutdown error")
		os.Exit(1)
	}
}

// setupLogging configures the global zerolog logger.
func setupLogging(level string, jsonOutput bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	if !jsonOutput {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, mode, httpAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Flags take highest priority.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	return cfg, nil
}
