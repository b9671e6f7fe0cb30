package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"releasetrack/internal/config"
	"releasetrack/internal/githubapi"
	"releasetrack/internal/heroku"
	"releasetrack/internal/release"
	"releasetrack/internal/store"
	"releasetrack/pkg/fileutil"
)

// configFileName is searched in the default locations when --config is not
// given. Running without any config file is fine: defaults plus environment
// variables cover the deployed case.
const configFileName = "releasetrack.yaml"

var (
	configFile string
	logFile    string
	dbPath     string
)

// app bundles the wired-up collaborators behind each command.
type app struct {
	Config  *config.Config
	Store   *store.Store
	Tracker *release.Tracker
	Logger  *slog.Logger

	logFileHandle *os.File
}

// newApp loads configuration, opens the store and builds the tracker.
func newApp() (*app, error) {
	logger, logFileHandle, err := setupLogging(logFile)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	path := configFile
	if path == "" {
		path = fileutil.FindConfigOptional(configFileName)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open release database: %w", err)
	}

	platform := heroku.NewClient(cfg.Heroku, logger)
	host := githubapi.NewClient(cfg.GitHub, logger)
	tracker := release.NewTracker(st, platform, host, cfg, logger)

	return &app{
		Config:        cfg,
		Store:         st,
		Tracker:       tracker,
		Logger:        logger,
		logFileHandle: logFileHandle,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
	if a.logFileHandle != nil {
		a.logFileHandle.Close()
	}
}

// setupLogging configures slog for file logging
// Returns both the logger and the file handle (caller must close the file)
func setupLogging(logPath string) (*slog.Logger, *os.File, error) {
	if logPath == "" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})), nil, nil
	}

	logDir := filepath.Dir(logPath)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	// Create multi-writer to log to both file and console
	multiWriter := io.MultiWriter(os.Stdout, file)

	handler := slog.NewJSONHandler(multiWriter, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	return slog.New(handler), file, nil
}

// printResults reports batch counts on stdout for operators.
func printResults(operation string, results release.BatchResults) {
	fmt.Printf("%s: %d succeeded, %d failed, %d ignored\n",
		operation, results.Succeeded, results.Failed, results.Ignored)
}
