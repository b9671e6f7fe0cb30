package main

import (
	"fmt"

	"releasetrack/internal/server"

	"github.com/spf13/cobra"
)

var (
	host string
	port int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the operator HTTP server",
	Long: `Start the HTTP server exposing per-release and batch operations.

The server is a thin trigger surface over the release tracker: operator
actions (pull, push, sync) on single releases, batch runs reporting
succeeded/failed/ignored counts, and crawl/register triggers.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", getEnvOrDefault("RELEASETRACK_HOST", "127.0.0.1"), "Host to bind to")
	serveCmd.Flags().IntVarP(&port, "port", "p", getEnvOrDefaultInt("RELEASETRACK_PORT", 5000), "Port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	a.Logger.Info("Starting releasetrack",
		"db", a.Config.DBPath,
		"heroku_configured", a.Config.Heroku.Configured(),
		"github_configured", a.Config.GitHub.Configured())

	srv := server.NewServer(a.Tracker, a.Logger, false)
	if err := srv.Start(host, port); err != nil {
		a.Logger.Error("Server failed", "error", err)
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
