package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "releasetrack",
	Short: "Mirror Heroku releases as GitHub releases",
	Long: `Releasetrack tracks the deployment releases of a Heroku-hosted app and
mirrors each code deployment as a tagged release on GitHub.

Releases are crawled from the Heroku Platform API, linked to their
chronological predecessor to form a changelog range, and pushed to the
GitHub releases API with an idempotent get-then-create-or-update protocol.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", getEnvOrDefault("RELEASETRACK_CONFIG_FILE", ""), "Path to releasetrack.yaml configuration file")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", getEnvOrDefault("RELEASETRACK_LOG_FILE", ""), "Path to log file (default: stdout only)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("RELEASETRACK_DB_PATH", ""), "Path to SQLite database (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(stashCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(versionCmd)
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
