package main

import (
	"errors"
	"fmt"

	"releasetrack/internal/release"

	"github.com/spf13/cobra"
)

var stashSync bool

var stashCmd = &cobra.Command{
	Use:   "stash",
	Short: "Register the currently running release",
	Long: `Create a release record from the dyno runtime metadata environment
variables (HEROKU_RELEASE_VERSION, HEROKU_SLUG_COMMIT, etc.) that Heroku
injects when the runtime-dyno-metadata labs feature is enabled.

Intended to run once at process start on the platform, so each new
deployment registers itself.`,
	RunE: runStash,
}

func init() {
	stashCmd.Flags().BoolVar(&stashSync, "sync", true, "Sync the stashed release (pull from Heroku, push to GitHub)")
}

func runStash(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	rel, err := a.Tracker.RegisterCurrent(cmd.Context())
	if err != nil {
		// the release beat us to the table (a previous restart of the same
		// dyno already stashed it) - not a failure
		if errors.Is(err, release.ErrDuplicateVersion) {
			a.Logger.Info("release already stashed")
			return nil
		}
		return err
	}
	fmt.Printf("stashed %s\n", rel)

	if stashSync {
		if err := a.Tracker.Sync(cmd.Context(), rel); err != nil {
			a.Logger.Error("failed to sync stashed release", "version", rel.Version, "error", err)
			return err
		}
		fmt.Printf("synced %s\n", rel)
	}
	return nil
}
