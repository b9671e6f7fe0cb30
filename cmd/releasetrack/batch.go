package main

import (
	"fmt"
	"strings"

	"releasetrack/internal/release"

	"github.com/spf13/cobra"
)

var (
	batchForce bool
	batchMax   int
)

var batchCmd = &cobra.Command{
	Use:   "batch <operation>",
	Short: "Run an operation across stored releases",
	Long: fmt.Sprintf(`Apply a named operation to stored releases in ascending version order
and report succeeded/failed/ignored counts. One release's failure never
aborts the run.

Operations: %s.

pull, push and sync skip releases whose idempotency markers are already
set; use --force to re-process them. update-parent and update-notes skip
non-deployment releases.`,
		strings.Join([]string{
			release.OpPull,
			release.OpPush,
			release.OpSync,
			release.OpUpdateParent,
			release.OpUpdateNotes,
		}, ", ")),
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().BoolVar(&batchForce, "force", false, "Re-process releases already marked pulled/pushed/synced")
	batchCmd.Flags().IntVar(&batchMax, "max", 0, "Maximum number of releases to process (default: batch ceiling)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	operation := args[0]
	results, err := a.Tracker.RunBatch(cmd.Context(), operation, release.BatchOptions{
		Force:    batchForce,
		MaxCount: batchMax,
	})
	if err != nil {
		return err
	}
	printResults(operation, results)
	return nil
}
