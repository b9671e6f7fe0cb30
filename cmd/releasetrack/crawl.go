package main

import (
	"github.com/spf13/cobra"
)

var crawlMax int

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Ingest new releases from the Heroku platform",
	Long: `Page through the Heroku release listing and store every release not
already tracked. Slug deployments are enriched with the full commit hash
and linked to their predecessor as they are ingested.`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().IntVar(&crawlMax, "max", 0, "Maximum number of releases to crawl (default: batch ceiling)")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.Tracker.Crawl(cmd.Context(), crawlMax)
	if err != nil {
		return err
	}
	printResults("crawl", results)
	return nil
}
