package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zimscan",
	Short: "Stream and extract content from ZIM archives",
	Long: `zimscan reads ZIM archives as a forward-only stream of content
records, extracting plain text, pronunciation data, and image thumbnails,
then optionally indexes and serves the results.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
