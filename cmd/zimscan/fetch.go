package main

import (
	"fmt"
	"os"

	"github.com/jojolebarjos/zimscan/internal/fetch"
	"github.com/spf13/cobra"
)

var (
	fetchName string
	fetchURL  string
	fetchDest string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a ZIM archive",
	Long:  `fetch downloads a ZIM archive, either by known name or by URL, reporting progress as it goes.`,
	Example: `  zimscan fetch --name wikipedia-top100-mini --dest ./data
  zimscan fetch --url https://example.org/archive.zim --dest ./data`,
	RunE: runFetch,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known downloadable ZIM archives",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Known archives:")
		for name, url := range fetch.KnownArchives {
			fmt.Printf("  %-24s %s\n", name, url)
		}
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(listCmd)

	fetchCmd.Flags().StringVar(&fetchName, "name", "", "known archive name (see \"zimscan list\")")
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "direct URL to a ZIM archive")
	fetchCmd.Flags().StringVar(&fetchDest, "dest", "./data", "destination directory")
}

func runFetch(cmd *cobra.Command, args []string) error {
	url := fetchURL
	if fetchName != "" {
		known, ok := fetch.KnownArchives[fetchName]
		if !ok {
			return fmt.Errorf("unknown archive name %q (see \"zimscan list\")", fetchName)
		}
		url = known
	}
	if url == "" {
		return fmt.Errorf("either --name or --url must be given")
	}

	path, err := fetch.Download(url, fetchDest, func(p fetch.Progress) {
		if pct := p.Percentage(); pct >= 0 {
			fmt.Fprintf(os.Stderr, "\rdownloading: %.1f%% (%d MB)", pct, p.DownloadedBytes/(1024*1024))
		} else {
			fmt.Fprintf(os.Stderr, "\rdownloading: %d MB", p.DownloadedBytes/(1024*1024))
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr)
	fmt.Printf("downloaded to %s\n", path)
	return nil
}
