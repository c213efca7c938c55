package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"

	zimserver "github.com/jojolebarjos/zimscan/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr       string
	serveStatusPath string
	servePollEvery  time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status of an extract run over HTTP",
	Long: `serve starts a small HTTP server exposing GET /status and GET /healthz,
reflecting the progress written by a running or finished
"zimscan extract --status-file ..." invocation.`,
	Example: `  zimscan serve --addr :8080 --status-file wikipedia.status.json`,
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "address to listen on")
	serveCmd.Flags().StringVar(&serveStatusPath, "status-file", "", "status JSON file written by \"zimscan extract --status-file ...\"")
	serveCmd.Flags().DurationVar(&servePollEvery, "poll-every", 2*time.Second, "how often to re-read the status file")
}

func runServe(cmd *cobra.Command, args []string) error {
	tracker := zimserver.NewTracker(-1, false)

	if serveStatusPath != "" {
		pollStatusFile(tracker, serveStatusPath, servePollEvery)
	}

	e := zimserver.New(tracker)
	log.Printf("serve: listening on %s", serveAddr)
	if err := e.Start(serveAddr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// pollStatusFile loads the status file once synchronously (so the first
// request sees real data, if any exists yet) and then keeps refreshing it
// in the background.
func pollStatusFile(tracker *zimserver.Tracker, path string, interval time.Duration) {
	load := func() {
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		var s zimserver.Status
		if err := json.Unmarshal(b, &s); err != nil {
			return
		}
		tracker.Update(s.Processed)
		if s.Done {
			var err error
			if s.LastError != nil {
				err = errString(*s.LastError)
			}
			tracker.Finish(err)
		}
	}
	load()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			load()
		}
	}()
}

type errString string

func (e errString) Error() string { return string(e) }
