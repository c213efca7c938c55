package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jojolebarjos/zimscan/internal/cleaner"
	"github.com/jojolebarjos/zimscan/internal/ipa"
	"github.com/jojolebarjos/zimscan/internal/progress"
	"github.com/jojolebarjos/zimscan/internal/server"
	"github.com/jojolebarjos/zimscan/internal/thumbnail"
	"github.com/jojolebarjos/zimscan/internal/workerpool"
	"github.com/jojolebarjos/zimscan/pkg/zim"
	"github.com/spf13/cobra"
)

var (
	extractInPath      string
	extractOutPath     string
	extractFormat      string
	extractWorkers     int
	extractSkipMeta    bool
	extractThumbFormat string
	extractThumbSize   int64
	extractStatusPath  string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Stream a ZIM archive and extract text, pronunciation, and image data",
	Long: `extract walks a ZIM archive once, front to back, cleaning HTML records
to plain text, pulling IPA pronunciation spans out of dictionary entries,
and thumbnailing image records. Results are written as TSV rows (format=tsv)
or one file per record under a directory (format=text).`,
	Example: `  zimscan extract --in wikipedia.zim --out wikipedia.tsv
  zimscan extract --in wiktionary.zim --out pages/ --format text --workers 8`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractInPath, "in", "i", "", "path to the input ZIM archive (required)")
	extractCmd.Flags().StringVarP(&extractOutPath, "out", "o", "", "output path: a TSV file (format=tsv) or directory (format=text)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "tsv", "output format: tsv or text")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 0, "number of worker goroutines (default: number of CPUs)")
	extractCmd.Flags().BoolVar(&extractSkipMeta, "skip-metadata", false, "skip loading the directory index (faster, drops URL/title/namespace)")
	extractCmd.Flags().StringVar(&extractThumbFormat, "thumbnail-format", "jpeg", "thumbnail format for image records: jpeg or wbmp")
	extractCmd.Flags().Int64Var(&extractThumbSize, "thumbnail-size", 0, "max thumbnail dimension in pixels (0 disables thumbnailing)")
	extractCmd.Flags().StringVar(&extractStatusPath, "status-file", "", "optional path to write live progress status JSON, for \"zimscan serve\" to read")

	extractCmd.MarkFlagRequired("in")
	extractCmd.MarkFlagRequired("out")
}

// extracted is one record's processed output, ready to be written.
type extracted struct {
	namespace byte
	url       string
	title     string
	text      string
	ipaRows   []ipa.Entry
	thumbnail []byte
}

func runExtract(cmd *cobra.Command, args []string) error {
	if extractFormat != "tsv" && extractFormat != "text" {
		return fmt.Errorf("unsupported format %q: must be tsv or text", extractFormat)
	}

	in, err := os.Open(extractInPath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer in.Close()

	var opts []zim.Option
	if extractSkipMeta {
		opts = append(opts, zim.WithSkipMetadata())
	}
	reader, err := zim.Open(in, opts...)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer reader.Close()

	total, hasTotal := reader.Len()
	tracker := server.NewTracker(int64(total), hasTotal)

	writeFn, closeWriter, err := newWriter(extractFormat, extractOutPath)
	if err != nil {
		return err
	}
	defer closeWriter()

	reporter := progress.New(time.Second, tracker.TotalOrUnknown(), func(processed uint64, total int64) {
		tracker.Update(processed)
		if total >= 0 {
			log.Printf("extract: %d/%d records processed", processed, total)
		} else {
			log.Printf("extract: %d records processed", processed)
		}
		writeStatusFile(extractStatusPath, tracker)
	})

	ctx := context.Background()
	results := workerpool.Map(ctx, recordTaskSource(reader), extractWorkers, true)

	var processed uint64
	for res := range results {
		if res.Err != nil {
			if res.Err == io.EOF {
				continue
			}
			tracker.Finish(res.Err)
			return fmt.Errorf("processing record %d: %w", res.Index, res.Err)
		}
		if err := writeFn(res.Value); err != nil {
			tracker.Finish(err)
			return fmt.Errorf("writing record %d: %w", res.Index, err)
		}
		processed++
		reporter.Add(1)
	}
	reporter.Done()
	tracker.Finish(nil)
	writeStatusFile(extractStatusPath, tracker)

	log.Printf("extract: done, %d records written", processed)
	return nil
}

// writeStatusFile best-effort persists the tracker's status to disk so a
// separately started "zimscan serve" can pick it up. path may be empty, in
// which case this is a no-op.
func writeStatusFile(path string, tracker *server.Tracker) {
	if path == "" {
		return
	}
	b, err := json.Marshal(tracker.Snapshot())
	if err != nil {
		return
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		log.Printf("extract: failed to write status file %s: %v", path, err)
	}
}

// recordTaskSource drains the archive's forward-only iterator on the
// calling goroutine (Next must not be called concurrently) and hands each
// record's already-read bytes to the worker pool as an independent task, so
// the CPU-bound cleaning/extraction work fans out even though reading
// itself is sequential.
func recordTaskSource(reader *zim.Reader) func(yield func(workerpool.Task[extracted]) bool) {
	return func(yield func(workerpool.Task[extracted]) bool) {
		for {
			rec, err := reader.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(func(ctx context.Context) (extracted, error) { return extracted{}, err })
				return
			}

			content, err := io.ReadAll(rec)
			if err != nil {
				yield(func(ctx context.Context) (extracted, error) { return extracted{}, err })
				return
			}

			namespace := rec.Namespace
			mimeType := rec.MIMEType
			url := rec.URL
			title := rec.Title

			task := func(ctx context.Context) (extracted, error) {
				return processRecord(namespace, mimeType, url, title, content)
			}
			if !yield(task) {
				return
			}
		}
	}
}

func processRecord(namespace byte, mimeType, url, title string, content []byte) (extracted, error) {
	out := extracted{namespace: namespace, url: url, title: title}

	switch {
	case strings.HasPrefix(mimeType, "text/html"):
		paragraphs, err := cleaner.ExtractParagraphsBytes(content)
		if err != nil {
			return extracted{}, fmt.Errorf("cleaning %s: %w", url, err)
		}
		out.text = strings.Join(paragraphs, "\n")
		out.ipaRows = ipa.Extract(content)

	case strings.HasPrefix(mimeType, "image/") && extractThumbSize > 0:
		format := thumbnail.FormatJPEG
		if extractThumbFormat == "wbmp" {
			format = thumbnail.FormatWBMP
		}
		thumb, err := thumbnail.Generate(content, extractThumbSize, format)
		if err != nil {
			// A single unprocessable image should not fail the whole run.
			log.Printf("extract: skipping thumbnail for %s: %v", url, err)
		} else {
			out.thumbnail = thumb
		}
	}

	return out, nil
}

// newWriter returns a function that persists one extracted record, and a
// closer to flush/release any resources it opened.
func newWriter(format, outPath string) (func(extracted) error, func() error, error) {
	switch format {
	case "tsv":
		f, err := os.Create(outPath)
		if err != nil {
			return nil, nil, fmt.Errorf("creating %s: %w", outPath, err)
		}
		if _, err := f.WriteString("namespace\turl\ttitle\ttext\tipa\n"); err != nil {
			f.Close()
			return nil, nil, err
		}
		writeFn := func(e extracted) error {
			if e.text == "" {
				return nil
			}
			row := fmt.Sprintf("%c\t%s\t%s\t%s\t%s\n",
				e.namespace, tsvEscape(e.url), tsvEscape(e.title), tsvEscape(e.text), tsvEscape(marshalIPARows(e.ipaRows)))
			_, err := f.WriteString(row)
			return err
		}
		return writeFn, f.Close, nil

	case "text":
		if err := os.MkdirAll(outPath, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating %s: %w", outPath, err)
		}
		writeFn := func(e extracted) error {
			if e.text == "" && e.thumbnail == nil {
				return nil
			}
			name := sanitizeFilename(e.url)
			if e.text != "" {
				if err := os.WriteFile(filepath.Join(outPath, name+".txt"), []byte(e.text), 0o644); err != nil {
					return err
				}
			}
			if e.thumbnail != nil {
				if err := os.WriteFile(filepath.Join(outPath, name+".thumb"), e.thumbnail, 0o644); err != nil {
					return err
				}
			}
			if len(e.ipaRows) > 0 {
				if err := os.WriteFile(filepath.Join(outPath, name+".ipa.json"), []byte(marshalIPARows(e.ipaRows)), 0o644); err != nil {
					return err
				}
			}
			return nil
		}
		return writeFn, func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported format %q", format)
	}
}

func tsvEscape(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\t", "\\t")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

func sanitizeFilename(url string) string {
	var b strings.Builder
	for _, r := range url {
		if r == '/' || r == '\\' || r == ':' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "record"
	}
	return b.String()
}

func marshalIPARows(rows []ipa.Entry) string {
	b, _ := json.Marshal(rows)
	return string(b)
}
