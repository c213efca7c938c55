package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/spf13/cobra"
)

var (
	indexInPath  string
	indexOutPath string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build a search index from an extracted TSV file",
	Long: `index builds a persistent Bluge search index over the TSV produced by
"zimscan extract --format tsv", using a reader/worker/writer goroutine
pipeline to parse, build, and batch-write documents concurrently.`,
	Example: `  zimscan index --in wikipedia.tsv --out wikipedia.bluge`,
	RunE:    runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringVarP(&indexInPath, "in", "i", "", "path to the extracted TSV file (required)")
	indexCmd.Flags().StringVarP(&indexOutPath, "out", "o", "", "output path for the Bluge index directory (required)")
	indexCmd.MarkFlagRequired("in")
	indexCmd.MarkFlagRequired("out")
}

type tsvRow struct {
	id    int
	url   string
	title string
	text  string
}

func runIndex(cmd *cobra.Command, args []string) error {
	in, err := os.Open(indexInPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", indexInPath, err)
	}
	defer in.Close()

	if _, err := os.Stat(indexOutPath); err == nil {
		log.Printf("removing existing index at %s", indexOutPath)
		if err := os.RemoveAll(indexOutPath); err != nil {
			return fmt.Errorf("removing existing index: %w", err)
		}
	}

	config := bluge.DefaultConfig(indexOutPath)
	writer, err := bluge.OpenWriter(config)
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	defer writer.Close()

	numWorkers := runtime.NumCPU()
	const batchSize = 10000
	channelBuffer := numWorkers * 1000

	rowChan := make(chan tsvRow, channelBuffer)
	docChan := make(chan *bluge.Document, channelBuffer)
	errChan := make(chan error, 1)

	var readerWg, workerWg, writerWg sync.WaitGroup
	var indexed atomic.Uint64

	readerWg.Add(1)
	go func() {
		defer readerWg.Done()
		defer close(rowChan)

		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		scanner.Scan() // discard header row
		id := 0
		for scanner.Scan() {
			fields := strings.SplitN(scanner.Text(), "\t", 5)
			if len(fields) < 4 {
				continue
			}
			rowChan <- tsvRow{
				id:    id,
				url:   tsvUnescape(fields[1]),
				title: tsvUnescape(fields[2]),
				text:  tsvUnescape(fields[3]),
			}
			id++
		}
		if err := scanner.Err(); err != nil {
			select {
			case errChan <- fmt.Errorf("reading tsv: %w", err):
			default:
			}
		}
	}()

	for w := 0; w < numWorkers; w++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for row := range rowChan {
				doc := bluge.NewDocument(strconv.Itoa(row.id))
				doc.AddField(bluge.NewTextField("title", row.title).StoreValue().SearchTermPositions())
				doc.AddField(bluge.NewKeywordField("title_exact", strings.ToLower(row.title)).StoreValue())
				doc.AddField(bluge.NewKeywordField("url", row.url).StoreValue())
				doc.AddField(bluge.NewTextField("text", row.text).SearchTermPositions())
				docChan <- doc
			}
		}()
	}

	go func() {
		workerWg.Wait()
		close(docChan)
	}()

	writerWg.Add(1)
	go func() {
		defer writerWg.Done()

		batch := bluge.NewBatch()
		batchCount := 0
		for doc := range docChan {
			batch.Insert(doc)
			batchCount++
			indexed.Add(1)

			if batchCount >= batchSize {
				if err := writer.Batch(batch); err != nil {
					select {
					case errChan <- fmt.Errorf("writing batch: %w", err):
					default:
					}
					return
				}
				batch = bluge.NewBatch()
				batchCount = 0
			}
		}
		if batchCount > 0 {
			if err := writer.Batch(batch); err != nil {
				select {
				case errChan <- fmt.Errorf("writing final batch: %w", err):
				default:
				}
			}
		}
	}()

	start := time.Now()
	readerWg.Wait()
	writerWg.Wait()

	select {
	case err := <-errChan:
		return err
	default:
	}

	log.Printf("index: %d documents indexed in %s", indexed.Load(), time.Since(start).Round(time.Millisecond))
	return nil
}

func tsvUnescape(s string) string {
	s = strings.ReplaceAll(s, "\\n", "\n")
	s = strings.ReplaceAll(s, "\\t", "\t")
	s = strings.ReplaceAll(s, "\\\\", "\\")
	return s
}
