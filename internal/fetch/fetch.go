// Package fetch downloads ZIM archives over HTTP, reporting progress as it
// goes, and catalogs a handful of known public archive URLs for convenience.
package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// KnownArchives maps a short name to a public ZIM download URL, for
// quick-start use without having to hunt down a URL first.
var KnownArchives = map[string]string{
	"wikipedia-top100":      "https://download.kiwix.org/zim/wikipedia/wikipedia_en_100_2025-10.zim",
	"wikipedia-top100-mini": "https://download.kiwix.org/zim/wikipedia/wikipedia_en_100_mini_2025-10.zim",
	"wiktionary-en":         "https://download.kiwix.org/zim/wiktionary/wiktionary_en_all_nopic_2025-08.zim",
}

// Progress reports bytes transferred so far, and the total when the server
// provided a Content-Length.
type Progress struct {
	TotalBytes      int64
	DownloadedBytes int64
}

// Percentage returns the percentage downloaded (0 to 100), or -1 when the
// total is unknown.
func (p Progress) Percentage() float64 {
	if p.TotalBytes <= 0 {
		return -1
	}
	return float64(p.DownloadedBytes) / float64(p.TotalBytes) * 100
}

// Download fetches url into destDir, naming the file after the URL's last
// path segment, and calls onProgress as bytes arrive. It writes to a .tmp
// sibling and renames atomically on success, and skips the download
// entirely if the destination already exists.
func Download(url, destDir string, onProgress func(Progress)) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("fetch: creating %s: %w", destDir, err)
	}

	parts := strings.Split(url, "/")
	filename := parts[len(parts)-1]
	destPath := filepath.Join(destDir, filename)

	if _, err := os.Stat(destPath); err == nil {
		return destPath, nil
	}

	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch: requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: %s: unexpected status %s", url, resp.Status)
	}

	tempPath := destPath + ".tmp"
	out, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("fetch: creating %s: %w", tempPath, err)
	}
	defer out.Close()

	totalSize := resp.ContentLength
	var downloaded int64
	buffer := make([]byte, 32*1024)

	for {
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			if _, writeErr := out.Write(buffer[:n]); writeErr != nil {
				os.Remove(tempPath)
				return "", fmt.Errorf("fetch: writing %s: %w", tempPath, writeErr)
			}
			downloaded += int64(n)
			if onProgress != nil {
				onProgress(Progress{TotalBytes: totalSize, DownloadedBytes: downloaded})
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			os.Remove(tempPath)
			return "", fmt.Errorf("fetch: downloading %s: %w", url, readErr)
		}
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("fetch: closing %s: %w", tempPath, err)
	}
	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("fetch: finalizing %s: %w", destPath, err)
	}
	return destPath, nil
}
