// Package ipa pulls pronunciation notation out of dictionary-style HTML
// pages: a page title and zero or more IPA transcription spans.
package ipa

import (
	"regexp"
	"strings"
)

var (
	titleRegex     = regexp.MustCompile(`<title>([^<]+)</title>`)
	ipaSpanRegex   = regexp.MustCompile(`<span class="IPA"[^>]*>(.*?)</span>`)
	whitespaceFold = regexp.MustCompile(`\s+`)
)

// Entry pairs a page title with one pronunciation transcription found on
// that page. A page with several IPA spans (homographs, regional variants)
// yields one Entry per span, all sharing the same title.
type Entry struct {
	Title string
	IPA   string
}

// Extract scans raw page content for a title tag and IPA spans, and returns
// one Entry per non-empty IPA span found. It returns nil when the page has
// no title or no IPA spans, not an error: most pages simply don't carry
// pronunciation data.
func Extract(content []byte) []Entry {
	titleMatch := titleRegex.FindSubmatch(content)
	if titleMatch == nil {
		return nil
	}
	title := clean(string(titleMatch[1]))
	if title == "" {
		return nil
	}

	matches := ipaSpanRegex.FindAllSubmatch(content, -1)
	if matches == nil {
		return nil
	}

	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		text := clean(string(m[1]))
		if text == "" {
			continue
		}
		entries = append(entries, Entry{Title: title, IPA: text})
	}
	return entries
}

func clean(s string) string {
	s = whitespaceFold.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
