// Package cleaner turns an HTML page into a sequence of plain-text
// paragraphs, stripping markup, embedded media, and boilerplate footers.
package cleaner

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// structural tags mark a paragraph boundary: whatever text accumulates
// between two of these (or between the start of the document and the
// first one) becomes its own paragraph.
var structuralTags = map[string]bool{
	"blockquote": true,
	"body":       true,
	"dd":         true,
	"details":    true,
	"div":        true,
	"dl":         true,
	"dt":         true,
	"li":         true,
	"ol":         true,
	"p":          true,
	"ul":         true,
}

// droppedTags are removed along with their entire subtree: embedded media,
// scripts, styles, and table markup are not worth trying to linearize.
var droppedTags = map[string]bool{
	"audio":  true,
	"center": true,
	"hr":     true,
	"img":    true,
	"math":   true,
	"meta":   true,
	"pre":    true,
	"rp":     true,
	"rt":     true,
	"rtc":    true,
	"script": true,
	"style":  true,
	"table":  true,
}

var (
	referencesRegex = regexp.MustCompile(`\[\d+\]`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// skippedFooterPrefix marks a generated attribution footer that carries no
// article content.
const skippedFooterPrefix = "This article is issued from Wikipedia."

// ExtractParagraphs tokenizes an HTML document and returns its body text as
// a sequence of cleaned paragraphs: reference markers and footers removed,
// runs of whitespace collapsed, empty paragraphs dropped.
func ExtractParagraphs(r io.Reader) ([]string, error) {
	z := html.NewTokenizer(r)

	var paragraphs []string
	var buf strings.Builder
	var dropDepth int
	var dropTag string

	flush := func() {
		text := buf.String()
		buf.Reset()
		text = referencesRegex.ReplaceAllString(text, " ")
		text = whitespaceRegex.ReplaceAllString(text, " ")
		text = strings.TrimSpace(text)
		if text == "" || strings.HasPrefix(text, skippedFooterPrefix) {
			return
		}
		paragraphs = append(paragraphs, text)
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			flush()
			if err := z.Err(); err != io.EOF {
				return paragraphs, err
			}
			return paragraphs, nil

		case html.TextToken:
			if dropDepth == 0 {
				buf.Write(z.Text())
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)

			if dropDepth > 0 {
				if tag == dropTag && tt == html.StartTagToken {
					dropDepth++
				}
				continue
			}
			if droppedTags[tag] {
				// img, hr and meta are void elements: they never get an end
				// tag, so there is no subtree to drop after them.
				if tt == html.StartTagToken && tag != "img" && tag != "hr" && tag != "meta" {
					dropDepth = 1
					dropTag = tag
				}
				continue
			}
			if tag == "br" {
				buf.WriteByte('\n')
				continue
			}
			if structuralTags[tag] {
				flush()
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)

			if dropDepth > 0 {
				if tag == dropTag {
					dropDepth--
				}
				continue
			}
			if structuralTags[tag] {
				flush()
			}
		}
	}
}

// ExtractParagraphsBytes is a convenience wrapper around ExtractParagraphs
// for callers holding a record's content as a byte slice rather than a
// reader, which is the common case when reading blobs from an archive.
func ExtractParagraphsBytes(content []byte) ([]string, error) {
	return ExtractParagraphs(bytes.NewReader(content))
}
