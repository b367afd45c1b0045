package changelog

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Markers bounding the changelog in each document. Everything after the
// marker is the fragment.
const (
	PageMarker   = `<div class="block-content">`
	ReadmeMarker = "<h3>Changelog</h3>\n"
)

var lineBreak = regexp.MustCompile(`\r\n|\n|\r`)

// Fragment returns the text following marker. A missing marker, or one with
// nothing after it, yields ErrMarkerNotFound.
func Fragment(doc, marker string) (string, error) {
	i := strings.Index(doc, marker)
	if i < 0 || i+len(marker) == len(doc) {
		return "", fmt.Errorf("%w: %q", ErrMarkerNotFound, strings.TrimSpace(marker))
	}
	return doc[i+len(marker):], nil
}

// TopLines splits fragment into lines, strips markup from each and trims
// surrounding whitespace. At most n lines are returned; blank lines count.
func TopLines(fragment string, n int) []string {
	raw := lineBreak.Split(fragment, n+1)
	if len(raw) > n {
		raw = raw[:n]
	}
	lines := make([]string, len(raw))
	for i, line := range raw {
		lines[i] = strings.TrimSpace(stripTags(line))
	}
	return lines
}

// stripTags renders one line of HTML as its text content. Entities are
// decoded, so both documents normalise the same way.
func stripTags(line string) string {
	if !strings.ContainsAny(line, "<&") {
		return line
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(line))
	if err != nil {
		return line
	}
	return doc.Text()
}

// Snapshot extracts and normalises the first n changelog lines of doc.
func Snapshot(doc, marker string, n int) ([]string, error) {
	frag, err := Fragment(doc, marker)
	if err != nil {
		return nil, err
	}
	return TopLines(frag, n), nil
}

// Equal reports whether two snapshots are identical line by line.
func Equal(a, b []string) bool {
	return slices.Equal(a, b)
}
