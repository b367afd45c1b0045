package changelog

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"wpguard/internal/domain/mail"
)

// Subject returns the alert subject for slug.
func Subject(slug string) string {
	return fmt.Sprintf("[%s] Changelog mismatch", slug)
}

// BuildAlert composes the mismatch mail: the first line of each source, the
// changelog page URL and a line diff of the compared snapshots.
func BuildAlert(to, slug, pageURL string, readme, page []string) mail.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "SVN first line: %q\n", FirstLine(readme))
	fmt.Fprintf(&body, "Changelog page first line: %q\n", FirstLine(page))
	body.WriteString(pageURL)
	body.WriteString("\n")

	if d := LineDiff(readme, page); d != "" {
		body.WriteString("\n")
		body.WriteString(d)
	}

	return mail.Message{
		To:      to,
		Subject: Subject(slug),
		Body:    body.String(),
	}
}

// LineDiff renders a line-level diff from the readme snapshot to the page
// snapshot. Unchanged lines are prefixed with a space.
func LineDiff(readme, page []string) string {
	if Equal(readme, page) {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(joinLines(readme), joinLines(page))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	out.WriteString("--- readme.txt (trunk)\n")
	out.WriteString("+++ changelog page\n")
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix)
			out.WriteString(line)
		}
	}
	return out.String()
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
