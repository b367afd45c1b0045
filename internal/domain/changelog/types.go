package changelog

import (
	"errors"
	"time"
)

// Status is the outcome of one plugin check.
type Status string

const (
	StatusMatch    Status = "match"
	StatusMismatch Status = "mismatch"
	StatusFailed   Status = "failed"
)

// Failure classifies why a check could not compare the two documents.
type Failure string

const (
	FailureNone           Failure = ""
	FailureNetwork        Failure = "network"
	FailureTimeout        Failure = "timeout"
	FailureMarkerNotFound Failure = "marker_not_found"
)

var (
	// ErrMarkerNotFound means a fetched document lacks the expected anchor,
	// usually because the page layout changed.
	ErrMarkerNotFound = errors.New("changelog marker not found")
	// ErrUnexpectedStatus wraps non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected http status")
	// ErrEmptyIdentifier rejects watch toggles that sanitise to nothing.
	ErrEmptyIdentifier = errors.New("empty plugin identifier")
)

// Result is the outcome of checking one plugin.
type Result struct {
	Slug        string        `json:"slug"`
	Status      Status        `json:"status"`
	Failure     Failure       `json:"failure,omitempty"`
	Error       string        `json:"error,omitempty"`
	PageURL     string        `json:"page_url"`
	PageLines   []string      `json:"page_lines,omitempty"`
	ReadmeLines []string      `json:"readme_lines,omitempty"`
	Alerted     bool          `json:"alerted"`
	AlertError  string        `json:"alert_error,omitempty"`
	CheckedAt   time.Time     `json:"checked_at"`
	Duration    time.Duration `json:"duration"`
}

// FirstLine returns lines[0], or "" for an empty snapshot.
func FirstLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

// Report summarises one check pass.
type Report struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
	Matched    int       `json:"matched"`
	Mismatched int       `json:"mismatched"`
	Failed     int       `json:"failed"`
}

func (r *Report) tally() {
	r.Matched, r.Mismatched, r.Failed = 0, 0, 0
	for _, res := range r.Results {
		switch res.Status {
		case StatusMatch:
			r.Matched++
		case StatusMismatch:
			r.Mismatched++
		case StatusFailed:
			r.Failed++
		}
	}
}
