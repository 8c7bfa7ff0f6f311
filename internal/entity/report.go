package entity

import "time"

type OutcomeKind int

const (
	OutcomeDownloaded OutcomeKind = iota
	OutcomeUnchanged
	OutcomeRemoved
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	return [...]string{"downloaded", "unchanged", "removed", "failed"}[k]
}

// Outcome is the terminal classification of processing one entry.
// Every entry produces exactly one Outcome.
type Outcome struct {
	Entry Entry
	Kind  OutcomeKind
	Err   string // Human-readable reason, set only for OutcomeFailed
}

// Failure pairs a failed entry with the reason it failed.
type Failure struct {
	Entry  Entry  `json:"entry"`
	Reason string `json:"reason"`
}

// Report is the four-bucket partition of all outcomes for one completed
// run. Bucket sizes always sum to the manifest length. Produced exactly
// once per run and immutable afterwards.
type Report struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Downloaded []Entry   `json:"downloaded"`
	Unchanged  []Entry   `json:"unchanged"`
	Removed    []Entry   `json:"removed"`
	Failed     []Failure `json:"failed"`
}

// Total returns the number of entries covered by the report.
func (r *Report) Total() int {
	return len(r.Downloaded) + len(r.Unchanged) + len(r.Removed) + len(r.Failed)
}
