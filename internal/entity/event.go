package entity

// Event notifies an observer about one completed entry, or carries the
// full report once the run finishes. Events arrive in completion order,
// not manifest order, and delivery is best-effort: a slow or absent
// observer never blocks the run.
type Event struct {
	Kind     OutcomeKind
	Filename string
	Err      string  // Set only for failed entries
	Report   *Report // Set only on the terminal event
}

// Terminal reports whether this is the final event of a run.
func (e *Event) Terminal() bool {
	return e.Report != nil
}

// SyncStats is a point-in-time snapshot of the progress counters,
// readable by observers at any moment during or after a run.
type SyncStats struct {
	Total      int64
	Downloaded int64
	Unchanged  int64
	Removed    int64
	Failed     int64
	LastFile   string
}

// Processed returns the number of entries finished so far.
func (s SyncStats) Processed() int64 {
	return s.Downloaded + s.Unchanged + s.Removed + s.Failed
}
