package progress

import (
	"sync"
	"sync/atomic"

	"github.com/jgivc/modsync/internal/entity"
)

// eventBufferSize bounds the event channel. When no observer drains it,
// further events are dropped instead of blocking the workers.
const eventBufferSize = 64

// Tracker holds the live progress state of one run. It is shared by all
// workers: counters only ever go up, and a snapshot taken at any moment
// is consistent though possibly momentarily stale. One Tracker is
// created per run and discarded with it.
type Tracker struct {
	total int64

	downloaded atomic.Int64
	unchanged  atomic.Int64
	removed    atomic.Int64
	failed     atomic.Int64

	mu       sync.Mutex
	lastFile string

	events chan entity.Event
}

func NewTracker(total int) *Tracker {
	return &Tracker{
		total:  int64(total),
		events: make(chan entity.Event, eventBufferSize),
	}
}

// Record registers one completed entry: bumps the counter for its
// outcome kind, remembers the filename and emits an event.
func (t *Tracker) Record(o entity.Outcome) {
	switch o.Kind {
	case entity.OutcomeDownloaded:
		t.downloaded.Add(1)
	case entity.OutcomeUnchanged:
		t.unchanged.Add(1)
	case entity.OutcomeRemoved:
		t.removed.Add(1)
	case entity.OutcomeFailed:
		t.failed.Add(1)
	}

	t.mu.Lock()
	t.lastFile = o.Entry.Filename
	t.mu.Unlock()

	t.emit(entity.Event{
		Kind:     o.Kind,
		Filename: o.Entry.Filename,
		Err:      o.Err,
	})
}

// Finish emits the terminal event carrying the full report and closes
// the event stream. Must be called exactly once, after all entries
// have been recorded.
func (t *Tracker) Finish(report *entity.Report) {
	t.emit(entity.Event{Report: report})
	close(t.events)
}

// Stats returns a snapshot of the current counters.
func (t *Tracker) Stats() entity.SyncStats {
	t.mu.Lock()
	lastFile := t.lastFile
	t.mu.Unlock()

	return entity.SyncStats{
		Total:      t.total,
		Downloaded: t.downloaded.Load(),
		Unchanged:  t.unchanged.Load(),
		Removed:    t.removed.Load(),
		Failed:     t.failed.Load(),
		LastFile:   lastFile,
	}
}

// Events exposes the per-entry event stream terminated by one event
// carrying the report. Best-effort: see emit.
func (t *Tracker) Events() <-chan entity.Event {
	return t.events
}

// emit never blocks. If the observer is absent or too slow the event is
// dropped, the run itself is unaffected.
func (t *Tracker) emit(ev entity.Event) {
	select {
	case t.events <- ev:
	default:
	}
}
