package sync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jgivc/modsync/internal/common"
	"github.com/jgivc/modsync/internal/entity"
)

const serviceName = "sync"

// Tracker receives every completed outcome and the final report.
type Tracker interface {
	Record(o entity.Outcome)
	Finish(report *entity.Report)
}

// Engine reconciles a manifest against the mods directory with a
// bounded worker pool. A single entry failure never aborts the run, the
// pool always drains the full entry sequence before the report is
// assembled.
type Engine struct {
	running  atomic.Bool
	resolver resolver
	workers  int
	log      *slog.Logger
}

func NewEngine(store ModStore, fetcher Fetcher, workers int, log *slog.Logger) *Engine {
	return &Engine{
		resolver: resolver{store: store, fetcher: fetcher},
		workers:  workers,
		log:      log.With(slog.String("service", serviceName)),
	}
}

// Run processes every entry with at most e.workers in flight at once
// and returns the four-bucket report. Only two failures are fatal: a
// second concurrent Run and a mods directory that cannot be created.
func (e *Engine) Run(ctx context.Context, entries []entity.Entry, tracker Tracker) (*entity.Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, common.ErrSyncHasAlreadyStarted
	}
	defer e.running.Store(false)

	if err := e.resolver.store.Init(); err != nil {
		return nil, err
	}

	report := &entity.Report{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}

	e.log.Info("Start sync", slog.String("run_id", report.ID),
		slog.Int("entries", len(entries)), slog.Int("workers", e.workers))

	in := make(chan entity.Entry, len(entries))
	out := make(chan entity.Outcome, len(entries))

	for _, entry := range entries {
		in <- entry
	}
	close(in)

	var wg sync.WaitGroup
	wg.Add(e.workers)
	for n := 0; n < e.workers; n++ {
		go e.worker(ctx, n, in, out, tracker, &wg)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	// Outcomes arrive in completion order, which depends on I/O
	// latency, not on manifest order.
	for outcome := range out {
		switch outcome.Kind {
		case entity.OutcomeDownloaded:
			report.Downloaded = append(report.Downloaded, outcome.Entry)
		case entity.OutcomeUnchanged:
			report.Unchanged = append(report.Unchanged, outcome.Entry)
		case entity.OutcomeRemoved:
			report.Removed = append(report.Removed, outcome.Entry)
		case entity.OutcomeFailed:
			report.Failed = append(report.Failed, entity.Failure{
				Entry:  outcome.Entry,
				Reason: outcome.Err,
			})
		}
	}

	report.FinishedAt = time.Now()
	tracker.Finish(report)

	e.log.Info("Sync finished", slog.String("run_id", report.ID),
		slog.Int("downloaded", len(report.Downloaded)),
		slog.Int("unchanged", len(report.Unchanged)),
		slog.Int("removed", len(report.Removed)),
		slog.Int("failed", len(report.Failed)))

	return report, nil
}

func (e *Engine) worker(ctx context.Context, n int, in chan entity.Entry, out chan entity.Outcome, tracker Tracker, wg *sync.WaitGroup) {
	defer wg.Done()

	log := e.log.With(slog.Int("worker_id", n))
	log.Debug("Worker started")

	for entry := range in {
		outcome := e.resolver.resolve(ctx, entry)
		if outcome.Kind == entity.OutcomeFailed {
			log.Error("Cannot process entry",
				slog.String("filename", entry.Filename), slog.String("reason", outcome.Err))
		}

		tracker.Record(outcome)
		out <- outcome
	}

	log.Debug("Worker done")
}
