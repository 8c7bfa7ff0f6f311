package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jgivc/modsync/internal/common"
	"github.com/jgivc/modsync/internal/entity"
	"github.com/jgivc/modsync/internal/service/progress"
	"github.com/jgivc/modsync/internal/storage/mods"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// SHA-256 of the ASCII bytes "hello".
const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// mapFetcher serves canned content per URL.
type mapFetcher struct {
	files map[string][]byte
}

func (f *mapFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	data, ok := f.files[url]
	if !ok {
		return nil, fmt.Errorf("cannot download %s: no such host", url)
	}

	return data, nil
}

// countingFetcher tracks how many fetches are in flight at once.
type countingFetcher struct {
	inflight atomic.Int64
	max      atomic.Int64
}

func (f *countingFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)

	for {
		prev := f.max.Load()
		if cur <= prev || f.max.CompareAndSwap(prev, cur) {
			break
		}
	}

	time.Sleep(2 * time.Millisecond)

	return []byte("content"), nil
}

// gateFetcher blocks every fetch until released.
type gateFetcher struct {
	started chan struct{}
	release chan struct{}
}

func (f *gateFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	select {
	case f.started <- struct{}{}:
	default:
	}
	<-f.release

	return []byte("content"), nil
}

func newTestEngine(t *testing.T, f Fetcher, workers int) (*Engine, *mods.Store, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	store := mods.NewStoreWithFS(fs, "/pack", testLogger())

	return NewEngine(store, f, workers, testLogger()), store, fs
}

func run(t *testing.T, e *Engine, entries []entity.Entry) (*entity.Report, *progress.Tracker) {
	t.Helper()

	tracker := progress.NewTracker(len(entries))
	report, err := e.Run(context.Background(), entries, tracker)
	require.NoError(t, err)

	return report, tracker
}

func TestRunRemoveExisting(t *testing.T) {
	engine, store, _ := newTestEngine(t, &mapFetcher{}, 2)
	require.NoError(t, store.Init())
	require.NoError(t, store.WriteFile("old.jar", []byte("junk")))

	report, _ := run(t, engine, []entity.Entry{{Category: "REMOVE", Filename: "old.jar"}})

	require.Len(t, report.Removed, 1)
	require.Equal(t, 1, report.Total())
	require.False(t, store.Exists("old.jar"))
}

func TestRunRemoveAbsent(t *testing.T) {
	engine, _, _ := newTestEngine(t, &mapFetcher{}, 2)

	report, _ := run(t, engine, []entity.Entry{{Category: "REMOVE", Filename: "old.jar"}})

	require.Len(t, report.Unchanged, 1)
	require.Empty(t, report.Removed)
}

func TestRunDownloadWithDigest(t *testing.T) {
	fetcher := &mapFetcher{files: map[string][]byte{"http://x/a.jar": []byte("hello")}}
	engine, store, fs := newTestEngine(t, fetcher, 2)

	report, _ := run(t, engine, []entity.Entry{
		{Category: "REQUIRED", Filename: "a.jar", URL: "http://x/a.jar", SHA256: helloDigest},
	})

	require.Len(t, report.Downloaded, 1)
	require.Empty(t, report.Failed)

	content, err := afero.ReadFile(fs, "/pack/mods/a.jar")
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
	require.True(t, store.Exists("a.jar"))
}

// The digest compare is case-insensitive in both directions.
func TestRunDownloadDigestUppercase(t *testing.T) {
	fetcher := &mapFetcher{files: map[string][]byte{"http://x/a.jar": []byte("hello")}}
	engine, _, _ := newTestEngine(t, fetcher, 2)

	report, _ := run(t, engine, []entity.Entry{
		{Category: "REQUIRED", Filename: "a.jar", URL: "http://x/a.jar", SHA256: "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824"},
	})

	require.Len(t, report.Downloaded, 1)
	require.Empty(t, report.Failed)
}

// A present file without an expected digest is accepted as is, even if
// its content diverges from the source.
func TestRunExistingNoDigestUnchanged(t *testing.T) {
	engine, store, _ := newTestEngine(t, &mapFetcher{}, 2)
	require.NoError(t, store.Init())
	require.NoError(t, store.WriteFile("a.jar", []byte("anything at all")))

	report, _ := run(t, engine, []entity.Entry{
		{Category: "REQUIRED", Filename: "a.jar", URL: "http://x/a.jar"},
	})

	require.Len(t, report.Unchanged, 1)
	require.Empty(t, report.Downloaded)
}

// A divergent file with an expected digest fails and is left untouched,
// never re-downloaded.
func TestRunExistingDigestMismatch(t *testing.T) {
	fetcher := &mapFetcher{files: map[string][]byte{"http://x/a.jar": []byte("hello")}}
	engine, store, fs := newTestEngine(t, fetcher, 2)
	require.NoError(t, store.Init())
	require.NoError(t, store.WriteFile("a.jar", []byte("corrupted")))

	report, _ := run(t, engine, []entity.Entry{
		{Category: "REQUIRED", Filename: "a.jar", URL: "http://x/a.jar", SHA256: helloDigest},
	})

	require.Len(t, report.Failed, 1)
	require.Contains(t, report.Failed[0].Reason, "sha256 mismatch")
	require.Contains(t, report.Failed[0].Reason, helloDigest)

	content, err := afero.ReadFile(fs, "/pack/mods/a.jar")
	require.NoError(t, err)
	require.Equal(t, "corrupted", string(content))
}

func TestRunFetchFailure(t *testing.T) {
	engine, _, _ := newTestEngine(t, &mapFetcher{}, 2)

	report, _ := run(t, engine, []entity.Entry{
		{Category: "REQUIRED", Filename: "a.jar", URL: "http://x/a.jar"},
	})

	require.Len(t, report.Failed, 1)
	require.Contains(t, report.Failed[0].Reason, "cannot download")
}

// A post-download digest mismatch fails the entry but the fetched file
// stays on disk, there is no rollback.
func TestRunPostDownloadMismatch(t *testing.T) {
	fetcher := &mapFetcher{files: map[string][]byte{"http://x/a.jar": []byte("tampered")}}
	engine, store, _ := newTestEngine(t, fetcher, 2)

	report, _ := run(t, engine, []entity.Entry{
		{Category: "REQUIRED", Filename: "a.jar", URL: "http://x/a.jar", SHA256: helloDigest},
	})

	require.Len(t, report.Failed, 1)
	require.Contains(t, report.Failed[0].Reason, "sha256 mismatch")
	require.True(t, store.Exists("a.jar"))
}

// Free-form categories behave exactly like REQUIRED.
func TestRunOtherCategory(t *testing.T) {
	fetcher := &mapFetcher{files: map[string][]byte{"http://x/s.jar": []byte("shader")}}
	engine, _, _ := newTestEngine(t, fetcher, 2)

	report, _ := run(t, engine, []entity.Entry{
		{Category: "Shaders", Filename: "s.jar", URL: "http://x/s.jar"},
	})

	require.Len(t, report.Downloaded, 1)
}

// The four outcome buckets partition the manifest and the tracker
// counters agree with the report.
func TestRunPartition(t *testing.T) {
	fetcher := &mapFetcher{files: map[string][]byte{
		"http://x/a.jar": []byte("hello"),
		"http://x/b.jar": []byte("other"),
	}}
	engine, store, _ := newTestEngine(t, fetcher, 4)
	require.NoError(t, store.Init())
	require.NoError(t, store.WriteFile("present.jar", []byte("whatever")))
	require.NoError(t, store.WriteFile("gone.jar", []byte("junk")))

	entries := []entity.Entry{
		{Category: "REQUIRED", Filename: "a.jar", URL: "http://x/a.jar", SHA256: helloDigest},
		{Category: "REQUIRED", Filename: "b.jar", URL: "http://x/b.jar"},
		{Category: "REQUIRED", Filename: "present.jar", URL: "http://x/present.jar"},
		{Category: "REMOVE", Filename: "gone.jar"},
		{Category: "REMOVE", Filename: "never-there.jar"},
		{Category: "REQUIRED", Filename: "missing.jar", URL: "http://x/missing.jar"},
	}

	report, tracker := run(t, engine, entries)

	require.Equal(t, len(entries), report.Total())
	require.Len(t, report.Downloaded, 2)
	require.Len(t, report.Unchanged, 2)
	require.Len(t, report.Removed, 1)
	require.Len(t, report.Failed, 1)

	stats := tracker.Stats()
	require.Equal(t, int64(len(entries)), stats.Processed())
	require.Equal(t, int64(2), stats.Downloaded)
	require.Equal(t, int64(2), stats.Unchanged)
	require.Equal(t, int64(1), stats.Removed)
	require.Equal(t, int64(1), stats.Failed)
}

func TestRunEmptyManifest(t *testing.T) {
	engine, _, _ := newTestEngine(t, &mapFetcher{}, 2)

	report, tracker := run(t, engine, nil)

	require.Equal(t, 0, report.Total())
	require.Equal(t, int64(0), tracker.Stats().Processed())
}

// With 50 entries and 8 workers the observed number of concurrent
// fetches must never exceed 8.
func TestRunConcurrencyBound(t *testing.T) {
	fetcher := &countingFetcher{}
	engine, _, _ := newTestEngine(t, fetcher, 8)

	entries := make([]entity.Entry, 0, 50)
	for i := 0; i < 50; i++ {
		entries = append(entries, entity.Entry{
			Category: "REQUIRED",
			Filename: fmt.Sprintf("mod-%d.jar", i),
			URL:      fmt.Sprintf("http://x/mod-%d.jar", i),
		})
	}

	report, _ := run(t, engine, entries)

	require.Equal(t, 50, report.Total())
	require.Len(t, report.Downloaded, 50)
	require.LessOrEqual(t, fetcher.max.Load(), int64(8))
	require.Greater(t, fetcher.max.Load(), int64(1))
}

func TestRunAlreadyRunning(t *testing.T) {
	fetcher := &gateFetcher{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	engine, _, _ := newTestEngine(t, fetcher, 2)

	entries := []entity.Entry{{Category: "REQUIRED", Filename: "a.jar", URL: "http://x/a.jar"}}

	firstDone := make(chan error, 1)
	go func() {
		_, err := engine.Run(context.Background(), entries, progress.NewTracker(len(entries)))
		firstDone <- err
	}()

	<-fetcher.started

	_, err := engine.Run(context.Background(), entries, progress.NewTracker(len(entries)))
	require.ErrorIs(t, err, common.ErrSyncHasAlreadyStarted)

	close(fetcher.release)
	require.NoError(t, <-firstDone)
}
