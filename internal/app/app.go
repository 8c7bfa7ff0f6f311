package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/modsync/internal/adapter/fetcher"
	"github.com/jgivc/modsync/internal/adapter/manifest"
	"github.com/jgivc/modsync/internal/config"
	"github.com/jgivc/modsync/internal/entity"
	"github.com/jgivc/modsync/internal/repository/history"
	"github.com/jgivc/modsync/internal/service/progress"
	syncsrv "github.com/jgivc/modsync/internal/service/sync"
	"github.com/jgivc/modsync/internal/storage/mods"
	"github.com/redis/go-redis/v9"
)

const saveTimeout = 5 * time.Second

// Overrides carries command line values that take precedence over the
// configuration file.
type Overrides struct {
	ManifestFile string
	ManifestURL  string
	TargetDir    string
}

type App struct {
	cfgPath string
	ov      Overrides
	cfg     *config.Config
	log     *slog.Logger
}

func New(cfgPath string, ov Overrides) *App {
	return &App{
		cfgPath: cfgPath,
		ov:      ov,
	}
}

// Run performs one full reconciliation: load manifest, sync, print the
// outcome stream and summary, optionally persist the report. The error
// return covers only the fatal cases, per-entry failures end up in the
// report and keep the exit status zero.
func (a *App) Run(ctx context.Context) error {
	a.cfg = config.MustLoad(a.cfgPath)
	a.applyOverrides()

	log := newLogger(a.cfg.LogLevel)
	a.log = log

	loader := manifest.NewLoader(log)
	entries, err := loader.Load(ctx, a.cfg.Manifest.File, a.cfg.Manifest.URL)
	if err != nil {
		return fmt.Errorf("cannot load manifest: %w", err)
	}

	store := mods.NewStore(a.cfg.Sync.TargetDir, log)
	engine := syncsrv.NewEngine(store, fetcher.New(http.DefaultClient), a.cfg.Sync.Workers, log)
	tracker := progress.NewTracker(len(entries))

	fmt.Printf("Mods directory: %s\n", store.Dir())
	fmt.Printf("Loaded %d entries from manifest\n", len(entries))

	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(tracker.Events())
	}()

	report, err := engine.Run(ctx, entries, tracker)
	if err != nil {
		return err
	}
	<-done

	printSummary(report)

	if a.cfg.RedisURL != "" {
		a.saveReport(report)
	}

	return nil
}

func (a *App) applyOverrides() {
	if a.ov.ManifestFile != "" {
		a.cfg.Manifest.File = a.ov.ManifestFile
		a.cfg.Manifest.URL = ""
	}
	if a.ov.ManifestURL != "" {
		a.cfg.Manifest.URL = a.ov.ManifestURL
		a.cfg.Manifest.File = ""
	}
	if a.ov.TargetDir != "" {
		a.cfg.Sync.TargetDir = a.ov.TargetDir
	}
}

// saveReport is best-effort: history storage must never fail the run.
func (a *App) saveReport(report *entity.Report) {
	opt, err := redis.ParseURL(a.cfg.RedisURL)
	if err != nil {
		a.log.Error("Cannot parse redis url", slog.Any("error", err))

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	rdb := redis.NewClient(opt)
	defer rdb.Close()

	repo := history.NewReportRepository(rdb, a.log)
	if err := repo.Save(ctx, report); err != nil {
		a.log.Error("Cannot save report", slog.Any("error", err))
	}
}

func printEvents(events <-chan entity.Event) {
	symbols := map[entity.OutcomeKind]string{
		entity.OutcomeDownloaded: "+",
		entity.OutcomeUnchanged:  "~",
		entity.OutcomeRemoved:    "-",
		entity.OutcomeFailed:     "!",
	}

	for ev := range events {
		if ev.Terminal() {
			continue
		}

		if ev.Kind == entity.OutcomeFailed {
			fmt.Printf("[%s] %s: %s\n", symbols[ev.Kind], ev.Filename, ev.Err)

			continue
		}

		fmt.Printf("[%s] %s\n", symbols[ev.Kind], ev.Filename)
	}
}

func printSummary(report *entity.Report) {
	fmt.Printf("\nDownloaded: %d, unchanged: %d, removed: %d, failed: %d (total %d)\n",
		len(report.Downloaded), len(report.Unchanged), len(report.Removed),
		len(report.Failed), report.Total())

	for _, f := range report.Failed {
		fmt.Printf("  failed %s: %s\n", f.Entry.Filename, f.Reason)
	}
}

func newLogger(level string) *slog.Logger {
	lo := &slog.HandlerOptions{}
	switch level {
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	default:
		panic("unknown log level")
	}

	return slog.New(slog.NewTextHandler(os.Stderr, lo))
}
