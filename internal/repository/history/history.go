package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jgivc/modsync/internal/common"
	"github.com/jgivc/modsync/internal/entity"
	"github.com/redis/go-redis/v9"
)

const (
	KeyReport = "report" // STRING. report:<run_id> -> report JSON
	KeyRuns   = "runs"   // LIST. Run ids, newest first
	KeyStats  = "stats"  // HASH. Outcome kind -> total across all runs

	KeySeparator = ":"

	// keepRuns bounds the run list; report bodies additionally expire
	// on their own so trimmed-out runs do not leak keys.
	keepRuns                = 100
	defaultReportExpiration = 30 * 24 * time.Hour
)

// reportRepository persists run reports to Redis so the transaction-log
// browser can show past runs. Reconciliation itself never depends on
// this repository.
type reportRepository struct {
	cl  *redis.Client
	log *slog.Logger
}

func NewReportRepository(cl *redis.Client, log *slog.Logger) *reportRepository {
	return &reportRepository{
		cl:  cl,
		log: log.With(slog.String("item", "ReportRepository")),
	}
}

// Save stores the report body, pushes its run id onto the run list and
// bumps the aggregate per-outcome totals.
func (r *reportRepository) Save(ctx context.Context, report *entity.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("cannot marshal report: %w", err)
	}

	pipe := r.cl.Pipeline()
	pipe.Set(ctx, getKey(KeyReport, report.ID), data, defaultReportExpiration)
	pipe.LPush(ctx, KeyRuns, report.ID)
	pipe.LTrim(ctx, KeyRuns, 0, keepRuns-1)
	pipe.HIncrBy(ctx, KeyStats, entity.OutcomeDownloaded.String(), int64(len(report.Downloaded)))
	pipe.HIncrBy(ctx, KeyStats, entity.OutcomeUnchanged.String(), int64(len(report.Unchanged)))
	pipe.HIncrBy(ctx, KeyStats, entity.OutcomeRemoved.String(), int64(len(report.Removed)))
	pipe.HIncrBy(ctx, KeyStats, entity.OutcomeFailed.String(), int64(len(report.Failed)))

	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("Cannot save report", slog.String("run_id", report.ID), slog.Any("error", err))

		return fmt.Errorf("cannot save report: %w", err)
	}

	r.log.Info("Report saved", slog.String("run_id", report.ID))

	return nil
}

// Last returns the most recent run report.
func (r *reportRepository) Last(ctx context.Context) (*entity.Report, error) {
	id, err := r.cl.LIndex(ctx, KeyRuns, 0).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrNoReportsFoundError
		}

		return nil, fmt.Errorf("cannot get last run id: %w", err)
	}

	data, err := r.cl.Get(ctx, getKey(KeyReport, id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrNoReportsFoundError
		}

		return nil, fmt.Errorf("cannot get report %s: %w", id, err)
	}

	var report entity.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("cannot unmarshal report %s: %w", id, err)
	}

	return &report, nil
}

// Stats returns the aggregate per-outcome totals across stored runs.
func (r *reportRepository) Stats(ctx context.Context) (map[string]int64, error) {
	fields, err := r.cl.HGetAll(ctx, KeyStats).Result()
	if err != nil {
		return nil, fmt.Errorf("cannot get stats: %w", err)
	}

	stats := make(map[string]int64, len(fields))
	for kind, val := range fields {
		count, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			r.log.Error("Cannot convert counter", slog.String("kind", kind), slog.Any("error", err))

			continue
		}

		stats[kind] = count
	}

	return stats, nil
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
