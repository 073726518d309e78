package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hanbit-erp/hanbit-erp/internal/backfill"
	"github.com/hanbit-erp/hanbit-erp/internal/voucher"
)

// BackfillRunner is the scanner surface the job drives.
type BackfillRunner interface {
	Run(ctx context.Context, in backfill.Input) (backfill.Result, error)
}

// BackfillDefaults fill payload fields the enqueuer left empty. The nightly
// cron enqueues a dateless payload, so the trailing window is computed when
// the task runs, not when the worker booted.
type BackfillDefaults struct {
	BusinessUnit string
	PreparedBy   string
	WindowDays   int
}

// BackfillJob processes TaskVoucherBackfill tasks.
type BackfillJob struct {
	runner   BackfillRunner
	logger   *slog.Logger
	defaults BackfillDefaults
	now      func() time.Time
}

// NewBackfillJob constructs the job handler.
func NewBackfillJob(runner BackfillRunner, logger *slog.Logger, defaults BackfillDefaults) *BackfillJob {
	return &BackfillJob{runner: runner, logger: logger, defaults: defaults, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (j *BackfillJob) WithNow(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// Handle runs one backfill over the payload's range. Per-document failures
// are already absorbed by the scanner; the task itself only retries when the
// source documents could not be enumerated at all.
func (j *BackfillJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload VoucherBackfillPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("backfill payload malformed", slog.Any("error", err))
		return asynq.SkipRetry
	}
	in := j.resolve(payload)

	result, err := j.runner.Run(ctx, in)
	if err != nil {
		return err
	}

	j.logger.Info("backfill task finished",
		slog.String("business_unit", in.BusinessUnit),
		slog.Int("posted", result.Posted),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)
	return nil
}

func (j *BackfillJob) resolve(payload VoucherBackfillPayload) backfill.Input {
	in := backfill.Input{
		BusinessUnit: payload.BusinessUnit,
		StartDate:    payload.StartDate,
		EndDate:      payload.EndDate,
		PreparedBy:   payload.PreparedBy,
		Policy:       voucher.TaxPolicy(payload.TaxPolicy),
	}
	if in.BusinessUnit == "" {
		in.BusinessUnit = j.defaults.BusinessUnit
	}
	if in.PreparedBy == "" {
		in.PreparedBy = j.defaults.PreparedBy
	}
	if in.StartDate == "" && in.EndDate == "" {
		end := j.now()
		in.EndDate = end.Format("20060102")
		in.StartDate = end.AddDate(0, 0, -j.defaults.WindowDays).Format("20060102")
	}
	return in
}
