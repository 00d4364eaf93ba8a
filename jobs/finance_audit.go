package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/ap"
	"github.com/meridian-erp/meridian-erp/internal/ar"
	"github.com/meridian-erp/meridian-erp/internal/observability"
)

// ARAuditJob compares cached receivable paid amounts against the recomputed
// allocation sums. Report-only.
type ARAuditJob struct {
	Service *ar.Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

func NewARAuditJob(service *ar.Service, logger *slog.Logger, metrics *observability.Metrics) *ARAuditJob {
	return &ARAuditJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the receivable audit.
func (j *ARAuditJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("ar audit: handler not configured")
	}
	start := time.Now()
	logger := j.logger()
	logger.Info("starting ar audit")

	drift, err := j.Service.Audit(ctx)
	if err != nil {
		logger.Error("ar audit failed", slog.Any("error", err))
		return err
	}
	for _, row := range drift {
		logger.Warn("receivable drift",
			slog.String("invoice_id", row.InvoiceID.String()),
			slog.String("cached", row.Cached.String()),
			slog.String("computed", row.Computed.String()),
		)
	}
	j.Metrics.SetAuditDrift("ar", len(drift))

	logger.Info("completed ar audit",
		slog.Int("drifted", len(drift)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *ARAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskARAudit))
	}
	return slog.Default().With(slog.String("job", TaskARAudit))
}

// APAuditJob is the payable counterpart of ARAuditJob.
type APAuditJob struct {
	Service *ap.Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

func NewAPAuditJob(service *ap.Service, logger *slog.Logger, metrics *observability.Metrics) *APAuditJob {
	return &APAuditJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the payable audit.
func (j *APAuditJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("ap audit: handler not configured")
	}
	start := time.Now()
	logger := j.logger()
	logger.Info("starting ap audit")

	drift, err := j.Service.Audit(ctx)
	if err != nil {
		logger.Error("ap audit failed", slog.Any("error", err))
		return err
	}
	for _, row := range drift {
		logger.Warn("payable drift",
			slog.String("invoice_id", row.InvoiceID.String()),
			slog.String("cached", row.Cached.String()),
			slog.String("computed", row.Computed.String()),
		)
	}
	j.Metrics.SetAuditDrift("ap", len(drift))

	logger.Info("completed ap audit",
		slog.Int("drifted", len(drift)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *APAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAPAudit))
	}
	return slog.Default().With(slog.String("job", TaskAPAudit))
}
