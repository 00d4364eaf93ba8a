package assets

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/accounting/posting"
)

// Poster takes a depreciation run to the ledger.
type Poster interface {
	PostDepreciationRun(ctx context.Context, run posting.DepreciationRun) error
}

// Service generates monthly straight-line depreciation.
type Service struct {
	repo   RepositoryPort
	poster Poster
	logger *slog.Logger
}

func NewService(repo RepositoryPort, poster Poster, logger *slog.Logger) *Service {
	return &Service{repo: repo, poster: poster, logger: logger}
}

// RunMonthly charges every active asset for the date's period. A per-asset
// failure is counted and logged without aborting the run; an asset already
// charged for the period, or fully depreciated, is skipped. Successful
// charges go to the ledger as one depreciation run.
func (s *Service) RunMonthly(ctx context.Context, date time.Time) (RunResult, error) {
	period := PeriodOf(date)
	result := RunResult{RunID: uuid.New(), Period: period}

	assets, err := s.repo.ListActive(ctx)
	if err != nil {
		return result, err
	}

	var entries []posting.DepreciationEntry
	for _, asset := range assets {
		amount := asset.MonthlyAmount()
		if !amount.IsPositive() || !asset.DepreciableRemaining().IsPositive() {
			result.Skipped++
			continue
		}
		if remaining := asset.DepreciableRemaining(); remaining.LessThan(amount) {
			amount = remaining
		}
		exists, err := s.repo.HasDepreciation(ctx, asset.ID, period)
		if err != nil {
			result.Failed++
			s.logger.Warn("depreciation lookup failed", slog.Int64("asset_id", asset.ID), slog.Any("error", err))
			continue
		}
		if exists {
			result.Skipped++
			continue
		}
		row := Depreciation{AssetID: asset.ID, RunID: result.RunID, Period: period, Amount: amount}
		if err := s.repo.InsertDepreciation(ctx, row); err != nil {
			result.Failed++
			s.logger.Warn("depreciation insert failed", slog.Int64("asset_id", asset.ID), slog.Any("error", err))
			continue
		}
		if err := s.repo.AddAccumulated(ctx, asset.ID, amount); err != nil {
			result.Failed++
			s.logger.Warn("accumulated update failed", slog.Int64("asset_id", asset.ID), slog.Any("error", err))
			continue
		}
		entries = append(entries, posting.DepreciationEntry{AssetID: asset.ID, Amount: amount})
		result.Success++
	}

	if len(entries) > 0 && s.poster != nil {
		run := posting.DepreciationRun{
			ID:      result.RunID,
			Status:  posting.StatusApproved,
			Date:    date,
			Period:  period,
			Entries: entries,
		}
		if err := s.poster.PostDepreciationRun(ctx, run); err != nil {
			return result, err
		}
	}

	s.logger.Info("depreciation run finished",
		slog.String("period", period),
		slog.Int("success", result.Success), slog.Int("failed", result.Failed), slog.Int("skipped", result.Skipped))
	return result, nil
}

// ReverseRun deletes the run's rows and restores accumulated totals.
func (s *Service) ReverseRun(ctx context.Context, runID uuid.UUID) error {
	rows, err := s.repo.DepreciationsForRun(ctx, runID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := s.repo.AddAccumulated(ctx, row.AssetID, row.Amount.Neg()); err != nil {
			return err
		}
	}
	return s.repo.DeleteRun(ctx, runID)
}
