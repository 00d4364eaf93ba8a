package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
)

// ErrNegativeStock indicates an outbound movement would push the cache below
// zero while negative stock is disallowed.
var ErrNegativeStock = fmt.Errorf("inventory: movement would drive stock negative")

// Service records movements and keeps the stock cache consistent with them.
type Service struct {
	repo          RepositoryPort
	logger        *slog.Logger
	allowNegative bool
}

// RepositoryPort is the repository surface the service needs.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListStocks(ctx context.Context, filter AuditFilter) ([]InventoryStock, error)
	ComputedQuantities(ctx context.Context, filter AuditFilter) (map[StockKey]float64, error)
}

func NewService(repo RepositoryPort, logger *slog.Logger, allowNegative bool) *Service {
	return &Service{repo: repo, logger: logger, allowNegative: allowNegative}
}

// Record inserts the movements and applies them to the stock cache in one
// transaction.
func (s *Service) Record(ctx context.Context, movements ...StockMovement) error {
	for _, m := range movements {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, m := range movements {
			if err := tx.InsertMovement(ctx, m); err != nil {
				return err
			}
			if err := s.applyDelta(ctx, tx, m.Key(), m.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReverseBySource soft-deletes the source's movements and backs their
// quantities out of the cache.
func (s *Service) ReverseBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movements, err := tx.SoftDeleteMovements(ctx, sourceType, sourceID)
		if err != nil {
			return err
		}
		for _, m := range movements {
			if err := s.applyDelta(ctx, tx, m.Key(), -m.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

// RestoreBySource re-applies previously reversed movements.
func (s *Service) RestoreBySource(ctx context.Context, sourceType string, sourceID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movements, err := tx.RestoreMovements(ctx, sourceType, sourceID)
		if err != nil {
			return err
		}
		for _, m := range movements {
			if err := s.applyDelta(ctx, tx, m.Key(), m.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) applyDelta(ctx context.Context, tx TxRepository, key StockKey, delta float64) error {
	stock, err := tx.GetStockForUpdate(ctx, key)
	if err != nil {
		return err
	}
	next := stock.QtyAvailable + delta
	if next < -AuditEpsilon && !s.allowNegative {
		return fmt.Errorf("%w: %s would reach %.3f", ErrNegativeStock, key, next)
	}
	stock.QtyAvailable = next
	return tx.SaveStock(ctx, stock)
}

// Audit compares every cached quantity against the recomputed movement sum.
// Report-only: rows outside the epsilon come back flagged, nothing is
// rewritten.
func (s *Service) Audit(ctx context.Context, filter AuditFilter) ([]AuditRow, error) {
	stocks, err := s.repo.ListStocks(ctx, filter)
	if err != nil {
		return nil, err
	}
	computed, err := s.repo.ComputedQuantities(ctx, filter)
	if err != nil {
		return nil, err
	}
	var rows []AuditRow
	seen := map[StockKey]bool{}
	for _, stock := range stocks {
		key := stock.Key()
		seen[key] = true
		sum := computed[key]
		delta := stock.QtyAvailable - sum
		rows = append(rows, AuditRow{
			Key:      key,
			Cached:   stock.QtyAvailable,
			Computed: sum,
			Delta:    delta,
			OK:       math.Abs(delta) <= AuditEpsilon,
		})
	}
	// Movements without a cache row are drift too.
	for key, sum := range computed {
		if seen[key] || sum == 0 {
			continue
		}
		rows = append(rows, AuditRow{Key: key, Cached: 0, Computed: sum, Delta: -sum, OK: false})
	}
	return rows, nil
}

// Fix rewrites drifted cache rows from the recomputed sums, logging every
// change it makes.
func (s *Service) Fix(ctx context.Context, filter AuditFilter) (int, error) {
	rows, err := s.Audit(ctx, filter)
	if err != nil {
		return 0, err
	}
	fixed := 0
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, row := range rows {
			if row.OK {
				continue
			}
			stock, err := tx.GetStockForUpdate(ctx, row.Key)
			if err != nil {
				return err
			}
			s.logger.Info("inventory cache corrected",
				slog.String("key", row.Key.String()),
				slog.Float64("cached", row.Cached),
				slog.Float64("computed", row.Computed))
			stock.QtyAvailable = row.Computed
			if err := tx.SaveStock(ctx, stock); err != nil {
				return err
			}
			fixed++
		}
		return nil
	})
	if err != nil {
		return fixed, err
	}
	return fixed, nil
}

// Stocks lists cached stock rows.
func (s *Service) Stocks(ctx context.Context, filter AuditFilter) ([]InventoryStock, error) {
	return s.repo.ListStocks(ctx, filter)
}
