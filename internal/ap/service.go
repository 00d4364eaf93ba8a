package ap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Service maintains payable aggregates.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Apply records a payment allocation against the invoice.
func (s *Service) Apply(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("ap: allocation amount must be positive")
	}
	p, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		return err
	}
	p.Paid = p.Paid.Add(amount)
	p.Recompute()
	return s.repo.Save(ctx, *p)
}

// Reverse undoes a previously applied allocation. Paid never drops below zero.
func (s *Service) Reverse(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("ap: allocation amount must be positive")
	}
	p, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		return err
	}
	p.Paid = p.Paid.Sub(amount)
	if p.Paid.IsNegative() {
		p.Paid = decimal.Zero
	}
	p.Recompute()
	return s.repo.Save(ctx, *p)
}

// Sync rebuilds payable rows from invoice totals and payment allocations.
// Missing rows are created; existing rows are rewritten only with force.
func (s *Service) Sync(ctx context.Context, force bool) (SyncResult, error) {
	totals, err := s.repo.InvoiceTotals(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	var result SyncResult
	for _, row := range totals {
		existing, err := s.repo.Get(ctx, row.InvoiceID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			p := Payable{
				InvoiceID:      row.InvoiceID,
				CounterpartyID: row.CounterpartyID,
				Total:          row.Total,
				Paid:           row.Allocated,
				DueAt:          row.DueAt,
			}
			p.Recompute()
			if err := s.repo.Save(ctx, p); err != nil {
				return result, fmt.Errorf("ap: sync create %s: %w", row.InvoiceID, err)
			}
			result.Created++
		case err != nil:
			return result, err
		case !force:
			result.Skipped++
		default:
			existing.CounterpartyID = row.CounterpartyID
			existing.Total = row.Total
			existing.Paid = row.Allocated
			existing.DueAt = row.DueAt
			existing.Recompute()
			if err := s.repo.Save(ctx, *existing); err != nil {
				return result, fmt.Errorf("ap: sync update %s: %w", row.InvoiceID, err)
			}
			result.Updated++
		}
	}
	s.logger.Info("ap sync finished",
		slog.Int("created", result.Created), slog.Int("updated", result.Updated), slog.Int("skipped", result.Skipped), slog.Bool("force", force))
	return result, nil
}

// Audit compares cached paid amounts against recomputed allocation sums.
// Report-only.
func (s *Service) Audit(ctx context.Context) ([]DriftRow, error) {
	totals, err := s.repo.InvoiceTotals(ctx)
	if err != nil {
		return nil, err
	}
	var drift []DriftRow
	for _, row := range totals {
		p, err := s.repo.Get(ctx, row.InvoiceID)
		if errors.Is(err, shared.ErrNotFound) {
			drift = append(drift, DriftRow{InvoiceID: row.InvoiceID, Cached: decimal.Zero, Computed: row.Allocated, Delta: row.Allocated.Neg()})
			continue
		}
		if err != nil {
			return nil, err
		}
		if !p.Paid.Equal(row.Allocated) {
			drift = append(drift, DriftRow{
				InvoiceID: row.InvoiceID,
				Cached:    p.Paid,
				Computed:  row.Allocated,
				Delta:     p.Paid.Sub(row.Allocated),
			})
		}
	}
	return drift, nil
}

// DueWithin lists outstanding payables falling due inside the window.
func (s *Service) DueWithin(ctx context.Context, days int) ([]Payable, error) {
	if days < 0 {
		days = 0
	}
	cutoff := time.Now().AddDate(0, 0, days)
	return s.repo.ListDueBefore(ctx, cutoff)
}
