package ar

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

// Service maintains receivable aggregates.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Apply records a receipt allocation against the invoice.
func (s *Service) Apply(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("ar: allocation amount must be positive")
	}
	rec, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		return err
	}
	rec.Paid = rec.Paid.Add(amount)
	rec.Recompute()
	return s.repo.Save(ctx, *rec)
}

// Reverse undoes a previously applied allocation. Paid never drops below zero.
func (s *Service) Reverse(ctx context.Context, invoiceID uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.New("ar: allocation amount must be positive")
	}
	rec, err := s.repo.Get(ctx, invoiceID)
	if err != nil {
		return err
	}
	rec.Paid = rec.Paid.Sub(amount)
	if rec.Paid.IsNegative() {
		rec.Paid = decimal.Zero
	}
	rec.Recompute()
	return s.repo.Save(ctx, *rec)
}

// Sync rebuilds receivable rows from invoice totals and receipt allocations.
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
			rec := Receivable{
				InvoiceID:      row.InvoiceID,
				CounterpartyID: row.CounterpartyID,
				Total:          row.Total,
				Paid:           row.Allocated,
				DueAt:          row.DueAt,
			}
			rec.Recompute()
			if err := s.repo.Save(ctx, rec); err != nil {
				return result, fmt.Errorf("ar: sync create %s: %w", row.InvoiceID, err)
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
				return result, fmt.Errorf("ar: sync update %s: %w", row.InvoiceID, err)
			}
			result.Updated++
		}
	}
	s.logger.Info("ar sync finished",
		slog.Int("created", result.Created), slog.Int("updated", result.Updated), slog.Int("skipped", result.Skipped), slog.Bool("force", force))
	return result, nil
}

// Audit compares cached paid amounts against recomputed allocation sums.
// Report-only: drift is returned, never corrected here.
func (s *Service) Audit(ctx context.Context) ([]DriftRow, error) {
	totals, err := s.repo.InvoiceTotals(ctx)
	if err != nil {
		return nil, err
	}
	var drift []DriftRow
	for _, row := range totals {
		rec, err := s.repo.Get(ctx, row.InvoiceID)
		if errors.Is(err, shared.ErrNotFound) {
			drift = append(drift, DriftRow{InvoiceID: row.InvoiceID, Cached: decimal.Zero, Computed: row.Allocated, Delta: row.Allocated.Neg()})
			continue
		}
		if err != nil {
			return nil, err
		}
		if !rec.Paid.Equal(row.Allocated) {
			drift = append(drift, DriftRow{
				InvoiceID: row.InvoiceID,
				Cached:    rec.Paid,
				Computed:  row.Allocated,
				Delta:     rec.Paid.Sub(row.Allocated),
			})
		}
	}
	return drift, nil
}

// Aging groups outstanding receivables by days overdue.
func (s *Service) Aging(ctx context.Context, asOf time.Time) (AgingBucket, error) {
	outstanding, err := s.repo.ListOutstanding(ctx)
	if err != nil {
		return AgingBucket{}, err
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}
	bucket := AgingBucket{
		Current:   decimal.Zero,
		Bucket30:  decimal.Zero,
		Bucket60:  decimal.Zero,
		Bucket90:  decimal.Zero,
		Bucket120: decimal.Zero,
	}
	for _, rec := range outstanding {
		days := int(asOf.Sub(rec.DueAt).Hours() / 24)
		switch {
		case days <= 0:
			bucket.Current = bucket.Current.Add(rec.Remaining)
		case days <= 30:
			bucket.Bucket30 = bucket.Bucket30.Add(rec.Remaining)
		case days <= 60:
			bucket.Bucket60 = bucket.Bucket60.Add(rec.Remaining)
		case days <= 90:
			bucket.Bucket90 = bucket.Bucket90.Add(rec.Remaining)
		default:
			bucket.Bucket120 = bucket.Bucket120.Add(rec.Remaining)
		}
	}
	return bucket, nil
}
