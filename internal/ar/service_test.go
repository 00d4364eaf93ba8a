package ar

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryARRepo struct {
	receivables map[uuid.UUID]*Receivable
	totals      []InvoiceTotal
}

func newMemoryARRepo() *memoryARRepo {
	return &memoryARRepo{receivables: map[uuid.UUID]*Receivable{}}
}

func (r *memoryARRepo) Get(_ context.Context, invoiceID uuid.UUID) (*Receivable, error) {
	rec, ok := r.receivables[invoiceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (r *memoryARRepo) Save(_ context.Context, rec Receivable) error {
	r.receivables[rec.InvoiceID] = &rec
	return nil
}

func (r *memoryARRepo) ListOutstanding(_ context.Context) ([]Receivable, error) {
	var out []Receivable
	for _, rec := range r.receivables {
		if rec.Status == StatusOutstanding {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *memoryARRepo) InvoiceTotals(_ context.Context) ([]InvoiceTotal, error) {
	return r.totals, nil
}

func testService(repo RepositoryPort) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestApplyAndReverseAllocations(t *testing.T) {
	repo := newMemoryARRepo()
	svc := testService(repo)
	invoiceID := uuid.New()
	rec := Receivable{
		InvoiceID:      invoiceID,
		CounterpartyID: 7,
		Total:          decimal.NewFromInt(5_000_000),
		Paid:           decimal.Zero,
	}
	rec.Recompute()
	require.NoError(t, repo.Save(context.Background(), rec))

	require.NoError(t, svc.Apply(context.Background(), invoiceID, decimal.NewFromInt(1_500_000)))
	require.NoError(t, svc.Apply(context.Background(), invoiceID, decimal.NewFromInt(500_000)))

	got, err := repo.Get(context.Background(), invoiceID)
	require.NoError(t, err)
	require.True(t, got.Paid.Equal(decimal.NewFromInt(2_000_000)))
	require.True(t, got.Remaining.Equal(decimal.NewFromInt(3_000_000)))
	require.Equal(t, StatusOutstanding, got.Status)

	require.NoError(t, svc.Reverse(context.Background(), invoiceID, decimal.NewFromInt(500_000)))
	got, err = repo.Get(context.Background(), invoiceID)
	require.NoError(t, err)
	require.True(t, got.Paid.Equal(decimal.NewFromInt(1_500_000)))
	require.True(t, got.Remaining.Equal(decimal.NewFromInt(3_500_000)))
}

func TestSettleWithinTolerance(t *testing.T) {
	repo := newMemoryARRepo()
	svc := testService(repo)
	invoiceID := uuid.New()
	rec := Receivable{InvoiceID: invoiceID, Total: decimal.NewFromInt(100)}
	rec.Recompute()
	require.NoError(t, repo.Save(context.Background(), rec))

	require.NoError(t, svc.Apply(context.Background(), invoiceID, decimal.NewFromFloat(99.995)))
	got, err := repo.Get(context.Background(), invoiceID)
	require.NoError(t, err)
	require.Equal(t, StatusSettled, got.Status)
}

func TestReverseFloorsAtZero(t *testing.T) {
	repo := newMemoryARRepo()
	svc := testService(repo)
	invoiceID := uuid.New()
	rec := Receivable{InvoiceID: invoiceID, Total: decimal.NewFromInt(1000), Paid: decimal.NewFromInt(100)}
	rec.Recompute()
	require.NoError(t, repo.Save(context.Background(), rec))

	require.NoError(t, svc.Reverse(context.Background(), invoiceID, decimal.NewFromInt(400)))
	got, err := repo.Get(context.Background(), invoiceID)
	require.NoError(t, err)
	require.True(t, got.Paid.IsZero())
	require.True(t, got.Remaining.Equal(decimal.NewFromInt(1000)))
}

func TestSyncCreatesAndSkips(t *testing.T) {
	repo := newMemoryARRepo()
	svc := testService(repo)
	dueAt := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	newID := uuid.New()
	existingID := uuid.New()

	existing := Receivable{InvoiceID: existingID, Total: decimal.NewFromInt(200), Paid: decimal.NewFromInt(50)}
	existing.Recompute()
	require.NoError(t, repo.Save(context.Background(), existing))

	repo.totals = []InvoiceTotal{
		{InvoiceID: newID, CounterpartyID: 1, Total: decimal.NewFromInt(5_000_000), Allocated: decimal.NewFromInt(2_000_000), DueAt: dueAt},
		{InvoiceID: existingID, CounterpartyID: 2, Total: decimal.NewFromInt(999), Allocated: decimal.NewFromInt(999), DueAt: dueAt},
	}

	result, err := svc.Sync(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, SyncResult{Created: 1, Skipped: 1}, result)

	created, err := repo.Get(context.Background(), newID)
	require.NoError(t, err)
	require.True(t, created.Remaining.Equal(decimal.NewFromInt(3_000_000)))
	require.Equal(t, StatusOutstanding, created.Status)

	// Untouched without force.
	skipped, err := repo.Get(context.Background(), existingID)
	require.NoError(t, err)
	require.True(t, skipped.Total.Equal(decimal.NewFromInt(200)))
}

func TestSyncForceOverwrites(t *testing.T) {
	repo := newMemoryARRepo()
	svc := testService(repo)
	invoiceID := uuid.New()
	stale := Receivable{InvoiceID: invoiceID, Total: decimal.NewFromInt(200), Paid: decimal.NewFromInt(50)}
	stale.Recompute()
	require.NoError(t, repo.Save(context.Background(), stale))

	repo.totals = []InvoiceTotal{
		{InvoiceID: invoiceID, CounterpartyID: 3, Total: decimal.NewFromInt(1_000), Allocated: decimal.NewFromInt(1_000)},
	}

	result, err := svc.Sync(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, SyncResult{Updated: 1}, result)

	got, err := repo.Get(context.Background(), invoiceID)
	require.NoError(t, err)
	require.True(t, got.Paid.Equal(decimal.NewFromInt(1_000)))
	require.Equal(t, StatusSettled, got.Status)
}

func TestAuditReportsDriftOnly(t *testing.T) {
	repo := newMemoryARRepo()
	svc := testService(repo)
	cleanID := uuid.New()
	driftID := uuid.New()

	clean := Receivable{InvoiceID: cleanID, Total: decimal.NewFromInt(100), Paid: decimal.NewFromInt(40)}
	clean.Recompute()
	require.NoError(t, repo.Save(context.Background(), clean))
	drifted := Receivable{InvoiceID: driftID, Total: decimal.NewFromInt(100), Paid: decimal.NewFromInt(70)}
	drifted.Recompute()
	require.NoError(t, repo.Save(context.Background(), drifted))

	repo.totals = []InvoiceTotal{
		{InvoiceID: cleanID, Total: decimal.NewFromInt(100), Allocated: decimal.NewFromInt(40)},
		{InvoiceID: driftID, Total: decimal.NewFromInt(100), Allocated: decimal.NewFromInt(60)},
	}

	drift, err := svc.Audit(context.Background())
	require.NoError(t, err)
	require.Len(t, drift, 1)
	require.Equal(t, driftID, drift[0].InvoiceID)
	require.True(t, drift[0].Delta.Equal(decimal.NewFromInt(10)))
}

func TestAgingBuckets(t *testing.T) {
	repo := newMemoryARRepo()
	svc := testService(repo)
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	add := func(due time.Time, remaining int64) {
		rec := Receivable{InvoiceID: uuid.New(), Total: decimal.NewFromInt(remaining), DueAt: due}
		rec.Recompute()
		require.NoError(t, repo.Save(context.Background(), rec))
	}
	add(asOf.AddDate(0, 0, 10), 100)
	add(asOf.AddDate(0, 0, -10), 200)
	add(asOf.AddDate(0, 0, -70), 300)
	add(asOf.AddDate(0, 0, -200), 400)

	bucket, err := svc.Aging(context.Background(), asOf)
	require.NoError(t, err)
	require.True(t, bucket.Current.Equal(decimal.NewFromInt(100)))
	require.True(t, bucket.Bucket30.Equal(decimal.NewFromInt(200)))
	require.True(t, bucket.Bucket90.Equal(decimal.NewFromInt(300)))
	require.True(t, bucket.Bucket120.Equal(decimal.NewFromInt(400)))
}
