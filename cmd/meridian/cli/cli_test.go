package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/dimensions"
	docsync "github.com/meridian-erp/meridian-erp/internal/accounting/sync"
	"github.com/meridian-erp/meridian-erp/internal/ar"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeInventoryRepo struct {
	stocks   map[inventory.StockKey]inventory.InventoryStock
	computed map[inventory.StockKey]float64
}

func (f *fakeInventoryRepo) WithTx(ctx context.Context, fn func(context.Context, inventory.TxRepository) error) error {
	return fn(ctx, f)
}

func (f *fakeInventoryRepo) ListStocks(context.Context, inventory.AuditFilter) ([]inventory.InventoryStock, error) {
	var out []inventory.InventoryStock
	for _, s := range f.stocks {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeInventoryRepo) ComputedQuantities(context.Context, inventory.AuditFilter) (map[inventory.StockKey]float64, error) {
	return f.computed, nil
}

func (f *fakeInventoryRepo) InsertMovement(context.Context, inventory.StockMovement) error {
	return nil
}

func (f *fakeInventoryRepo) SoftDeleteMovements(context.Context, string, uuid.UUID) ([]inventory.StockMovement, error) {
	return nil, nil
}

func (f *fakeInventoryRepo) RestoreMovements(context.Context, string, uuid.UUID) ([]inventory.StockMovement, error) {
	return nil, nil
}

func (f *fakeInventoryRepo) PurgeMovements(context.Context, string, uuid.UUID) (int64, error) {
	return 0, nil
}

func (f *fakeInventoryRepo) GetStockForUpdate(_ context.Context, key inventory.StockKey) (inventory.InventoryStock, error) {
	if s, ok := f.stocks[key]; ok {
		return s, nil
	}
	return inventory.InventoryStock{ProductID: key.ProductID, WarehouseID: key.WarehouseID, RakID: key.Rak()}, nil
}

func (f *fakeInventoryRepo) SaveStock(_ context.Context, stock inventory.InventoryStock) error {
	f.stocks[stock.Key()] = stock
	return nil
}

func TestInventoryCheckReportsDriftWithExitTen(t *testing.T) {
	key := inventory.StockKey{ProductID: 3, WarehouseID: 1}
	repo := &fakeInventoryRepo{
		stocks:   map[inventory.StockKey]inventory.InventoryStock{key: {ProductID: 3, WarehouseID: 1, QtyAvailable: 12}},
		computed: map[inventory.StockKey]float64{key: 10},
	}
	var stdout, stderr bytes.Buffer
	app := &App{
		Inventory: inventory.NewService(repo, discardLogger(), false),
		Stdout:    &stdout,
		Stderr:    &stderr,
	}

	code := app.Run(context.Background(), []string{"inventory-check", "-json"})
	require.Equal(t, 10, code)

	var summary struct {
		Rows    int `json:"rows"`
		Drifted int `json:"drifted"`
		Fixed   int `json:"fixed"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, 1, summary.Rows)
	require.Equal(t, 1, summary.Drifted)
	require.Zero(t, summary.Fixed)
}

func TestInventoryCheckFixRewritesCache(t *testing.T) {
	key := inventory.StockKey{ProductID: 3, WarehouseID: 1}
	repo := &fakeInventoryRepo{
		stocks:   map[inventory.StockKey]inventory.InventoryStock{key: {ProductID: 3, WarehouseID: 1, QtyAvailable: 12}},
		computed: map[inventory.StockKey]float64{key: 10},
	}
	app := &App{Inventory: inventory.NewService(repo, discardLogger(), false)}

	var stdout, stderr bytes.Buffer
	code := app.InventoryCheckCommand(context.Background(), InventoryCheckOptions{
		Fix: true, JSONOutput: true, Stdout: &stdout, Stderr: &stderr,
	})
	require.Equal(t, 0, code)
	require.Equal(t, 10.0, repo.stocks[key].QtyAvailable)
}

func TestInventoryCheckCleanExitsZero(t *testing.T) {
	key := inventory.StockKey{ProductID: 3, WarehouseID: 1}
	repo := &fakeInventoryRepo{
		stocks:   map[inventory.StockKey]inventory.InventoryStock{key: {ProductID: 3, WarehouseID: 1, QtyAvailable: 10}},
		computed: map[inventory.StockKey]float64{key: 10},
	}
	app := &App{Inventory: inventory.NewService(repo, discardLogger(), false)}

	var stdout, stderr bytes.Buffer
	code := app.InventoryCheckCommand(context.Background(), InventoryCheckOptions{
		Stdout: &stdout, Stderr: &stderr,
	})
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "0 drifted")
}

type fakeARRepo struct {
	totals      []ar.InvoiceTotal
	receivables map[uuid.UUID]*ar.Receivable
	outstanding []ar.Receivable
}

func (f *fakeARRepo) Get(_ context.Context, invoiceID uuid.UUID) (*ar.Receivable, error) {
	rec, ok := f.receivables[invoiceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeARRepo) Save(_ context.Context, rec ar.Receivable) error {
	if f.receivables == nil {
		f.receivables = map[uuid.UUID]*ar.Receivable{}
	}
	f.receivables[rec.InvoiceID] = &rec
	return nil
}

func (f *fakeARRepo) ListOutstanding(context.Context) ([]ar.Receivable, error) {
	return f.outstanding, nil
}

func (f *fakeARRepo) InvoiceTotals(context.Context) ([]ar.InvoiceTotal, error) {
	return f.totals, nil
}

func TestARSyncCreatesMissingRows(t *testing.T) {
	invoiceID := uuid.New()
	repo := &fakeARRepo{
		totals: []ar.InvoiceTotal{{
			InvoiceID:      invoiceID,
			CounterpartyID: 9,
			Total:          decimal.NewFromInt(2_500_000),
			Allocated:      decimal.NewFromInt(1_000_000),
			DueAt:          time.Now(),
		}},
	}
	var stdout, stderr bytes.Buffer
	app := &App{
		AR:     ar.NewService(repo, discardLogger()),
		Stdout: &stdout,
		Stderr: &stderr,
	}

	code := app.Run(context.Background(), []string{"ar-sync", "-json"})
	require.Equal(t, 0, code)

	var result struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
		Skipped int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	require.Equal(t, 1, result.Created)

	rec := repo.receivables[invoiceID]
	require.NotNil(t, rec)
	require.True(t, rec.Remaining.Equal(decimal.NewFromInt(1_500_000)))
}

func TestARAgingHumanOutput(t *testing.T) {
	asOf := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	repo := &fakeARRepo{
		outstanding: []ar.Receivable{
			{InvoiceID: uuid.New(), Remaining: decimal.NewFromInt(1_200_000), DueAt: asOf.AddDate(0, 0, -45)},
			{InvoiceID: uuid.New(), Remaining: decimal.NewFromInt(300_000), DueAt: asOf.AddDate(0, 0, 10)},
		},
	}
	app := &App{AR: ar.NewService(repo, discardLogger())}

	var stdout, stderr bytes.Buffer
	code := app.ARAgingCommand(context.Background(), ARAgingOptions{
		AsOf: "2026-08-27", Stdout: &stdout, Stderr: &stderr,
	})
	require.Equal(t, 0, code)
	require.Contains(t, stdout.String(), "31-60")
	require.Contains(t, stdout.String(), "1,200,000")
}

type fakeDimRepo struct {
	refs    []dimensions.LineRef
	updated map[int64]dimensions.Dimensions
}

func (f *fakeDimRepo) WarehouseBranch(context.Context, int64) (*int64, error) {
	branch := int64(4)
	return &branch, nil
}

func (f *fakeDimRepo) CounterpartyDefaults(context.Context, int64) (dimensions.Dimensions, error) {
	return dimensions.Dimensions{}, nil
}

func (f *fakeDimRepo) MissingDimensionLines(_ context.Context, afterID int64, _ int, _ string) ([]dimensions.LineRef, error) {
	var out []dimensions.LineRef
	for _, ref := range f.refs {
		if ref.LineID > afterID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (f *fakeDimRepo) UpdateLineDimensions(_ context.Context, lineID int64, dims dimensions.Dimensions) error {
	if f.updated == nil {
		f.updated = map[int64]dimensions.Dimensions{}
	}
	f.updated[lineID] = dims
	return nil
}

func TestDimBackfillUpdatesResolvableLines(t *testing.T) {
	warehouse := int64(2)
	repo := &fakeDimRepo{
		refs: []dimensions.LineRef{
			{LineID: 1, Hints: dimensions.Hints{WarehouseID: &warehouse}},
			{LineID: 2, Hints: dimensions.Hints{}},
		},
	}
	app := &App{Backfiller: dimensions.NewBackfiller(repo, dimensions.NewResolver(repo), discardLogger())}

	var stdout, stderr bytes.Buffer
	code := app.DimBackfillCommand(context.Background(), DimBackfillOptions{
		JSONOutput: true, Stdout: &stdout, Stderr: &stderr,
	})
	require.Equal(t, 0, code)

	var result dimensions.BackfillResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	require.Equal(t, 1, result.Updated)
	require.Equal(t, 1, result.Skipped)
	require.Len(t, repo.updated, 1)
}

type stubPoster struct {
	statuses []docsync.PostingStatus
	err      error
	cascade  bool
}

func (s *stubPoster) PostInvoice(_ context.Context, _ uuid.UUID, cascade bool) ([]docsync.PostingStatus, error) {
	s.cascade = cascade
	return s.statuses, s.err
}

func TestPostInvoiceReportsEachPosting(t *testing.T) {
	invoiceID := uuid.New()
	poster := &stubPoster{statuses: []docsync.PostingStatus{
		{SourceType: "sales_invoice", SourceID: invoiceID.String(), Outcome: docsync.OutcomePosted},
		{SourceType: "customer_receipt", SourceID: uuid.NewString(), Outcome: docsync.OutcomeSkipped},
	}}

	var stdout, stderr bytes.Buffer
	app := &App{Poster: poster, Stdout: &stdout, Stderr: &stderr}

	code := app.Run(context.Background(), []string{"post-invoice", "-id", invoiceID.String(), "-cascade-receipt", "-json"})
	require.Equal(t, 0, code)
	require.True(t, poster.cascade)

	var result struct {
		Postings []docsync.PostingStatus `json:"postings"`
		Failed   int                     `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	require.Len(t, result.Postings, 2)
	require.Zero(t, result.Failed)
}

func TestPostInvoiceFailedPostingExitsOne(t *testing.T) {
	poster := &stubPoster{statuses: []docsync.PostingStatus{
		{SourceType: "sales_invoice", SourceID: uuid.NewString(), Error: "account mapping missing"},
	}}

	var stdout, stderr bytes.Buffer
	app := &App{Poster: poster, Stdout: &stdout, Stderr: &stderr}

	code := app.PostInvoiceCommand(context.Background(), PostInvoiceOptions{
		ID: uuid.NewString(), Stdout: &stdout, Stderr: &stderr,
	})
	require.Equal(t, 1, code)
	require.Contains(t, stdout.String(), "account mapping missing")
}

func TestPostInvoiceRejectsBadID(t *testing.T) {
	var stdout, stderr bytes.Buffer
	app := &App{Poster: &stubPoster{}}

	code := app.PostInvoiceCommand(context.Background(), PostInvoiceOptions{
		ID: "not-a-uuid", Stdout: &stdout, Stderr: &stderr,
	})
	require.Equal(t, 2, code)
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	var stderr bytes.Buffer
	app := &App{Stderr: &stderr}
	require.Equal(t, 2, app.Run(context.Background(), []string{"no-such-command"}))
	require.Contains(t, stderr.String(), "unknown command")
}

func TestRunWithoutArgsPrintsUsage(t *testing.T) {
	var stderr bytes.Buffer
	app := &App{Stderr: &stderr}
	require.Equal(t, 2, app.Run(context.Background(), nil))
	require.Contains(t, stderr.String(), "usage: meridian")
}
