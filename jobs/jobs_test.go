package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ar"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubInventoryRepo struct {
	stocks   []inventory.InventoryStock
	computed map[inventory.StockKey]float64
}

func (s *stubInventoryRepo) WithTx(context.Context, func(context.Context, inventory.TxRepository) error) error {
	return errors.New("read-only stub")
}

func (s *stubInventoryRepo) ListStocks(context.Context, inventory.AuditFilter) ([]inventory.InventoryStock, error) {
	return s.stocks, nil
}

func (s *stubInventoryRepo) ComputedQuantities(context.Context, inventory.AuditFilter) (map[inventory.StockKey]float64, error) {
	return s.computed, nil
}

func TestInventoryAuditHandleReportsDrift(t *testing.T) {
	key := inventory.StockKey{ProductID: 1, WarehouseID: 1}
	repo := &stubInventoryRepo{
		stocks:   []inventory.InventoryStock{{ProductID: 1, WarehouseID: 1, QtyAvailable: 70}},
		computed: map[inventory.StockKey]float64{key: 75},
	}
	svc := inventory.NewService(repo, discardLogger(), false)
	job := NewInventoryAuditJob(svc, discardLogger(), nil)

	task, err := NewInventoryAuditTask(InventoryAuditPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestInventoryAuditHandleRejectsBadPayload(t *testing.T) {
	svc := inventory.NewService(&stubInventoryRepo{}, discardLogger(), false)
	job := NewInventoryAuditJob(svc, discardLogger(), nil)

	err := job.Handle(context.Background(), asynq.NewTask(TaskInventoryAudit, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type stubARRepo struct {
	totals      []ar.InvoiceTotal
	receivables map[uuid.UUID]*ar.Receivable
}

func (s *stubARRepo) Get(_ context.Context, invoiceID uuid.UUID) (*ar.Receivable, error) {
	rec, ok := s.receivables[invoiceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *stubARRepo) Save(context.Context, ar.Receivable) error { return nil }

func (s *stubARRepo) ListOutstanding(context.Context) ([]ar.Receivable, error) { return nil, nil }

func (s *stubARRepo) InvoiceTotals(context.Context) ([]ar.InvoiceTotal, error) {
	return s.totals, nil
}

func TestARAuditHandleToleratesDrift(t *testing.T) {
	invoiceID := uuid.New()
	repo := &stubARRepo{
		totals: []ar.InvoiceTotal{{
			InvoiceID: invoiceID,
			Total:     decimal.NewFromInt(1_000_000),
			Allocated: decimal.NewFromInt(400_000),
			DueAt:     time.Now(),
		}},
		receivables: map[uuid.UUID]*ar.Receivable{
			invoiceID: {InvoiceID: invoiceID, Total: decimal.NewFromInt(1_000_000), Paid: decimal.NewFromInt(300_000)},
		},
	}
	svc := ar.NewService(repo, discardLogger())
	job := NewARAuditJob(svc, discardLogger(), nil)

	task, err := NewARAuditTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestLedgerIntegrityHandleRequiresPool(t *testing.T) {
	job := NewLedgerIntegrityJob(nil, discardLogger(), nil)
	task, err := NewLedgerIntegrityTask("")
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestNewWorkerRejectsBadCronSpec(t *testing.T) {
	task, err := NewARAuditTask()
	require.NoError(t, err)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Logger:    discardLogger(),
		Cron: []CronRegistration{
			{Spec: "not a cron spec", Task: task},
		},
	})
	require.Error(t, err)
}
