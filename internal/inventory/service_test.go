package inventory

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryInventoryRepo struct {
	movements []StockMovement
	stocks    map[StockKey]*InventoryStock
	nextID    int64
}

func newMemoryInventoryRepo() *memoryInventoryRepo {
	return &memoryInventoryRepo{stocks: map[StockKey]*InventoryStock{}}
}

func (m *memoryInventoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryInventoryRepo) ListStocks(_ context.Context, filter AuditFilter) ([]InventoryStock, error) {
	var out []InventoryStock
	for _, s := range m.stocks {
		if filter.ProductID != 0 && s.ProductID != filter.ProductID {
			continue
		}
		if filter.WarehouseID != 0 && s.WarehouseID != filter.WarehouseID {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *memoryInventoryRepo) ComputedQuantities(_ context.Context, filter AuditFilter) (map[StockKey]float64, error) {
	totals := map[StockKey]float64{}
	for _, mv := range m.movements {
		if mv.DeletedAt != nil {
			continue
		}
		if filter.ProductID != 0 && mv.ProductID != filter.ProductID {
			continue
		}
		if filter.WarehouseID != 0 && mv.WarehouseID != filter.WarehouseID {
			continue
		}
		totals[mv.Key()] += mv.Quantity
	}
	return totals, nil
}

func (m *memoryInventoryRepo) InsertMovement(_ context.Context, mv StockMovement) error {
	m.nextID++
	mv.ID = m.nextID
	m.movements = append(m.movements, mv)
	return nil
}

func (m *memoryInventoryRepo) SoftDeleteMovements(_ context.Context, sourceType string, sourceID uuid.UUID) ([]StockMovement, error) {
	now := time.Now()
	var out []StockMovement
	for i := range m.movements {
		mv := &m.movements[i]
		if mv.SourceType == sourceType && mv.SourceID == sourceID && mv.DeletedAt == nil {
			mv.DeletedAt = &now
			out = append(out, *mv)
		}
	}
	return out, nil
}

func (m *memoryInventoryRepo) RestoreMovements(_ context.Context, sourceType string, sourceID uuid.UUID) ([]StockMovement, error) {
	var out []StockMovement
	for i := range m.movements {
		mv := &m.movements[i]
		if mv.SourceType == sourceType && mv.SourceID == sourceID && mv.DeletedAt != nil {
			mv.DeletedAt = nil
			out = append(out, *mv)
		}
	}
	return out, nil
}

func (m *memoryInventoryRepo) PurgeMovements(_ context.Context, sourceType string, sourceID uuid.UUID) (int64, error) {
	var kept []StockMovement
	var purged int64
	for _, mv := range m.movements {
		if mv.SourceType == sourceType && mv.SourceID == sourceID {
			purged++
			continue
		}
		kept = append(kept, mv)
	}
	m.movements = kept
	return purged, nil
}

func (m *memoryInventoryRepo) GetStockForUpdate(_ context.Context, key StockKey) (InventoryStock, error) {
	if s, ok := m.stocks[key]; ok {
		return *s, nil
	}
	return InventoryStock{ProductID: key.ProductID, WarehouseID: key.WarehouseID, RakID: key.Rak()}, nil
}

func (m *memoryInventoryRepo) SaveStock(_ context.Context, stock InventoryStock) error {
	clone := stock
	m.stocks[stock.Key()] = &clone
	return nil
}

func testInventoryService(repo RepositoryPort, allowNegative bool) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), allowNegative)
}

func movement(productID int64, mt MovementType, qty float64, sourceID uuid.UUID) StockMovement {
	return StockMovement{
		ProductID:   productID,
		WarehouseID: 1,
		Type:        mt,
		Quantity:    qty,
		Date:        time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		SourceType:  "test_doc",
		SourceID:    sourceID,
	}
}

func TestRecordMaintainsCache(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := testInventoryService(repo, false)
	src := uuid.New()

	require.NoError(t, svc.Record(context.Background(),
		movement(1, MovementPurchaseIn, 100, src),
		movement(1, MovementSales, -30, src),
		movement(1, MovementAdjustmentIn, 5, src),
	))

	stock := repo.stocks[StockKey{ProductID: 1, WarehouseID: 1}]
	require.NotNil(t, stock)
	require.InDelta(t, 75, stock.QtyAvailable, AuditEpsilon)
}

func TestRecordRejectsSignMismatch(t *testing.T) {
	svc := testInventoryService(newMemoryInventoryRepo(), false)
	err := svc.Record(context.Background(), movement(1, MovementSales, 30, uuid.New()))
	require.Error(t, err)
}

func TestRecordBlocksNegativeStock(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := testInventoryService(repo, false)
	err := svc.Record(context.Background(), movement(1, MovementSales, -10, uuid.New()))
	require.ErrorIs(t, err, ErrNegativeStock)

	relaxed := testInventoryService(repo, true)
	require.NoError(t, relaxed.Record(context.Background(), movement(1, MovementSales, -10, uuid.New())))
	require.InDelta(t, -10, repo.stocks[StockKey{ProductID: 1, WarehouseID: 1}].QtyAvailable, AuditEpsilon)
}

func TestReverseAndRestoreBySource(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := testInventoryService(repo, false)
	src := uuid.New()
	key := StockKey{ProductID: 1, WarehouseID: 1}

	require.NoError(t, svc.Record(context.Background(), movement(1, MovementPurchaseIn, 40, src)))
	require.InDelta(t, 40, repo.stocks[key].QtyAvailable, AuditEpsilon)

	require.NoError(t, svc.ReverseBySource(context.Background(), "test_doc", src))
	require.InDelta(t, 0, repo.stocks[key].QtyAvailable, AuditEpsilon)

	require.NoError(t, svc.RestoreBySource(context.Background(), "test_doc", src))
	require.InDelta(t, 40, repo.stocks[key].QtyAvailable, AuditEpsilon)
}

func TestAuditFlagsDriftedCache(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := testInventoryService(repo, false)
	src := uuid.New()

	require.NoError(t, svc.Record(context.Background(),
		movement(1, MovementPurchaseIn, 100, src),
		movement(1, MovementSales, -30, src),
		movement(1, MovementAdjustmentIn, 5, src),
	))

	// Drift the cache behind the movement log.
	key := StockKey{ProductID: 1, WarehouseID: 1}
	repo.stocks[key].QtyAvailable = 70

	rows, err := svc.Audit(context.Background(), AuditFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.False(t, rows[0].OK)
	require.InDelta(t, 70, rows[0].Cached, AuditEpsilon)
	require.InDelta(t, 75, rows[0].Computed, AuditEpsilon)
	require.InDelta(t, -5, rows[0].Delta, AuditEpsilon)
}

func TestFixRewritesDriftedRows(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := testInventoryService(repo, false)
	src := uuid.New()

	require.NoError(t, svc.Record(context.Background(), movement(1, MovementPurchaseIn, 75, src)))
	key := StockKey{ProductID: 1, WarehouseID: 1}
	repo.stocks[key].QtyAvailable = 70

	fixed, err := svc.Fix(context.Background(), AuditFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, fixed)
	require.InDelta(t, 75, repo.stocks[key].QtyAvailable, AuditEpsilon)

	rows, err := svc.Audit(context.Background(), AuditFilter{})
	require.NoError(t, err)
	require.True(t, rows[0].OK)
}

func TestAuditMatchesRackLevelRows(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := testInventoryService(repo, false)

	// Cache row and movement carry separate rak id allocations, as two DB
	// scans would produce.
	cachedRak := int64(3)
	repo.stocks[StockKey{ProductID: 1, WarehouseID: 2, RakID: 3}] = &InventoryStock{
		ProductID: 1, WarehouseID: 2, RakID: &cachedRak, QtyAvailable: 75,
	}
	movementRak := int64(3)
	mv := movement(1, MovementPurchaseIn, 75, uuid.New())
	mv.WarehouseID = 2
	mv.RakID = &movementRak
	require.NoError(t, repo.InsertMovement(context.Background(), mv))

	rows, err := svc.Audit(context.Background(), AuditFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].OK)
	require.Equal(t, StockKey{ProductID: 1, WarehouseID: 2, RakID: 3}, rows[0].Key)
	require.InDelta(t, 75, rows[0].Computed, AuditEpsilon)
}

func TestAuditWithinEpsilonPasses(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := testInventoryService(repo, false)
	src := uuid.New()

	require.NoError(t, svc.Record(context.Background(), movement(1, MovementPurchaseIn, 10, src)))
	repo.stocks[StockKey{ProductID: 1, WarehouseID: 1}].QtyAvailable = 10 + 1e-9

	rows, err := svc.Audit(context.Background(), AuditFilter{})
	require.NoError(t, err)
	require.True(t, rows[0].OK)
}
