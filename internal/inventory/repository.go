package inventory

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository encapsulates DB access for movements and the stock cache.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListStocks(ctx context.Context, filter AuditFilter) ([]InventoryStock, error)
	ComputedQuantities(ctx context.Context, filter AuditFilter) (map[StockKey]float64, error)
}

// TxRepository exposes the writes available within a transaction.
type TxRepository interface {
	InsertMovement(ctx context.Context, m StockMovement) error
	SoftDeleteMovements(ctx context.Context, sourceType string, sourceID uuid.UUID) ([]StockMovement, error)
	RestoreMovements(ctx context.Context, sourceType string, sourceID uuid.UUID) ([]StockMovement, error)
	PurgeMovements(ctx context.Context, sourceType string, sourceID uuid.UUID) (int64, error)
	GetStockForUpdate(ctx context.Context, key StockKey) (InventoryStock, error)
	SaveStock(ctx context.Context, stock InventoryStock) error
}

// NewTxRepository wraps an existing transaction so callers that own a wider
// unit of work can issue movement and stock writes on it.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func filterClause(filter AuditFilter, prefix string, args []any) (string, []any) {
	clause := ""
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		clause += ` AND ` + prefix + `product_id=$` + strconv.Itoa(len(args))
	}
	if filter.WarehouseID != 0 {
		args = append(args, filter.WarehouseID)
		clause += ` AND ` + prefix + `warehouse_id=$` + strconv.Itoa(len(args))
	}
	if filter.RakID != nil {
		args = append(args, *filter.RakID)
		clause += ` AND ` + prefix + `rak_id=$` + strconv.Itoa(len(args))
	}
	return clause, args
}

func (r *repository) ListStocks(ctx context.Context, filter AuditFilter) ([]InventoryStock, error) {
	clause, args := filterClause(filter, "", nil)
	rows, err := r.db.Query(ctx, `SELECT product_id, warehouse_id, rak_id, qty_available, qty_reserved, updated_at
FROM inventory_stocks WHERE TRUE`+clause+` ORDER BY product_id, warehouse_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InventoryStock
	for rows.Next() {
		var s InventoryStock
		if err := rows.Scan(&s.ProductID, &s.WarehouseID, &s.RakID, &s.QtyAvailable, &s.QtyReserved, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ComputedQuantities folds live movements per stock key.
func (r *repository) ComputedQuantities(ctx context.Context, filter AuditFilter) (map[StockKey]float64, error) {
	clause, args := filterClause(filter, "", nil)
	rows, err := r.db.Query(ctx, `SELECT product_id, warehouse_id, rak_id, COALESCE(SUM(quantity), 0)
FROM stock_movements WHERE deleted_at IS NULL`+clause+`
GROUP BY product_id, warehouse_id, rak_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := map[StockKey]float64{}
	for rows.Next() {
		var key StockKey
		var rak *int64
		var qty float64
		if err := rows.Scan(&key.ProductID, &key.WarehouseID, &rak, &qty); err != nil {
			return nil, err
		}
		key.RakID = rakKey(rak)
		totals[key] = qty
	}
	return totals, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertMovement(ctx context.Context, m StockMovement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements (product_id, warehouse_id, rak_id, type, quantity, date, source_type, source_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		m.ProductID, m.WarehouseID, m.RakID, m.Type, m.Quantity, m.Date, m.SourceType, m.SourceID)
	return err
}

func (r *txRepository) SoftDeleteMovements(ctx context.Context, sourceType string, sourceID uuid.UUID) ([]StockMovement, error) {
	rows, err := r.tx.Query(ctx, `UPDATE stock_movements SET deleted_at=NOW(), updated_at=NOW()
WHERE source_type=$1 AND source_id=$2 AND deleted_at IS NULL
RETURNING id, product_id, warehouse_id, rak_id, type, quantity, date, source_type, source_id, deleted_at, created_at, updated_at`, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	return scanMovements(rows)
}

func (r *txRepository) RestoreMovements(ctx context.Context, sourceType string, sourceID uuid.UUID) ([]StockMovement, error) {
	rows, err := r.tx.Query(ctx, `UPDATE stock_movements SET deleted_at=NULL, updated_at=NOW()
WHERE source_type=$1 AND source_id=$2 AND deleted_at IS NOT NULL
RETURNING id, product_id, warehouse_id, rak_id, type, quantity, date, source_type, source_id, deleted_at, created_at, updated_at`, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	return scanMovements(rows)
}

func scanMovements(rows pgx.Rows) ([]StockMovement, error) {
	defer rows.Close()
	var out []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &m.RakID, &m.Type, &m.Quantity, &m.Date, &m.SourceType, &m.SourceID, &m.DeletedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *txRepository) PurgeMovements(ctx context.Context, sourceType string, sourceID uuid.UUID) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM stock_movements WHERE source_type=$1 AND source_id=$2`, sourceType, sourceID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, key StockKey) (InventoryStock, error) {
	var s InventoryStock
	err := r.tx.QueryRow(ctx, `SELECT product_id, warehouse_id, rak_id, qty_available, qty_reserved, updated_at
FROM inventory_stocks WHERE product_id=$1 AND warehouse_id=$2 AND rak_id IS NOT DISTINCT FROM $3 FOR UPDATE`,
		key.ProductID, key.WarehouseID, key.Rak()).
		Scan(&s.ProductID, &s.WarehouseID, &s.RakID, &s.QtyAvailable, &s.QtyReserved, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InventoryStock{ProductID: key.ProductID, WarehouseID: key.WarehouseID, RakID: key.Rak()}, nil
		}
		return InventoryStock{}, err
	}
	return s, nil
}

func (r *txRepository) SaveStock(ctx context.Context, stock InventoryStock) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_stocks (product_id, warehouse_id, rak_id, qty_available, qty_reserved, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (product_id, warehouse_id, rak_id) DO UPDATE SET
  qty_available=EXCLUDED.qty_available, qty_reserved=EXCLUDED.qty_reserved, updated_at=NOW()`,
		stock.ProductID, stock.WarehouseID, stock.RakID, stock.QtyAvailable, stock.QtyReserved)
	return err
}
