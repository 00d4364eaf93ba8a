package assets

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RepositoryPort defines data access for assets and their depreciation rows.
type RepositoryPort interface {
	ListActive(ctx context.Context) ([]Asset, error)
	HasDepreciation(ctx context.Context, assetID int64, period string) (bool, error)
	InsertDepreciation(ctx context.Context, row Depreciation) error
	AddAccumulated(ctx context.Context, assetID int64, delta decimal.Decimal) error
	DepreciationsForRun(ctx context.Context, runID uuid.UUID) ([]Depreciation, error)
	DeleteRun(ctx context.Context, runID uuid.UUID) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryPort {
	return &repository{db: db}
}

func (r *repository) ListActive(ctx context.Context) ([]Asset, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, cost, salvage, useful_life_years, acquired_at, is_active, accumulated, created_at, updated_at
FROM assets WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.Name, &a.Cost, &a.Salvage, &a.UsefulLifeYears, &a.AcquiredAt, &a.IsActive, &a.Accumulated, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *repository) HasDepreciation(ctx context.Context, assetID int64, period string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM asset_depreciations WHERE asset_id=$1 AND period=$2)`, assetID, period).Scan(&exists)
	return exists, err
}

func (r *repository) InsertDepreciation(ctx context.Context, row Depreciation) error {
	_, err := r.db.Exec(ctx, `INSERT INTO asset_depreciations (asset_id, run_id, period, amount) VALUES ($1,$2,$3,$4)`,
		row.AssetID, row.RunID, row.Period, row.Amount)
	return err
}

func (r *repository) AddAccumulated(ctx context.Context, assetID int64, delta decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `UPDATE assets SET accumulated = accumulated + $2, updated_at=NOW() WHERE id=$1`, assetID, delta)
	return err
}

func (r *repository) DepreciationsForRun(ctx context.Context, runID uuid.UUID) ([]Depreciation, error) {
	rows, err := r.db.Query(ctx, `SELECT id, asset_id, run_id, period, amount, created_at FROM asset_depreciations WHERE run_id=$1`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Depreciation
	for rows.Next() {
		var d Depreciation
		if err := rows.Scan(&d.ID, &d.AssetID, &d.RunID, &d.Period, &d.Amount, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repository) DeleteRun(ctx context.Context, runID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM asset_depreciations WHERE run_id=$1`, runID)
	return err
}
