package dimensions

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LineRef is one journal line missing a dimension, with its origin hints.
type LineRef struct {
	LineID int64
	Hints  Hints
}

// Repository covers the DB access the backfill and resolver need.
type Repository interface {
	Source
	MissingDimensionLines(ctx context.Context, afterID int64, limit int, journalType string) ([]LineRef, error)
	UpdateLineDimensions(ctx context.Context, lineID int64, dims Dimensions) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WarehouseBranch(ctx context.Context, warehouseID int64) (*int64, error) {
	var branch *int64
	err := r.db.QueryRow(ctx, `SELECT branch_id FROM warehouses WHERE id=$1`, warehouseID).Scan(&branch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return branch, nil
}

func (r *repository) CounterpartyDefaults(ctx context.Context, counterpartyID int64) (Dimensions, error) {
	var dims Dimensions
	err := r.db.QueryRow(ctx, `SELECT default_branch_id, default_department_id, default_project_id FROM counterparties WHERE id=$1`, counterpartyID).
		Scan(&dims.BranchID, &dims.DepartmentID, &dims.ProjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dimensions{}, nil
		}
		return Dimensions{}, err
	}
	return dims, nil
}

// MissingDimensionLines pages live lines lacking a branch dimension in id
// order, joined to the owning document for hints.
func (r *repository) MissingDimensionLines(ctx context.Context, afterID int64, limit int, journalType string) ([]LineRef, error) {
	rows, err := r.db.Query(ctx, `SELECT l.id, l.branch_id, l.department_id, l.project_id, d.warehouse_id, d.counterparty_id
FROM journal_lines l
JOIN documents d ON d.source_type = l.source_type AND d.source_id = l.source_id
WHERE l.id > $1 AND l.deleted_at IS NULL AND l.branch_id IS NULL
  AND ($3 = '' OR l.journal_type = $3)
ORDER BY l.id ASC
LIMIT $2`, afterID, limit, journalType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []LineRef
	for rows.Next() {
		var ref LineRef
		if err := rows.Scan(&ref.LineID, &ref.Hints.BranchID, &ref.Hints.DepartmentID, &ref.Hints.ProjectID, &ref.Hints.WarehouseID, &ref.Hints.CounterpartyID); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (r *repository) UpdateLineDimensions(ctx context.Context, lineID int64, dims Dimensions) error {
	_, err := r.db.Exec(ctx, `UPDATE journal_lines SET branch_id=$2, department_id=$3, project_id=$4, updated_at=NOW() WHERE id=$1`,
		lineID, dims.BranchID, dims.DepartmentID, dims.ProjectID)
	return err
}
