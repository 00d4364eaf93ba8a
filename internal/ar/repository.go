package ar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort defines data access for receivable aggregates.
type RepositoryPort interface {
	Get(ctx context.Context, invoiceID uuid.UUID) (*Receivable, error)
	Save(ctx context.Context, rec Receivable) error
	ListOutstanding(ctx context.Context) ([]Receivable, error)
	InvoiceTotals(ctx context.Context) ([]InvoiceTotal, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryPort {
	return &repository{db: db}
}

const receivableColumns = `invoice_id, counterparty_id, total, paid, remaining, status, due_at, created_at, updated_at`

func (r *repository) Get(ctx context.Context, invoiceID uuid.UUID) (*Receivable, error) {
	var rec Receivable
	err := r.db.QueryRow(ctx, `SELECT `+receivableColumns+` FROM receivables WHERE invoice_id=$1`, invoiceID).
		Scan(&rec.InvoiceID, &rec.CounterpartyID, &rec.Total, &rec.Paid, &rec.Remaining, &rec.Status, &rec.DueAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) Save(ctx context.Context, rec Receivable) error {
	_, err := r.db.Exec(ctx, `INSERT INTO receivables (invoice_id, counterparty_id, total, paid, remaining, status, due_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
ON CONFLICT (invoice_id) DO UPDATE SET
  counterparty_id=EXCLUDED.counterparty_id, total=EXCLUDED.total, paid=EXCLUDED.paid,
  remaining=EXCLUDED.remaining, status=EXCLUDED.status, due_at=EXCLUDED.due_at, updated_at=NOW()`,
		rec.InvoiceID, rec.CounterpartyID, rec.Total, rec.Paid, rec.Remaining, rec.Status, rec.DueAt)
	return err
}

func (r *repository) ListOutstanding(ctx context.Context) ([]Receivable, error) {
	rows, err := r.db.Query(ctx, `SELECT `+receivableColumns+` FROM receivables WHERE status=$1 ORDER BY due_at ASC`, StatusOutstanding)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receivable
	for rows.Next() {
		var rec Receivable
		if err := rows.Scan(&rec.InvoiceID, &rec.CounterpartyID, &rec.Total, &rec.Paid, &rec.Remaining, &rec.Status, &rec.DueAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// InvoiceTotals rebuilds the source of truth: posted sales invoices joined to
// the sum of their live receipt allocations.
func (r *repository) InvoiceTotals(ctx context.Context) ([]InvoiceTotal, error) {
	rows, err := r.db.Query(ctx, `SELECT d.source_id, d.counterparty_id, d.grand_total,
  COALESCE(SUM(a.amount), 0), COALESCE(d.due_at, NOW())
FROM documents d
LEFT JOIN receipt_allocations a ON a.invoice_id = d.source_id AND a.deleted_at IS NULL
WHERE d.source_type='sales_invoice' AND d.state='posted'
GROUP BY d.source_id, d.counterparty_id, d.grand_total, d.due_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InvoiceTotal
	for rows.Next() {
		var row InvoiceTotal
		var dueAt time.Time
		if err := rows.Scan(&row.InvoiceID, &row.CounterpartyID, &row.Total, &row.Allocated, &dueAt); err != nil {
			return nil, err
		}
		row.DueAt = dueAt
		out = append(out, row)
	}
	return out, rows.Err()
}
