package ap

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort defines data access for payable aggregates.
type RepositoryPort interface {
	Get(ctx context.Context, invoiceID uuid.UUID) (*Payable, error)
	Save(ctx context.Context, p Payable) error
	ListOutstanding(ctx context.Context) ([]Payable, error)
	ListDueBefore(ctx context.Context, cutoff time.Time) ([]Payable, error)
	InvoiceTotals(ctx context.Context) ([]InvoiceTotal, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) RepositoryPort {
	return &repository{db: db}
}

const payableColumns = `invoice_id, counterparty_id, total, paid, remaining, status, due_at, created_at, updated_at`

func (r *repository) Get(ctx context.Context, invoiceID uuid.UUID) (*Payable, error) {
	var p Payable
	err := r.db.QueryRow(ctx, `SELECT `+payableColumns+` FROM payables WHERE invoice_id=$1`, invoiceID).
		Scan(&p.InvoiceID, &p.CounterpartyID, &p.Total, &p.Paid, &p.Remaining, &p.Status, &p.DueAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) Save(ctx context.Context, p Payable) error {
	_, err := r.db.Exec(ctx, `INSERT INTO payables (invoice_id, counterparty_id, total, paid, remaining, status, due_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
ON CONFLICT (invoice_id) DO UPDATE SET
  counterparty_id=EXCLUDED.counterparty_id, total=EXCLUDED.total, paid=EXCLUDED.paid,
  remaining=EXCLUDED.remaining, status=EXCLUDED.status, due_at=EXCLUDED.due_at, updated_at=NOW()`,
		p.InvoiceID, p.CounterpartyID, p.Total, p.Paid, p.Remaining, p.Status, p.DueAt)
	return err
}

func (r *repository) ListOutstanding(ctx context.Context) ([]Payable, error) {
	return r.list(ctx, `SELECT `+payableColumns+` FROM payables WHERE status=$1 ORDER BY due_at ASC`, StatusOutstanding)
}

func (r *repository) ListDueBefore(ctx context.Context, cutoff time.Time) ([]Payable, error) {
	return r.list(ctx, `SELECT `+payableColumns+` FROM payables WHERE status=$1 AND due_at <= $2 ORDER BY due_at ASC`, StatusOutstanding, cutoff)
}

func (r *repository) list(ctx context.Context, sql string, args ...any) ([]Payable, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Payable
	for rows.Next() {
		var p Payable
		if err := rows.Scan(&p.InvoiceID, &p.CounterpartyID, &p.Total, &p.Paid, &p.Remaining, &p.Status, &p.DueAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InvoiceTotals rebuilds the source of truth: posted purchase invoices joined
// to the sum of their live payment allocations.
func (r *repository) InvoiceTotals(ctx context.Context) ([]InvoiceTotal, error) {
	rows, err := r.db.Query(ctx, `SELECT d.source_id, d.counterparty_id, d.grand_total,
  COALESCE(SUM(a.amount), 0), COALESCE(d.due_at, NOW())
FROM documents d
LEFT JOIN payment_allocations a ON a.invoice_id = d.source_id AND a.deleted_at IS NULL
WHERE d.source_type='purchase_invoice' AND d.state='posted'
GROUP BY d.source_id, d.counterparty_id, d.grand_total, d.due_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []InvoiceTotal
	for rows.Next() {
		var row InvoiceTotal
		if err := rows.Scan(&row.InvoiceID, &row.CounterpartyID, &row.Total, &row.Allocated, &row.DueAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
