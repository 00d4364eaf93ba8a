package sync

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/ledger"
	"github.com/meridian-erp/meridian-erp/internal/ap"
	"github.com/meridian-erp/meridian-erp/internal/ar"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository opens the unit of work a document transition runs in.
type Repository interface {
	Get(ctx context.Context, sourceType string, sourceID uuid.UUID) (*DocumentRecord, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository bundles every write a transition may need on one transaction:
// the document record, the journal group, stock movements and the AR/AP
// caches. The receivable and payable statements duplicate the ar and ap
// repositories but are needed here for transaction context.
type TxRepository interface {
	GetDocumentForUpdate(ctx context.Context, sourceType string, sourceID uuid.UUID) (*DocumentRecord, error)
	SaveDocument(ctx context.Context, rec DocumentRecord) error
	DeleteDocument(ctx context.Context, sourceType string, sourceID uuid.UUID) error

	Ledger() ledger.TxRepository
	Inventory() inventory.TxRepository

	GetReceivableForUpdate(ctx context.Context, invoiceID uuid.UUID) (*ar.Receivable, error)
	SaveReceivable(ctx context.Context, rec ar.Receivable) error
	DeleteReceivable(ctx context.Context, invoiceID uuid.UUID) error
	ReceiptAllocatedTotal(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)

	GetPayableForUpdate(ctx context.Context, invoiceID uuid.UUID) (*ap.Payable, error)
	SavePayable(ctx context.Context, p ap.Payable) error
	DeletePayable(ctx context.Context, invoiceID uuid.UUID) error
	PaymentAllocatedTotal(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const documentColumns = `source_type, source_id, state, version, counterparty_id, grand_total, due_at, posted_at, voided_at, created_at, updated_at`

func scanDocument(row pgx.Row) (*DocumentRecord, error) {
	var rec DocumentRecord
	err := row.Scan(&rec.SourceType, &rec.SourceID, &rec.State, &rec.Version, &rec.CounterpartyID, &rec.GrandTotal, &rec.DueAt, &rec.PostedAt, &rec.VoidedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *repository) Get(ctx context.Context, sourceType string, sourceID uuid.UUID) (*DocumentRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE source_type=$1 AND source_id=$2`, sourceType, sourceID)
	return scanDocument(row)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{
		tx:        tx,
		ledger:    ledger.NewTxRepository(tx),
		inventory: inventory.NewTxRepository(tx),
	}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx        pgx.Tx
	ledger    ledger.TxRepository
	inventory inventory.TxRepository
}

func (r *txRepository) Ledger() ledger.TxRepository       { return r.ledger }
func (r *txRepository) Inventory() inventory.TxRepository { return r.inventory }

func (r *txRepository) GetDocumentForUpdate(ctx context.Context, sourceType string, sourceID uuid.UUID) (*DocumentRecord, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE source_type=$1 AND source_id=$2 FOR UPDATE`, sourceType, sourceID)
	return scanDocument(row)
}

func (r *txRepository) SaveDocument(ctx context.Context, rec DocumentRecord) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO documents (source_type, source_id, state, version, counterparty_id, grand_total, due_at, posted_at, voided_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW(),NOW())
ON CONFLICT (source_type, source_id) DO UPDATE SET
  state=EXCLUDED.state, version=EXCLUDED.version, counterparty_id=EXCLUDED.counterparty_id,
  grand_total=EXCLUDED.grand_total, due_at=EXCLUDED.due_at,
  posted_at=EXCLUDED.posted_at, voided_at=EXCLUDED.voided_at, updated_at=NOW()`,
		rec.SourceType, rec.SourceID, rec.State, rec.Version, rec.CounterpartyID, rec.GrandTotal, rec.DueAt, rec.PostedAt, rec.VoidedAt)
	return err
}

func (r *txRepository) DeleteDocument(ctx context.Context, sourceType string, sourceID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM documents WHERE source_type=$1 AND source_id=$2`, sourceType, sourceID)
	return err
}

const receivableColumns = `invoice_id, counterparty_id, total, paid, remaining, status, due_at, created_at, updated_at`

func (r *txRepository) GetReceivableForUpdate(ctx context.Context, invoiceID uuid.UUID) (*ar.Receivable, error) {
	var rec ar.Receivable
	err := r.tx.QueryRow(ctx, `SELECT `+receivableColumns+` FROM receivables WHERE invoice_id=$1 FOR UPDATE`, invoiceID).
		Scan(&rec.InvoiceID, &rec.CounterpartyID, &rec.Total, &rec.Paid, &rec.Remaining, &rec.Status, &rec.DueAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *txRepository) SaveReceivable(ctx context.Context, rec ar.Receivable) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO receivables (invoice_id, counterparty_id, total, paid, remaining, status, due_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
ON CONFLICT (invoice_id) DO UPDATE SET
  counterparty_id=EXCLUDED.counterparty_id, total=EXCLUDED.total, paid=EXCLUDED.paid,
  remaining=EXCLUDED.remaining, status=EXCLUDED.status, due_at=EXCLUDED.due_at, updated_at=NOW()`,
		rec.InvoiceID, rec.CounterpartyID, rec.Total, rec.Paid, rec.Remaining, rec.Status, rec.DueAt)
	return err
}

func (r *txRepository) DeleteReceivable(ctx context.Context, invoiceID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM receivables WHERE invoice_id=$1`, invoiceID)
	return err
}

func (r *txRepository) ReceiptAllocatedTotal(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM receipt_allocations WHERE invoice_id=$1 AND deleted_at IS NULL`, invoiceID).Scan(&total)
	return total, err
}

const payableColumns = `invoice_id, counterparty_id, total, paid, remaining, status, due_at, created_at, updated_at`

func (r *txRepository) GetPayableForUpdate(ctx context.Context, invoiceID uuid.UUID) (*ap.Payable, error) {
	var p ap.Payable
	err := r.tx.QueryRow(ctx, `SELECT `+payableColumns+` FROM payables WHERE invoice_id=$1 FOR UPDATE`, invoiceID).
		Scan(&p.InvoiceID, &p.CounterpartyID, &p.Total, &p.Paid, &p.Remaining, &p.Status, &p.DueAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *txRepository) SavePayable(ctx context.Context, p ap.Payable) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO payables (invoice_id, counterparty_id, total, paid, remaining, status, due_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
ON CONFLICT (invoice_id) DO UPDATE SET
  counterparty_id=EXCLUDED.counterparty_id, total=EXCLUDED.total, paid=EXCLUDED.paid,
  remaining=EXCLUDED.remaining, status=EXCLUDED.status, due_at=EXCLUDED.due_at, updated_at=NOW()`,
		p.InvoiceID, p.CounterpartyID, p.Total, p.Paid, p.Remaining, p.Status, p.DueAt)
	return err
}

func (r *txRepository) DeletePayable(ctx context.Context, invoiceID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM payables WHERE invoice_id=$1`, invoiceID)
	return err
}

func (r *txRepository) PaymentAllocatedTotal(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payment_allocations WHERE invoice_id=$1 AND deleted_at IS NULL`, invoiceID).Scan(&total)
	return total, err
}
