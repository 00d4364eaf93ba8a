package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/accounting/dimensions"
	"github.com/meridian-erp/meridian-erp/internal/accounting/posting"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// DocumentLoader fetches postable source documents by id.
type DocumentLoader interface {
	SalesInvoice(ctx context.Context, id uuid.UUID) (posting.SalesInvoice, error)
	ReceiptsForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]posting.CustomerReceipt, error)
}

// PostingStatus reports one posting attempted during a cascade.
type PostingStatus struct {
	SourceType string  `json:"source_type"`
	SourceID   string  `json:"source_id"`
	Outcome    Outcome `json:"outcome,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// InvoicePoster posts a single invoice by id, optionally cascading to the
// receipts allocated against it. A failed receipt posting is reported in its
// status row and does not abort the remaining cascade.
type InvoicePoster struct {
	loader   DocumentLoader
	resolver *dimensions.Resolver
	service  *Service
}

func NewInvoicePoster(loader DocumentLoader, resolver *dimensions.Resolver, service *Service) *InvoicePoster {
	return &InvoicePoster{loader: loader, resolver: resolver, service: service}
}

// PostInvoice posts the invoice and, with cascade, every receipt that
// allocates against it. One status row comes back per posting attempted.
// Lines inherit the dimensions resolved from the invoice's warehouse and
// counterparty; documents nobody can place stay undimensioned for the
// backfill to pick up.
func (p *InvoicePoster) PostInvoice(ctx context.Context, invoiceID uuid.UUID, cascade bool) ([]PostingStatus, error) {
	invoice, err := p.loader.SalesInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("sync: load invoice %s: %w", invoiceID, err)
	}
	invoice.Dims, err = p.resolveDims(ctx, invoice.Dims, invoice.WarehouseID, invoice.CounterpartyID)
	if err != nil {
		return nil, fmt.Errorf("sync: resolve dimensions for %s: %w", invoiceID, err)
	}
	statuses := []PostingStatus{p.post(ctx, invoice)}
	if !cascade {
		return statuses, nil
	}
	receipts, err := p.loader.ReceiptsForInvoice(ctx, invoiceID)
	if err != nil {
		return statuses, fmt.Errorf("sync: load receipts for %s: %w", invoiceID, err)
	}
	for _, receipt := range receipts {
		// A receipt has no warehouse of its own; the invoice's
		// counterparty places it.
		receipt.Dims, err = p.resolveDims(ctx, receipt.Dims, 0, invoice.CounterpartyID)
		if err != nil {
			return statuses, fmt.Errorf("sync: resolve dimensions for %s: %w", receipt.ID, err)
		}
		statuses = append(statuses, p.post(ctx, receipt))
	}
	return statuses, nil
}

func (p *InvoicePoster) resolveDims(ctx context.Context, own posting.Dimensions, warehouseID, counterpartyID int64) (posting.Dimensions, error) {
	if p.resolver == nil {
		return own, nil
	}
	hints := dimensions.Hints{
		Dimensions: dimensions.Dimensions{
			BranchID:     own.BranchID,
			DepartmentID: own.DepartmentID,
			ProjectID:    own.ProjectID,
		},
	}
	if warehouseID != 0 {
		hints.WarehouseID = &warehouseID
	}
	if counterpartyID != 0 {
		hints.CounterpartyID = &counterpartyID
	}
	dims, err := p.resolver.Resolve(ctx, hints)
	if err != nil {
		if errors.Is(err, dimensions.ErrUnresolvable) {
			return own, nil
		}
		return posting.Dimensions{}, err
	}
	return posting.Dimensions{
		BranchID:     dims.BranchID,
		DepartmentID: dims.DepartmentID,
		ProjectID:    dims.ProjectID,
	}, nil
}

func (p *InvoicePoster) post(ctx context.Context, doc posting.Document) PostingStatus {
	status := PostingStatus{
		SourceType: string(doc.Kind()),
		SourceID:   doc.DocumentID().String(),
	}
	outcome, err := p.service.Post(ctx, doc, -1)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Outcome = outcome
	return status
}

type documentLoader struct {
	db *pgxpool.Pool
}

// NewDocumentLoader reads source documents from the resource tables.
func NewDocumentLoader(db *pgxpool.Pool) DocumentLoader {
	return &documentLoader{db: db}
}

func (l *documentLoader) SalesInvoice(ctx context.Context, id uuid.UUID) (posting.SalesInvoice, error) {
	var inv posting.SalesInvoice
	err := l.db.QueryRow(ctx, `
SELECT id, number, status, date, due_at, counterparty_id, COALESCE(warehouse_id, 0), subtotal, tax, fees,
       branch_id, department_id, project_id
FROM sales_invoices WHERE id=$1 AND deleted_at IS NULL`, id).
		Scan(&inv.ID, &inv.Number, &inv.Status, &inv.Date, &inv.DueAt, &inv.CounterpartyID,
			&inv.WarehouseID, &inv.Subtotal, &inv.Tax, &inv.Fees,
			&inv.Dims.BranchID, &inv.Dims.DepartmentID, &inv.Dims.ProjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return posting.SalesInvoice{}, shared.ErrNotFound
		}
		return posting.SalesInvoice{}, err
	}

	rows, err := l.db.Query(ctx, `
SELECT product_id, quantity, COALESCE(unit_cost, 0)
FROM sales_invoice_lines WHERE invoice_id=$1 ORDER BY id`, id)
	if err != nil {
		return posting.SalesInvoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line posting.SalesInvoiceLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitCost); err != nil {
			return posting.SalesInvoice{}, err
		}
		inv.Lines = append(inv.Lines, line)
	}
	return inv, rows.Err()
}

func (l *documentLoader) ReceiptsForInvoice(ctx context.Context, invoiceID uuid.UUID) ([]posting.CustomerReceipt, error) {
	rows, err := l.db.Query(ctx, `
SELECT DISTINCT r.id, r.number, r.status, r.date, r.total
FROM customer_receipts r
JOIN receipt_allocations a ON a.receipt_id = r.id
WHERE a.invoice_id=$1 AND a.deleted_at IS NULL AND r.deleted_at IS NULL
ORDER BY r.date, r.id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []posting.CustomerReceipt
	for rows.Next() {
		var receipt posting.CustomerReceipt
		if err := rows.Scan(&receipt.ID, &receipt.Number, &receipt.Status, &receipt.Date, &receipt.Total); err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range receipts {
		if err := l.fillReceipt(ctx, &receipts[i]); err != nil {
			return nil, err
		}
	}
	return receipts, nil
}

func (l *documentLoader) fillReceipt(ctx context.Context, receipt *posting.CustomerReceipt) error {
	detailRows, err := l.db.Query(ctx, `
SELECT method, account_id, amount FROM receipt_details WHERE receipt_id=$1 ORDER BY id`, receipt.ID)
	if err != nil {
		return err
	}
	defer detailRows.Close()
	for detailRows.Next() {
		var d posting.SettlementDetail
		if err := detailRows.Scan(&d.Method, &d.AccountID, &d.Amount); err != nil {
			return err
		}
		receipt.Details = append(receipt.Details, d)
	}
	if err := detailRows.Err(); err != nil {
		return err
	}

	allocRows, err := l.db.Query(ctx, `
SELECT invoice_id, amount FROM receipt_allocations WHERE receipt_id=$1 AND deleted_at IS NULL ORDER BY id`, receipt.ID)
	if err != nil {
		return err
	}
	defer allocRows.Close()
	for allocRows.Next() {
		var a posting.Allocation
		if err := allocRows.Scan(&a.InvoiceID, &a.Amount); err != nil {
			return err
		}
		receipt.Allocations = append(receipt.Allocations, a)
	}
	return allocRows.Err()
}
