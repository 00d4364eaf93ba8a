package sync

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/dimensions"
	"github.com/meridian-erp/meridian-erp/internal/accounting/posting"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type stubLoader struct {
	invoices map[uuid.UUID]posting.SalesInvoice
	receipts map[uuid.UUID][]posting.CustomerReceipt
}

func (s *stubLoader) SalesInvoice(_ context.Context, id uuid.UUID) (posting.SalesInvoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return posting.SalesInvoice{}, shared.ErrNotFound
	}
	return inv, nil
}

func (s *stubLoader) ReceiptsForInvoice(_ context.Context, invoiceID uuid.UUID) ([]posting.CustomerReceipt, error) {
	return s.receipts[invoiceID], nil
}

func TestPostInvoiceCascadesToReceipt(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)

	invoiceID := uuid.New()
	invoice := testInvoice(invoiceID)
	receipt := posting.CustomerReceipt{
		ID:     uuid.New(),
		Number: "RCP-0001",
		Status: posting.StatusApproved,
		Date:   syncDate.AddDate(0, 0, 10),
		Total:  invoice.GrandTotal(),
		Details: []posting.SettlementDetail{
			{Method: posting.MethodBank, AccountID: 301, Amount: invoice.GrandTotal()},
		},
		Allocations: []posting.Allocation{
			{InvoiceID: invoiceID, Amount: invoice.GrandTotal()},
		},
	}
	loader := &stubLoader{
		invoices: map[uuid.UUID]posting.SalesInvoice{invoiceID: invoice},
		receipts: map[uuid.UUID][]posting.CustomerReceipt{invoiceID: {receipt}},
	}

	poster := NewInvoicePoster(loader, nil, svc)
	statuses, err := poster.PostInvoice(context.Background(), invoiceID, true)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.Equal(t, OutcomePosted, statuses[0].Outcome)
	require.Equal(t, OutcomePosted, statuses[1].Outcome)
	require.Empty(t, statuses[0].Error)

	rec := repo.receivables[invoiceID]
	require.NotNil(t, rec)
	require.True(t, rec.Remaining.Equal(decimal.Zero))
}

func TestPostInvoiceWithoutCascadeLeavesReceiptAlone(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)

	invoiceID := uuid.New()
	loader := &stubLoader{
		invoices: map[uuid.UUID]posting.SalesInvoice{invoiceID: testInvoice(invoiceID)},
	}

	poster := NewInvoicePoster(loader, nil, svc)
	statuses, err := poster.PostInvoice(context.Background(), invoiceID, false)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.Equal(t, OutcomePosted, statuses[0].Outcome)
}

func TestPostInvoiceUnknownIDFails(t *testing.T) {
	poster := NewInvoicePoster(&stubLoader{}, nil, testSyncService(newMemorySyncRepo()))
	_, err := poster.PostInvoice(context.Background(), uuid.New(), false)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPostInvoiceReportsFailedCascade(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)

	invoiceID := uuid.New()
	otherInvoice := uuid.New()
	receipt := posting.CustomerReceipt{
		ID:     uuid.New(),
		Number: "RCP-0002",
		Status: posting.StatusApproved,
		Date:   syncDate.AddDate(0, 0, 10),
		Total:  decimal.NewFromInt(500_000),
		Details: []posting.SettlementDetail{
			{Method: posting.MethodBank, AccountID: 301, Amount: decimal.NewFromInt(500_000)},
		},
		Allocations: []posting.Allocation{
			// Allocates against an invoice that was never posted.
			{InvoiceID: otherInvoice, Amount: decimal.NewFromInt(500_000)},
		},
	}
	loader := &stubLoader{
		invoices: map[uuid.UUID]posting.SalesInvoice{invoiceID: testInvoice(invoiceID)},
		receipts: map[uuid.UUID][]posting.CustomerReceipt{invoiceID: {receipt}},
	}

	poster := NewInvoicePoster(loader, nil, svc)
	statuses, err := poster.PostInvoice(context.Background(), invoiceID, true)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.Equal(t, OutcomePosted, statuses[0].Outcome)
	require.NotEmpty(t, statuses[1].Error)
}

type stubDimSource struct {
	branches map[int64]int64
	defaults map[int64]dimensions.Dimensions
}

func (s *stubDimSource) WarehouseBranch(_ context.Context, warehouseID int64) (*int64, error) {
	if branch, ok := s.branches[warehouseID]; ok {
		return &branch, nil
	}
	return nil, nil
}

func (s *stubDimSource) CounterpartyDefaults(_ context.Context, counterpartyID int64) (dimensions.Dimensions, error) {
	return s.defaults[counterpartyID], nil
}

func TestPostInvoiceStampsResolvedDimensions(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)

	invoiceID := uuid.New()
	invoice := testInvoice(invoiceID)
	receipt := posting.CustomerReceipt{
		ID:     uuid.New(),
		Number: "RCP-0003",
		Status: posting.StatusApproved,
		Date:   syncDate.AddDate(0, 0, 10),
		Total:  invoice.GrandTotal(),
		Details: []posting.SettlementDetail{
			{Method: posting.MethodBank, AccountID: 301, Amount: invoice.GrandTotal()},
		},
		Allocations: []posting.Allocation{
			{InvoiceID: invoiceID, Amount: invoice.GrandTotal()},
		},
	}
	loader := &stubLoader{
		invoices: map[uuid.UUID]posting.SalesInvoice{invoiceID: invoice},
		receipts: map[uuid.UUID][]posting.CustomerReceipt{invoiceID: {receipt}},
	}
	dept := int64(12)
	resolver := dimensions.NewResolver(&stubDimSource{
		branches: map[int64]int64{invoice.WarehouseID: 4},
		defaults: map[int64]dimensions.Dimensions{invoice.CounterpartyID: {DepartmentID: &dept}},
	})

	poster := NewInvoicePoster(loader, resolver, svc)
	statuses, err := poster.PostInvoice(context.Background(), invoiceID, true)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	require.Equal(t, OutcomePosted, statuses[0].Outcome)
	require.Equal(t, OutcomePosted, statuses[1].Outcome)

	var invoiceLines, receiptLines int
	for _, line := range repo.lines {
		switch line.SourceID {
		case invoiceID:
			invoiceLines++
			require.NotNil(t, line.BranchID)
			require.EqualValues(t, 4, *line.BranchID)
			require.NotNil(t, line.DepartmentID)
			require.EqualValues(t, 12, *line.DepartmentID)
		case receipt.ID:
			receiptLines++
			// No warehouse on a receipt: only the counterparty
			// defaults apply.
			require.Nil(t, line.BranchID)
			require.NotNil(t, line.DepartmentID)
			require.EqualValues(t, 12, *line.DepartmentID)
		}
	}
	require.NotZero(t, invoiceLines)
	require.NotZero(t, receiptLines)
}
