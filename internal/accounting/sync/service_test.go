package sync

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/ledger"
	"github.com/meridian-erp/meridian-erp/internal/accounting/mappings"
	"github.com/meridian-erp/meridian-erp/internal/accounting/posting"
	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/ap"
	"github.com/meridian-erp/meridian-erp/internal/ar"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type roleResolver struct {
	ids  map[mappings.Role]int64
	next int64
}

func newRoleResolver() *roleResolver {
	return &roleResolver{ids: map[mappings.Role]int64{}, next: 100}
}

func (r *roleResolver) Resolve(_ context.Context, role mappings.Role) (accounts.Account, error) {
	if id, ok := r.ids[role]; ok {
		return accounts.Account{ID: id, Code: string(role), Type: accounts.AccountTypeAsset}, nil
	}
	r.next++
	r.ids[role] = r.next
	return accounts.Account{ID: r.next, Code: string(role), Type: accounts.AccountTypeAsset}, nil
}

type memorySyncRepo struct {
	docs           map[string]*DocumentRecord
	lines          []ledger.JournalLine
	nextLineID     int64
	movements      []inventory.StockMovement
	nextMovementID int64
	stocks         map[inventory.StockKey]*inventory.InventoryStock
	receivables    map[uuid.UUID]*ar.Receivable
	payables       map[uuid.UUID]*ap.Payable
	receiptAllocs  map[uuid.UUID]decimal.Decimal
	paymentAllocs  map[uuid.UUID]decimal.Decimal
}

func newMemorySyncRepo() *memorySyncRepo {
	return &memorySyncRepo{
		docs:          map[string]*DocumentRecord{},
		stocks:        map[inventory.StockKey]*inventory.InventoryStock{},
		receivables:   map[uuid.UUID]*ar.Receivable{},
		payables:      map[uuid.UUID]*ap.Payable{},
		receiptAllocs: map[uuid.UUID]decimal.Decimal{},
		paymentAllocs: map[uuid.UUID]decimal.Decimal{},
	}
}

func docKey(sourceType string, sourceID uuid.UUID) string {
	return sourceType + "|" + sourceID.String()
}

func (m *memorySyncRepo) Get(_ context.Context, sourceType string, sourceID uuid.UUID) (*DocumentRecord, error) {
	rec, ok := m.docs[docKey(sourceType, sourceID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *memorySyncRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memorySyncRepo) GetDocumentForUpdate(ctx context.Context, sourceType string, sourceID uuid.UUID) (*DocumentRecord, error) {
	return m.Get(ctx, sourceType, sourceID)
}

func (m *memorySyncRepo) SaveDocument(_ context.Context, rec DocumentRecord) error {
	clone := rec
	m.docs[docKey(rec.SourceType, rec.SourceID)] = &clone
	return nil
}

func (m *memorySyncRepo) DeleteDocument(_ context.Context, sourceType string, sourceID uuid.UUID) error {
	delete(m.docs, docKey(sourceType, sourceID))
	return nil
}

func (m *memorySyncRepo) Ledger() ledger.TxRepository       { return m }
func (m *memorySyncRepo) Inventory() inventory.TxRepository { return m }

func (m *memorySyncRepo) LiveLines(_ context.Context, key ledger.GroupKey) ([]ledger.JournalLine, error) {
	var out []ledger.JournalLine
	for _, l := range m.lines {
		if l.Key() == key && l.DeletedAt == nil {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memorySyncRepo) InsertLines(_ context.Context, key ledger.GroupKey, drafts []ledger.LineDraft) error {
	for _, d := range drafts {
		m.nextLineID++
		m.lines = append(m.lines, ledger.JournalLine{
			ID:           m.nextLineID,
			AccountID:    d.AccountID,
			Date:         d.Date,
			Reference:    d.Reference,
			Description:  d.Description,
			Debit:        d.Debit,
			Credit:       d.Credit,
			JournalType:  key.JournalType,
			SourceType:   key.SourceType,
			SourceID:     key.SourceID,
			BranchID:     d.BranchID,
			DepartmentID: d.DepartmentID,
			ProjectID:    d.ProjectID,
		})
	}
	return nil
}

func (m *memorySyncRepo) SoftDeleteGroup(_ context.Context, key ledger.GroupKey) (int64, error) {
	now := time.Now()
	var count int64
	for i := range m.lines {
		if m.lines[i].Key() == key && m.lines[i].DeletedAt == nil {
			m.lines[i].DeletedAt = &now
			count++
		}
	}
	return count, nil
}

func (m *memorySyncRepo) RestoreGroup(_ context.Context, key ledger.GroupKey) (int64, error) {
	var count int64
	for i := range m.lines {
		if m.lines[i].Key() == key && m.lines[i].DeletedAt != nil {
			m.lines[i].DeletedAt = nil
			count++
		}
	}
	return count, nil
}

func (m *memorySyncRepo) PurgeGroup(_ context.Context, key ledger.GroupKey) (int64, error) {
	var kept []ledger.JournalLine
	var count int64
	for _, l := range m.lines {
		if l.Key() == key {
			count++
			continue
		}
		kept = append(kept, l)
	}
	m.lines = kept
	return count, nil
}

func (m *memorySyncRepo) InsertMovement(_ context.Context, mv inventory.StockMovement) error {
	m.nextMovementID++
	mv.ID = m.nextMovementID
	m.movements = append(m.movements, mv)
	return nil
}

func (m *memorySyncRepo) SoftDeleteMovements(_ context.Context, sourceType string, sourceID uuid.UUID) ([]inventory.StockMovement, error) {
	now := time.Now()
	var out []inventory.StockMovement
	for i := range m.movements {
		mv := &m.movements[i]
		if mv.SourceType == sourceType && mv.SourceID == sourceID && mv.DeletedAt == nil {
			mv.DeletedAt = &now
			out = append(out, *mv)
		}
	}
	return out, nil
}

func (m *memorySyncRepo) RestoreMovements(_ context.Context, sourceType string, sourceID uuid.UUID) ([]inventory.StockMovement, error) {
	var out []inventory.StockMovement
	for i := range m.movements {
		mv := &m.movements[i]
		if mv.SourceType == sourceType && mv.SourceID == sourceID && mv.DeletedAt != nil {
			mv.DeletedAt = nil
			out = append(out, *mv)
		}
	}
	return out, nil
}

func (m *memorySyncRepo) PurgeMovements(_ context.Context, sourceType string, sourceID uuid.UUID) (int64, error) {
	var kept []inventory.StockMovement
	var count int64
	for _, mv := range m.movements {
		if mv.SourceType == sourceType && mv.SourceID == sourceID {
			count++
			continue
		}
		kept = append(kept, mv)
	}
	m.movements = kept
	return count, nil
}

func (m *memorySyncRepo) GetStockForUpdate(_ context.Context, key inventory.StockKey) (inventory.InventoryStock, error) {
	if s, ok := m.stocks[key]; ok {
		return *s, nil
	}
	return inventory.InventoryStock{ProductID: key.ProductID, WarehouseID: key.WarehouseID, RakID: key.Rak()}, nil
}

func (m *memorySyncRepo) SaveStock(_ context.Context, stock inventory.InventoryStock) error {
	clone := stock
	m.stocks[stock.Key()] = &clone
	return nil
}

func (m *memorySyncRepo) GetReceivableForUpdate(_ context.Context, invoiceID uuid.UUID) (*ar.Receivable, error) {
	rec, ok := m.receivables[invoiceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *memorySyncRepo) SaveReceivable(_ context.Context, rec ar.Receivable) error {
	clone := rec
	m.receivables[rec.InvoiceID] = &clone
	return nil
}

func (m *memorySyncRepo) DeleteReceivable(_ context.Context, invoiceID uuid.UUID) error {
	delete(m.receivables, invoiceID)
	return nil
}

func (m *memorySyncRepo) ReceiptAllocatedTotal(_ context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	if total, ok := m.receiptAllocs[invoiceID]; ok {
		return total, nil
	}
	return decimal.Zero, nil
}

func (m *memorySyncRepo) GetPayableForUpdate(_ context.Context, invoiceID uuid.UUID) (*ap.Payable, error) {
	p, ok := m.payables[invoiceID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *memorySyncRepo) SavePayable(_ context.Context, p ap.Payable) error {
	clone := p
	m.payables[p.InvoiceID] = &clone
	return nil
}

func (m *memorySyncRepo) DeletePayable(_ context.Context, invoiceID uuid.UUID) error {
	delete(m.payables, invoiceID)
	return nil
}

func (m *memorySyncRepo) PaymentAllocatedTotal(_ context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	if total, ok := m.paymentAllocs[invoiceID]; ok {
		return total, nil
	}
	return decimal.Zero, nil
}

func testSyncService(repo Repository) *Service {
	engine := posting.NewEngine(newRoleResolver())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, engine, nil, nil, logger, false)
}

var syncDate = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

func testInvoice(id uuid.UUID) posting.SalesInvoice {
	return posting.SalesInvoice{
		ID:             id,
		Number:         "INV-0001",
		Status:         posting.StatusApproved,
		Date:           syncDate,
		DueAt:          syncDate.AddDate(0, 1, 0),
		CounterpartyID: 7,
		WarehouseID:    1,
		Subtotal:       decimal.NewFromInt(10_000_000),
		Tax:            decimal.NewFromInt(1_100_000),
		Lines: []posting.SalesInvoiceLine{
			{ProductID: 11, Quantity: 4, UnitCost: decimal.NewFromInt(1_250_000)},
		},
	}
}

func seedStock(repo *memorySyncRepo, productID, warehouseID int64, qty float64) {
	key := inventory.StockKey{ProductID: productID, WarehouseID: warehouseID}
	repo.stocks[key] = &inventory.InventoryStock{ProductID: productID, WarehouseID: warehouseID, QtyAvailable: qty}
}

func liveLineCount(repo *memorySyncRepo, doc posting.Document) int {
	var count int
	for _, l := range repo.lines {
		if l.SourceType == string(doc.Kind()) && l.SourceID == doc.DocumentID() && l.DeletedAt == nil {
			count++
		}
	}
	return count
}

func TestPostSalesInvoice(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	outcome, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)
	require.Equal(t, OutcomePosted, outcome)

	rec, err := svc.Document(context.Background(), "sales_invoice", inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatePosted, rec.State)
	require.EqualValues(t, 1, rec.Version)
	require.True(t, rec.GrandTotal.Equal(decimal.NewFromInt(11_100_000)))

	// AR grand total debit, revenue, output tax, COGS pair.
	require.Equal(t, 5, liveLineCount(repo, inv))

	receivable := repo.receivables[inv.ID]
	require.NotNil(t, receivable)
	require.True(t, receivable.Total.Equal(decimal.NewFromInt(11_100_000)))
	require.Equal(t, ar.StatusOutstanding, receivable.Status)

	stock := repo.stocks[inventory.StockKey{ProductID: 11, WarehouseID: 1}]
	require.InDelta(t, 6, stock.QtyAvailable, inventory.AuditEpsilon)
}

func TestPostTwiceSkips(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)
	before := liveLineCount(repo, inv)

	outcome, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
	require.Equal(t, before, liveLineCount(repo, inv))

	stock := repo.stocks[inventory.StockKey{ProductID: 11, WarehouseID: 1}]
	require.InDelta(t, 6, stock.QtyAvailable, inventory.AuditEpsilon)
}

func TestVersionGuardRejectsStaleWriter(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, 0)
	require.NoError(t, err)

	err = svc.Void(context.Background(), inv, 5)
	require.ErrorIs(t, err, accshared.ErrConcurrencyConflict)

	require.NoError(t, svc.Void(context.Background(), inv, 1))
}

func TestVoidReversesAggregates(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)
	require.NoError(t, svc.Void(context.Background(), inv, -1))

	rec, err := svc.Document(context.Background(), "sales_invoice", inv.ID)
	require.NoError(t, err)
	require.Equal(t, StateVoided, rec.State)

	require.Equal(t, 0, liveLineCount(repo, inv))
	require.Nil(t, repo.receivables[inv.ID])

	stock := repo.stocks[inventory.StockKey{ProductID: 11, WarehouseID: 1}]
	require.InDelta(t, 10, stock.QtyAvailable, inventory.AuditEpsilon)
}

func TestRestoreReappliesAggregates(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)
	require.NoError(t, svc.Void(context.Background(), inv, -1))
	require.NoError(t, svc.Restore(context.Background(), inv, -1))

	rec, err := svc.Document(context.Background(), "sales_invoice", inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatePosted, rec.State)
	require.Equal(t, 5, liveLineCount(repo, inv))
	require.NotNil(t, repo.receivables[inv.ID])

	stock := repo.stocks[inventory.StockKey{ProductID: 11, WarehouseID: 1}]
	require.InDelta(t, 6, stock.QtyAvailable, inventory.AuditEpsilon)
}

func TestPostVoidedDocumentRejected(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)
	require.NoError(t, svc.Void(context.Background(), inv, -1))

	_, err = svc.Post(context.Background(), inv, -1)
	require.ErrorIs(t, err, accshared.ErrInvalidDocumentState)
}

func TestReceiptSettlesInvoice(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)

	receipt := posting.CustomerReceipt{
		ID:     uuid.New(),
		Number: "RCP-0001",
		Status: posting.StatusApproved,
		Date:   syncDate.AddDate(0, 0, 10),
		Total:  decimal.NewFromInt(11_100_000),
		Details: []posting.SettlementDetail{
			{Method: posting.MethodBank, AccountID: 301, Amount: decimal.NewFromInt(11_100_000)},
		},
		Allocations: []posting.Allocation{
			{InvoiceID: inv.ID, Amount: decimal.NewFromInt(11_100_000)},
		},
	}
	_, err = svc.Post(context.Background(), receipt, -1)
	require.NoError(t, err)

	receivable := repo.receivables[inv.ID]
	require.Equal(t, ar.StatusSettled, receivable.Status)
	require.True(t, receivable.Paid.Equal(decimal.NewFromInt(11_100_000)))

	require.NoError(t, svc.Void(context.Background(), receipt, -1))
	receivable = repo.receivables[inv.ID]
	require.Equal(t, ar.StatusOutstanding, receivable.Status)
	require.True(t, receivable.Paid.IsZero())
}

func TestReceiptAgainstUnpostedInvoiceFails(t *testing.T) {
	repo := newMemorySyncRepo()
	svc := testSyncService(repo)

	receipt := posting.CustomerReceipt{
		ID:     uuid.New(),
		Status: posting.StatusApproved,
		Date:   syncDate,
		Total:  decimal.NewFromInt(500_000),
		Details: []posting.SettlementDetail{
			{Method: posting.MethodBank, AccountID: 301, Amount: decimal.NewFromInt(500_000)},
		},
		Allocations: []posting.Allocation{
			{InvoiceID: uuid.New(), Amount: decimal.NewFromInt(500_000)},
		},
	}
	_, err := svc.Post(context.Background(), receipt, -1)
	require.Error(t, err)
	require.Equal(t, 0, liveLineCount(repo, receipt))
}

func TestAmendNonCriticalLeavesLedgerAlone(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)
	lineIDs := lineIDsOf(repo, inv)

	outcome, err := svc.Amend(context.Background(), inv, inv, []string{"notes"}, -1)
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, outcome)
	require.Equal(t, lineIDs, lineIDsOf(repo, inv))

	rec, err := svc.Document(context.Background(), "sales_invoice", inv.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, rec.Version)
}

func TestAmendIdenticalDraftsKeepRows(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)
	lineIDs := lineIDsOf(repo, inv)

	// Date is critical but nothing actually moved: drafts match the rows.
	outcome, err := svc.Amend(context.Background(), inv, inv, []string{"date"}, -1)
	require.NoError(t, err)
	require.Equal(t, OutcomeUnchanged, outcome)
	require.Equal(t, lineIDs, lineIDsOf(repo, inv))
}

func TestAmendCriticalReplacesGroupAndAggregates(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)

	updated := inv
	updated.Subtotal = decimal.NewFromInt(12_000_000)
	updated.Lines = []posting.SalesInvoiceLine{
		{ProductID: 11, Quantity: 6, UnitCost: decimal.NewFromInt(1_250_000)},
	}

	outcome, err := svc.Amend(context.Background(), inv, updated, []string{"subtotal", "lines"}, -1)
	require.NoError(t, err)
	require.Equal(t, OutcomeReplaced, outcome)

	receivable := repo.receivables[inv.ID]
	require.True(t, receivable.Total.Equal(decimal.NewFromInt(13_100_000)))

	stock := repo.stocks[inventory.StockKey{ProductID: 11, WarehouseID: 1}]
	require.InDelta(t, 4, stock.QtyAvailable, inventory.AuditEpsilon)

	// Only the replacement movement survives, so a void-restore cycle cannot
	// double-apply quantities.
	var liveMovements int
	for _, mv := range repo.movements {
		if mv.DeletedAt == nil {
			liveMovements++
		}
	}
	require.Equal(t, 1, liveMovements)
	require.Equal(t, 1, len(repo.movements))
}

func TestPurgeRemovesAllTraces(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)
	require.NoError(t, svc.Void(context.Background(), inv, -1))
	require.NoError(t, svc.Purge(context.Background(), inv, -1))

	require.Empty(t, repo.lines)
	require.Empty(t, repo.movements)
	require.Nil(t, repo.receivables[inv.ID])

	_, err = svc.Document(context.Background(), "sales_invoice", inv.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPurgeRequiresVoidedState(t *testing.T) {
	repo := newMemorySyncRepo()
	seedStock(repo, 11, 1, 10)
	svc := testSyncService(repo)
	inv := testInvoice(uuid.New())

	_, err := svc.Post(context.Background(), inv, -1)
	require.NoError(t, err)

	err = svc.Purge(context.Background(), inv, -1)
	require.ErrorIs(t, err, accshared.ErrInvalidDocumentState)
}

func lineIDsOf(repo *memorySyncRepo, doc posting.Document) []int64 {
	var ids []int64
	for _, l := range repo.lines {
		if l.SourceType == string(doc.Kind()) && l.SourceID == doc.DocumentID() && l.DeletedAt == nil {
			ids = append(ids, l.ID)
		}
	}
	return ids
}
