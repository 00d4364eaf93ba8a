package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/ledger"
	"github.com/meridian-erp/meridian-erp/internal/accounting/mappings"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// AccountResolver turns ledger roles into chart accounts.
type AccountResolver interface {
	Resolve(ctx context.Context, role mappings.Role) (accounts.Account, error)
}

// Engine derives balanced journal groups from source documents. Rules are
// deterministic: the same document always yields the same drafts.
type Engine struct {
	resolver AccountResolver
}

func NewEngine(resolver AccountResolver) *Engine {
	return &Engine{resolver: resolver}
}

// Draft produces the journal group for the document. The returned input may
// carry zero lines (stock opname with no net difference), which callers treat
// as nothing to post.
func (e *Engine) Draft(ctx context.Context, doc Document) (ledger.GroupInput, error) {
	key := ledger.GroupKey{
		SourceType:  string(doc.Kind()),
		SourceID:    doc.DocumentID(),
		JournalType: JournalTypeFor(doc.Kind()),
	}
	var (
		lines []ledger.LineDraft
		err   error
	)
	switch d := doc.(type) {
	case SalesInvoice:
		lines, err = e.draftSalesInvoice(ctx, d)
	case PurchaseInvoice:
		lines, err = e.draftPurchaseInvoice(ctx, d)
	case CustomerReceipt:
		lines, err = e.draftCustomerReceipt(ctx, d)
	case VendorPayment:
		lines, err = e.draftVendorPayment(ctx, d)
	case CashBankTransfer:
		lines, err = e.draftCashBankTransfer(ctx, d)
	case AssetPurchaseOrder:
		lines, err = e.draftAssetPurchaseOrder(ctx, d)
	case StockOpname:
		lines, err = e.draftStockOpname(ctx, d)
	case DepreciationRun:
		lines, err = e.draftDepreciationRun(ctx, d)
	case OtherSale:
		lines, err = e.draftOtherSale(ctx, d)
	default:
		return ledger.GroupInput{}, fmt.Errorf("posting: unsupported document kind %q", doc.Kind())
	}
	if err != nil {
		return ledger.GroupInput{}, err
	}
	return ledger.GroupInput{Key: key, Lines: lines}, nil
}

func postable(status string) bool {
	return status == StatusApproved || status == StatusReleased
}

func requirePostable(kind SourceKind, status string) error {
	if !postable(status) {
		return fmt.Errorf("posting: %s status %q: %w", kind, status, shared.ErrInvalidDocumentState)
	}
	return nil
}

type lineBuilder struct {
	date time.Time
	ref  string
	dims Dimensions
}

func (b lineBuilder) debit(account accounts.Account, amount decimal.Decimal, desc string) ledger.LineDraft {
	return ledger.LineDraft{
		AccountID:    account.ID,
		Date:         b.date,
		Reference:    b.ref,
		Description:  desc,
		Debit:        amount,
		Credit:       decimal.Zero,
		BranchID:     b.dims.BranchID,
		DepartmentID: b.dims.DepartmentID,
		ProjectID:    b.dims.ProjectID,
	}
}

func (b lineBuilder) credit(account accounts.Account, amount decimal.Decimal, desc string) ledger.LineDraft {
	return ledger.LineDraft{
		AccountID:    account.ID,
		Date:         b.date,
		Reference:    b.ref,
		Description:  desc,
		Debit:        decimal.Zero,
		Credit:       amount,
		BranchID:     b.dims.BranchID,
		DepartmentID: b.dims.DepartmentID,
		ProjectID:    b.dims.ProjectID,
	}
}
