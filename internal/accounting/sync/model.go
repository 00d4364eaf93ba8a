package sync

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/posting"
)

// State is the ledger-facing lifecycle of a source document.
type State string

const (
	StateDraft  State = "draft"
	StatePosted State = "posted"
	StateVoided State = "voided"
)

// Outcome names what a transition actually did.
type Outcome string

const (
	OutcomePosted    Outcome = "posted"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeReplaced  Outcome = "replaced"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeVoided    Outcome = "voided"
	OutcomeRestored  Outcome = "restored"
	OutcomePurged    Outcome = "purged"
)

// DocumentRecord tracks one document's posting state and version. The
// counterparty, grand total and due date are denormalised here so the AR/AP
// rebuild queries can run without reaching into the source modules.
type DocumentRecord struct {
	SourceType     string
	SourceID       uuid.UUID
	State          State
	Version        int64
	CounterpartyID *int64
	GrandTotal     decimal.Decimal
	DueAt          *time.Time
	PostedAt       *time.Time
	VoidedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// criticalFields lists, per document kind, the fields whose change moves
// money or quantities and therefore forces a journal replacement. Edits
// outside this set never touch the ledger.
var criticalFields = map[posting.SourceKind][]string{
	posting.KindSalesInvoice:       {"date", "due_at", "counterparty_id", "warehouse_id", "subtotal", "tax", "fees", "lines"},
	posting.KindPurchaseInvoice:    {"date", "due_at", "counterparty_id", "warehouse_id", "subtotal", "tax", "grand_total", "has_receipts", "lines"},
	posting.KindCustomerReceipt:    {"date", "total", "details", "allocations"},
	posting.KindVendorPayment:      {"date", "total", "details", "allocations", "import_vat", "withholding_tax", "import_duty"},
	posting.KindCashBankTransfer:   {"date", "amount", "fee", "from_account_id", "to_account_id"},
	posting.KindAssetPurchaseOrder: {"date", "lines"},
	posting.KindStockOpname:        {"date", "warehouse_id", "items"},
	posting.KindDepreciationRun:    {"date", "period", "entries"},
	posting.KindOtherSale:          {"date", "total", "cash_account_id"},
}

// CriticalFields returns the replacement-forcing fields for a kind.
func CriticalFields(kind posting.SourceKind) []string {
	return criticalFields[kind]
}

// IsCritical reports whether any of the changed fields is critical for the
// kind.
func IsCritical(kind posting.SourceKind, changed []string) bool {
	set := criticalFields[kind]
	for _, field := range changed {
		for _, critical := range set {
			if field == critical {
				return true
			}
		}
	}
	return false
}
