package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalType labels the business event a group of lines records.
type JournalType string

const (
	JournalTypeSales        JournalType = "sales"
	JournalTypePurchase     JournalType = "purchase"
	JournalTypeReceipt      JournalType = "receipt"
	JournalTypePayment      JournalType = "payment"
	JournalTypeTransfer     JournalType = "transfer"
	JournalTypeAsset        JournalType = "asset"
	JournalTypeOpname       JournalType = "opname"
	JournalTypeDepreciation JournalType = "depreciation"
	JournalTypeOtherSale    JournalType = "other_sale"
)

// GroupKey identifies the journal group owned by one source document.
type GroupKey struct {
	SourceType  string
	SourceID    uuid.UUID
	JournalType JournalType
}

// JournalLine is a single debit or credit row in the ledger.
type JournalLine struct {
	ID           int64
	AccountID    int64
	Date         time.Time
	Reference    string
	Description  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	JournalType  JournalType
	SourceType   string
	SourceID     uuid.UUID
	BranchID     *int64
	DepartmentID *int64
	ProjectID    *int64
	DeletedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Key returns the group key the line belongs to.
func (l JournalLine) Key() GroupKey {
	return GroupKey{SourceType: l.SourceType, SourceID: l.SourceID, JournalType: l.JournalType}
}

// TrialBalanceRow aggregates live lines per account up to a date.
type TrialBalanceRow struct {
	AccountID int64
	Code      string
	Name      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}
