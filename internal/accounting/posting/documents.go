package posting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/ledger"
)

// SourceKind enumerates document types the rule engine can post.
type SourceKind string

const (
	KindSalesInvoice       SourceKind = "sales_invoice"
	KindPurchaseInvoice    SourceKind = "purchase_invoice"
	KindCustomerReceipt    SourceKind = "customer_receipt"
	KindVendorPayment      SourceKind = "vendor_payment"
	KindCashBankTransfer   SourceKind = "cash_bank_transfer"
	KindAssetPurchaseOrder SourceKind = "asset_purchase_order"
	KindStockOpname        SourceKind = "stock_opname"
	KindDepreciationRun    SourceKind = "depreciation_run"
	KindOtherSale          SourceKind = "other_sale"
)

// JournalTypeFor maps a source kind to its ledger journal type.
func JournalTypeFor(kind SourceKind) ledger.JournalType {
	switch kind {
	case KindSalesInvoice:
		return ledger.JournalTypeSales
	case KindPurchaseInvoice:
		return ledger.JournalTypePurchase
	case KindCustomerReceipt:
		return ledger.JournalTypeReceipt
	case KindVendorPayment:
		return ledger.JournalTypePayment
	case KindCashBankTransfer:
		return ledger.JournalTypeTransfer
	case KindAssetPurchaseOrder:
		return ledger.JournalTypeAsset
	case KindStockOpname:
		return ledger.JournalTypeOpname
	case KindDepreciationRun:
		return ledger.JournalTypeDepreciation
	case KindOtherSale:
		return ledger.JournalTypeOtherSale
	default:
		return ledger.JournalType(kind)
	}
}

// Document statuses that allow posting.
const (
	StatusApproved = "approved"
	StatusReleased = "released"
)

// Dimensions carries the analytic axes stamped on every generated line.
type Dimensions struct {
	BranchID     *int64
	DepartmentID *int64
	ProjectID    *int64
}

// Document is one of the posting source types.
type Document interface {
	Kind() SourceKind
	DocumentID() uuid.UUID
}

// PaymentMethod distinguishes settlement instruments on receipt and payment
// details.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodBank     PaymentMethod = "bank"
	MethodDeposit  PaymentMethod = "deposit"
	MethodTransfer PaymentMethod = "transfer"
)

// SalesInvoiceLine carries the cost data needed for the COGS block.
type SalesInvoiceLine struct {
	ProductID int64
	Quantity  float64
	UnitCost  decimal.Decimal
}

type SalesInvoice struct {
	ID             uuid.UUID
	Number         string
	Status         string
	Date           time.Time
	DueAt          time.Time
	CounterpartyID int64
	WarehouseID    int64
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Fees           decimal.Decimal
	Lines          []SalesInvoiceLine
	Dims           Dimensions
}

func (d SalesInvoice) Kind() SourceKind      { return KindSalesInvoice }
func (d SalesInvoice) DocumentID() uuid.UUID { return d.ID }

// GrandTotal is what the customer owes: subtotal plus tax plus fees.
func (d SalesInvoice) GrandTotal() decimal.Decimal {
	return d.Subtotal.Add(d.Tax).Add(d.Fees)
}

// PurchaseInvoiceLine carries the received quantities for stock movements.
type PurchaseInvoiceLine struct {
	ProductID int64
	Quantity  float64
}

type PurchaseInvoice struct {
	ID             uuid.UUID
	Number         string
	Status         string
	Date           time.Time
	DueAt          time.Time
	CounterpartyID int64
	WarehouseID    int64
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	GrandTotal     decimal.Decimal
	HasReceipts    bool
	Lines          []PurchaseInvoiceLine
	Dims           Dimensions
}

func (d PurchaseInvoice) Kind() SourceKind      { return KindPurchaseInvoice }
func (d PurchaseInvoice) DocumentID() uuid.UUID { return d.ID }

// SettlementDetail is one row of how a receipt or payment was settled.
type SettlementDetail struct {
	Method    PaymentMethod
	AccountID int64
	Amount    decimal.Decimal
}

// Allocation ties part of a receipt or payment to one invoice.
type Allocation struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
}

type CustomerReceipt struct {
	ID          uuid.UUID
	Number      string
	Status      string
	Date        time.Time
	Total       decimal.Decimal
	Details     []SettlementDetail
	Allocations []Allocation
	Dims        Dimensions
}

func (d CustomerReceipt) Kind() SourceKind      { return KindCustomerReceipt }
func (d CustomerReceipt) DocumentID() uuid.UUID { return d.ID }

type VendorPayment struct {
	ID             uuid.UUID
	Number         string
	Status         string
	Date           time.Time
	Total          decimal.Decimal
	Details        []SettlementDetail
	Allocations    []Allocation
	IsImport       bool
	ImportVAT      decimal.Decimal
	WithholdingTax decimal.Decimal
	ImportDuty     decimal.Decimal
	Dims           Dimensions
}

func (d VendorPayment) Kind() SourceKind      { return KindVendorPayment }
func (d VendorPayment) DocumentID() uuid.UUID { return d.ID }

type CashBankTransfer struct {
	ID            uuid.UUID
	Number        string
	Status        string
	Date          time.Time
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	Fee           decimal.Decimal
	Dims          Dimensions
}

func (d CashBankTransfer) Kind() SourceKind      { return KindCashBankTransfer }
func (d CashBankTransfer) DocumentID() uuid.UUID { return d.ID }

type AssetPurchaseOrderLine struct {
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
}

type AssetPurchaseOrder struct {
	ID     uuid.UUID
	Number string
	Status string
	Date   time.Time
	Lines  []AssetPurchaseOrderLine
	Dims   Dimensions
}

func (d AssetPurchaseOrder) Kind() SourceKind      { return KindAssetPurchaseOrder }
func (d AssetPurchaseOrder) DocumentID() uuid.UUID { return d.ID }

// GrandTotal sums qty times unit price over all lines.
func (d AssetPurchaseOrder) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range d.Lines {
		total = total.Add(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
	}
	return total
}

type StockOpnameItem struct {
	ProductID       int64
	QuantityDiff    float64
	DifferenceValue decimal.Decimal
}

type StockOpname struct {
	ID          uuid.UUID
	Number      string
	Status      string
	Date        time.Time
	WarehouseID int64
	Items       []StockOpnameItem
	Dims        Dimensions
}

func (d StockOpname) Kind() SourceKind      { return KindStockOpname }
func (d StockOpname) DocumentID() uuid.UUID { return d.ID }

// NetDifference is the signed sum of item difference values.
func (d StockOpname) NetDifference() decimal.Decimal {
	net := decimal.Zero
	for _, item := range d.Items {
		net = net.Add(item.DifferenceValue)
	}
	return net
}

type DepreciationEntry struct {
	AssetID int64
	Amount  decimal.Decimal
}

type DepreciationRun struct {
	ID      uuid.UUID
	Status  string
	Date    time.Time
	Period  string
	Entries []DepreciationEntry
	Dims    Dimensions
}

func (d DepreciationRun) Kind() SourceKind      { return KindDepreciationRun }
func (d DepreciationRun) DocumentID() uuid.UUID { return d.ID }

type OtherSale struct {
	ID            uuid.UUID
	Number        string
	Status        string
	Date          time.Time
	Total         decimal.Decimal
	CashAccountID int64
	Dims          Dimensions
}

func (d OtherSale) Kind() SourceKind      { return KindOtherSale }
func (d OtherSale) DocumentID() uuid.UUID { return d.ID }
