package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MovementType names the business cause of a stock movement.
type MovementType string

const (
	MovementPurchaseIn     MovementType = "purchase_in"
	MovementTransferIn     MovementType = "transfer_in"
	MovementManufactureIn  MovementType = "manufacture_in"
	MovementAdjustmentIn   MovementType = "adjustment_in"
	MovementSales          MovementType = "sales"
	MovementTransferOut    MovementType = "transfer_out"
	MovementManufactureOut MovementType = "manufacture_out"
	MovementAdjustmentOut  MovementType = "adjustment_out"
	MovementOpnameAdjust   MovementType = "opname_adjust"
)

// Inbound reports whether the type increases stock. Opname adjustments carry
// their own sign and are neither strictly inbound nor outbound.
func (t MovementType) Inbound() bool {
	switch t {
	case MovementPurchaseIn, MovementTransferIn, MovementManufactureIn, MovementAdjustmentIn:
		return true
	default:
		return false
	}
}

func (t MovementType) Outbound() bool {
	switch t {
	case MovementSales, MovementTransferOut, MovementManufactureOut, MovementAdjustmentOut:
		return true
	default:
		return false
	}
}

// StockKey locates one stock cache row. RakID 0 means no rack; the key holds
// plain values so two keys for the same row always compare equal, including
// as map keys.
type StockKey struct {
	ProductID   int64
	WarehouseID int64
	RakID       int64
}

func (k StockKey) String() string {
	if k.RakID != 0 {
		return fmt.Sprintf("product %d warehouse %d rak %d", k.ProductID, k.WarehouseID, k.RakID)
	}
	return fmt.Sprintf("product %d warehouse %d", k.ProductID, k.WarehouseID)
}

// Rak returns the nullable column form of the rack id.
func (k StockKey) Rak() *int64 {
	if k.RakID == 0 {
		return nil
	}
	rak := k.RakID
	return &rak
}

func rakKey(rak *int64) int64 {
	if rak == nil {
		return 0
	}
	return *rak
}

// StockMovement is one signed quantity change with its cause and source.
type StockMovement struct {
	ID          int64
	ProductID   int64
	WarehouseID int64
	RakID       *int64
	Type        MovementType
	Quantity    float64
	Date        time.Time
	SourceType  string
	SourceID    uuid.UUID
	DeletedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Key returns the stock cache row the movement affects.
func (m StockMovement) Key() StockKey {
	return StockKey{ProductID: m.ProductID, WarehouseID: m.WarehouseID, RakID: rakKey(m.RakID)}
}

// Validate checks the quantity sign against the movement type.
func (m StockMovement) Validate() error {
	if m.ProductID == 0 || m.WarehouseID == 0 {
		return fmt.Errorf("inventory: movement requires product and warehouse")
	}
	if m.Quantity == 0 {
		return fmt.Errorf("inventory: movement quantity must be non-zero")
	}
	if m.Type.Inbound() && m.Quantity < 0 {
		return fmt.Errorf("inventory: %s quantity must be positive", m.Type)
	}
	if m.Type.Outbound() && m.Quantity > 0 {
		return fmt.Errorf("inventory: %s quantity must be negative", m.Type)
	}
	return nil
}

// InventoryStock is the cached on-hand position per stock key.
type InventoryStock struct {
	ProductID    int64
	WarehouseID  int64
	RakID        *int64
	QtyAvailable float64
	QtyReserved  float64
	UpdatedAt    time.Time
}

func (s InventoryStock) Key() StockKey {
	return StockKey{ProductID: s.ProductID, WarehouseID: s.WarehouseID, RakID: rakKey(s.RakID)}
}

// AuditEpsilon is the tolerance below which cached and computed quantities
// count as equal.
const AuditEpsilon = 1e-6

// AuditRow is one stock record compared against its recomputed movement sum.
type AuditRow struct {
	Key      StockKey `json:"key"`
	Cached   float64  `json:"cached"`
	Computed float64  `json:"computed"`
	Delta    float64  `json:"delta"`
	OK       bool     `json:"ok"`
}

// AuditFilter narrows an audit or fix pass.
type AuditFilter struct {
	ProductID   int64
	WarehouseID int64
	RakID       *int64
}
