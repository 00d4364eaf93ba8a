package ap

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayableStatus enumerates payable lifecycle values.
type PayableStatus string

const (
	StatusOutstanding PayableStatus = "outstanding"
	StatusSettled     PayableStatus = "settled"
)

// SettleTolerance is the residual below which a payable counts as settled.
var SettleTolerance = decimal.NewFromFloat(0.01)

// Payable is the cached AP position of one purchase invoice.
type Payable struct {
	InvoiceID      uuid.UUID
	CounterpartyID int64
	Total          decimal.Decimal
	Paid           decimal.Decimal
	Remaining      decimal.Decimal
	Status         PayableStatus
	DueAt          time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Recompute derives remaining and status from total and paid.
func (p *Payable) Recompute() {
	p.Remaining = p.Total.Sub(p.Paid)
	if p.Remaining.IsNegative() {
		p.Remaining = decimal.Zero
	}
	if p.Remaining.LessThanOrEqual(SettleTolerance) {
		p.Status = StatusSettled
	} else {
		p.Status = StatusOutstanding
	}
}

// InvoiceTotal is the source row a sync pass rebuilds from.
type InvoiceTotal struct {
	InvoiceID      uuid.UUID
	CounterpartyID int64
	Total          decimal.Decimal
	Allocated      decimal.Decimal
	DueAt          time.Time
}

// SyncResult counts per-invoice outcomes of one sync pass.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// DriftRow reports one payable whose cached paid amount disagrees with the
// recomputed payment allocation sum.
type DriftRow struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Cached    decimal.Decimal `json:"cached"`
	Computed  decimal.Decimal `json:"computed"`
	Delta     decimal.Decimal `json:"delta"`
}
