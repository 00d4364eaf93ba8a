package ar

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceivableStatus enumerates receivable lifecycle values.
type ReceivableStatus string

const (
	StatusOutstanding ReceivableStatus = "outstanding"
	StatusSettled     ReceivableStatus = "settled"
)

// SettleTolerance is the residual below which a receivable counts as settled.
var SettleTolerance = decimal.NewFromFloat(0.01)

// Receivable is the cached AR position of one sales invoice.
type Receivable struct {
	InvoiceID      uuid.UUID
	CounterpartyID int64
	Total          decimal.Decimal
	Paid           decimal.Decimal
	Remaining      decimal.Decimal
	Status         ReceivableStatus
	DueAt          time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Recompute derives remaining and status from total and paid.
func (r *Receivable) Recompute() {
	r.Remaining = r.Total.Sub(r.Paid)
	if r.Remaining.IsNegative() {
		r.Remaining = decimal.Zero
	}
	if r.Remaining.LessThanOrEqual(SettleTolerance) {
		r.Status = StatusSettled
	} else {
		r.Status = StatusOutstanding
	}
}

// InvoiceTotal is the source-of-truth row a sync pass rebuilds from:
// the invoice grand total and the sum of its receipt allocations.
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

// AgingBucket summarises outstanding totals by days overdue.
type AgingBucket struct {
	Current   decimal.Decimal
	Bucket30  decimal.Decimal
	Bucket60  decimal.Decimal
	Bucket90  decimal.Decimal
	Bucket120 decimal.Decimal
}

// DriftRow reports one receivable whose cached paid amount disagrees with
// the recomputed allocation sum.
type DriftRow struct {
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Cached    decimal.Decimal `json:"cached"`
	Computed  decimal.Decimal `json:"computed"`
	Delta     decimal.Decimal `json:"delta"`
}
