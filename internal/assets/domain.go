package assets

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Asset is a fixed asset under straight-line depreciation.
type Asset struct {
	ID              int64
	Name            string
	Cost            decimal.Decimal
	Salvage         decimal.Decimal
	UsefulLifeYears int
	AcquiredAt      time.Time
	IsActive        bool
	Accumulated     decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MonthlyAmount is the straight-line charge per month:
// (cost - salvage) / (years * 12), rounded to cents.
func (a Asset) MonthlyAmount() decimal.Decimal {
	if a.UsefulLifeYears <= 0 {
		return decimal.Zero
	}
	base := a.Cost.Sub(a.Salvage)
	if !base.IsPositive() {
		return decimal.Zero
	}
	months := decimal.NewFromInt(int64(a.UsefulLifeYears) * 12)
	return base.Div(months).Round(2)
}

// DepreciableRemaining is how much book value is still left to depreciate.
func (a Asset) DepreciableRemaining() decimal.Decimal {
	remaining := a.Cost.Sub(a.Salvage).Sub(a.Accumulated)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Depreciation is one recorded monthly charge for one asset.
type Depreciation struct {
	ID        int64
	AssetID   int64
	RunID     uuid.UUID
	Period    string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// RunResult aggregates per-asset outcomes of one monthly run.
type RunResult struct {
	RunID   uuid.UUID `json:"run_id"`
	Period  string    `json:"period"`
	Success int       `json:"success"`
	Failed  int       `json:"failed"`
	Skipped int       `json:"skipped"`
}

// PeriodOf formats the depreciation period key for a date.
func PeriodOf(date time.Time) string {
	return date.Format("2006-01")
}
