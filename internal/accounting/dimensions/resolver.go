package dimensions

import (
	"context"
	"errors"
)

// Dimensions is the analytic triple stamped on journal lines.
type Dimensions struct {
	BranchID     *int64
	DepartmentID *int64
	ProjectID    *int64
}

// Empty reports whether no dimension is set.
func (d Dimensions) Empty() bool {
	return d.BranchID == nil && d.DepartmentID == nil && d.ProjectID == nil
}

// Hints carries everything known about a line's origin that can yield
// dimensions: the document's own columns plus its warehouse and counterparty.
type Hints struct {
	Dimensions
	WarehouseID    *int64
	CounterpartyID *int64
}

// Source answers the relationship lookups the resolver falls back to.
type Source interface {
	WarehouseBranch(ctx context.Context, warehouseID int64) (*int64, error)
	CounterpartyDefaults(ctx context.Context, counterpartyID int64) (Dimensions, error)
}

// ErrUnresolvable indicates no dimension could be derived from the hints.
var ErrUnresolvable = errors.New("dimensions: no dimension resolvable from hints")

// Resolver derives line dimensions from a document's relationship graph:
// the document's own columns win, then the warehouse's branch, then the
// counterparty's defaults.
type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

func (r *Resolver) Resolve(ctx context.Context, hints Hints) (Dimensions, error) {
	dims := hints.Dimensions
	if dims.BranchID == nil && hints.WarehouseID != nil {
		branch, err := r.source.WarehouseBranch(ctx, *hints.WarehouseID)
		if err != nil {
			return Dimensions{}, err
		}
		dims.BranchID = branch
	}
	if (dims.BranchID == nil || dims.DepartmentID == nil || dims.ProjectID == nil) && hints.CounterpartyID != nil {
		defaults, err := r.source.CounterpartyDefaults(ctx, *hints.CounterpartyID)
		if err != nil {
			return Dimensions{}, err
		}
		if dims.BranchID == nil {
			dims.BranchID = defaults.BranchID
		}
		if dims.DepartmentID == nil {
			dims.DepartmentID = defaults.DepartmentID
		}
		if dims.ProjectID == nil {
			dims.ProjectID = defaults.ProjectID
		}
	}
	if dims.Empty() {
		return Dimensions{}, ErrUnresolvable
	}
	return dims, nil
}
