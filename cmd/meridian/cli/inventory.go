package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
)

// InventoryCheckOptions configures the inventory-check command.
type InventoryCheckOptions struct {
	ProductID   int64
	WarehouseID int64
	RakID       *int64
	Fix         bool
	JSONOutput  bool
	Stdout      io.Writer
	Stderr      io.Writer
}

type inventoryCheckSummary struct {
	Rows    int                  `json:"rows"`
	Drifted int                  `json:"drifted"`
	Fixed   int                  `json:"fixed"`
	Drift   []inventory.AuditRow `json:"drift,omitempty"`
}

// InventoryCheckCommand audits the stock cache against the movement log.
// Exit code 10 means drift was found and left in place.
func (a *App) InventoryCheckCommand(ctx context.Context, opts InventoryCheckOptions) int {
	if a.Inventory == nil {
		fmt.Fprintln(opts.Stderr, "inventory-check: inventory service not configured")
		return 1
	}
	filter := inventory.AuditFilter{ProductID: opts.ProductID, WarehouseID: opts.WarehouseID, RakID: opts.RakID}
	rows, err := a.Inventory.Audit(ctx, filter)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "inventory-check: %v\n", err)
		return 1
	}

	summary := inventoryCheckSummary{Rows: len(rows)}
	for _, row := range rows {
		if row.OK {
			continue
		}
		summary.Drifted++
		summary.Drift = append(summary.Drift, row)
	}

	if summary.Drifted > 0 && opts.Fix {
		fixed, err := a.Inventory.Fix(ctx, filter)
		if err != nil {
			fmt.Fprintf(opts.Stderr, "inventory-check: fix: %v\n", err)
			return 1
		}
		summary.Fixed = fixed
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(opts.Stderr, "inventory-check: %v\n", err)
			return 1
		}
	} else {
		fmt.Fprintf(opts.Stdout, "checked %d stock rows, %d drifted\n", summary.Rows, summary.Drifted)
		for _, row := range summary.Drift {
			fmt.Fprintf(opts.Stdout, "  %s cached=%.3f computed=%.3f delta=%.3f\n",
				row.Key, row.Cached, row.Computed, row.Delta)
		}
		if summary.Fixed > 0 {
			fmt.Fprintf(opts.Stdout, "rewrote %d cache rows\n", summary.Fixed)
		}
	}

	if summary.Drifted > 0 && summary.Fixed == 0 {
		return 10
	}
	return 0
}
