package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/meridian-erp/meridian-erp/internal/accounting/dimensions"
)

// DimBackfillOptions configures the dim-backfill command.
type DimBackfillOptions struct {
	Chunk       int
	JournalType string
	JSONOutput  bool
	Stdout      io.Writer
	Stderr      io.Writer
}

// DimBackfillCommand fills missing analytic dimensions on historical journal
// lines, chunk by chunk.
func (a *App) DimBackfillCommand(ctx context.Context, opts DimBackfillOptions) int {
	if a.Backfiller == nil {
		fmt.Fprintln(opts.Stderr, "dim-backfill: backfiller not configured")
		return 1
	}
	result, err := a.Backfiller.Run(ctx, dimensions.BackfillOptions{
		ChunkSize:   opts.Chunk,
		JournalType: opts.JournalType,
	})
	if err != nil {
		fmt.Fprintf(opts.Stderr, "dim-backfill: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(opts.Stderr, "dim-backfill: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "backfill: updated %d, skipped %d, failed %d\n",
		result.Updated, result.Skipped, result.Failed)
	return 0
}
