package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// DepreciationRunOptions configures the depreciation-run command.
type DepreciationRunOptions struct {
	Date       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// DepreciationRunCommand charges straight-line depreciation for the month of
// the given date. Running twice in one period skips already-charged assets.
func (a *App) DepreciationRunCommand(ctx context.Context, opts DepreciationRunOptions) int {
	if a.Assets == nil {
		fmt.Fprintln(opts.Stderr, "depreciation-run: asset service not configured")
		return 1
	}
	date, err := parseDateFlag(opts.Date)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "depreciation-run: invalid -date: %v\n", err)
		return 2
	}
	result, err := a.Assets.RunMonthly(ctx, date)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "depreciation-run: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(opts.Stderr, "depreciation-run: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "depreciation %s (run %s): charged %d, skipped %d, failed %d\n",
		result.Period, result.RunID, result.Success, result.Skipped, result.Failed)
	if result.Failed > 0 {
		return 1
	}
	return 0
}
