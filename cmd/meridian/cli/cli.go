// Package cli implements the operational subcommands of the meridian binary.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/accounting/dimensions"
	"github.com/meridian-erp/meridian-erp/internal/ap"
	"github.com/meridian-erp/meridian-erp/internal/ar"
	"github.com/meridian-erp/meridian-erp/internal/assets"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
)

// App bundles the services the subcommands operate on.
type App struct {
	Inventory  *inventory.Service
	AR         *ar.Service
	AP         *ap.Service
	Assets     *assets.Service
	Backfiller *dimensions.Backfiller
	Poster     InvoicePosterPort

	Stdout io.Writer
	Stderr io.Writer
}

func (a *App) stdout() io.Writer {
	if a.Stdout != nil {
		return a.Stdout
	}
	return os.Stdout
}

func (a *App) stderr() io.Writer {
	if a.Stderr != nil {
		return a.Stderr
	}
	return os.Stderr
}

// Run dispatches a subcommand. Exit codes: 0 success, 1 failure, 2 usage,
// 10 drift detected.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.usage()
		return 2
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "inventory-check":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(a.stderr())
		opts := InventoryCheckOptions{Stdout: a.stdout(), Stderr: a.stderr()}
		fs.Int64Var(&opts.ProductID, "product", 0, "restrict to one product id")
		fs.Int64Var(&opts.WarehouseID, "warehouse", 0, "restrict to one warehouse id")
		rak := fs.Int64("rak", -1, "restrict to one rack id")
		fs.BoolVar(&opts.Fix, "fix", false, "rewrite drifted cache rows")
		fs.BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if *rak >= 0 {
			opts.RakID = rak
		}
		return a.InventoryCheckCommand(ctx, opts)
	case "ar-sync":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(a.stderr())
		opts := FinanceSyncOptions{Stdout: a.stdout(), Stderr: a.stderr()}
		fs.BoolVar(&opts.Force, "force", false, "rewrite existing rows")
		fs.BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		return a.ARSyncCommand(ctx, opts)
	case "ap-sync":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(a.stderr())
		opts := FinanceSyncOptions{Stdout: a.stdout(), Stderr: a.stderr()}
		fs.BoolVar(&opts.Force, "force", false, "rewrite existing rows")
		fs.BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		return a.APSyncCommand(ctx, opts)
	case "ar-aging":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(a.stderr())
		opts := ARAgingOptions{Stdout: a.stdout(), Stderr: a.stderr()}
		fs.StringVar(&opts.AsOf, "as-of", "", "aging date (YYYY-MM-DD, default today)")
		fs.BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		return a.ARAgingCommand(ctx, opts)
	case "dim-backfill":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(a.stderr())
		opts := DimBackfillOptions{Stdout: a.stdout(), Stderr: a.stderr()}
		fs.IntVar(&opts.Chunk, "chunk", 0, "rows per chunk (default 500)")
		fs.StringVar(&opts.JournalType, "journal-type", "", "restrict to one journal type")
		fs.BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		return a.DimBackfillCommand(ctx, opts)
	case "depreciation-run":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(a.stderr())
		opts := DepreciationRunOptions{Stdout: a.stdout(), Stderr: a.stderr()}
		fs.StringVar(&opts.Date, "date", "", "run date (YYYY-MM-DD, default today)")
		fs.BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		return a.DepreciationRunCommand(ctx, opts)
	case "post-invoice":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		fs.SetOutput(a.stderr())
		opts := PostInvoiceOptions{Stdout: a.stdout(), Stderr: a.stderr()}
		fs.StringVar(&opts.ID, "id", "", "invoice id (UUID)")
		fs.BoolVar(&opts.CascadeReceipt, "cascade-receipt", false, "also post receipts allocated to the invoice")
		fs.BoolVar(&opts.JSONOutput, "json", false, "emit JSON")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		return a.PostInvoiceCommand(ctx, opts)
	default:
		fmt.Fprintf(a.stderr(), "meridian: unknown command %q\n", cmd)
		a.usage()
		return 2
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.stderr(), `usage: meridian <command> [flags]

commands:
  inventory-check   compare the stock cache against the movement log
  ar-sync           rebuild receivable rows from invoices and allocations
  ap-sync           rebuild payable rows from invoices and allocations
  ar-aging          bucket outstanding receivables by days overdue
  dim-backfill      fill missing analytic dimensions on journal lines
  depreciation-run  charge monthly straight-line depreciation
  post-invoice      post one invoice (and optionally its receipts) to the ledger`)
}

func parseDateFlag(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	return time.Parse("2006-01-02", value)
}
