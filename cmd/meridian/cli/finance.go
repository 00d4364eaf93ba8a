package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/meridian-erp/meridian-erp/internal/ar"
)

// FinanceSyncOptions configures the ar-sync and ap-sync commands.
type FinanceSyncOptions struct {
	Force      bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ARSyncCommand rebuilds receivable rows from invoice totals and allocations.
func (a *App) ARSyncCommand(ctx context.Context, opts FinanceSyncOptions) int {
	if a.AR == nil {
		fmt.Fprintln(opts.Stderr, "ar-sync: ar service not configured")
		return 1
	}
	result, err := a.AR.Sync(ctx, opts.Force)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "ar-sync: %v\n", err)
		return 1
	}
	return writeSyncResult(opts, "receivables", result.Created, result.Updated, result.Skipped)
}

// APSyncCommand rebuilds payable rows from invoice totals and allocations.
func (a *App) APSyncCommand(ctx context.Context, opts FinanceSyncOptions) int {
	if a.AP == nil {
		fmt.Fprintln(opts.Stderr, "ap-sync: ap service not configured")
		return 1
	}
	result, err := a.AP.Sync(ctx, opts.Force)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "ap-sync: %v\n", err)
		return 1
	}
	return writeSyncResult(opts, "payables", result.Created, result.Updated, result.Skipped)
}

func writeSyncResult(opts FinanceSyncOptions, noun string, created, updated, skipped int) int {
	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]int{
			"created": created,
			"updated": updated,
			"skipped": skipped,
		}); err != nil {
			fmt.Fprintf(opts.Stderr, "sync: %v\n", err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(opts.Stdout, "%s: created %d, updated %d, skipped %d\n", noun, created, updated, skipped)
	return 0
}

// ARAgingOptions configures the ar-aging command.
type ARAgingOptions struct {
	AsOf       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

type agingSummary struct {
	AsOf      string `json:"as_of"`
	Current   string `json:"current"`
	Bucket30  string `json:"1_30"`
	Bucket60  string `json:"31_60"`
	Bucket90  string `json:"61_90"`
	Bucket120 string `json:"over_90"`
}

// ARAgingCommand buckets outstanding receivables by days overdue.
func (a *App) ARAgingCommand(ctx context.Context, opts ARAgingOptions) int {
	if a.AR == nil {
		fmt.Fprintln(opts.Stderr, "ar-aging: ar service not configured")
		return 1
	}
	asOf, err := parseDateFlag(opts.AsOf)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "ar-aging: invalid -as-of: %v\n", err)
		return 2
	}
	bucket, err := a.AR.Aging(ctx, asOf)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "ar-aging: %v\n", err)
		return 1
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(agingSummary{
			AsOf:      asOf.Format("2006-01-02"),
			Current:   bucket.Current.String(),
			Bucket30:  bucket.Bucket30.String(),
			Bucket60:  bucket.Bucket60.String(),
			Bucket90:  bucket.Bucket90.String(),
			Bucket120: bucket.Bucket120.String(),
		}); err != nil {
			fmt.Fprintf(opts.Stderr, "ar-aging: %v\n", err)
			return 1
		}
		return 0
	}

	printAging(opts.Stdout, asOf, bucket)
	return 0
}

func printAging(out io.Writer, asOf time.Time, bucket ar.AgingBucket) {
	p := message.NewPrinter(language.English)
	p.Fprintf(out, "receivable aging as of %s\n", asOf.Format("2006-01-02"))
	p.Fprintf(out, "  current  %15.2f\n", bucket.Current.InexactFloat64())
	p.Fprintf(out, "  1-30     %15.2f\n", bucket.Bucket30.InexactFloat64())
	p.Fprintf(out, "  31-60    %15.2f\n", bucket.Bucket60.InexactFloat64())
	p.Fprintf(out, "  61-90    %15.2f\n", bucket.Bucket90.InexactFloat64())
	p.Fprintf(out, "  over 90  %15.2f\n", bucket.Bucket120.InexactFloat64())
}
