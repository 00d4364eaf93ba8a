package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	docsync "github.com/meridian-erp/meridian-erp/internal/accounting/sync"
)

// InvoicePosterPort posts one invoice, optionally cascading to its receipts.
type InvoicePosterPort interface {
	PostInvoice(ctx context.Context, invoiceID uuid.UUID, cascade bool) ([]docsync.PostingStatus, error)
}

// PostInvoiceOptions configures the post-invoice command.
type PostInvoiceOptions struct {
	ID             string
	CascadeReceipt bool
	JSONOutput     bool
	Stdout         io.Writer
	Stderr         io.Writer
}

// PostInvoiceCommand posts a single invoice to the ledger and reports a
// status per posting. Exit 1 when any posting failed.
func (a *App) PostInvoiceCommand(ctx context.Context, opts PostInvoiceOptions) int {
	if a.Poster == nil {
		fmt.Fprintln(opts.Stderr, "post-invoice: invoice poster not configured")
		return 1
	}
	invoiceID, err := uuid.Parse(opts.ID)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "post-invoice: --id must be a UUID: %v\n", err)
		return 2
	}

	statuses, err := a.Poster.PostInvoice(ctx, invoiceID, opts.CascadeReceipt)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "post-invoice: %v\n", err)
		return 1
	}

	failed := 0
	for _, status := range statuses {
		if status.Error != "" {
			failed++
		}
	}

	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"postings": statuses, "failed": failed}); err != nil {
			fmt.Fprintf(opts.Stderr, "post-invoice: %v\n", err)
			return 1
		}
	} else {
		for _, status := range statuses {
			if status.Error != "" {
				fmt.Fprintf(opts.Stdout, "%s %s: error: %s\n", status.SourceType, status.SourceID, status.Error)
				continue
			}
			fmt.Fprintf(opts.Stdout, "%s %s: %s\n", status.SourceType, status.SourceID, status.Outcome)
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}
