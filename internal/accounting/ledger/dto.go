package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
)

// LineDraft describes one journal line before insertion.
type LineDraft struct {
	AccountID    int64
	Date         time.Time
	Reference    string
	Description  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	BranchID     *int64
	DepartmentID *int64
	ProjectID    *int64
}

// GroupInput groups fields required to write a journal group.
type GroupInput struct {
	Key   GroupKey
	Lines []LineDraft
}

// Validate ensures the group meets posting criteria. Every line must carry
// exactly one positive side, and the group must balance to the cent exactly.
func (in GroupInput) Validate() error {
	if in.Key.SourceType == "" {
		return errors.New("ledger: source type required")
	}
	if in.Key.SourceID == uuid.Nil {
		return errors.New("ledger: source id required")
	}
	if in.Key.JournalType == "" {
		return errors.New("ledger: journal type required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Date.IsZero() {
			return fmt.Errorf("ledger: line %d missing date", idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		debitSet := line.Debit.IsPositive()
		creditSet := line.Credit.IsPositive()
		if debitSet == creditSet {
			return fmt.Errorf("ledger: line %d must carry exactly one of debit or credit", idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return shared.ErrUnbalancedPosting
	}
	return nil
}

// EqualLines reports whether the drafts would reproduce the stored lines
// exactly, in order. Used to skip rewrites on identical re-posts.
func EqualLines(stored []JournalLine, drafts []LineDraft) bool {
	if len(stored) != len(drafts) {
		return false
	}
	for i, line := range stored {
		draft := drafts[i]
		if line.AccountID != draft.AccountID ||
			!line.Debit.Equal(draft.Debit) ||
			!line.Credit.Equal(draft.Credit) ||
			!line.Date.Equal(draft.Date) ||
			line.Reference != draft.Reference ||
			line.Description != draft.Description ||
			!equalIntPtr(line.BranchID, draft.BranchID) ||
			!equalIntPtr(line.DepartmentID, draft.DepartmentID) ||
			!equalIntPtr(line.ProjectID, draft.ProjectID) {
			return false
		}
	}
	return true
}

// equalIntPtr treats a pointer-to-zero like nil: inserts store zero
// dimensions as NULL, so a reloaded line must still match its re-draft.
func equalIntPtr(a, b *int64) bool {
	return intPtrValue(a) == intPtrValue(b)
}

func intPtrValue(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
