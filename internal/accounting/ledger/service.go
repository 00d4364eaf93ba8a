package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	internalShared "github.com/meridian-erp/meridian-erp/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

type MetricsPort interface {
	ObservePosting(journalType, outcome string)
}

type AccountSource interface {
	GetByID(ctx context.Context, id int64) (accounts.Account, error)
}

type Service struct {
	repo     Repository
	accounts AccountSource
	audit    AuditPort
	metrics  MetricsPort
	now      func() time.Time
}

func NewService(repo Repository, accounts AccountSource, audit AuditPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, accounts: accounts, audit: audit, metrics: metrics, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AppendGroup inserts a new journal group. A live group under the same key
// means the source was already posted and the append is rejected.
func (s *Service) AppendGroup(ctx context.Context, in GroupInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		live, err := tx.LiveLines(ctx, in.Key)
		if err != nil {
			return err
		}
		if len(live) > 0 {
			return shared.ErrGroupAlreadyPosted
		}
		return tx.InsertLines(ctx, in.Key, in.Lines)
	})
	if err != nil {
		s.observe(in.Key.JournalType, "error")
		return err
	}
	s.observe(in.Key.JournalType, "posted")
	s.record(ctx, "ledger.append", in.Key, map[string]any{"lines": len(in.Lines)})
	return nil
}

// ReplaceGroup swaps the live group for the given drafts in one transaction.
// When the drafts reproduce the stored lines exactly the rows are left
// untouched and false is returned. A missing live group behaves like an
// append.
func (s *Service) ReplaceGroup(ctx context.Context, in GroupInput) (bool, error) {
	if err := in.Validate(); err != nil {
		return false, err
	}
	var replaced bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		live, err := tx.LiveLines(ctx, in.Key)
		if err != nil {
			return err
		}
		if len(live) > 0 && EqualLines(live, in.Lines) {
			return nil
		}
		if len(live) > 0 {
			if _, err := tx.SoftDeleteGroup(ctx, in.Key); err != nil {
				return err
			}
		}
		if err := tx.InsertLines(ctx, in.Key, in.Lines); err != nil {
			return err
		}
		replaced = true
		return nil
	})
	if err != nil {
		s.observe(in.Key.JournalType, "error")
		return false, err
	}
	if replaced {
		s.observe(in.Key.JournalType, "replaced")
		s.record(ctx, "ledger.replace", in.Key, map[string]any{"lines": len(in.Lines)})
	} else {
		s.observe(in.Key.JournalType, "skipped")
	}
	return replaced, nil
}

// SoftDeleteGroup marks every live line of the group deleted.
func (s *Service) SoftDeleteGroup(ctx context.Context, key GroupKey) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.SoftDeleteGroup(ctx, key)
		if err != nil {
			return err
		}
		if rows == 0 {
			return shared.ErrGroupNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, "ledger.soft_delete", key, nil)
	return nil
}

// RestoreGroup brings a soft-deleted group back to life.
func (s *Service) RestoreGroup(ctx context.Context, key GroupKey) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.RestoreGroup(ctx, key)
		if err != nil {
			return err
		}
		if rows == 0 {
			return shared.ErrGroupNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, "ledger.restore", key, nil)
	return nil
}

// PurgeGroup removes the group's rows permanently, deleted or not.
func (s *Service) PurgeGroup(ctx context.Context, key GroupKey) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rows, err := tx.PurgeGroup(ctx, key)
		if err != nil {
			return err
		}
		if rows == 0 {
			return shared.ErrGroupNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.record(ctx, "ledger.purge", key, nil)
	return nil
}

// BalanceAsOf folds the account's live lines up to the date using the
// account type's normal-balance sign.
func (s *Service) BalanceAsOf(ctx context.Context, accountID int64, asOf time.Time) (decimal.Decimal, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	debit, credit, err := s.repo.AccountTotals(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	balance := debit.Sub(credit)
	if account.Type.NormalSign() < 0 {
		balance = credit.Sub(debit)
	}
	return balance, nil
}

func (s *Service) EntriesForSource(ctx context.Context, key GroupKey) ([]JournalLine, error) {
	return s.repo.EntriesForSource(ctx, key)
}

func (s *Service) EntriesForAccount(ctx context.Context, accountID int64, from, to time.Time) ([]JournalLine, error) {
	return s.repo.EntriesForAccount(ctx, accountID, from, to)
}

func (s *Service) TrialBalance(ctx context.Context, asOf time.Time) ([]TrialBalanceRow, error) {
	return s.repo.TrialBalance(ctx, asOf)
}

func (s *Service) observe(journalType JournalType, outcome string) {
	if s.metrics != nil {
		s.metrics.ObservePosting(string(journalType), outcome)
	}
}

func (s *Service) record(ctx context.Context, action string, key GroupKey, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["journal_type"] = string(key.JournalType)
	meta["source_type"] = key.SourceType
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		Action:   action,
		Entity:   "journal_group",
		EntityID: fmt.Sprintf("%s:%s", key.SourceType, key.SourceID),
		Meta:     meta,
		At:       s.now(),
	})
}
