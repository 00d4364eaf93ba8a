package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/ledger"
	"github.com/meridian-erp/meridian-erp/internal/accounting/posting"
	accshared "github.com/meridian-erp/meridian-erp/internal/accounting/shared"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type MetricsPort interface {
	ObservePosting(journalType, outcome string)
}

// Service drives the document lifecycle: draft, posted, voided. Every
// transition locks the document record, moves the journal group, stock
// movements and AR/AP caches together, and commits or rolls back as one.
type Service struct {
	repo          Repository
	engine        *posting.Engine
	audit         AuditPort
	metrics       MetricsPort
	logger        *slog.Logger
	allowNegative bool
	now           func() time.Time
}

func NewService(repo Repository, engine *posting.Engine, audit AuditPort, metrics MetricsPort, logger *slog.Logger, allowNegative bool) *Service {
	return &Service{
		repo:          repo,
		engine:        engine,
		audit:         audit,
		metrics:       metrics,
		logger:        logger,
		allowNegative: allowNegative,
		now:           time.Now,
	}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Document returns the lifecycle record for a source document.
func (s *Service) Document(ctx context.Context, sourceType string, sourceID uuid.UUID) (*DocumentRecord, error) {
	return s.repo.Get(ctx, sourceType, sourceID)
}

// PostDepreciationRun posts a monthly depreciation run. Satisfies the asset
// service's poster port.
func (s *Service) PostDepreciationRun(ctx context.Context, run posting.DepreciationRun) error {
	_, err := s.Post(ctx, run, -1)
	return err
}

// Post takes a draft document to posted. Posting an already-posted document
// whose journal group is live is a no-op skip, never a double posting. Pass a
// negative expectedVersion to skip the version guard.
func (s *Service) Post(ctx context.Context, doc posting.Document, expectedVersion int64) (Outcome, error) {
	in, err := s.engine.Draft(ctx, doc)
	if err != nil {
		s.observe(doc, "error")
		return "", err
	}
	if len(in.Lines) > 0 {
		if err := in.Validate(); err != nil {
			s.observe(doc, "error")
			return "", err
		}
	}

	outcome := OutcomePosted
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := s.lockOrInit(ctx, tx, doc)
		if err != nil {
			return err
		}
		if err := checkVersion(rec, expectedVersion); err != nil {
			return err
		}
		if rec.State == StateVoided {
			return fmt.Errorf("sync: %s %s is voided, restore it instead: %w", rec.SourceType, rec.SourceID, accshared.ErrInvalidDocumentState)
		}
		live, err := tx.Ledger().LiveLines(ctx, in.Key)
		if err != nil {
			return err
		}
		if rec.State == StatePosted {
			if len(live) > 0 || len(in.Lines) == 0 {
				outcome = OutcomeSkipped
				return nil
			}
			// Posted record with no live group: reinstate the lines, the
			// aggregates were already applied.
			if err := tx.Ledger().InsertLines(ctx, in.Key, in.Lines); err != nil {
				return err
			}
			rec.Version++
			return tx.SaveDocument(ctx, *rec)
		}
		if len(live) > 0 {
			return accshared.ErrGroupAlreadyPosted
		}
		if len(in.Lines) > 0 {
			if err := tx.Ledger().InsertLines(ctx, in.Key, in.Lines); err != nil {
				return err
			}
		}
		if err := s.applyEffects(ctx, tx, doc, effectsFor(doc), false); err != nil {
			return err
		}
		now := s.now()
		rec.State = StatePosted
		rec.PostedAt = &now
		rec.VoidedAt = nil
		rec.Version++
		denormalize(rec, doc)
		return tx.SaveDocument(ctx, *rec)
	})
	if err != nil {
		s.observe(doc, "error")
		return "", err
	}
	s.observe(doc, string(outcome))
	if outcome == OutcomePosted {
		s.logger.Info("document posted",
			slog.String("source_type", in.Key.SourceType),
			slog.String("source_id", in.Key.SourceID.String()),
			slog.Int("lines", len(in.Lines)))
		s.record(ctx, "sync.post", doc, map[string]any{"lines": len(in.Lines)})
	}
	return outcome, nil
}

// Amend reworks a posted document after an edit. Only changes to the kind's
// critical fields touch the ledger; anything else just bumps the version.
// When the regenerated drafts reproduce the stored lines exactly the group is
// left untouched.
func (s *Service) Amend(ctx context.Context, previous, updated posting.Document, changed []string, expectedVersion int64) (Outcome, error) {
	if previous.Kind() != updated.Kind() || previous.DocumentID() != updated.DocumentID() {
		return "", fmt.Errorf("sync: amend documents do not match")
	}
	if !IsCritical(updated.Kind(), changed) {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			rec, err := s.lockPosted(ctx, tx, updated)
			if err != nil {
				return err
			}
			if err := checkVersion(rec, expectedVersion); err != nil {
				return err
			}
			rec.Version++
			return tx.SaveDocument(ctx, *rec)
		})
		if err != nil {
			return "", err
		}
		return OutcomeUnchanged, nil
	}

	in, err := s.engine.Draft(ctx, updated)
	if err != nil {
		s.observe(updated, "error")
		return "", err
	}
	if len(in.Lines) > 0 {
		if err := in.Validate(); err != nil {
			s.observe(updated, "error")
			return "", err
		}
	}

	outcome := OutcomeReplaced
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := s.lockPosted(ctx, tx, updated)
		if err != nil {
			return err
		}
		if err := checkVersion(rec, expectedVersion); err != nil {
			return err
		}
		live, err := tx.Ledger().LiveLines(ctx, in.Key)
		if err != nil {
			return err
		}
		if len(live) > 0 && ledger.EqualLines(live, in.Lines) {
			outcome = OutcomeUnchanged
			rec.Version++
			return tx.SaveDocument(ctx, *rec)
		}
		if len(live) > 0 {
			if _, err := tx.Ledger().SoftDeleteGroup(ctx, in.Key); err != nil {
				return err
			}
		}
		if len(in.Lines) > 0 {
			if err := tx.Ledger().InsertLines(ctx, in.Key, in.Lines); err != nil {
				return err
			}
		}
		if err := s.reverseEffects(ctx, tx, previous, effectsFor(previous)); err != nil {
			return err
		}
		// The reversed movements are dead rows now. Drop them so a later
		// restore only revives the current contribution.
		if _, err := tx.Inventory().PurgeMovements(ctx, string(updated.Kind()), updated.DocumentID()); err != nil {
			return err
		}
		if err := s.applyEffects(ctx, tx, updated, effectsFor(updated), false); err != nil {
			return err
		}
		rec.Version++
		denormalize(rec, updated)
		return tx.SaveDocument(ctx, *rec)
	})
	if err != nil {
		s.observe(updated, "error")
		return "", err
	}
	s.observe(updated, string(outcome))
	if outcome == OutcomeReplaced {
		s.record(ctx, "sync.amend", updated, map[string]any{"changed": changed})
	}
	return outcome, nil
}

// Void takes a posted document out of the books: the journal group is
// soft-deleted and the aggregate contribution reversed.
func (s *Service) Void(ctx context.Context, doc posting.Document, expectedVersion int64) error {
	key := groupKeyOf(doc)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := s.lockPosted(ctx, tx, doc)
		if err != nil {
			return err
		}
		if err := checkVersion(rec, expectedVersion); err != nil {
			return err
		}
		if _, err := tx.Ledger().SoftDeleteGroup(ctx, key); err != nil {
			return err
		}
		if err := s.reverseEffects(ctx, tx, doc, effectsFor(doc)); err != nil {
			return err
		}
		now := s.now()
		rec.State = StateVoided
		rec.VoidedAt = &now
		rec.Version++
		return tx.SaveDocument(ctx, *rec)
	})
	if err != nil {
		return err
	}
	s.logger.Info("document voided",
		slog.String("source_type", key.SourceType),
		slog.String("source_id", key.SourceID.String()))
	s.record(ctx, "sync.void", doc, nil)
	return nil
}

// Restore brings a voided document back: the soft-deleted group and stock
// movements are revived and the aggregate contribution re-applied.
func (s *Service) Restore(ctx context.Context, doc posting.Document, expectedVersion int64) error {
	key := groupKeyOf(doc)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := s.lockVoided(ctx, tx, doc)
		if err != nil {
			return err
		}
		if err := checkVersion(rec, expectedVersion); err != nil {
			return err
		}
		if _, err := tx.Ledger().RestoreGroup(ctx, key); err != nil {
			return err
		}
		if err := s.applyEffects(ctx, tx, doc, effectsFor(doc), true); err != nil {
			return err
		}
		now := s.now()
		rec.State = StatePosted
		rec.PostedAt = &now
		rec.VoidedAt = nil
		rec.Version++
		return tx.SaveDocument(ctx, *rec)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "sync.restore", doc, nil)
	return nil
}

// Purge erases a voided document's traces permanently: journal rows, its
// stock movements and its AR/AP cache row.
func (s *Service) Purge(ctx context.Context, doc posting.Document, expectedVersion int64) error {
	key := groupKeyOf(doc)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := s.lockVoided(ctx, tx, doc)
		if err != nil {
			return err
		}
		if err := checkVersion(rec, expectedVersion); err != nil {
			return err
		}
		if _, err := tx.Ledger().PurgeGroup(ctx, key); err != nil {
			return err
		}
		if _, err := tx.Inventory().PurgeMovements(ctx, string(doc.Kind()), doc.DocumentID()); err != nil {
			return err
		}
		eff := effectsFor(doc)
		if eff.receivable != nil {
			if err := tx.DeleteReceivable(ctx, eff.receivable.InvoiceID); err != nil {
				return err
			}
		}
		if eff.payable != nil {
			if err := tx.DeletePayable(ctx, eff.payable.InvoiceID); err != nil {
				return err
			}
		}
		return tx.DeleteDocument(ctx, rec.SourceType, rec.SourceID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "sync.purge", doc, nil)
	return nil
}

func (s *Service) lockOrInit(ctx context.Context, tx TxRepository, doc posting.Document) (*DocumentRecord, error) {
	rec, err := tx.GetDocumentForUpdate(ctx, string(doc.Kind()), doc.DocumentID())
	if errors.Is(err, shared.ErrNotFound) {
		return &DocumentRecord{SourceType: string(doc.Kind()), SourceID: doc.DocumentID(), State: StateDraft}, nil
	}
	return rec, err
}

func (s *Service) lockPosted(ctx context.Context, tx TxRepository, doc posting.Document) (*DocumentRecord, error) {
	return s.lockInState(ctx, tx, doc, StatePosted)
}

func (s *Service) lockVoided(ctx context.Context, tx TxRepository, doc posting.Document) (*DocumentRecord, error) {
	return s.lockInState(ctx, tx, doc, StateVoided)
}

func (s *Service) lockInState(ctx context.Context, tx TxRepository, doc posting.Document, want State) (*DocumentRecord, error) {
	rec, err := tx.GetDocumentForUpdate(ctx, string(doc.Kind()), doc.DocumentID())
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("sync: %s %s was never posted: %w", doc.Kind(), doc.DocumentID(), accshared.ErrInvalidDocumentState)
	}
	if err != nil {
		return nil, err
	}
	if rec.State != want {
		return nil, fmt.Errorf("sync: %s %s is %s, want %s: %w", rec.SourceType, rec.SourceID, rec.State, want, accshared.ErrInvalidDocumentState)
	}
	return rec, nil
}

func checkVersion(rec *DocumentRecord, expected int64) error {
	if expected >= 0 && rec.Version != expected {
		return fmt.Errorf("sync: %s %s at version %d, expected %d: %w", rec.SourceType, rec.SourceID, rec.Version, expected, accshared.ErrConcurrencyConflict)
	}
	return nil
}

func groupKeyOf(doc posting.Document) ledger.GroupKey {
	return ledger.GroupKey{
		SourceType:  string(doc.Kind()),
		SourceID:    doc.DocumentID(),
		JournalType: posting.JournalTypeFor(doc.Kind()),
	}
}

// denormalize copies the AR/AP rebuild columns from the document.
func denormalize(rec *DocumentRecord, doc posting.Document) {
	switch d := doc.(type) {
	case posting.SalesInvoice:
		id := d.CounterpartyID
		due := d.DueAt
		rec.CounterpartyID = &id
		rec.GrandTotal = d.GrandTotal()
		rec.DueAt = &due
	case posting.PurchaseInvoice:
		id := d.CounterpartyID
		due := d.DueAt
		rec.CounterpartyID = &id
		rec.GrandTotal = d.GrandTotal
		rec.DueAt = &due
	case posting.CustomerReceipt:
		rec.GrandTotal = d.Total
	case posting.VendorPayment:
		rec.GrandTotal = d.Total
	case posting.CashBankTransfer:
		rec.GrandTotal = d.Amount.Add(d.Fee)
	case posting.AssetPurchaseOrder:
		rec.GrandTotal = d.GrandTotal()
	case posting.StockOpname:
		rec.GrandTotal = d.NetDifference()
	case posting.DepreciationRun:
		total := decimal.Zero
		for _, e := range d.Entries {
			total = total.Add(e.Amount)
		}
		rec.GrandTotal = total
	case posting.OtherSale:
		rec.GrandTotal = d.Total
	}
}

func (s *Service) observe(doc posting.Document, outcome string) {
	if s.metrics != nil {
		s.metrics.ObservePosting(string(posting.JournalTypeFor(doc.Kind())), outcome)
	}
}

func (s *Service) record(ctx context.Context, action string, doc posting.Document, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["source_type"] = string(doc.Kind())
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "document",
		EntityID: fmt.Sprintf("%s:%s", doc.Kind(), doc.DocumentID()),
		Meta:     meta,
		At:       s.now(),
	})
}
