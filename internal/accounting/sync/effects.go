package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/posting"
	"github.com/meridian-erp/meridian-erp/internal/ap"
	"github.com/meridian-erp/meridian-erp/internal/ar"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// documentEffects are the aggregate side effects a document carries alongside
// its journal group: AR/AP cache rows, settlement allocations and stock
// movements.
type documentEffects struct {
	receivable *ar.Receivable
	payable    *ap.Payable
	arAllocs   []posting.Allocation
	apAllocs   []posting.Allocation
	movements  []inventory.StockMovement
}

func effectsFor(doc posting.Document) documentEffects {
	var eff documentEffects
	switch d := doc.(type) {
	case posting.SalesInvoice:
		eff.receivable = &ar.Receivable{
			InvoiceID:      d.ID,
			CounterpartyID: d.CounterpartyID,
			Total:          d.GrandTotal(),
			DueAt:          d.DueAt,
		}
		if d.WarehouseID != 0 {
			for _, line := range d.Lines {
				if line.ProductID == 0 || line.Quantity <= 0 {
					continue
				}
				eff.movements = append(eff.movements, inventory.StockMovement{
					ProductID:   line.ProductID,
					WarehouseID: d.WarehouseID,
					Type:        inventory.MovementSales,
					Quantity:    -line.Quantity,
					Date:        d.Date,
					SourceType:  string(d.Kind()),
					SourceID:    d.ID,
				})
			}
		}
	case posting.PurchaseInvoice:
		eff.payable = &ap.Payable{
			InvoiceID:      d.ID,
			CounterpartyID: d.CounterpartyID,
			Total:          d.GrandTotal,
			DueAt:          d.DueAt,
		}
		// Stock already moved at goods receipt when receipts exist.
		if !d.HasReceipts && d.WarehouseID != 0 {
			for _, line := range d.Lines {
				if line.ProductID == 0 || line.Quantity <= 0 {
					continue
				}
				eff.movements = append(eff.movements, inventory.StockMovement{
					ProductID:   line.ProductID,
					WarehouseID: d.WarehouseID,
					Type:        inventory.MovementPurchaseIn,
					Quantity:    line.Quantity,
					Date:        d.Date,
					SourceType:  string(d.Kind()),
					SourceID:    d.ID,
				})
			}
		}
	case posting.CustomerReceipt:
		eff.arAllocs = d.Allocations
	case posting.VendorPayment:
		eff.apAllocs = d.Allocations
	case posting.StockOpname:
		if d.WarehouseID != 0 {
			for _, item := range d.Items {
				if item.ProductID == 0 || item.QuantityDiff == 0 {
					continue
				}
				eff.movements = append(eff.movements, inventory.StockMovement{
					ProductID:   item.ProductID,
					WarehouseID: d.WarehouseID,
					Type:        inventory.MovementOpnameAdjust,
					Quantity:    item.QuantityDiff,
					Date:        d.Date,
					SourceType:  string(d.Kind()),
					SourceID:    d.ID,
				})
			}
		}
	}
	return eff
}

// applyEffects writes the document's aggregate contribution. On a restore the
// soft-deleted movements are revived instead of inserted anew.
func (s *Service) applyEffects(ctx context.Context, tx TxRepository, doc posting.Document, eff documentEffects, restore bool) error {
	if eff.receivable != nil {
		rec := *eff.receivable
		paid, err := tx.ReceiptAllocatedTotal(ctx, rec.InvoiceID)
		if err != nil {
			return err
		}
		rec.Paid = paid
		rec.Recompute()
		if err := tx.SaveReceivable(ctx, rec); err != nil {
			return err
		}
	}
	if eff.payable != nil {
		p := *eff.payable
		paid, err := tx.PaymentAllocatedTotal(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		p.Paid = paid
		p.Recompute()
		if err := tx.SavePayable(ctx, p); err != nil {
			return err
		}
	}
	for _, alloc := range eff.arAllocs {
		if !alloc.Amount.IsPositive() {
			return fmt.Errorf("sync: allocation for invoice %s must be positive", alloc.InvoiceID)
		}
		rec, err := tx.GetReceivableForUpdate(ctx, alloc.InvoiceID)
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("sync: receipt allocates against unposted invoice %s", alloc.InvoiceID)
		}
		if err != nil {
			return err
		}
		rec.Paid = rec.Paid.Add(alloc.Amount)
		rec.Recompute()
		if err := tx.SaveReceivable(ctx, *rec); err != nil {
			return err
		}
	}
	for _, alloc := range eff.apAllocs {
		if !alloc.Amount.IsPositive() {
			return fmt.Errorf("sync: allocation for invoice %s must be positive", alloc.InvoiceID)
		}
		p, err := tx.GetPayableForUpdate(ctx, alloc.InvoiceID)
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("sync: payment allocates against unposted invoice %s", alloc.InvoiceID)
		}
		if err != nil {
			return err
		}
		p.Paid = p.Paid.Add(alloc.Amount)
		p.Recompute()
		if err := tx.SavePayable(ctx, *p); err != nil {
			return err
		}
	}
	if restore {
		restored, err := tx.Inventory().RestoreMovements(ctx, string(doc.Kind()), doc.DocumentID())
		if err != nil {
			return err
		}
		for _, m := range restored {
			if err := s.applyStockDelta(ctx, tx, m.Key(), m.Quantity); err != nil {
				return err
			}
		}
		return nil
	}
	for _, m := range eff.movements {
		if err := m.Validate(); err != nil {
			return err
		}
		if err := tx.Inventory().InsertMovement(ctx, m); err != nil {
			return err
		}
		if err := s.applyStockDelta(ctx, tx, m.Key(), m.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// reverseEffects backs the document's contribution out again.
func (s *Service) reverseEffects(ctx context.Context, tx TxRepository, doc posting.Document, eff documentEffects) error {
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
	for _, alloc := range eff.arAllocs {
		rec, err := tx.GetReceivableForUpdate(ctx, alloc.InvoiceID)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		rec.Paid = rec.Paid.Sub(alloc.Amount)
		if rec.Paid.IsNegative() {
			rec.Paid = decimal.Zero
		}
		rec.Recompute()
		if err := tx.SaveReceivable(ctx, *rec); err != nil {
			return err
		}
	}
	for _, alloc := range eff.apAllocs {
		p, err := tx.GetPayableForUpdate(ctx, alloc.InvoiceID)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		p.Paid = p.Paid.Sub(alloc.Amount)
		if p.Paid.IsNegative() {
			p.Paid = decimal.Zero
		}
		p.Recompute()
		if err := tx.SavePayable(ctx, *p); err != nil {
			return err
		}
	}
	removed, err := tx.Inventory().SoftDeleteMovements(ctx, string(doc.Kind()), doc.DocumentID())
	if err != nil {
		return err
	}
	for _, m := range removed {
		if err := s.applyStockDelta(ctx, tx, m.Key(), -m.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) applyStockDelta(ctx context.Context, tx TxRepository, key inventory.StockKey, delta float64) error {
	stock, err := tx.Inventory().GetStockForUpdate(ctx, key)
	if err != nil {
		return err
	}
	next := stock.QtyAvailable + delta
	if next < -inventory.AuditEpsilon && !s.allowNegative {
		return fmt.Errorf("%w: %s would reach %.3f", inventory.ErrNegativeStock, key, next)
	}
	stock.QtyAvailable = next
	return tx.Inventory().SaveStock(ctx, stock)
}
