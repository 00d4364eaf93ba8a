package posting

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-erp/meridian-erp/internal/accounting/ledger"
	"github.com/meridian-erp/meridian-erp/internal/accounting/mappings"
)

func (e *Engine) draftSalesInvoice(ctx context.Context, d SalesInvoice) ([]ledger.LineDraft, error) {
	if err := requirePostable(d.Kind(), d.Status); err != nil {
		return nil, err
	}
	ar, err := e.resolver.Resolve(ctx, mappings.RoleAccountsReceivable)
	if err != nil {
		return nil, err
	}
	revenue, err := e.resolver.Resolve(ctx, mappings.RoleRevenue)
	if err != nil {
		return nil, err
	}
	b := lineBuilder{date: d.Date, ref: d.Number, dims: d.Dims}
	lines := []ledger.LineDraft{
		b.debit(ar, d.GrandTotal(), "Receivable for invoice "+d.Number),
		b.credit(revenue, d.Subtotal, "Revenue for invoice "+d.Number),
	}
	if d.Tax.IsPositive() {
		outputTax, err := e.resolver.Resolve(ctx, mappings.RoleOutputTax)
		if err != nil {
			return nil, err
		}
		lines = append(lines, b.credit(outputTax, d.Tax, "Output tax for invoice "+d.Number))
	}
	if d.Fees.IsPositive() {
		shipping, err := e.resolver.Resolve(ctx, mappings.RoleShippingFee)
		if err != nil {
			return nil, err
		}
		lines = append(lines, b.credit(shipping, d.Fees, "Shipping fee for invoice "+d.Number))
	}
	cost := decimal.Zero
	for _, line := range d.Lines {
		if line.UnitCost.IsPositive() && line.Quantity > 0 {
			cost = cost.Add(line.UnitCost.Mul(decimal.NewFromFloat(line.Quantity)))
		}
	}
	if cost.IsPositive() {
		cogs, err := e.resolver.Resolve(ctx, mappings.RoleCOGS)
		if err != nil {
			return nil, err
		}
		transit, err := e.resolver.Resolve(ctx, mappings.RoleGoodsInTransit)
		if err != nil {
			return nil, err
		}
		lines = append(lines,
			b.debit(cogs, cost, "Cost of goods sold for invoice "+d.Number),
			b.credit(transit, cost, "Goods in transit for invoice "+d.Number),
		)
	}
	return lines, nil
}

func (e *Engine) draftPurchaseInvoice(ctx context.Context, d PurchaseInvoice) ([]ledger.LineDraft, error) {
	if err := requirePostable(d.Kind(), d.Status); err != nil {
		return nil, err
	}
	inventoryRole := mappings.RoleInventory
	if d.HasReceipts {
		inventoryRole = mappings.RoleUnbilledPurchases
	}
	inventory, err := e.resolver.Resolve(ctx, inventoryRole)
	if err != nil {
		return nil, err
	}
	ap, err := e.resolver.Resolve(ctx, mappings.RoleAccountsPayable)
	if err != nil {
		return nil, err
	}
	fees := d.GrandTotal.Sub(d.Subtotal).Sub(d.Tax)
	if fees.IsNegative() {
		return nil, fmt.Errorf("posting: purchase invoice %s grand total below subtotal plus tax", d.Number)
	}
	b := lineBuilder{date: d.Date, ref: d.Number, dims: d.Dims}
	lines := []ledger.LineDraft{
		b.debit(inventory, d.Subtotal, "Goods for purchase invoice "+d.Number),
	}
	if d.Tax.IsPositive() {
		inputTax, err := e.resolver.Resolve(ctx, mappings.RoleInputTax)
		if err != nil {
			return nil, err
		}
		lines = append(lines, b.debit(inputTax, d.Tax, "Input tax for purchase invoice "+d.Number))
	}
	if fees.IsPositive() {
		fee, err := e.resolver.Resolve(ctx, mappings.RoleFeeExpense)
		if err != nil {
			return nil, err
		}
		lines = append(lines, b.debit(fee, fees, "Other costs for purchase invoice "+d.Number))
	}
	lines = append(lines, b.credit(ap, d.GrandTotal, "Payable for purchase invoice "+d.Number))
	return lines, nil
}

func (e *Engine) draftCustomerReceipt(ctx context.Context, d CustomerReceipt) ([]ledger.LineDraft, error) {
	if err := requirePostable(d.Kind(), d.Status); err != nil {
		return nil, err
	}
	if !d.Total.IsPositive() {
		return nil, fmt.Errorf("posting: customer receipt %s has no amount", d.Number)
	}
	ar, err := e.resolver.Resolve(ctx, mappings.RoleAccountsReceivable)
	if err != nil {
		return nil, err
	}
	b := lineBuilder{date: d.Date, ref: d.Number, dims: d.Dims}
	lines := []ledger.LineDraft{
		b.credit(ar, d.Total, "Receivable settled by receipt "+d.Number),
	}
	settlement, err := e.settlementLines(ctx, b, d.Details, d.Total, mappings.RoleCustomerDeposit, true, "receipt "+d.Number)
	if err != nil {
		return nil, err
	}
	return append(lines, settlement...), nil
}

func (e *Engine) draftVendorPayment(ctx context.Context, d VendorPayment) ([]ledger.LineDraft, error) {
	if err := requirePostable(d.Kind(), d.Status); err != nil {
		return nil, err
	}
	if !d.Total.IsPositive() {
		return nil, fmt.Errorf("posting: vendor payment %s has no amount", d.Number)
	}
	ap, err := e.resolver.Resolve(ctx, mappings.RoleAccountsPayable)
	if err != nil {
		return nil, err
	}
	b := lineBuilder{date: d.Date, ref: d.Number, dims: d.Dims}
	lines := []ledger.LineDraft{
		b.debit(ap, d.Total, "Payable settled by payment "+d.Number),
	}
	settlement, err := e.settlementLines(ctx, b, d.Details, d.Total, mappings.RoleSupplierDeposit, false, "payment "+d.Number)
	if err != nil {
		return nil, err
	}
	lines = append(lines, settlement...)
	if d.IsImport {
		importLines, err := e.importTaxLines(ctx, b, d)
		if err != nil {
			return nil, err
		}
		lines = append(lines, importLines...)
	}
	return lines, nil
}

// settlementLines expands receipt or payment details into cash/bank and
// deposit lines. Details sharing an account collapse into one line. When the
// document carries no details the full amount goes to the default cash/bank
// account. debitSide is true for receipts (money in).
func (e *Engine) settlementLines(ctx context.Context, b lineBuilder, details []SettlementDetail, total decimal.Decimal, depositRole mappings.Role, debitSide bool, tag string) ([]ledger.LineDraft, error) {
	emit := func(account accounts.Account, amount decimal.Decimal, desc string) ledger.LineDraft {
		if debitSide {
			return b.debit(account, amount, desc)
		}
		return b.credit(account, amount, desc)
	}

	if len(details) == 0 {
		bank, err := e.resolver.Resolve(ctx, mappings.RoleCashBank)
		if err != nil {
			return nil, err
		}
		return []ledger.LineDraft{emit(bank, total, "Cash/bank for "+tag)}, nil
	}

	depositTotal := decimal.Zero
	grouped := map[int64]decimal.Decimal{}
	var order []int64
	for _, detail := range details {
		if !detail.Amount.IsPositive() {
			continue
		}
		if detail.Method == MethodDeposit {
			depositTotal = depositTotal.Add(detail.Amount)
			continue
		}
		if _, seen := grouped[detail.AccountID]; !seen {
			order = append(order, detail.AccountID)
		}
		grouped[detail.AccountID] = grouped[detail.AccountID].Add(detail.Amount)
	}

	var lines []ledger.LineDraft
	for _, accountID := range order {
		account := accounts.Account{ID: accountID}
		if accountID == 0 {
			resolved, err := e.resolver.Resolve(ctx, mappings.RoleCashBank)
			if err != nil {
				return nil, err
			}
			account = resolved
		}
		lines = append(lines, emit(account, grouped[accountID], "Cash/bank for "+tag))
	}
	if depositTotal.IsPositive() {
		deposit, err := e.resolver.Resolve(ctx, depositRole)
		if err != nil {
			return nil, err
		}
		lines = append(lines, emit(deposit, depositTotal, "Deposit applied to "+tag))
	}
	return lines, nil
}

// importTaxLines pairs each import charge with a matching cash/bank credit so
// the extra charges never disturb the payable side.
func (e *Engine) importTaxLines(ctx context.Context, b lineBuilder, d VendorPayment) ([]ledger.LineDraft, error) {
	bank, err := e.resolver.Resolve(ctx, mappings.RoleCashBank)
	if err != nil {
		return nil, err
	}
	charges := []struct {
		amount decimal.Decimal
		role   mappings.Role
		desc   string
	}{
		{d.ImportVAT, mappings.RoleInputTax, "Import VAT"},
		{d.WithholdingTax, mappings.RoleWithholdingTax, "Import withholding tax"},
		{d.ImportDuty, mappings.RoleImportDuty, "Import duty"},
	}
	var lines []ledger.LineDraft
	for _, charge := range charges {
		if !charge.amount.IsPositive() {
			continue
		}
		account, err := e.resolver.Resolve(ctx, charge.role)
		if err != nil {
			return nil, err
		}
		lines = append(lines,
			b.debit(account, charge.amount, charge.desc+" for payment "+d.Number),
			b.credit(bank, charge.amount, charge.desc+" paid via cash/bank"),
		)
	}
	return lines, nil
}

func (e *Engine) draftCashBankTransfer(ctx context.Context, d CashBankTransfer) ([]ledger.LineDraft, error) {
	if err := requirePostable(d.Kind(), d.Status); err != nil {
		return nil, err
	}
	if !d.Amount.IsPositive() {
		return nil, fmt.Errorf("posting: transfer %s has no amount", d.Number)
	}
	from := accounts.Account{ID: d.FromAccountID}
	to := accounts.Account{ID: d.ToAccountID}
	b := lineBuilder{date: d.Date, ref: d.Number, dims: d.Dims}
	lines := []ledger.LineDraft{
		b.debit(to, d.Amount, "Transfer in "+d.Number),
		b.credit(from, d.Amount, "Transfer out "+d.Number),
	}
	if d.Fee.IsPositive() {
		fee, err := e.resolver.Resolve(ctx, mappings.RoleFeeExpense)
		if err != nil {
			return nil, err
		}
		lines = append(lines,
			b.debit(fee, d.Fee, "Transfer fee "+d.Number),
			b.credit(from, d.Fee, "Transfer fee "+d.Number),
		)
	}
	return lines, nil
}

func (e *Engine) draftAssetPurchaseOrder(ctx context.Context, d AssetPurchaseOrder) ([]ledger.LineDraft, error) {
	if err := requirePostable(d.Kind(), d.Status); err != nil {
		return nil, err
	}
	if len(d.Lines) == 0 {
		return nil, fmt.Errorf("posting: asset purchase order %s has no lines", d.Number)
	}
	fixedAsset, err := e.resolver.Resolve(ctx, mappings.RoleFixedAsset)
	if err != nil {
		return nil, err
	}
	ap, err := e.resolver.Resolve(ctx, mappings.RoleAccountsPayable)
	if err != nil {
		return nil, err
	}
	b := lineBuilder{date: d.Date, ref: d.Number, dims: d.Dims}
	var lines []ledger.LineDraft
	for _, line := range d.Lines {
		amount := line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
		if !amount.IsPositive() {
			continue
		}
		lines = append(lines, b.debit(fixedAsset, amount, "Asset acquisition: "+line.Description))
	}
	lines = append(lines, b.credit(ap, d.GrandTotal(), "Payable for asset order "+d.Number))
	return lines, nil
}

func (e *Engine) draftStockOpname(ctx context.Context, d StockOpname) ([]ledger.LineDraft, error) {
	if err := requirePostable(d.Kind(), d.Status); err != nil {
		return nil, err
	}
	net := d.NetDifference()
	if net.IsZero() {
		return nil, nil
	}
	inventory, err := e.resolver.Resolve(ctx, mappings.RoleInventory)
	if err != nil {
		return nil, err
	}
	adjustment, err := e.resolver.Resolve(ctx, mappings.RoleInventoryAdjustment)
	if err != nil {
		return nil, err
	}
	b := lineBuilder{date: d.Date, ref: d.Number, dims: d.Dims}
	amount := net.Abs()
	if net.IsPositive() {
		return []ledger.LineDraft{
			b.debit(inventory, amount, "Stock opname gain "+d.Number),
			b.credit(adjustment, amount, "Stock opname gain "+d.Number),
		}, nil
	}
	return []ledger.LineDraft{
		b.debit(adjustment, amount, "Stock opname loss "+d.Number),
		b.credit(inventory, amount, "Stock opname loss "+d.Number),
	}, nil
}

func (e *Engine) draftDepreciationRun(ctx context.Context, d DepreciationRun) ([]ledger.LineDraft, error) {
	if err := requirePostable(d.Kind(), d.Status); err != nil {
		return nil, err
	}
	expense, err := e.resolver.Resolve(ctx, mappings.RoleDepreciationExpense)
	if err != nil {
		return nil, err
	}
	accumulated, err := e.resolver.Resolve(ctx, mappings.RoleAccumulatedDepreciation)
	if err != nil {
		return nil, err
	}
	b := lineBuilder{date: d.Date, ref: "DEP-" + d.Period, dims: d.Dims}
	var lines []ledger.LineDraft
	for _, entry := range d.Entries {
		if !entry.Amount.IsPositive() {
			continue
		}
		desc := fmt.Sprintf("Depreciation %s asset %d", d.Period, entry.AssetID)
		lines = append(lines,
			b.debit(expense, entry.Amount, desc),
			b.credit(accumulated, entry.Amount, desc),
		)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("posting: depreciation run %s has no entries", d.Period)
	}
	return lines, nil
}

func (e *Engine) draftOtherSale(ctx context.Context, d OtherSale) ([]ledger.LineDraft, error) {
	if err := requirePostable(d.Kind(), d.Status); err != nil {
		return nil, err
	}
	if !d.Total.IsPositive() {
		return nil, fmt.Errorf("posting: other sale %s has no amount", d.Number)
	}
	cash := accounts.Account{ID: d.CashAccountID}
	if d.CashAccountID == 0 {
		resolved, err := e.resolver.Resolve(ctx, mappings.RoleCashBank)
		if err != nil {
			return nil, err
		}
		cash = resolved
	}
	income, err := e.resolver.Resolve(ctx, mappings.RoleOtherIncome)
	if err != nil {
		return nil, err
	}
	b := lineBuilder{date: d.Date, ref: d.Number, dims: d.Dims}
	return []ledger.LineDraft{
		b.debit(cash, d.Total, "Cash/bank for other sale "+d.Number),
		b.credit(income, d.Total, "Other income "+d.Number),
	}, nil
}
