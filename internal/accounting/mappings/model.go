package mappings

import "time"

// Role identifies the ledger purpose an account is mapped to.
type Role string

const (
	RoleAccountsReceivable      Role = "ACCOUNTS_RECEIVABLE"
	RoleAccountsPayable         Role = "ACCOUNTS_PAYABLE"
	RoleRevenue                 Role = "REVENUE"
	RoleOutputTax               Role = "OUTPUT_TAX"
	RoleInputTax                Role = "INPUT_TAX"
	RoleShippingFee             Role = "SHIPPING_FEE"
	RoleCOGS                    Role = "COGS"
	RoleGoodsInTransit          Role = "GOODS_IN_TRANSIT"
	RoleInventory               Role = "INVENTORY"
	RoleUnbilledPurchases       Role = "UNBILLED_PURCHASES"
	RoleCashBank                Role = "CASH_BANK"
	RoleCustomerDeposit         Role = "CUSTOMER_DEPOSIT"
	RoleSupplierDeposit         Role = "SUPPLIER_DEPOSIT"
	RoleFixedAsset              Role = "FIXED_ASSET"
	RoleAccumulatedDepreciation Role = "ACCUMULATED_DEPRECIATION"
	RoleDepreciationExpense     Role = "DEPRECIATION_EXPENSE"
	RoleInventoryAdjustment     Role = "INVENTORY_ADJUSTMENT"
	RoleOtherIncome             Role = "OTHER_INCOME"
	RoleFeeExpense              Role = "FEE_EXPENSE"
	RoleImportDuty              Role = "IMPORT_DUTY"
	RoleWithholdingTax          Role = "WITHHOLDING_TAX"
)

// defaultCodes carries the chart codes used when no explicit mapping row exists.
var defaultCodes = map[Role]string{
	RoleAccountsReceivable:      "1120",
	RoleAccountsPayable:         "2110",
	RoleRevenue:                 "4000",
	RoleOutputTax:               "2120.06",
	RoleInputTax:                "1170.06",
	RoleShippingFee:             "6100.02",
	RoleCOGS:                    "5000",
	RoleGoodsInTransit:          "1140.20",
	RoleInventory:               "1140.01",
	RoleUnbilledPurchases:       "2100.10",
	RoleCashBank:                "1112.01",
	RoleCustomerDeposit:         "2160.04",
	RoleSupplierDeposit:         "1150.01",
	RoleFixedAsset:              "1500",
	RoleAccumulatedDepreciation: "1220.01",
	RoleDepreciationExpense:     "6311",
	RoleInventoryAdjustment:     "5100",
	RoleOtherIncome:             "8000.01",
	RoleFeeExpense:              "6100",
	RoleImportDuty:              "5130",
	RoleWithholdingTax:          "1170.02",
}

// DefaultCode returns the fallback chart code for the role, if any.
func DefaultCode(role Role) (string, bool) {
	code, ok := defaultCodes[role]
	return code, ok
}

// AccountMapping links a ledger role to a chart of accounts node.
type AccountMapping struct {
	Module    string
	Key       string
	AccountID int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
