package catalog

import (
	"github.com/shopspring/decimal"
)

// Service is a priced entry in the service catalog. Read only to the ledger.
type Service struct {
	ID         string          `db:"id" json:"id"`
	Name       string          `db:"name" json:"name"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Department string          `db:"department" json:"department"`
}

// InventoryItem is a dispensable stock item. Only its name and selling price matter to billing.
type InventoryItem struct {
	ID           string          `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	SellingPrice decimal.Decimal `db:"selling_price" json:"selling_price"`
}
