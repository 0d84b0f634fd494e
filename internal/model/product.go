package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is owned by the catalog. The engine only reads it and moves Stock/Reserved
// through the stock ledger.
type Product struct {
	BaseModel
	TenantID uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	SKU      string          `gorm:"type:varchar(50);not null" json:"sku"`
	Name     string          `gorm:"type:varchar(255);not null" json:"name"`
	Stock    int             `gorm:"not null;default:0" json:"stock"`
	Reserved int             `gorm:"not null;default:0" json:"reserved"` // held by pending mobile payments
	Unit     string          `gorm:"type:varchar(20);default:'item'" json:"unit"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
}

// Available is the quantity a new sale may take.
func (p *Product) Available() int {
	return p.Stock - p.Reserved
}
