package repository

import (
	"go-pos-engine/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockLedger is the only writer of product quantities. Every method is a single
// conditional UPDATE run on the caller's transaction, so concurrent sales of the
// same product cannot both pass a zero-stock boundary.
type StockLedger interface {
	// Decrement takes qty out of unreserved stock.
	Decrement(tx *gorm.DB, productID uuid.UUID, qty int) error
	// Increment puts qty back, e.g. on reversal.
	Increment(tx *gorm.DB, productID uuid.UUID, qty int) error
	// Reserve holds qty for a pending mobile payment.
	Reserve(tx *gorm.DB, productID uuid.UUID, qty int) error
	// Release drops a hold without touching stock.
	Release(tx *gorm.DB, productID uuid.UUID, qty int) error
	// Consume turns a hold into a sale once payment is confirmed. Stock is taken
	// even when the hold is gone, as the money has already moved.
	Consume(tx *gorm.DB, productID uuid.UUID, qty int) error
}

type stockLedger struct{}

func NewStockLedger() StockLedger {
	return stockLedger{}
}

// reservedMinus floors the hold at zero so a missing hold never goes negative.
func reservedMinus(qty int) interface{} {
	return gorm.Expr("CASE WHEN reserved >= ? THEN reserved - ? ELSE 0 END", qty, qty)
}

func (stockLedger) Decrement(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	res := tx.Model(&model.Product{}).
		Where("id = ? AND stock - reserved >= ?", productID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (stockLedger) Increment(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	res := tx.Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (stockLedger) Reserve(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	res := tx.Model(&model.Product{}).
		Where("id = ? AND stock - reserved >= ?", productID, qty).
		UpdateColumn("reserved", gorm.Expr("reserved + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (stockLedger) Release(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return tx.Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumn("reserved", reservedMinus(qty)).Error
}

func (stockLedger) Consume(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	res := tx.Model(&model.Product{}).
		Where("id = ?", productID).
		UpdateColumns(map[string]interface{}{
			"stock":    gorm.Expr("stock - ?", qty),
			"reserved": reservedMinus(qty),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
