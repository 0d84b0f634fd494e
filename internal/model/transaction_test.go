package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionItem_Negated(t *testing.T) {
	orig := TransactionItem{
		ID:          uuid.New(),
		Position:    2,
		ProductID:   uuid.New(),
		ProductName: "Sugar 1kg",
		Quantity:    3,
		UnitPrice:   decimal.NewFromInt(150),
		Subtotal:    decimal.NewFromInt(450),
		Unit:        "pack",
	}
	reversalID := uuid.New()

	neg := orig.Negated(reversalID)

	assert.NotEqual(t, orig.ID, neg.ID)
	assert.Equal(t, reversalID, neg.TransactionID)
	assert.Equal(t, -3, neg.Quantity)
	assert.True(t, neg.Subtotal.Equal(decimal.NewFromInt(-450)))
	assert.True(t, neg.UnitPrice.Equal(orig.UnitPrice))
	assert.Equal(t, orig.ProductID, neg.ProductID)
	assert.Equal(t, orig.Position, neg.Position)
}

func TestTransactionType_ReversedStatus(t *testing.T) {
	assert.Equal(t, StatusVoided, TypeVoid.ReversedStatus())
	assert.Equal(t, StatusRefunded, TypeRefund.ReversedStatus())
}

func TestTransaction_ItemsSubtotal(t *testing.T) {
	tx := Transaction{Items: []TransactionItem{
		{Subtotal: decimal.NewFromInt(200)},
		{Subtotal: decimal.RequireFromString("49.50")},
	}}
	assert.True(t, tx.ItemsSubtotal().Equal(decimal.RequireFromString("249.50")))
	assert.False(t, tx.IsReversed())
}
