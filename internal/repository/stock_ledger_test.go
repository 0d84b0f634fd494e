package repository_test

import (
	"testing"

	"go-pos-engine/internal/repository"
	"go-pos-engine/internal/storetest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockLedger_Decrement(t *testing.T) {
	db := storetest.New(t)
	ledger := repository.NewStockLedger()
	p := storetest.SeedProduct(t, db, uuid.New(), "Milk", 3, "60")

	require.NoError(t, ledger.Decrement(db, p.ID, 2))
	assert.Equal(t, 1, storetest.Product(t, db, p.ID).Stock)

	err := ledger.Decrement(db, p.ID, 2)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.Equal(t, 1, storetest.Product(t, db, p.ID).Stock)

	assert.ErrorIs(t, ledger.Decrement(db, p.ID, 0), repository.ErrInvalidQuantity)
	assert.ErrorIs(t, ledger.Decrement(db, p.ID, -1), repository.ErrInvalidQuantity)
}

func TestStockLedger_ReserveLimitsAvailable(t *testing.T) {
	db := storetest.New(t)
	ledger := repository.NewStockLedger()
	p := storetest.SeedProduct(t, db, uuid.New(), "Bread", 5, "55")

	require.NoError(t, ledger.Reserve(db, p.ID, 4))
	assert.ErrorIs(t, ledger.Reserve(db, p.ID, 2), repository.ErrInsufficientStock)
	assert.ErrorIs(t, ledger.Decrement(db, p.ID, 2), repository.ErrInsufficientStock)
	require.NoError(t, ledger.Decrement(db, p.ID, 1))

	got := storetest.Product(t, db, p.ID)
	assert.Equal(t, 4, got.Stock)
	assert.Equal(t, 4, got.Reserved)
	assert.Equal(t, 0, got.Available())
}

func TestStockLedger_ConsumeAndRelease(t *testing.T) {
	db := storetest.New(t)
	ledger := repository.NewStockLedger()
	p := storetest.SeedProduct(t, db, uuid.New(), "Sugar", 10, "120")

	require.NoError(t, ledger.Reserve(db, p.ID, 3))
	require.NoError(t, ledger.Consume(db, p.ID, 2))

	got := storetest.Product(t, db, p.ID)
	assert.Equal(t, 8, got.Stock)
	assert.Equal(t, 1, got.Reserved)

	require.NoError(t, ledger.Release(db, p.ID, 5))
	got = storetest.Product(t, db, p.ID)
	assert.Equal(t, 8, got.Stock)
	assert.Equal(t, 0, got.Reserved, "hold floors at zero")

	// Without a hold, confirmed payments still take stock.
	require.NoError(t, ledger.Consume(db, p.ID, 1))
	assert.Equal(t, 7, storetest.Product(t, db, p.ID).Stock)
}

func TestStockLedger_Increment(t *testing.T) {
	db := storetest.New(t)
	ledger := repository.NewStockLedger()
	p := storetest.SeedProduct(t, db, uuid.New(), "Rice", 0, "200")

	require.NoError(t, ledger.Increment(db, p.ID, 4))
	assert.Equal(t, 4, storetest.Product(t, db, p.ID).Stock)

	assert.ErrorIs(t, ledger.Increment(db, uuid.New(), 1), repository.ErrNotFound)
	assert.ErrorIs(t, ledger.Consume(db, uuid.New(), 1), repository.ErrNotFound)
}
