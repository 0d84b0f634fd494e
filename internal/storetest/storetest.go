// Package storetest provides an in-memory database for repository and service tests.
package storetest

import (
	"fmt"
	"testing"

	"go-pos-engine/internal/model"
	"go-pos-engine/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New opens a migrated, private in-memory database that is closed with the test.
func New(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serialises writers the way row locks would on postgres.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedProduct inserts a product with the given stock and price.
func SeedProduct(t *testing.T, db *gorm.DB, tenantID uuid.UUID, name string, stock int, price string) *model.Product {
	t.Helper()

	p := &model.Product{
		TenantID: tenantID,
		SKU:      "SKU-" + uuid.NewString()[:8],
		Name:     name,
		Stock:    stock,
		Unit:     "item",
		Price:    decimal.RequireFromString(price),
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// Product reloads a product by id.
func Product(t *testing.T, db *gorm.DB, id uuid.UUID) *model.Product {
	t.Helper()

	var p model.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return &p
}

// CountTransactions counts every transaction row.
func CountTransactions(t *testing.T, db *gorm.DB) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(&model.Transaction{}).Count(&n).Error)
	return n
}
