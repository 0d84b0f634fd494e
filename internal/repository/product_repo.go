package repository

import (
	"context"

	"go-pos-engine/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	// FindForTenant loads a product inside the caller's atomic scope.
	FindForTenant(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Product, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepo) FindForTenant(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := tx.Where("id = ? AND tenant_id = ?", id, tenantID).First(&product).Error; err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}
