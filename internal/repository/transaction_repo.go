package repository

import (
	"context"
	"fmt"
	"time"

	"go-pos-engine/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const listLimit = 200

type TransactionRepository interface {
	// Create inserts the transaction row and its items inside tx.
	Create(tx *gorm.DB, t *model.Transaction) error
	FindForTenant(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Transaction, error)
	// FindPendingMobile finds the pending mobile-payment sale a provider callback refers to.
	FindPendingMobile(tx *gorm.DB, c Correlation) (*model.Transaction, error)
	FindItems(tx *gorm.DB, transactionID uuid.UUID) ([]model.TransactionItem, error)

	// Complete moves a pending mobile-payment sale to completed. It returns false
	// when the row was no longer pending.
	Complete(tx *gorm.DB, id uuid.UUID, receipt string, at time.Time) (bool, error)
	// Fail moves a pending transaction to failed. It returns false when the row
	// was no longer pending.
	Fail(tx *gorm.DB, id uuid.UUID) (bool, error)
	// SealReversed closes a completed sale with its reversal. It returns false
	// when the sale was already reversed or is no longer completed.
	SealReversed(tx *gorm.DB, id uuid.UUID, status model.TransactionStatus, reversalID uuid.UUID) (bool, error)
	SetGatewayRequestID(ctx context.Context, id uuid.UUID, requestID string) error

	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]model.Transaction, error)
	FindStalePending(ctx context.Context, before time.Time, limit int) ([]model.Transaction, error)
}

// Correlation identifies a transaction from a provider callback.
type Correlation struct {
	GatewayRequestID string
	Code             string
}

func (c Correlation) IsZero() bool {
	return c.GatewayRequestID == "" && c.Code == ""
}

type ListFilter struct {
	PaymentMethod *model.PaymentMethod
	Status        *model.TransactionStatus
	Type          *model.TransactionType
	From          *time.Time
	To            *time.Time
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *transactionRepo) Create(tx *gorm.DB, t *model.Transaction) error {
	if err := tx.Omit(clause.Associations).Create(t).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("creating transaction: %w", err)
	}

	if len(t.Items) == 0 {
		return nil
	}
	for i := range t.Items {
		if t.Items[i].ID == uuid.Nil {
			t.Items[i].ID = uuid.New()
		}
		t.Items[i].TransactionID = t.ID
	}
	if err := tx.Create(&t.Items).Error; err != nil {
		return fmt.Errorf("creating transaction items: %w", err)
	}
	return nil
}

func (r *transactionRepo) FindForTenant(tx *gorm.DB, tenantID, id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	err := tx.Preload("Items", orderedItems).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *transactionRepo) FindPendingMobile(tx *gorm.DB, c Correlation) (*model.Transaction, error) {
	if c.IsZero() {
		return nil, ErrNotFound
	}

	q := tx.Preload("Items", orderedItems).
		Where("status = ? AND transaction_type = ? AND payment_method = ?",
			model.StatusPending, model.TypeSale, model.PaymentMobile)
	// The request id is stored only after the push returns, so a fast callback
	// can still be matched by the code it echoes.
	switch {
	case c.GatewayRequestID != "" && c.Code != "":
		q = q.Where("(gateway_request_id = ? OR transaction_code = ?)", c.GatewayRequestID, c.Code)
	case c.GatewayRequestID != "":
		q = q.Where("gateway_request_id = ?", c.GatewayRequestID)
	default:
		q = q.Where("transaction_code = ?", c.Code)
	}

	var t model.Transaction
	if err := q.First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *transactionRepo) FindItems(tx *gorm.DB, transactionID uuid.UUID) ([]model.TransactionItem, error) {
	var items []model.TransactionItem
	err := tx.Where("transaction_id = ?", transactionID).Order("position ASC").Find(&items).Error
	return items, err
}

func (r *transactionRepo) Complete(tx *gorm.DB, id uuid.UUID, receipt string, at time.Time) (bool, error) {
	res := tx.Model(&model.Transaction{}).
		Where("id = ? AND status = ? AND transaction_type = ? AND payment_method = ?",
			id, model.StatusPending, model.TypeSale, model.PaymentMobile).
		Updates(map[string]interface{}{
			"status":         model.StatusCompleted,
			"receipt_number": receipt,
			"completed_at":   at,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *transactionRepo) Fail(tx *gorm.DB, id uuid.UUID) (bool, error) {
	res := tx.Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, model.StatusPending).
		Update("status", model.StatusFailed)
	return res.RowsAffected == 1, res.Error
}

func (r *transactionRepo) SealReversed(tx *gorm.DB, id uuid.UUID, status model.TransactionStatus, reversalID uuid.UUID) (bool, error) {
	res := tx.Model(&model.Transaction{}).
		Where("id = ? AND status = ? AND transaction_type = ? AND reversed_by_transaction_id IS NULL",
			id, model.StatusCompleted, model.TypeSale).
		Updates(map[string]interface{}{
			"status":                     status,
			"reversed_by_transaction_id": reversalID,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *transactionRepo) SetGatewayRequestID(ctx context.Context, id uuid.UUID, requestID string) error {
	return r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("id = ?", id).
		Update("gateway_request_id", requestID).Error
}

func (r *transactionRepo) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]model.Transaction, error) {
	q := r.db.WithContext(ctx).Preload("Items", orderedItems).Where("tenant_id = ?", tenantID)

	if filter.PaymentMethod != nil {
		q = q.Where("payment_method = ?", *filter.PaymentMethod)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		q = q.Where("transaction_type = ?", *filter.Type)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var transactions []model.Transaction
	err := q.Order("created_at DESC").Limit(listLimit).Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindStalePending(ctx context.Context, before time.Time, limit int) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_method = ? AND created_at < ?", model.StatusPending, model.PaymentMobile, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}
