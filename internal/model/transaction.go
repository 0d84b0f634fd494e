package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusVoided    TransactionStatus = "voided"
	StatusRefunded  TransactionStatus = "refunded"
)

type TransactionType string

const (
	TypeSale   TransactionType = "sale"
	TypeVoid   TransactionType = "void"
	TypeRefund TransactionType = "refund"
)

// ReversedStatus is the status a sale moves to when closed by a reversal of type t.
func (t TransactionType) ReversedStatus() TransactionStatus {
	if t == TypeRefund {
		return StatusRefunded
	}
	return StatusVoided
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentMobile PaymentMethod = "mobile_payment"
)

// CashCustomer is stored as the customer reference of cash sales.
const CashCustomer = "CASH"

type Transaction struct {
	BaseModel
	TenantID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Code           string            `gorm:"column:transaction_code;type:varchar(64);uniqueIndex;not null" json:"transaction_code"`
	CustomerPhone  string            `gorm:"type:varchar(20);not null" json:"customer_phone"`
	TotalAmount    decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	DiscountAmount decimal.Decimal   `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	Status         TransactionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Type           TransactionType   `gorm:"column:transaction_type;type:varchar(10);not null" json:"transaction_type"`
	PaymentMethod  PaymentMethod     `gorm:"type:varchar(20);not null" json:"payment_method"`

	ReceiptNumber    *string `gorm:"type:varchar(64)" json:"receipt_number,omitempty"`
	GatewayRequestID *string `gorm:"type:varchar(128);index" json:"gateway_request_id,omitempty"`

	// A sale may carry ReversedByTransactionID; a void/refund carries ParentTransactionID. Never both.
	ParentTransactionID     *uuid.UUID `gorm:"type:uuid;index" json:"parent_transaction_id,omitempty"`
	ReversedByTransactionID *uuid.UUID `gorm:"type:uuid" json:"reversed_by_transaction_id,omitempty"`
	ApprovalReason          *string    `gorm:"type:text" json:"approval_reason,omitempty"`
	ApprovedByUserID        *string    `gorm:"type:varchar(255)" json:"approved_by_user_id,omitempty"`

	CreatedByUserID string     `gorm:"type:varchar(255)" json:"created_by_user_id"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	Items []TransactionItem `gorm:"foreignKey:TransactionID" json:"items,omitempty"`
}

// IsReversed reports whether a void or refund already closed this sale.
func (t *Transaction) IsReversed() bool {
	return t.ReversedByTransactionID != nil
}

// ItemsSubtotal sums the line subtotals.
func (t *Transaction) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range t.Items {
		sum = sum.Add(it.Subtotal)
	}
	return sum
}

// TransactionItem is written once with its parent and never updated.
type TransactionItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primary_key;" json:"id"`
	TransactionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"transaction_id"`
	Position      int             `gorm:"not null" json:"position"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName   string          `gorm:"type:varchar(255);not null" json:"product_name"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Unit          string          `gorm:"type:varchar(20)" json:"unit"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Negated returns the compensating copy of the line for a reversal transaction.
func (it TransactionItem) Negated(reversalID uuid.UUID) TransactionItem {
	return TransactionItem{
		ID:            uuid.New(),
		TransactionID: reversalID,
		Position:      it.Position,
		ProductID:     it.ProductID,
		ProductName:   it.ProductName,
		Quantity:      -it.Quantity,
		UnitPrice:     it.UnitPrice,
		Subtotal:      it.Subtotal.Neg(),
		Unit:          it.Unit,
	}
}
