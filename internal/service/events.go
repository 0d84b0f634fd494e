package service

import (
	"go-pos-engine/internal/model"
	"go-pos-engine/internal/repository"

	"gorm.io/gorm"
)

// snapshot is the audit representation of a transaction.
func snapshot(t *model.Transaction) map[string]interface{} {
	m := map[string]interface{}{
		"transaction_code": t.Code,
		"status":           t.Status,
		"transaction_type": t.Type,
		"payment_method":   t.PaymentMethod,
		"total_amount":     t.TotalAmount.String(),
		"discount_amount":  t.DiscountAmount.String(),
		"items":            len(t.Items),
	}
	if t.ReceiptNumber != nil {
		m["receipt_number"] = *t.ReceiptNumber
	}
	if t.ParentTransactionID != nil {
		m["parent_transaction_id"] = t.ParentTransactionID.String()
	}
	if t.ReversedByTransactionID != nil {
		m["reversed_by_transaction_id"] = t.ReversedByTransactionID.String()
	}
	return m
}

func transactionPayload(t *model.Transaction) map[string]interface{} {
	return map[string]interface{}{
		"transaction": map[string]interface{}{
			"id":               t.ID,
			"transaction_code": t.Code,
			"status":           t.Status,
			"transaction_type": t.Type,
			"payment_method":   t.PaymentMethod,
			"total_amount":     t.TotalAmount,
		},
	}
}

// stockPayload lists the quantity change per product; sign is -1 for sales
// and +1 for restorations.
func stockPayload(items []model.TransactionItem, sign int) map[string]interface{} {
	changes := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		qty := it.Quantity
		if qty < 0 {
			qty = -qty
		}
		changes = append(changes, map[string]interface{}{
			"product_id":   it.ProductID,
			"product_name": it.ProductName,
			"change":       sign * qty,
		})
	}
	return map[string]interface{}{"products": changes}
}

func releaseHolds(tx *gorm.DB, ledger repository.StockLedger, items []model.TransactionItem) error {
	for _, it := range items {
		if err := ledger.Release(tx, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}
