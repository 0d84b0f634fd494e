package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-pos-engine/internal/access"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/logging"
	"go-pos-engine/internal/model"
	"go-pos-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ReversalService interface {
	// Reverse closes a completed sale with a void or refund transaction that
	// negates it and puts its stock back.
	Reverse(ctx context.Context, p access.Principal, id uuid.UUID, mode model.TransactionType, reason string) (*model.Transaction, error)
}

type reversalService struct {
	Deps
	now func() time.Time
}

func NewReversalService(d Deps) ReversalService {
	return &reversalService{Deps: d.withDefaults(), now: time.Now}
}

func (s *reversalService) Reverse(ctx context.Context, p access.Principal, id uuid.UUID, mode model.TransactionType, reason string) (*model.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("reason is required")
	}
	if mode != model.TypeVoid && mode != model.TypeRefund {
		return nil, validationError("unsupported reversal mode %q", mode)
	}

	var (
		original *model.Transaction
		reversal *model.Transaction
		err      error
	)
	for attempt := 1; ; attempt++ {
		original, reversal, err = s.reverse(ctx, p, id, mode, reason)
		if errors.Is(err, repository.ErrDuplicateCode) && attempt < maxCodeAttempts {
			continue
		}
		break
	}
	if err != nil {
		return nil, asServiceError("reversal failed", err)
	}

	action := audit.ActionVoid
	if mode == model.TypeRefund {
		action = audit.ActionRefund
	}
	s.Audit.Emit(ctx, audit.Event{
		ActorUserID: p.ActorID(),
		TenantID:    p.TenantID,
		Action:      action,
		EntityType:  audit.EntityTransaction,
		EntityID:    original.ID,
		OldValues:   map[string]interface{}{"status": model.StatusCompleted},
		NewValues: map[string]interface{}{
			"status":                     original.Status,
			"reversed_by_transaction_id": reversal.ID.String(),
			"reversal":                   snapshot(reversal),
		},
		Reason: reason,
	})
	s.Metrics.Reversals.WithLabelValues(string(mode)).Inc()
	s.Notifier.Notify("transaction_update", "transaction_"+string(original.Status), transactionPayload(original))
	s.Notifier.Notify("stock_update", "stock_restored", stockPayload(reversal.Items, 1))

	logging.FromContext(ctx).Info("sale reversed",
		zap.String("transaction_id", original.ID.String()),
		zap.String("reversal_id", reversal.ID.String()),
		zap.String("reversal_code", reversal.Code),
		zap.String("mode", string(mode)),
		zap.String("tenant_id", p.TenantID.String()),
	)
	return reversal, nil
}

func (s *reversalService) reverse(ctx context.Context, p access.Principal, id uuid.UUID, mode model.TransactionType, reason string) (*model.Transaction, *model.Transaction, error) {
	var original, reversal *model.Transaction

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Load and check the sale
		found, err := s.Transactions.FindForTenant(tx, p.TenantID, id)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("transaction not found")
		}
		if err != nil {
			return err
		}
		if found.Type != model.TypeSale {
			return notFoundError("transaction not found")
		}
		if found.Status != model.StatusCompleted {
			return conflictError("only completed sales can be reversed")
		}
		if found.IsReversed() {
			return conflictError("transaction already reversed")
		}

		// 2. Build the compensating transaction
		now := s.now()
		actor := p.ActorID()
		rev := &model.Transaction{
			TenantID:            found.TenantID,
			Code:                newCode(reversalPrefix(mode), now),
			CustomerPhone:       found.CustomerPhone,
			TotalAmount:         found.TotalAmount.Neg(),
			DiscountAmount:      decimal.Zero,
			Status:              model.StatusCompleted,
			Type:                mode,
			PaymentMethod:       found.PaymentMethod,
			ParentTransactionID: &found.ID,
			ApprovalReason:      &reason,
			ApprovedByUserID:    &actor,
			CreatedByUserID:     actor,
			CompletedAt:         &now,
		}
		rev.ID = uuid.New()
		rev.CreatedBy = actor
		rev.UpdatedBy = actor
		rev.Items = make([]model.TransactionItem, 0, len(found.Items))
		for _, it := range found.Items {
			rev.Items = append(rev.Items, it.Negated(rev.ID))
		}

		if err := s.Transactions.Create(tx, rev); err != nil {
			return err
		}

		// 3. Put the stock back
		for _, it := range found.Items {
			err := s.Ledger.Increment(tx, it.ProductID, it.Quantity)
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundError("product %s not found", it.ProductID)
			}
			if err != nil {
				return err
			}
		}

		// 4. Seal the sale. Losing this race rolls everything above back.
		status := mode.ReversedStatus()
		ok, err := s.Transactions.SealReversed(tx, found.ID, status, rev.ID)
		if err != nil {
			return err
		}
		if !ok {
			return conflictError("transaction already reversed")
		}

		found.Status = status
		found.ReversedByTransactionID = &rev.ID
		original, reversal = found, rev
		return nil
	})
	return original, reversal, err
}

func reversalPrefix(mode model.TransactionType) string {
	if mode == model.TypeRefund {
		return refundPrefix
	}
	return voidPrefix
}
