package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-pos-engine/internal/access"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/logging"
	"go-pos-engine/internal/model"
	"go-pos-engine/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Metadata names sent by the provider.
const (
	MetaReceipt          = "MpesaReceiptNumber"
	MetaPhone            = "PhoneNumber"
	MetaAmount           = "Amount"
	MetaAccountReference = "AccountReference"
	MetaTransactionCode  = "TransactionCode"
)

// Callback is a provider payment result, already decoded from the wire.
type Callback struct {
	ResultCode        int
	ResultDesc        string
	MerchantRequestID string
	CheckoutRequestID string
	Metadata          map[string]string
}

func (c Callback) Succeeded() bool { return c.ResultCode == 0 }

func (c Callback) correlation() repository.Correlation {
	ref := c.Metadata[MetaAccountReference]
	if ref == "" {
		ref = c.Metadata[MetaTransactionCode]
	}
	return repository.Correlation{GatewayRequestID: c.CheckoutRequestID, Code: ref}
}

type CallbackOutcome string

const (
	OutcomeCompleted CallbackOutcome = "completed"
	OutcomeFailed    CallbackOutcome = "failed"
	OutcomeUnmatched CallbackOutcome = "unmatched"
)

type ReconciliationService interface {
	// HandleCallback applies a provider result to the pending sale it refers to.
	// Redelivery of a processed callback is reported as OutcomeUnmatched.
	HandleCallback(ctx context.Context, cb Callback) (CallbackOutcome, error)
	// CompleteManually forces a pending mobile sale to completed without a
	// provider confirmation.
	CompleteManually(ctx context.Context, p access.Principal, id uuid.UUID) (*model.Transaction, error)
	// ExpireStale fails up to limit pending mobile sales created before the
	// cutoff and releases their holds. It returns how many it failed.
	ExpireStale(ctx context.Context, before time.Time, limit int) (int, error)
}

type reconciliationService struct {
	Deps
	now func() time.Time
}

func NewReconciliationService(d Deps) ReconciliationService {
	return &reconciliationService{Deps: d.withDefaults(), now: time.Now}
}

func (s *reconciliationService) HandleCallback(ctx context.Context, cb Callback) (outcome CallbackOutcome, err error) {
	log := logging.FromContext(ctx).With(
		zap.Int("result_code", cb.ResultCode),
		zap.String("checkout_request_id", cb.CheckoutRequestID),
	)
	defer func() {
		label := string(outcome)
		if err != nil {
			label = "error"
		}
		s.Metrics.Callbacks.WithLabelValues(label).Inc()
	}()

	corr := cb.correlation()
	if corr.IsZero() {
		log.Warn("callback carries no correlation id")
		return OutcomeUnmatched, nil
	}

	var txn *model.Transaction
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.Transactions.FindPendingMobile(tx, corr)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if cb.Succeeded() {
			ok, err := s.Transactions.Complete(tx, found.ID, cb.Metadata[MetaReceipt], s.now())
			if err != nil || !ok {
				return err
			}
			if err := s.consume(tx, found); err != nil {
				return err
			}
		} else {
			ok, err := s.Transactions.Fail(tx, found.ID)
			if err != nil || !ok {
				return err
			}
			if err := releaseHolds(tx, s.Ledger, found.Items); err != nil {
				return err
			}
		}

		txn = found
		return nil
	})
	if err != nil {
		log.Error("failed to apply payment callback", zap.Error(err))
		return "", internalError("callback processing failed", err)
	}

	if txn == nil {
		log.Info("callback matched no pending transaction")
		return OutcomeUnmatched, nil
	}

	log = log.With(zap.String("transaction_id", txn.ID.String()), zap.String("transaction_code", txn.Code))
	if cb.Succeeded() {
		s.finish(ctx, "", txn, model.StatusCompleted, cb.Metadata[MetaReceipt], cb.ResultDesc)
		log.Info("mobile payment confirmed", zap.String("receipt_number", cb.Metadata[MetaReceipt]))
		return OutcomeCompleted, nil
	}

	s.finish(ctx, "", txn, model.StatusFailed, "", cb.ResultDesc)
	log.Info("mobile payment failed", zap.String("result_desc", cb.ResultDesc))
	return OutcomeFailed, nil
}

func (s *reconciliationService) CompleteManually(ctx context.Context, p access.Principal, id uuid.UUID) (*model.Transaction, error) {
	now := s.now()
	receipt := fmt.Sprintf("MANUAL_%d", now.UnixMilli())

	var txn *model.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.Transactions.FindForTenant(tx, p.TenantID, id)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("transaction not found")
		}
		if err != nil {
			return err
		}
		if found.Type != model.TypeSale || found.PaymentMethod != model.PaymentMobile || found.Status != model.StatusPending {
			return conflictError("only pending mobile payment sales can be completed")
		}

		ok, err := s.Transactions.Complete(tx, found.ID, receipt, now)
		if err != nil {
			return err
		}
		if !ok {
			return conflictError("only pending mobile payment sales can be completed")
		}
		if err := s.consume(tx, found); err != nil {
			return err
		}

		txn = found
		return nil
	})
	if err != nil {
		return nil, asServiceError("manual completion failed", err)
	}

	s.finish(ctx, p.ActorID(), txn, model.StatusCompleted, receipt, "manual completion")
	txn.CompletedAt = &now
	logging.FromContext(ctx).Info("transaction completed manually",
		zap.String("transaction_id", txn.ID.String()),
		zap.String("tenant_id", p.TenantID.String()),
	)
	return txn, nil
}

// consume turns each hold into a sale. A product removed from the catalog
// since checkout is skipped: the payment has already been taken.
func (s *reconciliationService) consume(tx *gorm.DB, txn *model.Transaction) error {
	for _, it := range txn.Items {
		err := s.Ledger.Consume(tx, it.ProductID, it.Quantity)
		if errors.Is(err, repository.ErrNotFound) {
			logging.FromContext(tx.Statement.Context).Warn("product missing at completion",
				zap.String("transaction_id", txn.ID.String()),
				zap.String("product_id", it.ProductID.String()),
			)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// finish records the audit event and live update for a pending sale that has
// just reached status.
func (s *reconciliationService) finish(ctx context.Context, actor string, txn *model.Transaction, status model.TransactionStatus, receipt, reason string) {
	old := txn.Status
	txn.Status = status
	if receipt != "" {
		txn.ReceiptNumber = &receipt
	}

	action, event, sign := audit.ActionComplete, "transaction_completed", -1
	newValues := map[string]interface{}{"status": status}
	if status == model.StatusFailed {
		action, event = audit.ActionFail, "transaction_failed"
	} else {
		newValues["receipt_number"] = receipt
	}

	s.Audit.Emit(ctx, audit.Event{
		ActorUserID: actor,
		TenantID:    txn.TenantID,
		Action:      action,
		EntityType:  audit.EntityTransaction,
		EntityID:    txn.ID,
		OldValues:   map[string]interface{}{"status": old},
		NewValues:   newValues,
		Reason:      reason,
	})
	s.Notifier.Notify("transaction_update", event, transactionPayload(txn))
	if status == model.StatusCompleted {
		s.Notifier.Notify("stock_update", "stock_decremented", stockPayload(txn.Items, sign))
	}
}

func (s *reconciliationService) ExpireStale(ctx context.Context, before time.Time, limit int) (int, error) {
	log := logging.FromContext(ctx)

	stale, err := s.Transactions.FindStalePending(ctx, before, limit)
	if err != nil {
		return 0, internalError("failed to find stale transactions", err)
	}

	expired := 0
	for i := range stale {
		txn := &stale[i]
		var failed bool
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.Transactions.Fail(tx, txn.ID)
			if err != nil || !ok {
				return err
			}
			items, err := s.Transactions.FindItems(tx, txn.ID)
			if err != nil {
				return err
			}
			txn.Items = items
			failed = true
			return releaseHolds(tx, s.Ledger, items)
		})
		if err != nil {
			log.Error("failed to expire pending transaction", zap.String("transaction_id", txn.ID.String()), zap.Error(err))
			continue
		}
		if !failed {
			continue
		}

		expired++
		s.finish(ctx, "", txn, model.StatusFailed, "", "payment confirmation timed out")
		log.Info("pending transaction expired",
			zap.String("transaction_id", txn.ID.String()),
			zap.String("transaction_code", txn.Code),
		)
	}
	return expired, nil
}
