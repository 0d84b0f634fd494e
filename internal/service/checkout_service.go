package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-pos-engine/internal/access"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/gateway"
	"go-pos-engine/internal/logging"
	"go-pos-engine/internal/model"
	"go-pos-engine/internal/repository"
	"go-pos-engine/pkg/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const paymentDescription = "Payment for purchase"

type CartLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"uuid_required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

type CheckoutRequest struct {
	CustomerPhone  string              `json:"customer_phone" validate:"omitempty,msisdn"`
	Items          []CartLine          `json:"items" validate:"required,min=1,dive"`
	PaymentMethod  model.PaymentMethod `json:"payment_method" validate:"required,oneof=cash mobile_payment"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
}

type CheckoutResult struct {
	TransactionID   uuid.UUID                 `json:"transaction_id"`
	TransactionCode string                    `json:"transaction_code"`
	TotalAmount     decimal.Decimal           `json:"total_amount"`
	DiscountAmount  decimal.Decimal           `json:"discount_amount"`
	PaymentMethod   model.PaymentMethod       `json:"payment_method"`
	Status          model.TransactionStatus   `json:"status"`
	GatewayResponse *gateway.InitiateResponse `json:"gateway_response,omitempty"`
}

type CheckoutService interface {
	Checkout(ctx context.Context, p access.Principal, req CheckoutRequest) (*CheckoutResult, error)
}

type checkoutService struct {
	Deps
	now func() time.Time
}

func NewCheckoutService(d Deps) CheckoutService {
	return &checkoutService{Deps: d.withDefaults(), now: time.Now}
}

// normalize applies the payment method alias and drops the phone on cash sales.
func (r *CheckoutRequest) normalize() {
	method := strings.ToLower(strings.TrimSpace(string(r.PaymentMethod)))
	if method == "mpesa" {
		method = string(model.PaymentMobile)
	}
	r.PaymentMethod = model.PaymentMethod(method)
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	if r.PaymentMethod == model.PaymentCash {
		r.CustomerPhone = ""
	}
}

func (s *checkoutService) Checkout(ctx context.Context, p access.Principal, req CheckoutRequest) (*CheckoutResult, error) {
	log := logging.FromContext(ctx)

	// 1. Validate the cart
	req.normalize()
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, validationError("%s", validator.Describe(errs))
	}
	if req.PaymentMethod == model.PaymentMobile && req.CustomerPhone == "" {
		return nil, validationError("customer_phone is required for mobile payment")
	}

	// 2. Persist, retrying on the rare code collision
	var (
		txn      *model.Transaction
		subtotal decimal.Decimal
		err      error
	)
	for attempt := 1; ; attempt++ {
		txn, subtotal, err = s.persist(ctx, p, req)
		if errors.Is(err, repository.ErrDuplicateCode) && attempt < maxCodeAttempts {
			log.Warn("transaction code collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if err != nil {
		return nil, asServiceError("checkout failed", err)
	}

	log = log.With(
		zap.String("transaction_id", txn.ID.String()),
		zap.String("transaction_code", txn.Code),
		zap.String("tenant_id", p.TenantID.String()),
		zap.String("payment_method", string(txn.PaymentMethod)),
	)

	s.Audit.Emit(ctx, audit.Event{
		ActorUserID: p.ActorID(),
		TenantID:    p.TenantID,
		Action:      audit.ActionCreate,
		EntityType:  audit.EntityTransaction,
		EntityID:    txn.ID,
		NewValues:   snapshot(txn),
	})
	s.Notifier.Notify("transaction_update", "transaction_created", transactionPayload(txn))

	result := &CheckoutResult{
		TransactionID:   txn.ID,
		TransactionCode: txn.Code,
		TotalAmount:     txn.TotalAmount,
		DiscountAmount:  txn.DiscountAmount,
		PaymentMethod:   txn.PaymentMethod,
		Status:          txn.Status,
	}

	// 3. Cash sales are already complete
	if txn.PaymentMethod == model.PaymentCash {
		s.Metrics.Checkouts.WithLabelValues(string(txn.PaymentMethod), string(txn.Status)).Inc()
		s.Notifier.Notify("stock_update", "stock_decremented", stockPayload(txn.Items, -1))
		log.Info("cash checkout completed", zap.String("total_amount", txn.TotalAmount.String()))
		return result, nil
	}

	// 4. Mobile payment: the pending row is committed, now prompt the customer.
	// The provider is asked for the pre-discount amount.
	resp, err := s.Gateway.Initiate(ctx, gateway.InitiateRequest{
		Phone:       txn.CustomerPhone,
		Amount:      subtotal,
		Reference:   txn.Code,
		Description: paymentDescription,
	})
	if err != nil {
		log.Error("payment initiation failed", zap.Error(err))
		s.failPending(ctx, p, txn)
		s.Metrics.Checkouts.WithLabelValues(string(txn.PaymentMethod), string(model.StatusFailed)).Inc()
		return nil, gatewayError(gatewayMessage(err), err)
	}

	if resp.CheckoutRequestID != "" {
		if err := s.Transactions.SetGatewayRequestID(ctx, txn.ID, resp.CheckoutRequestID); err != nil {
			// The callback can still be matched on the transaction code.
			log.Error("failed to store gateway request id", zap.Error(err))
		}
	}

	s.Metrics.Checkouts.WithLabelValues(string(txn.PaymentMethod), string(txn.Status)).Inc()
	log.Info("mobile payment initiated", zap.String("checkout_request_id", resp.CheckoutRequestID))

	result.GatewayResponse = resp
	return result, nil
}

// persist writes the transaction, its items and the stock movement in one
// atomic scope. It returns the pre-discount subtotal alongside the row.
func (s *checkoutService) persist(ctx context.Context, p access.Principal, req CheckoutRequest) (*model.Transaction, decimal.Decimal, error) {
	var (
		txn      *model.Transaction
		subtotal decimal.Decimal
	)

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		items := make([]model.TransactionItem, 0, len(req.Items))
		subtotal = decimal.Zero

		for i, line := range req.Items {
			product, err := s.Products.FindForTenant(tx, p.TenantID, line.ProductID)
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundError("product %s not found", line.ProductID)
			}
			if err != nil {
				return err
			}
			// Advisory only, the ledger update below is authoritative.
			if line.Quantity > product.Available() {
				return validationError("insufficient stock for %s", product.Name)
			}

			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(lineTotal)
			items = append(items, model.TransactionItem{
				Position:    i + 1,
				ProductID:   product.ID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
				Subtotal:    lineTotal,
				Unit:        product.Unit,
			})
		}

		discount := clampDiscount(req.DiscountAmount, subtotal)

		txn = &model.Transaction{
			TenantID:        p.TenantID,
			Code:            newCode(salePrefix, now),
			CustomerPhone:   model.CashCustomer,
			TotalAmount:     subtotal.Sub(discount),
			DiscountAmount:  discount,
			Status:          model.StatusPending,
			Type:            model.TypeSale,
			PaymentMethod:   req.PaymentMethod,
			CreatedByUserID: p.ActorID(),
			Items:           items,
		}
		txn.CreatedBy = p.ActorID()
		txn.UpdatedBy = p.ActorID()

		if req.PaymentMethod == model.PaymentCash {
			txn.Status = model.StatusCompleted
			txn.CompletedAt = &now
		} else {
			txn.CustomerPhone = gateway.NormalizePhone(req.CustomerPhone)
		}

		if err := s.Transactions.Create(tx, txn); err != nil {
			return err
		}

		for _, it := range txn.Items {
			var err error
			if txn.PaymentMethod == model.PaymentCash {
				err = s.Ledger.Decrement(tx, it.ProductID, it.Quantity)
			} else {
				err = s.Ledger.Reserve(tx, it.ProductID, it.Quantity)
			}
			if errors.Is(err, repository.ErrInsufficientStock) {
				return validationError("insufficient stock for %s", it.ProductName)
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return txn, subtotal, nil
}

// failPending marks a pending mobile sale failed after the gateway refused it
// and drops its stock hold. It runs detached from the request so a client
// disconnect cannot leave the row pending.
func (s *checkoutService) failPending(ctx context.Context, p access.Principal, txn *model.Transaction) {
	log := logging.FromContext(ctx)
	ctx = context.WithoutCancel(ctx)

	var failed bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.Transactions.Fail(tx, txn.ID)
		if err != nil || !ok {
			return err
		}
		failed = true
		return releaseHolds(tx, s.Ledger, txn.Items)
	})
	if err != nil {
		log.Error("failed to mark transaction failed", zap.String("transaction_id", txn.ID.String()), zap.Error(err))
		return
	}
	if !failed {
		// A callback got there first.
		return
	}

	old := txn.Status
	txn.Status = model.StatusFailed
	s.Audit.Emit(ctx, audit.Event{
		ActorUserID: p.ActorID(),
		TenantID:    p.TenantID,
		Action:      audit.ActionFail,
		EntityType:  audit.EntityTransaction,
		EntityID:    txn.ID,
		OldValues:   map[string]interface{}{"status": old},
		NewValues:   map[string]interface{}{"status": txn.Status},
	})
	s.Notifier.Notify("transaction_update", "transaction_failed", transactionPayload(txn))
}

// clampDiscount keeps the discount within [0, total].
func clampDiscount(discount, total decimal.Decimal) decimal.Decimal {
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(total) {
		return total
	}
	return discount
}

func gatewayMessage(err error) string {
	var ge *gateway.GatewayError
	if errors.As(err, &ge) && ge.Message != "" {
		return ge.Message
	}
	return "payment initiation failed"
}
