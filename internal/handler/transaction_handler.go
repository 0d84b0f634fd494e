package handler

import (
	"strings"
	"time"

	"go-pos-engine/internal/access"
	"go-pos-engine/internal/middleware"
	"go-pos-engine/internal/model"
	"go-pos-engine/internal/repository"
	"go-pos-engine/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type TransactionHandler struct {
	checkout  service.CheckoutService
	reconcile service.ReconciliationService
	reversal  service.ReversalService
	query     service.QueryService
}

func NewTransactionHandler(
	checkout service.CheckoutService,
	reconcile service.ReconciliationService,
	reversal service.ReversalService,
	query service.QueryService,
) *TransactionHandler {
	return &TransactionHandler{
		checkout:  checkout,
		reconcile: reconcile,
		reversal:  reversal,
		query:     query,
	}
}

type reverseRequest struct {
	Reason string `json:"reason"`
}

// Helper to get the caller set by RequireAuth
func principal(c *fiber.Ctx) (access.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return access.Principal{}, fiber.NewError(fiber.StatusUnauthorized, "Not authenticated")
	}
	return p, nil
}

func paramID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}

func (h *TransactionHandler) Checkout(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	var req service.CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON", "kind": service.ErrValidation.Error()})
	}

	res, err := h.checkout.Checkout(c.UserContext(), p, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(res)
}

func (h *TransactionHandler) Complete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, ok := paramID(c)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid transaction ID", "kind": service.ErrValidation.Error()})
	}

	txn, err := h.reconcile.CompleteManually(c.UserContext(), p, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Transaction completed", "data": txn})
}

func (h *TransactionHandler) Void(c *fiber.Ctx) error {
	return h.reverse(c, model.TypeVoid)
}

func (h *TransactionHandler) Refund(c *fiber.Ctx) error {
	return h.reverse(c, model.TypeRefund)
}

func (h *TransactionHandler) reverse(c *fiber.Ctx, mode model.TransactionType) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, ok := paramID(c)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid transaction ID", "kind": service.ErrValidation.Error()})
	}

	var req reverseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON", "kind": service.ErrValidation.Error()})
	}

	rev, err := h.reversal.Reverse(c.UserContext(), p, id, mode, req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"reversal_transaction": rev})
}

func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, ok := paramID(c)
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid transaction ID", "kind": service.ErrValidation.Error()})
	}

	txn, err := h.query.Get(c.UserContext(), p, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": txn})
}

func (h *TransactionHandler) GetTransactions(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	filter, msg := parseListFilter(c)
	if msg != "" {
		return c.Status(400).JSON(fiber.Map{"error": msg, "kind": service.ErrValidation.Error()})
	}

	txns, err := h.query.List(c.UserContext(), p, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"data": txns, "count": len(txns)})
}

// parseListFilter reads payment_method, status, transaction_type, date_from
// and date_to. Dates are YYYY-MM-DD or RFC 3339; a bare date_to covers the
// whole day.
func parseListFilter(c *fiber.Ctx) (repository.ListFilter, string) {
	var f repository.ListFilter

	if v := c.Query("payment_method"); v != "" {
		pm := model.PaymentMethod(strings.ToLower(v))
		if pm == "mpesa" {
			pm = model.PaymentMobile
		}
		if pm != model.PaymentCash && pm != model.PaymentMobile {
			return f, "Invalid payment_method"
		}
		f.PaymentMethod = &pm
	}

	if v := c.Query("status"); v != "" {
		st := model.TransactionStatus(strings.ToLower(v))
		switch st {
		case model.StatusPending, model.StatusCompleted, model.StatusFailed, model.StatusVoided, model.StatusRefunded:
		default:
			return f, "Invalid status"
		}
		f.Status = &st
	}

	if v := c.Query("transaction_type"); v != "" {
		tt := model.TransactionType(strings.ToLower(v))
		switch tt {
		case model.TypeSale, model.TypeVoid, model.TypeRefund:
		default:
			return f, "Invalid transaction_type"
		}
		f.Type = &tt
	}

	if v := c.Query("date_from"); v != "" {
		from, _, err := parseDate(v)
		if err != nil {
			return f, "Invalid date_from"
		}
		f.From = &from
	}

	if v := c.Query("date_to"); v != "" {
		to, dateOnly, err := parseDate(v)
		if err != nil {
			return f, "Invalid date_to"
		}
		if dateOnly {
			to = to.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &to
	}

	return f, ""
}

func parseDate(v string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	return t, false, err
}
