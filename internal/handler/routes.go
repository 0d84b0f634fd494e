package handler

import (
	"go-pos-engine/internal/access"
	"go-pos-engine/internal/middleware"
	"go-pos-engine/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// RegisterTransactionRoutes mounts the transaction API under api.
func RegisterTransactionRoutes(api fiber.Router, th *TransactionHandler, cb *CallbackHandler, signer *jwt.Signer, policy *access.Policy) {
	// ============ PUBLIC ROUTES ============
	// Provider callback, authenticated by its optional token
	api.Post("/transactions/mpesa-callback", cb.MpesaCallback)

	// ============ PROTECTED ROUTES ============
	tx := api.Group("/transactions", middleware.RequireAuth(signer))

	tx.Get("/", middleware.RequireCapability(policy, access.ActionView), th.GetTransactions)
	tx.Get("/:id", middleware.RequireCapability(policy, access.ActionView), th.GetTransaction)
	tx.Post("/checkout", middleware.RequireCapability(policy, access.ActionCheckout), th.Checkout)
	tx.Post("/:id/complete", middleware.RequireCapability(policy, access.ActionComplete), th.Complete)
	tx.Post("/:id/void", middleware.RequireCapability(policy, access.ActionVoid), th.Void)
	tx.Post("/:id/refund", middleware.RequireCapability(policy, access.ActionRefund), th.Refund)
}
