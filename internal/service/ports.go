package service

import (
	"context"

	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/gateway"
	"go-pos-engine/internal/metrics"
	"go-pos-engine/internal/repository"

	"gorm.io/gorm"
)

//go:generate mockgen -source=ports.go -destination=ports_mock.go -package=service

// PaymentGateway starts a mobile-money push payment.
type PaymentGateway interface {
	Initiate(ctx context.Context, req gateway.InitiateRequest) (*gateway.InitiateResponse, error)
}

// Notifier pushes live updates to connected clients. It must not block.
type Notifier interface {
	Notify(kind, action string, payload map[string]interface{})
}

// Deps are the collaborators shared by the transaction services.
type Deps struct {
	DB           *gorm.DB
	Products     repository.ProductRepository
	Transactions repository.TransactionRepository
	Ledger       repository.StockLedger
	Gateway      PaymentGateway
	Audit        audit.Recorder
	Notifier     Notifier
	Metrics      *metrics.Metrics
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, map[string]interface{}) {}

type nopRecorder struct{}

func (nopRecorder) Emit(context.Context, audit.Event) {}

func (d Deps) withDefaults() Deps {
	if d.Products == nil {
		d.Products = repository.NewProductRepo(d.DB)
	}
	if d.Transactions == nil {
		d.Transactions = repository.NewTransactionRepo(d.DB)
	}
	if d.Ledger == nil {
		d.Ledger = repository.NewStockLedger()
	}
	if d.Audit == nil {
		d.Audit = nopRecorder{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewNop()
	}
	return d
}
