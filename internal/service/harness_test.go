package service_test

import (
	"context"
	"sync"
	"testing"

	"go-pos-engine/internal/access"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/model"
	"go-pos-engine/internal/service"
	"go-pos-engine/internal/storetest"

	"github.com/google/uuid"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

// recordingAudit captures events synchronously.
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Emit(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type harness struct {
	db      *gorm.DB
	gateway *service.MockPaymentGateway
	audit   *recordingAudit
	tenant  uuid.UUID
	cashier access.Principal
	manager access.Principal

	checkout  service.CheckoutService
	reconcile service.ReconciliationService
	reversal  service.ReversalService
	query     service.QueryService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)
	h := &harness{
		db:      storetest.New(t),
		gateway: service.NewMockPaymentGateway(ctrl),
		audit:   &recordingAudit{},
		tenant:  uuid.New(),
	}
	h.cashier = access.Principal{UserID: uuid.New(), TenantID: h.tenant, Name: "Wanjiru", Role: access.RoleCashier}
	h.manager = access.Principal{UserID: uuid.New(), TenantID: h.tenant, Name: "Otieno", Role: access.RoleManager}

	deps := service.Deps{
		DB:      h.db,
		Gateway: h.gateway,
		Audit:   h.audit,
	}
	h.checkout = service.NewCheckoutService(deps)
	h.reconcile = service.NewReconciliationService(deps)
	h.reversal = service.NewReversalService(deps)
	h.query = service.NewQueryService(deps)
	return h
}

func (h *harness) product(t *testing.T, name string, stock int, price string) *model.Product {
	return storetest.SeedProduct(t, h.db, h.tenant, name, stock, price)
}

func (h *harness) stock(t *testing.T, id uuid.UUID) *model.Product {
	return storetest.Product(t, h.db, id)
}

func (h *harness) load(t *testing.T, id uuid.UUID) *model.Transaction {
	t.Helper()
	txn, err := h.query.Get(context.Background(), h.manager, id)
	if err != nil {
		t.Fatalf("loading transaction %s: %v", id, err)
	}
	return txn
}
