package access

import "github.com/google/uuid"

// Role codes issued by the external auth service.
const (
	RoleOwner   = "owner"
	RoleManager = "manager"
	RoleCashier = "cashier"
)

// Action is a capability checked before a handler runs.
type Action string

const (
	ActionCheckout Action = "transaction:checkout"
	ActionView     Action = "transaction:view"
	ActionComplete Action = "transaction:complete"
	ActionVoid     Action = "transaction:void"
	ActionRefund   Action = "transaction:refund"
)

// Principal is the authenticated caller and the tenant it acts for.
type Principal struct {
	UserID   uuid.UUID
	TenantID uuid.UUID
	Name     string
	Role     string
}

// ActorID is the value recorded in created_by / audit actor columns.
func (p Principal) ActorID() string {
	return p.UserID.String()
}

// Policy maps roles to the actions they may perform.
type Policy struct {
	grants map[string]map[Action]struct{}
}

// DefaultPolicy: owners and managers may do everything, cashiers cannot reverse sales.
func DefaultPolicy() *Policy {
	all := []Action{ActionCheckout, ActionView, ActionComplete, ActionVoid, ActionRefund}
	return NewPolicy(map[string][]Action{
		RoleOwner:   all,
		RoleManager: all,
		RoleCashier: {ActionCheckout, ActionView, ActionComplete},
	})
}

func NewPolicy(grants map[string][]Action) *Policy {
	p := &Policy{grants: make(map[string]map[Action]struct{}, len(grants))}
	for role, actions := range grants {
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		p.grants[role] = set
	}
	return p
}

// Can reports whether role may perform action. Unknown roles get nothing.
func (p *Policy) Can(role string, action Action) bool {
	set, ok := p.grants[role]
	if !ok {
		return false
	}
	_, ok = set[action]
	return ok
}
