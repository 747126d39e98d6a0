package auth

import "context"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAdmin
}

// Capability is a single permission checked at the HTTP boundary.
type Capability string

const (
	CapCheckout     Capability = "checkout:create"
	CapOrdersDecide Capability = "orders:decide"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uint
	Role   Role
}

type ctxKey string

const identityKey ctxKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// Authorizer decides whether an identity holds a capability.
type Authorizer interface {
	Can(id Identity, c Capability) bool
}

type roleAuthorizer struct {
	grants map[Role]map[Capability]bool
}

// NewRoleAuthorizer grants capabilities by role. Customers can check out;
// admins can also decide orders.
func NewRoleAuthorizer() Authorizer {
	return &roleAuthorizer{
		grants: map[Role]map[Capability]bool{
			RoleCustomer: {CapCheckout: true},
			RoleAdmin:    {CapCheckout: true, CapOrdersDecide: true},
		},
	}
}

func (a *roleAuthorizer) Can(id Identity, c Capability) bool {
	return a.grants[id.Role][c]
}
