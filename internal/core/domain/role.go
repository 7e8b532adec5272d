package domain

// Role is a capability a caller may hold on the ledger.
type Role string

const (
	// RoleMinter may mint and batch-mint licenses.
	RoleMinter Role = "minter"

	// RoleAdmin may revoke licenses and read operational state. Admins
	// implicitly hold RoleMinter.
	RoleAdmin Role = "admin"
)

// ValidRoles returns all valid roles.
func ValidRoles() []Role {
	return []Role{RoleMinter, RoleAdmin}
}

// IsValidRole checks if a string is a valid role.
func IsValidRole(r string) bool {
	switch Role(r) {
	case RoleMinter, RoleAdmin:
		return true
	}
	return false
}

// Authorizer answers whether caller holds role. The ledger never decides
// roles itself; it only asks.
type Authorizer interface {
	HasRole(caller Address, role Role) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(caller Address, role Role) bool

// HasRole implements Authorizer.
func (f AuthorizerFunc) HasRole(caller Address, role Role) bool {
	return f(caller, role)
}

// StaticRoles is an Authorizer backed by fixed address lists.
type StaticRoles struct {
	minters map[Address]struct{}
	admins  map[Address]struct{}
}

// NewStaticRoles builds a StaticRoles from address lists.
func NewStaticRoles(minters, admins []Address) *StaticRoles {
	s := &StaticRoles{
		minters: make(map[Address]struct{}, len(minters)),
		admins:  make(map[Address]struct{}, len(admins)),
	}
	for _, a := range minters {
		s.minters[a] = struct{}{}
	}
	for _, a := range admins {
		s.admins[a] = struct{}{}
	}
	return s
}

// HasRole implements Authorizer.
func (s *StaticRoles) HasRole(caller Address, role Role) bool {
	if caller == ZeroAddress {
		return false
	}
	if _, ok := s.admins[caller]; ok {
		return true
	}
	if role == RoleMinter {
		_, ok := s.minters[caller]
		return ok
	}
	return false
}
