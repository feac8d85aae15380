package common

import "errors"

var ErrUnauthorizedRole = errors.New("caller lacks required role")

// Authority answers capability checks for administrative operations. Role
// storage and grants live outside the engines; they only consume the boolean
// decision.
type Authority interface {
	HasRole(role string, addr [20]byte) bool
}

// RequireRole returns ErrUnauthorizedRole unless the authority confirms the
// caller holds the role. A nil authority denies everything, which keeps a
// misconfigured engine fail-closed.
func RequireRole(a Authority, role string, addr [20]byte) error {
	if a == nil || !a.HasRole(role, addr) {
		return ErrUnauthorizedRole
	}
	return nil
}
