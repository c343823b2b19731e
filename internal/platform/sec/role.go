// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

// # User Roles

// UserRole represents the authorization level granted to an account.
type UserRole string

const (
	// Back-office staff: approves loans, credits accounts, removes users.
	RoleAdmin UserRole = "admin"

	// Default role for registered bank customers.
	RoleCustomer UserRole = "customer"
)

// # Role Hierarchy

// AtLeast checks if the current role meets or exceeds the required target role.
func (r UserRole) AtLeast(target UserRole) bool {
	return r.level() >= target.level()
}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	return r.level() > 0
}

// level maps a role to a numeric hierarchy level for comparison logic.
func (r UserRole) level() int {
	switch r {
	case RoleAdmin:
		return 40
	case RoleCustomer:
		return 10
	default:
		return 0
	}
}

// # Identity

// Identity is the authenticated principal resolved from a session token.
//
// Middleware stores it in the request context; handlers read it through
// ctxutil.GetAuthUser.
type Identity struct {
	UserID    string
	Username  string
	Role      UserRole
	SessionID string
}
