// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package access

// Role is a project role, stored on membership rows or implied by project
// ownership.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
	// RoleNone marks a caller with no standing on the project.
	RoleNone Role = ""
)

// Rank returns the numeric level for a role, higher means more permissions.
func Rank(r Role) int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	case RoleViewer:
		return 0
	default:
		return -1
	}
}

// ValidRole reports whether s is a role that can be stored on a membership
// row. The owner role is carried by the project itself and is deliberately
// excluded.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	default:
		return false
	}
}
