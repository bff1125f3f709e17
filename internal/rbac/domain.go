// Package rbac is the authoritative store for roles, permissions, the
// role-permission graph, and user-role assignments, and the single point of
// authorization decisions.
package rbac

import "time"

// Role represents a named capability bundle.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64
	Name        string
	Description string
}
