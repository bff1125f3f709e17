package rbac

import (
	"context"
	"slices"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Service answers authorization queries and manages assignments.
//
// The engine itself permits multiple role assignments per user. The
// single-role-per-user policy is enforced one layer up by the admin
// service's revoke-then-assign call sequence; callers bypassing that
// discipline get the general many-to-many model.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// RoleByName resolves a role by its unique name. Returns shared.ErrNotFound
// for an unknown name.
func (s *Service) RoleByName(ctx context.Context, name string) (Role, error) {
	return s.repo.RoleByName(ctx, name)
}

// Assign grants a role to the given user.
func (s *Service) Assign(ctx context.Context, userID, roleID int64) error {
	return s.repo.Assign(ctx, userID, roleID)
}

// RevokeAll removes every role assignment for a user.
func (s *Service) RevokeAll(ctx context.Context, userID int64) error {
	return s.repo.RevokeAll(ctx, userID)
}

// RolesOf returns the roles assigned to a user. A user with no assignments
// gets an empty slice, not an error.
func (s *Service) RolesOf(ctx context.Context, userID int64) ([]Role, error) {
	return s.repo.RolesOf(ctx, userID)
}

// RoleNames returns the names of the roles assigned to a user.
func (s *Service) RoleNames(ctx context.Context, userID int64) ([]string, error) {
	roles, err := s.repo.RolesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.Name
	}
	return names, nil
}

// PermissionsOf returns the union of permission names over the user's roles.
func (s *Service) PermissionsOf(ctx context.Context, userID int64) ([]string, error) {
	perms, err := s.repo.PermissionsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if perms == nil {
		perms = []string{}
	}
	return perms, nil
}

// Can reports whether the user holds the named permission. A user with zero
// role assignments holds zero permissions.
func (s *Service) Can(ctx context.Context, userID int64, permission string) (bool, error) {
	perms, err := s.repo.PermissionsOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return slices.Contains(perms, permission), nil
}

// AllRoles returns every role.
func (s *Service) AllRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// AssignableRoles lists roles excluding those the caller currently holds.
// This is the self-service listing; it is a distinct view from
// EditableRoles and the two must not be unified.
func (s *Service) AssignableRoles(ctx context.Context, callerID int64) ([]Role, error) {
	all, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	held, err := s.repo.RolesOf(ctx, callerID)
	if err != nil {
		return nil, err
	}
	heldNames := make(map[string]struct{}, len(held))
	for _, role := range held {
		heldNames[role.Name] = struct{}{}
	}
	assignable := make([]Role, 0, len(all))
	for _, role := range all {
		if _, ok := heldNames[role.Name]; ok {
			continue
		}
		assignable = append(assignable, role)
	}
	return assignable, nil
}

// EditableRoles lists roles offered by the edit-role view. The admin role is
// never offered as assignable through this listing.
func (s *Service) EditableRoles(ctx context.Context) ([]Role, error) {
	all, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	editable := make([]Role, 0, len(all))
	for _, role := range all {
		if role.Name == shared.RoleAdmin {
			continue
		}
		editable = append(editable, role)
	}
	return editable, nil
}
