// Package users implements the privileged user administration surface:
// create, update, delete, and the peer listing, all gated by the RBAC
// engine.
package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/auth"
	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Service handles admin user management. Every privileged operation asks the
// RBAC engine for the caller's permission first; a denial is shared.ErrForbidden
// regardless of whether the target exists.
type Service struct {
	logger    *slog.Logger
	users     identity.Repository
	rbac      *rbac.Service
	registrar *auth.Service
	hasher    identity.Hasher
	cache     auth.TokenCache
	validate  *validator.Validate
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, users identity.Repository, rbacService *rbac.Service, registrar *auth.Service, hasher identity.Hasher, cache auth.TokenCache) *Service {
	return &Service{
		logger:    logger,
		users:     users,
		rbac:      rbacService,
		registrar: registrar,
		hasher:    hasher,
		cache:     cache,
		validate:  validator.New(),
	}
}

// CreateInput carries the admin-create fields.
type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Create validates and persists a user like registration does, then assigns
// the named role when it exists. An unknown role name silently skips the
// assignment; the user is created roleless.
func (s *Service) Create(ctx context.Context, callerID int64, input CreateInput) (*identity.User, error) {
	if err := s.require(ctx, callerID, shared.PermCreateUser); err != nil {
		return nil, err
	}

	user, err := s.registrar.Register(ctx, auth.RegisterInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		return nil, err
	}

	role, err := s.rbac.RoleByName(ctx, input.Role)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return user, nil
		}
		return nil, err
	}
	if err := s.rbac.Assign(ctx, user.ID, role.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateInput carries the partial admin-update fields. Nil pointers leave
// the current value untouched.
type updateFields struct {
	Name     string `validate:"omitempty,max=100"`
	Email    string `validate:"omitempty,email"`
	Password string `validate:"omitempty,min=6"`
}

// UpdateInput carries the partial admin-update fields.
type UpdateInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     string
}

// Update applies a partial update to the target user, rehashing the password
// only when one is supplied, then replaces the role assignment: every prior
// assignment is revoked and the named role is assigned when it exists.
//
// Revoke-then-assign is a two-step sequence, not a transaction; a crash
// between the calls leaves the user roleless until the next update.
func (s *Service) Update(ctx context.Context, callerID, targetID int64, input UpdateInput) (*identity.User, error) {
	if err := s.require(ctx, callerID, shared.PermEditUser); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	fields := updateFields{}
	if input.Name != nil {
		fields.Name = *input.Name
	}
	if input.Email != nil {
		fields.Email = *input.Email
	}
	if input.Password != nil {
		fields.Password = *input.Password
	}
	if verrs := s.validateUpdate(fields); len(verrs) > 0 {
		return nil, verrs
	}

	if input.Name != nil {
		user.Name = *input.Name
	}
	if input.Email != nil {
		user.Email = *input.Email
	}
	if input.Password != nil {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, fmt.Errorf("users: hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	if s.cache != nil && user.AccessToken != "" {
		s.cache.Invalidate(ctx, user.AccessToken)
	}

	if err := s.rbac.RevokeAll(ctx, user.ID); err != nil {
		return nil, err
	}
	role, err := s.rbac.RoleByName(ctx, input.Role)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Unknown role names are skipped, leaving the user roleless.
			return user, nil
		}
		return nil, err
	}
	if err := s.rbac.Assign(ctx, user.ID, role.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// Delete hard-deletes the target user. Role assignments cascade with the row.
func (s *Service) Delete(ctx context.Context, callerID, targetID int64) error {
	if err := s.require(ctx, callerID, shared.PermDeleteUser); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return err
	}
	if s.cache != nil && user.AccessToken != "" {
		s.cache.Invalidate(ctx, user.AccessToken)
	}
	return nil
}

// Peer is a user visible in the peer listing.
type Peer struct {
	ID    int64    `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// Peers returns every other user whose role set has no overlap with the
// caller's. A caller with zero roles sees all other users, since the empty
// set overlaps nothing.
func (s *Service) Peers(ctx context.Context, callerID int64) ([]Peer, error) {
	callerRoles, err := s.rbac.RoleNames(ctx, callerID)
	if err != nil {
		return nil, err
	}
	callerSet := make(map[string]struct{}, len(callerRoles))
	for _, name := range callerRoles {
		callerSet[name] = struct{}{}
	}

	all, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}

	peers := make([]Peer, 0, len(all))
	for _, user := range all {
		if user.ID == callerID {
			continue
		}
		names, err := s.rbac.RoleNames(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		if overlaps(callerSet, names) {
			continue
		}
		if names == nil {
			names = []string{}
		}
		peers = append(peers, Peer{ID: user.ID, Name: user.Name, Email: user.Email, Roles: names})
	}
	return peers, nil
}

// EditView is the elevated edit-form payload: the target user with its
// roles, plus the role listing that never offers the admin role.
type EditView struct {
	User  *identity.User
	Roles []string
	// AssignableRoles excludes the admin role. This is a different filter
	// than the self-service role listing and the two stay separate.
	AssignableRoles []rbac.Role
}

// Edit returns the edit view for the target user.
func (s *Service) Edit(ctx context.Context, targetID int64) (EditView, error) {
	user, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return EditView{}, err
	}
	roles, err := s.rbac.RoleNames(ctx, user.ID)
	if err != nil {
		return EditView{}, err
	}
	if roles == nil {
		roles = []string{}
	}
	editable, err := s.rbac.EditableRoles(ctx)
	if err != nil {
		return EditView{}, err
	}
	return EditView{User: user, Roles: roles, AssignableRoles: editable}, nil
}

func (s *Service) require(ctx context.Context, callerID int64, permission string) error {
	allowed, err := s.rbac.Can(ctx, callerID, permission)
	if err != nil {
		return err
	}
	if !allowed {
		return shared.ErrForbidden
	}
	return nil
}

func (s *Service) validateUpdate(fields updateFields) shared.ValidationErrors {
	verrs := shared.ValidationErrors{}
	if err := s.validate.Struct(fields); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				switch fe.Field() {
				case "Email":
					verrs["email"] = "Invalid email address."
				case "Password":
					verrs["password"] = "Password must be at least 6 characters."
				case "Name":
					verrs["name"] = "Name is too long."
				}
			}
		}
	}
	return verrs
}

func overlaps(set map[string]struct{}, names []string) bool {
	for _, name := range names {
		if _, ok := set[name]; ok {
			return true
		}
	}
	return false
}
