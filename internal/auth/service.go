// Package auth orchestrates registration, credential login, and bearer-token
// identity resolution.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Validation messages keyed by the failing rule, one message per field.
const (
	msgRequired    = "This field is required."
	msgEmail       = "Invalid email address."
	msgPasswordMin = "Password must be at least 6 characters."
	msgEmailTaken  = "This email address has already been taken."
)

// TokenCache invalidates cached token resolutions after rotation or account
// mutation. A nil TokenCache is a no-op.
type TokenCache interface {
	Invalidate(ctx context.Context, token string)
}

// Service wraps registration and login business rules.
type Service struct {
	logger   *slog.Logger
	users    identity.Repository
	hasher   identity.Hasher
	issuer   *identity.Issuer
	rbac     *rbac.Service
	cache    TokenCache
	validate *validator.Validate
}

// NewService constructs a new Service.
func NewService(logger *slog.Logger, users identity.Repository, hasher identity.Hasher, issuer *identity.Issuer, rbacService *rbac.Service, cache TokenCache) *Service {
	return &Service{
		logger:   logger,
		users:    users,
		hasher:   hasher,
		issuer:   issuer,
		rbac:     rbacService,
		cache:    cache,
		validate: validator.New(),
	}
}

// RegisterInput carries the registration fields.
type RegisterInput struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// Register validates the input, issues credentials, and persists a new user.
// Input problems come back as shared.ValidationErrors, one message per
// invalid field; they are never infrastructure faults.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*identity.User, error) {
	if verrs := s.validateFields(ctx, input); len(verrs) > 0 {
		return nil, verrs
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	token, err := s.issuer.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	authKey, err := s.issuer.AuthKey()
	if err != nil {
		return nil, err
	}

	user := &identity.User{
		Name:         input.Name,
		Email:        input.Email,
		Language:     identity.DefaultLanguage,
		Image:        identity.DefaultImage,
		PasswordHash: hash,
		AuthKey:      authKey,
		AccessToken:  token,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The unique index is the race guard; the advisory pre-check above
		// may have passed for a concurrent registration.
		return nil, err
	}
	return user, nil
}

// LoginResult is the successful login payload.
type LoginResult struct {
	Token       string
	Name        string
	Roles       []string
	Permissions []string
}

// Login verifies credentials, rotates the access token, and returns the
// current role and permission snapshot. An unknown email and a wrong
// password produce the same ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	if email == "" || password == "" {
		return LoginResult{}, shared.ErrMissingCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return LoginResult{}, shared.ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return LoginResult{}, shared.ErrInvalidCredentials
	}

	token, err := s.issuer.AccessToken(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	previous := user.AccessToken
	if err := s.users.UpdateAccessToken(ctx, user.ID, token); err != nil {
		return LoginResult{}, err
	}
	if s.cache != nil && previous != "" {
		s.cache.Invalidate(ctx, previous)
	}

	roles, err := s.rbac.RoleNames(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	perms, err := s.rbac.PermissionsOf(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if roles == nil {
		roles = []string{}
	}
	return LoginResult{Token: token, Name: user.Name, Roles: roles, Permissions: perms}, nil
}

// validateFields runs struct validation plus the advisory email existence
// check, keeping the first failing rule per field.
func (s *Service) validateFields(ctx context.Context, input RegisterInput) shared.ValidationErrors {
	verrs := shared.ValidationErrors{}
	if err := s.validate.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				field := fieldName(fe.Field())
				if _, seen := verrs[field]; seen {
					continue
				}
				verrs[field] = ruleMessage(field, fe.Tag())
			}
		}
	}
	if _, taken := verrs["email"]; !taken && input.Email != "" {
		if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
			verrs["email"] = msgEmailTaken
		} else if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("email existence check", slog.Any("error", err))
		}
	}
	return verrs
}

func fieldName(structField string) string {
	switch structField {
	case "Name":
		return "name"
	case "Email":
		return "email"
	case "Password":
		return "password"
	}
	return structField
}

func ruleMessage(field, tag string) string {
	switch tag {
	case "required":
		return msgRequired
	case "email":
		return msgEmail
	case "min":
		if field == "password" {
			return msgPasswordMin
		}
	}
	return "Invalid value."
}
