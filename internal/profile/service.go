// Package profile implements the self-service account surface: the profile
// view, language selection, and partial profile updates with image upload.
package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/gatehouse-io/gatehouse/internal/auth"
	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/rbac"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// supportedLanguages is the locale set a profile may select.
var supportedLanguages = []language.Tag{language.English, language.German}

var languageMatcher = language.NewMatcher(supportedLanguages)

// ImageStore persists an uploaded profile image and returns its public path.
// Upload mechanics live outside the core.
type ImageStore interface {
	Save(ctx context.Context, ext string, r io.Reader) (string, error)
}

// Service handles self-service profile operations for an authenticated user.
type Service struct {
	logger   *slog.Logger
	users    identity.Repository
	rbac     *rbac.Service
	images   ImageStore
	cache    auth.TokenCache
	validate *validator.Validate
}

// NewService builds Service instance. images may be nil when uploads are
// disabled.
func NewService(logger *slog.Logger, users identity.Repository, rbacService *rbac.Service, images ImageStore, cache auth.TokenCache) *Service {
	return &Service{
		logger:   logger,
		users:    users,
		rbac:     rbacService,
		images:   images,
		cache:    cache,
		validate: validator.New(),
	}
}

// View is the enriched profile payload.
type View struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Image       string    `json:"image"`
	Roles       []string  `json:"role"`
	Permissions []string  `json:"permissions"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Get returns the profile view enriched with the user's current roles and
// permissions.
func (s *Service) Get(ctx context.Context, user *identity.User) (View, error) {
	roles, err := s.rbac.RoleNames(ctx, user.ID)
	if err != nil {
		return View{}, err
	}
	perms, err := s.rbac.PermissionsOf(ctx, user.ID)
	if err != nil {
		return View{}, err
	}
	if roles == nil {
		roles = []string{}
	}
	return View{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		Image:       user.ProfileImage(),
		Roles:       roles,
		Permissions: perms,
		Language:    user.Language,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}, nil
}

// SetLanguage updates the user's locale. The value must match one of the
// supported languages; region subtags collapse to the base language.
func (s *Service) SetLanguage(ctx context.Context, user *identity.User, lang string) (string, error) {
	if lang == "" {
		return "", shared.ValidationErrors{"language": "Language is required"}
	}
	normalized, ok := matchLanguage(lang)
	if !ok {
		return "", shared.ValidationErrors{"language": "Unsupported language."}
	}
	// The context principal is redacted; reload the row so the write never
	// blanks credential columns.
	stored, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return "", err
	}
	stored.Language = normalized
	if err := s.users.Update(ctx, stored); err != nil {
		return "", err
	}
	s.invalidate(ctx, stored)
	return normalized, nil
}

// UpdateInput carries the partial self-service update. Image is an optional
// upload stream.
type UpdateInput struct {
	Name     *string
	Email    *string
	ImageExt string
	Image    io.Reader
}

type updateFields struct {
	Name  string `validate:"omitempty,max=100"`
	Email string `validate:"omitempty,email"`
}

// Update applies the supplied fields to the user's own profile, storing an
// uploaded image under a fresh name when one is provided.
func (s *Service) Update(ctx context.Context, user *identity.User, input UpdateInput) (*identity.User, error) {
	fields := updateFields{}
	if input.Name != nil {
		fields.Name = *input.Name
	}
	if input.Email != nil {
		fields.Email = *input.Email
	}
	if verrs := s.validateFields(fields); len(verrs) > 0 {
		return nil, verrs
	}

	// Reload before writing; the context principal is redacted.
	stored, err := s.users.FindByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		stored.Name = *input.Name
	}
	if input.Email != nil {
		stored.Email = *input.Email
	}
	if input.Image != nil {
		if s.images == nil {
			return nil, errors.New("profile: image uploads disabled")
		}
		path, err := s.images.Save(ctx, input.ImageExt, input.Image)
		if err != nil {
			return nil, fmt.Errorf("profile: store image: %w", err)
		}
		stored.Image = path
	}

	if err := s.users.Update(ctx, stored); err != nil {
		return nil, err
	}
	s.invalidate(ctx, stored)
	return stored, nil
}

func (s *Service) invalidate(ctx context.Context, user *identity.User) {
	if s.cache != nil && user.AccessToken != "" {
		s.cache.Invalidate(ctx, user.AccessToken)
	}
}

func (s *Service) validateFields(fields updateFields) shared.ValidationErrors {
	verrs := shared.ValidationErrors{}
	if err := s.validate.Struct(fields); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				switch fe.Field() {
				case "Email":
					verrs["email"] = "Invalid email address."
				case "Name":
					verrs["name"] = "Name is too long."
				}
			}
		}
	}
	return verrs
}

// matchLanguage maps a raw language code onto the supported set, returning
// the base code ("en", "de") and whether the match is trustworthy.
func matchLanguage(lang string) (string, bool) {
	tag, err := language.Parse(lang)
	if err != nil {
		return "", false
	}
	_, idx, conf := languageMatcher.Match(tag)
	if conf < language.High {
		return "", false
	}
	base, _ := supportedLanguages[idx].Base()
	return base.String(), true
}
