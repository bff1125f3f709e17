package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Handler exposes role listing endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers role routes. Callers must already be authenticated.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listAssignable)
}

type roleView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// listAssignable returns all roles except those the caller currently holds.
func (h *Handler) listAssignable(w http.ResponseWriter, r *http.Request) {
	caller := identity.UserFromContext(r.Context())
	if caller == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	roles, err := h.service.AssignableRoles(r.Context(), caller.ID)
	if err != nil {
		h.logger.Error("list assignable roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, roleView{Name: role.Name, Description: role.Description})
	}
	httpx.Success(w, httpx.Envelope{"roles": views})
}
