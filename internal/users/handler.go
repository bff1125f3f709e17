package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user management routes. Authentication is handled by
// the surrounding router group; authorization happens in the service.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listPeers)
	r.Post("/", h.createUser)
	r.Put("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
	r.Get("/{id}/edit", h.editUser)
}

func (h *Handler) listPeers(w http.ResponseWriter, r *http.Request) {
	caller := identity.UserFromContext(r.Context())
	peers, err := h.service.Peers(r.Context(), caller.ID)
	if err != nil {
		h.logger.Error("list peers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, httpx.Envelope{"users": peers, "count": len(peers)})
}

type createRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	caller := identity.UserFromContext(r.Context())
	_, err := h.service.Create(r.Context(), caller.ID, CreateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.logServiceError("create user", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, httpx.Envelope{"message": "User registered successfully"})
}

type updateRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Role     string  `json:"role"`
}

type userData struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Language string `json:"language"`
	Image    string `json:"image"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	caller := identity.UserFromContext(r.Context())
	user, err := h.service.Update(r.Context(), caller.ID, targetID, UpdateInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.logServiceError("update user", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, httpx.Envelope{
		"message": "User updated successfully",
		"data": userData{
			ID:       user.ID,
			Name:     user.Name,
			Email:    user.Email,
			Language: user.Language,
			Image:    user.ProfileImage(),
		},
	})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	caller := identity.UserFromContext(r.Context())
	if err := h.service.Delete(r.Context(), caller.ID, targetID); err != nil {
		h.logServiceError("delete user", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, httpx.Envelope{"message": "User deleted successfully"})
}

type roleView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) editUser(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	view, err := h.service.Edit(r.Context(), targetID)
	if err != nil {
		h.logServiceError("edit user", err)
		httpx.RespondError(w, err)
		return
	}
	roles := make([]roleView, 0, len(view.AssignableRoles))
	for _, role := range view.AssignableRoles {
		roles = append(roles, roleView{Name: role.Name, Description: role.Description})
	}
	httpx.Success(w, httpx.Envelope{
		"user": httpx.Envelope{
			"id":        view.User.ID,
			"name":      view.User.Name,
			"email":     view.User.Email,
			"user_role": view.Roles,
		},
		"roles": roles,
	})
}

// logServiceError keeps expected domain outcomes out of the error log.
func (h *Handler) logServiceError(op string, err error) {
	if _, ok := shared.AsValidationErrors(err); ok {
		return
	}
	switch err {
	case shared.ErrForbidden, shared.ErrNotFound:
		return
	}
	h.logger.Error(op, slog.Any("error", err))
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
