package profile

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-io/gatehouse/internal/identity"
	"github.com/gatehouse-io/gatehouse/internal/platform/httpx"
)

const maxUploadBytes = 8 << 20

// Handler wires the authenticated profile endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers profile routes. Callers are already authenticated by
// the router group.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showProfile)
	r.Put("/", h.updateProfile)
	r.Post("/language", h.setLanguage)
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromContext(r.Context())
	view, err := h.service.Get(r.Context(), user)
	if err != nil {
		h.logger.Error("show profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, httpx.Envelope{"user": view})
}

type languageRequest struct {
	Language string `json:"language"`
}

func (h *Handler) setLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Language == "" {
		httpx.Error(w, http.StatusOK, "Language is required")
		return
	}
	user := identity.UserFromContext(r.Context())
	lang, err := h.service.SetLanguage(r.Context(), user, req.Language)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, httpx.Envelope{"message": "Language updated", "language": lang})
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromContext(r.Context())

	input := UpdateInput{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			httpx.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if v, ok := formValue(r, "name"); ok {
			input.Name = &v
		}
		if v, ok := formValue(r, "email"); ok {
			input.Email = &v
		}
		file, header, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			input.Image = file
			input.ImageExt = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
		}
	} else {
		var req updateProfileRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Error(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		input.Name = req.Name
		input.Email = req.Email
	}

	updated, err := h.service.Update(r.Context(), user, input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.Success(w, httpx.Envelope{
		"message": "Profile updated successfully",
		"user": httpx.Envelope{
			"id":       updated.ID,
			"name":     updated.Name,
			"email":    updated.Email,
			"image":    updated.ProfileImage(),
			"language": updated.Language,
		},
	})
}

func formValue(r *http.Request, key string) (string, bool) {
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
