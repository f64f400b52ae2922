// Egen Lista | 2026
// public.go

package contact

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/egenlista/api/internal/core"
	"github.com/egenlista/api/internal/middleware"
)

// RegisterPublicRoutes mounts the unauthenticated signup endpoints.
// Only these carry permissive CORS; the QR form is served from
// arbitrary origins.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Route("/public/contacts", func(r chi.Router) {
		r.Use(middleware.PermissiveCORS)

		r.Post("/register", h.PublicRegister)
		r.Get("/verify-email", h.PublicVerifyEmail)
	})
}

func (h *Handler) PublicRegister(w http.ResponseWriter, r *http.Request) {
	var req PublicRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if err := h.service.PublicRegister(r.Context(), req); err != nil {
		if errors.Is(err, ErrConsentRequired) {
			core.BadRequest(w, "storage consent is required")
			return
		}
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("email"))
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, MessageResponse{
		Message: "Tack! Kolla din e-post för att bekräfta din adress.",
	})
}

// PublicVerifyEmail redeems the mailed confirmation link. Unknown and
// expired tokens get the same generic answer.
func (h *Handler) PublicVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		core.BadRequest(w, "token required")
		return
	}

	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		if errors.Is(err, core.ErrTokenInvalid) {
			core.JSONError(w, core.TokenInvalidError())
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, MessageResponse{Message: "E-postadressen är bekräftad."})
}
