// Egen Lista | 2026
// handler.go

package subscription

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/egenlista/api/internal/core"
	"github.com/egenlista/api/internal/middleware"
)

type SubscriptionResponse struct {
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	IsPro     bool      `json:"is_pro"`
	NoteLimit int       `json:"note_limit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SetPlanRequest struct {
	Plan   string `json:"plan"   validate:"required,oneof=FREE PRO"`
	Status string `json:"status" validate:"omitempty,oneof=ACTIVE TRIALING CANCELED PAST_DUE"`
}

func toSubscriptionResponse(s *Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		Plan:      s.Plan,
		Status:    s.Status,
		IsPro:     s.IsPro(),
		NoteLimit: s.NoteLimit(),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/subscription", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.GetSubscription)
	})
}

// RegisterAdminRoutes registers the admin plan override.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/subscriptions", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Put("/{userID}", h.SetPlan)
	})
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	sub, err := h.service.GetForUser(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, toSubscriptionResponse(sub))
}

func (h *Handler) SetPlan(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req SetPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	sub, err := h.service.SetPlan(r.Context(), userID, req.Plan, req.Status)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			core.BadRequest(w, "invalid plan or status")
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "subscription")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, toSubscriptionResponse(sub))
}
