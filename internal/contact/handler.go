// Egen Lista | 2026
// handler.go

package contact

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/egenlista/api/internal/core"
	"github.com/egenlista/api/internal/middleware"
)

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
	r.Route("/contacts", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/export", h.Export)
		r.Get("/signup-qr", h.SignupQR)
		r.Post("/bulk-delete", h.BulkDelete)

		r.Route("/{contactID}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Patch("/note", h.UpdateNote)
		})
	})
}

func queryFromRequest(r *http.Request) Query {
	qs := r.URL.Query()

	return Query{
		Search:   qs.Get("search"),
		Type:     qs.Get("type"),
		SortBy:   qs.Get("sort"),
		SortDir:  qs.Get("order"),
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", defaultPageSize),
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	result, err := h.service.List(r.Context(), userID, queryFromRequest(r))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, result.Items, result.Page, result.PageSize, result.Total)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req CreateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, ErrUpgradeRequired) {
			core.JSONError(w, upgradeRequiredError())
			return
		}
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("email"))
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.Created(w, resp)
}

type GetContactResponse struct {
	Contact  ContactResponse   `json:"contact"`
	Consents []ConsentResponse `json:"consents"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	contactID := chi.URLParam(r, "contactID")

	contact, consents, err := h.service.Get(r.Context(), userID, contactID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "contact")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, GetContactResponse{Contact: *contact, Consents: consents})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	contactID := chi.URLParam(r, "contactID")

	var req UpdateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Update(r.Context(), userID, contactID, req)
	if err != nil {
		if errors.Is(err, ErrUpgradeRequired) {
			core.JSONError(w, upgradeRequiredError())
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "contact")
			return
		}
		if errors.Is(err, core.ErrDuplicateKey) {
			core.JSONError(w, core.DuplicateError("email"))
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	contactID := chi.URLParam(r, "contactID")

	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	resp, err := h.service.UpdateNote(r.Context(), userID, contactID, req.Note)
	if err != nil {
		if errors.Is(err, ErrNoteTooLong) {
			core.JSONError(w, core.NewAppError(
				ErrNoteTooLong,
				err.Error(),
				http.StatusBadRequest,
				"NOTE_TOO_LONG",
			))
			return
		}
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "contact")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	contactID := chi.URLParam(r, "contactID")

	if err := h.service.Delete(r.Context(), userID, contactID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "contact")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	deleted, err := h.service.BulkDelete(r.Context(), userID, req.IDs)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, BulkDeleteResponse{Deleted: deleted})
}

// Export streams the filtered and sorted collection as CSV.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	contacts, err := h.service.Export(r.Context(), userID, queryFromRequest(r))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set(
		"Content-Disposition",
		`attachment; filename="kontakter.csv"`,
	)

	cw := csv.NewWriter(w)
	//nolint:errcheck // flush reports any of these errors
	_ = cw.Write([]string{
		"first_name", "last_name", "email", "phone", "type",
		"street", "postal_code", "city", "created_at",
	})

	for i := range contacts {
		c := &contacts[i]
		//nolint:errcheck // flush reports any of these errors
		_ = cw.Write([]string{
			c.FirstName,
			c.LastName,
			c.Email,
			c.Phone,
			c.Type,
			c.Street,
			c.PostalCode,
			c.City,
			c.CreatedAt.Format("2006-01-02"),
		})
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		core.InternalServerError(w, err)
	}
}

// SignupQR returns the PNG QR code for the caller's public signup
// form.
func (h *Handler) SignupQR(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	png, err := h.service.SignupQR(userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	//nolint:errcheck // nothing to do if the client went away
	_, _ = w.Write(png)
}

func upgradeRequiredError() *core.AppError {
	return core.NewAppError(
		ErrUpgradeRequired,
		"this feature requires a PRO subscription",
		http.StatusForbidden,
		"UPGRADE_REQUIRED",
	)
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
