// Egen Lista | 2026
// handler.go

package analytics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/egenlista/api/internal/contact"
	"github.com/egenlista/api/internal/core"
	"github.com/egenlista/api/internal/middleware"
)

// ContactSource supplies the viewer's contact collection; the
// aggregation itself is pure.
type ContactSource interface {
	ListByUser(ctx context.Context, userID string) ([]contact.Contact, error)
}

type Handler struct {
	contacts ContactSource
}

func NewHandler(contacts ContactSource) *Handler {
	return &Handler{contacts: contacts}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/analytics", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/overview", h.Overview)
	})
}

const dateLayout = "2006-01-02"

// Overview answers ?from&to&compare with per-bucket counts for the
// primary range and its derived comparison range. Defaults cover the
// trailing 30 days against the preceding 30.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	now := time.Now()
	primary := Period{From: now.AddDate(0, 0, -30), To: now}

	qs := r.URL.Query()

	if raw := qs.Get("from"); raw != "" {
		from, err := time.Parse(dateLayout, raw)
		if err != nil {
			core.BadRequest(w, "invalid from date, expected YYYY-MM-DD")
			return
		}
		primary.From = from
	}

	if raw := qs.Get("to"); raw != "" {
		to, err := time.Parse(dateLayout, raw)
		if err != nil {
			core.BadRequest(w, "invalid to date, expected YYYY-MM-DD")
			return
		}
		// The "to" day is included in the range.
		primary.To = to.AddDate(0, 0, 1)
	}

	if !primary.From.Before(primary.To) {
		core.BadRequest(w, "from must be before to")
		return
	}

	mode := qs.Get("compare")
	if mode == "" {
		mode = ComparePreceding
	}
	if !ValidCompareMode(mode) {
		core.BadRequest(w, "invalid compare mode")
		return
	}

	comparison, err := Derive(primary, mode)
	if err != nil {
		core.BadRequest(w, "invalid compare mode")
		return
	}

	contacts, err := h.contacts.ListByUser(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, BuildOverview(contacts, primary, comparison))
}
