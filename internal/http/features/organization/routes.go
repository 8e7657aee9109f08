package organization

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Limits are the per-route middlewares the routes are registered with. Nil
// entries are skipped.
type Limits struct {
	Read   func(http.Handler) http.Handler
	Write  func(http.Handler) http.Handler
	Delete func(http.Handler) http.Handler
	// Sudo guards deletion.
	Sudo func(http.Handler) http.Handler
}

// RegisterRoutes registers organization routes on an authenticated router.
func (h *Handler) RegisterRoutes(r chi.Router, l Limits) {
	r.With(nonNil(l.Read)...).Get("/v1/organizations/{slug}", h.Get)
	r.With(nonNil(l.Write)...).Put("/v1/organizations/{slug}", h.Update)
	r.With(nonNil(l.Delete, l.Sudo)...).Delete("/v1/organizations/{slug}", h.Delete)
}

func nonNil(mws ...func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	out := mws[:0]
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}
