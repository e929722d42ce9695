// internal/app/features/ninjaprotocol/routes.go
package ninjaprotocol

import (
	"net/http"

	"github.com/dalemusser/ninjaprotocol/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Path is where the page is mounted, under the user management section.
const Path = "/users/ninja-protocol"

// Routes returns a chi.Router with the admin page mounted at "/".
// Capability checks happen in the handler so a signed-in user without
// manage_options gets the refusal page, not a login redirect.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Get("/", h.Show)
	r.Post("/", h.Submit)
	return r
}
