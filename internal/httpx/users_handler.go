package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wearagain/thriftmarket/internal/users"
)

// UsersHandler serves the admin-only user management endpoints.
type UsersHandler struct {
	Store UserStore
}

func (h *UsersHandler) Register(r chi.Router, mw *AuthMiddleware) {
	r.Route("/users", func(r chi.Router) {
		r.Use(mw.RequireAuth, RequireAdmin)
		r.Get("/", h.list)
		r.Patch("/{id}/role", h.updateRole)
	})
}

func (h *UsersHandler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.Store.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]users.User{"users": out})
}

type roleReq struct {
	Role string `json:"role" validate:"required,oneof=USER ADMIN"`
}

func (h *UsersHandler) updateRole(w http.ResponseWriter, r *http.Request) {
	var req roleReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.Store.UpdateRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*users.User{"user": u})
}
