package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wearagain/thriftmarket/internal/wishlist"
)

type WishlistStore interface {
	Create(ctx context.Context, w *wishlist.Wishlist) error
	ListForOwner(ctx context.Context, ownerID string) ([]wishlist.Wishlist, error)
	Get(ctx context.Context, id, requesterID string) (*wishlist.Wishlist, error)
	Update(ctx context.Context, id, requesterID string, name *string, isPublic *bool) (*wishlist.Wishlist, error)
	Delete(ctx context.Context, id, requesterID string) error
	AddItem(ctx context.Context, wishlistID, itemID, requesterID string) error
	RemoveItem(ctx context.Context, wishlistID, itemID, requesterID string) error
}

type WishlistsHandler struct {
	Store WishlistStore
}

func (h *WishlistsHandler) Register(r chi.Router, mw *AuthMiddleware) {
	r.Route("/wishlists", func(r chi.Router) {
		r.Use(mw.RequireAuth)
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
		r.Post("/{id}/items", h.addItem)
		r.Delete("/{id}/items/{itemID}", h.removeItem)
	})
}

type wishlistReq struct {
	Name     string `json:"name" validate:"required"`
	IsPublic bool   `json:"is_public"`
}

func (h *WishlistsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req wishlistReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, _ := IdentityFrom(r.Context())
	wl := &wishlist.Wishlist{
		ID:       uuid.NewString(),
		OwnerID:  id.UserID,
		Name:     req.Name,
		IsPublic: req.IsPublic,
	}
	if err := h.Store.Create(r.Context(), wl); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]*wishlist.Wishlist{"wishlist": wl})
}

func (h *WishlistsHandler) list(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	out, err := h.Store.ListForOwner(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]wishlist.Wishlist{"wishlists": out})
}

func (h *WishlistsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	wl, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*wishlist.Wishlist{"wishlist": wl})
}

type wishlistUpdateReq struct {
	Name     *string `json:"name" validate:"omitempty,min=1"`
	IsPublic *bool   `json:"is_public"`
}

func (h *WishlistsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req wishlistUpdateReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, _ := IdentityFrom(r.Context())
	wl, err := h.Store.Update(r.Context(), chi.URLParam(r, "id"), id.UserID, req.Name, req.IsPublic)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*wishlist.Wishlist{"wishlist": wl})
}

func (h *WishlistsHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	if err := h.Store.Delete(r.Context(), chi.URLParam(r, "id"), id.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "wishlist deleted"})
}

type addItemReq struct {
	ItemID string `json:"item_id" validate:"required,uuid"`
}

func (h *WishlistsHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, _ := IdentityFrom(r.Context())
	if err := h.Store.AddItem(r.Context(), chi.URLParam(r, "id"), req.ItemID, id.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "item added to wishlist"})
}

func (h *WishlistsHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	if err := h.Store.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), id.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "item removed from wishlist"})
}
