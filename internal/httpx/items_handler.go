package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wearagain/thriftmarket/internal/catalog"
	"github.com/wearagain/thriftmarket/internal/redisx"
)

type ItemStore interface {
	Create(ctx context.Context, it *catalog.Item) error
	Get(ctx context.Context, id string) (*catalog.Item, error)
	List(ctx context.Context, f catalog.Filter) (*catalog.Page, error)
	Update(ctx context.Context, id, requesterID string, f catalog.UpdateFields) (*catalog.Item, error)
	Delete(ctx context.Context, id, requesterID string) error
	ListForOwner(ctx context.Context, ownerID, status string) ([]catalog.Item, error)
}

type ItemsHandler struct {
	Store ItemStore
	Redis *redis.Client // optional read cache
}

func (h *ItemsHandler) Register(r chi.Router, mw *AuthMiddleware) {
	r.Route("/items", func(r chi.Router) {
		r.Get("/", h.list)
		r.With(mw.RequireAuth).Post("/", h.create)
		r.With(mw.RequireAuth).Get("/mine", h.mine)
		r.Get("/{id}", h.get)
		r.With(mw.RequireAuth).Put("/{id}", h.update)
		r.With(mw.RequireAuth).Delete("/{id}", h.remove)
	})
}

type itemReq struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	PriceCents  int64  `json:"price_cents" validate:"required,gt=0"`
	Size        string `json:"size" validate:"required"`
	Condition   string `json:"condition" validate:"required"`
	Category    string `json:"category" validate:"required"`
	PhotoURL    string `json:"photo_url" validate:"required"`
	Status      string `json:"status" validate:"omitempty,oneof=available reserved sold"`
}

func (h *ItemsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req itemReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, _ := IdentityFrom(r.Context())
	it := &catalog.Item{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Size:        req.Size,
		Condition:   req.Condition,
		Category:    req.Category,
		PhotoURL:    req.PhotoURL,
		OwnerID:     id.UserID,
	}
	if err := h.Store.Create(r.Context(), it); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]*catalog.Item{"item": it})
}

func (h *ItemsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{
		Search:        q.Get("search"),
		MinPriceCents: parseInt64(q.Get("min_price_cents")),
		MaxPriceCents: parseInt64(q.Get("max_price_cents")),
		Size:          q.Get("size"),
		Condition:     q.Get("condition"),
		Status:        q.Get("status"),
		Page:          int(parseInt64(q.Get("page"))),
		Limit:         int(parseInt64(q.Get("limit"))),
	}
	page, err := h.Store.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": page.Items,
		"pagination": map[string]int{
			"total": page.Total,
			"page":  page.Page,
			"limit": page.Limit,
			"pages": page.Pages,
		},
	})
}

// get serves single-item reads through the redis cache; misses fall
// back to the store and populate the key.
func (h *ItemsHandler) get(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	key := fmt.Sprintf(redisx.KeyItem, itemID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	it, err := h.Store.Get(r.Context(), itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	body := map[string]*catalog.Item{"item": it}
	if h.Redis != nil {
		if b, err := json.Marshal(body); err == nil {
			_ = h.Redis.Set(r.Context(), key, b, redisx.TTLItemCache).Err()
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *ItemsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req itemReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, _ := IdentityFrom(r.Context())
	itemID := chi.URLParam(r, "id")

	it, err := h.Store.Update(r.Context(), itemID, id.UserID, catalog.UpdateFields{
		Title:       req.Title,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Size:        req.Size,
		Condition:   req.Condition,
		Category:    req.Category,
		PhotoURL:    req.PhotoURL,
		Status:      req.Status,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(r.Context(), itemID)
	writeJSON(w, http.StatusOK, map[string]*catalog.Item{"item": it})
}

func (h *ItemsHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	itemID := chi.URLParam(r, "id")
	if err := h.Store.Delete(r.Context(), itemID, id.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	h.invalidate(r.Context(), itemID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

func (h *ItemsHandler) mine(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	items, err := h.Store.ListForOwner(r.Context(), id.UserID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]catalog.Item{"items": items})
}

func (h *ItemsHandler) invalidate(ctx context.Context, itemID string) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyItem, itemID)).Err()
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
