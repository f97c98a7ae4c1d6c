package httpx

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/wearagain/thriftmarket/internal/apperr"
	kafkax "github.com/wearagain/thriftmarket/internal/kafka"
	"github.com/wearagain/thriftmarket/internal/orders"
	"github.com/wearagain/thriftmarket/internal/redisx"
)

type OrderStore interface {
	Create(ctx context.Context, buyerID string, lines []orders.LineInput) (*orders.Order, error)
	Get(ctx context.Context, orderID, requesterID, requesterRole string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, orderID, requesterID, requesterRole string, next orders.Status) (*orders.Order, error)
	ListForBuyer(ctx context.Context, buyerID string, status orders.Status) ([]orders.Order, error)
	ListAll(ctx context.Context, status orders.Status, page, limit int) ([]orders.Order, int, error)
}

type OrdersHandler struct {
	Store OrderStore
	Redis *redis.Client // optional status cache

	// Event stream; either producer may be nil when kafka is disabled.
	PlacedProducer *kafkax.Producer
	StatusProducer *kafkax.Producer
	Service        string
}

func (h *OrdersHandler) Register(r chi.Router, mw *AuthMiddleware) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(mw.RequireAuth)
		r.Post("/", h.create)
		r.With(RequireAdmin).Get("/", h.listAll)
		r.Get("/mine", h.mine)
		r.Get("/{id}", h.get)
		r.Patch("/{id}/status", h.updateStatus)
	})
}

type createOrderReq struct {
	Items []orders.LineInput `json:"items" validate:"required,min=1,dive"`
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, _ := IdentityFrom(r.Context())

	o, err := h.Store.Create(r.Context(), id.UserID, req.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cacheStatus(r.Context(), o)
	// Reserved items are stale in the cache now.
	for _, l := range o.Items {
		h.invalidateItem(r.Context(), l.ItemID)
	}
	h.publishPlaced(o, r.Header.Get("X-Request-Id"))

	writeJSON(w, http.StatusCreated, map[string]*orders.Order{"order": o})
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	o, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"), id.UserID, id.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*orders.Order{"order": o})
}

type statusReq struct {
	Status string `json:"status" validate:"required,oneof=pending processing completed cancelled"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decodeValid(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id, _ := IdentityFrom(r.Context())
	orderID := chi.URLParam(r, "id")

	before, err := h.Store.Get(r.Context(), orderID, id.UserID, id.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.Store.UpdateStatus(r.Context(), orderID, id.UserID, id.Role, orders.Status(req.Status))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.cacheStatus(r.Context(), o)
	for _, l := range o.Items {
		h.invalidateItem(r.Context(), l.ItemID)
	}
	h.publishStatusChanged(o, before.Status, r.Header.Get("X-Request-Id"))

	writeJSON(w, http.StatusOK, map[string]*orders.Order{"order": o})
}

func (h *OrdersHandler) mine(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	status := orders.Status(r.URL.Query().Get("status"))
	if status != "" && !orders.ValidStatus(status) {
		writeError(w, r, fmt.Errorf("%w: invalid status filter", apperr.ErrValidation))
		return
	}
	out, err := h.Store.ListForBuyer(r.Context(), id.UserID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]orders.Order{"orders": out})
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := orders.Status(q.Get("status"))
	if status != "" && !orders.ValidStatus(status) {
		writeError(w, r, fmt.Errorf("%w: invalid status filter", apperr.ErrValidation))
		return
	}
	page := int(parseInt64(q.Get("page")))
	limit := int(parseInt64(q.Get("limit")))

	out, total, err := h.Store.ListAll(r.Context(), status, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": out,
		"total":  total,
	})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = h.Redis.Set(ctx, key, string(o.Status), redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) invalidateItem(ctx context.Context, itemID string) {
	if h.Redis == nil {
		return
	}
	_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyItem, itemID)).Err()
}

func (h *OrdersHandler) publishPlaced(o *orders.Order, traceID string) {
	if h.PlacedProducer == nil {
		return
	}
	env := orders.Envelope{
		EventID:      uuid.NewString(),
		EventType:    orders.EventOrderPlaced,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     h.Service,
		TraceID:      traceID,
		OrderID:      o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID:    o.ID,
			BuyerID:    o.BuyerID,
			Items:      o.Items,
			TotalCents: o.TotalCents,
		}),
	}
	h.PlacedProducer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) publishStatusChanged(o *orders.Order, from orders.Status, traceID string) {
	if h.StatusProducer == nil {
		return
	}
	env := orders.Envelope{
		EventID:      uuid.NewString(),
		EventType:    orders.EventOrderStatusChanged,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     h.Service,
		TraceID:      traceID,
		OrderID:      o.ID,
		Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID: o.ID,
			From:    from,
			To:      o.Status,
		}),
	}
	h.StatusProducer.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
