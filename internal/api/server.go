// Package api exposes the order HTTP endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/homly/storefront/internal/logging"
	"github.com/homly/storefront/internal/metrics"
	"github.com/homly/storefront/internal/order"
	"github.com/homly/storefront/internal/store"
)

// maxBodyBytes caps a create-order request body.
const maxBodyBytes = 1 << 20

// OrderStore is the persistence the handlers need.
type OrderStore interface {
	Create(ctx context.Context, o order.Order) error
	Get(ctx context.Context, id string) (order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
}

// OrderNotifier starts the admin notification for a persisted order and
// returns without waiting for delivery.
type OrderNotifier interface {
	Dispatch(o order.Order)
}

// Handler serves the order API.
type Handler struct {
	store    OrderStore
	notifier OrderNotifier
	// Now is injectable for tests.
	Now func() time.Time
}

// NewHandler returns a handler over the given store and notifier. A nil
// notifier disables notifications.
func NewHandler(s OrderStore, n OrderNotifier) *Handler {
	return &Handler{store: s, notifier: n, Now: time.Now}
}

// Routes mounts the API on a fresh chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", h.Healthz)
	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
	})
	return r
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "ok")
}

// CreateOrder handles POST /api/orders. The order is persisted first; the
// notification is started afterwards and never affects the response.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var o order.Order
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&o); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "invalid request body"})
		return
	}

	o.ID = order.NewID()
	o.CreatedAt = h.Now().UTC()
	if o.Total.IsZero() {
		o.Total = o.ItemsTotal()
	}
	if err := o.Validate(); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.store.Create(r.Context(), o); err != nil {
		logging.Component("api").Error().Err(err).Str("order_id", o.ID).Msg("failed to persist order")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "failed to save order"})
		return
	}
	metrics.IncOrderCreated()
	logging.Component("api").Info().Str("order_id", o.ID).Str("total", o.Total.String()).Msg("order created")

	if h.notifier != nil {
		h.notifier.Dispatch(o)
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, o)
}

// ListOrders handles GET /api/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.List(r.Context())
	if err != nil {
		logging.Component("api").Error().Err(err).Msg("failed to list orders")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "failed to list orders"})
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	render.JSON(w, r, OrderList{Orders: orders})
}

// GetOrder handles GET /api/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, err := h.store.Get(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, ErrorResponse{Error: "order not found"})
	case err != nil:
		logging.Component("api").Error().Err(err).Str("order_id", id).Msg("failed to load order")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "failed to load order"})
	default:
		render.JSON(w, r, o)
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Component("api").Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
