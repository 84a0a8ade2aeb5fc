package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/auth"
	"github.com/ariefcatur/go-storefront.git/internal/checkout"
	"github.com/ariefcatur/go-storefront.git/internal/shop"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (shop.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]shop.Order, error)
	ListOrderItems(ctx context.Context, orderID string) ([]shop.OrderItem, error)
}

type OrdersHandler struct {
	Checkout *checkout.Service
	Store    OrderStore
	Issuer   auth.TokenIssuer
	Log      *slog.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Group(func(g chi.Router) {
		g.Use(auth.RequireAuth(h.Issuer))
		g.Post("/orders", h.create)
		g.Get("/orders", h.list)
		g.Get("/orders/{id}", h.get)
		g.Patch("/orders/{id}/status", h.updateStatus)
	})
}

type orderWithItems struct {
	shop.Order
	Items []shop.OrderItem `json:"items"`
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var in checkout.Input
	if err := decodeBody(r, &in); err != nil {
		respondErr(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, items, err := h.Checkout.PlaceOrder(ctx, claims.UserID, middleware.GetReqID(r.Context()), in)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusCreated, orderWithItems{Order: order, Items: items})
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	out, err := h.Store.ListOrdersByUser(ctx, claims.UserID)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	if out == nil {
		out = []shop.Order{}
	}
	respondOK(w, http.StatusOK, out)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	// jangan bocorin keberadaan order milik user lain
	if o.UserID != claims.UserID {
		respondErr(w, h.Log, shop.E(shop.KindNotFound, "order not found"))
		return
	}
	items, err := h.Store.ListOrderItems(ctx, o.ID)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusOK, orderWithItems{Order: o, Items: items})
}

type statusReq struct {
	Status shop.Status `json:"status"`
}

// updateStatus: satu-satunya transisi yg boleh dipicu user adalah
// pending -> cancelled. paid/failed urusan reconciler.
func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req statusReq
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, h.Log, err)
		return
	}
	if req.Status != shop.StatusCancelled {
		respondErr(w, h.Log, shop.ValidationField("status", "only cancellation is allowed"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Checkout.Cancel(ctx, claims.UserID, middleware.GetReqID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusOK, o)
}
