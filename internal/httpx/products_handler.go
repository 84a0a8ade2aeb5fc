package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/auth"
	"github.com/ariefcatur/go-storefront.git/internal/shop"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ProductStore interface {
	ListProducts(ctx context.Context, f shop.ProductFilter) ([]shop.Product, error)
	GetProduct(ctx context.Context, id string) (shop.Product, error)
	CreateProduct(ctx context.Context, p shop.Product) (shop.Product, error)
	UpdateProduct(ctx context.Context, p shop.Product) (shop.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type ProductsHandler struct {
	Store  ProductStore
	Issuer auth.TokenIssuer
	Log    *slog.Logger
}

func (h *ProductsHandler) Register(r *chi.Mux) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.Group(func(g chi.Router) {
		g.Use(auth.RequireAuth(h.Issuer))
		g.Post("/products", h.create)
		g.Put("/products/{id}", h.update)
		g.Delete("/products/{id}", h.delete)
	})
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	// filter dibangun lengkap dulu, satu query setelahnya
	f := shop.ProductFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Limit:    limit,
		Offset:   offset,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.ListProducts(ctx, f)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	if ps == nil {
		ps = []shop.Product{}
	}
	respondOK(w, http.StatusOK, ps)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusOK, p)
}

type productReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	Category    string `json:"category"`
	Image       string `json:"image"`
}

func validateProduct(req productReq) (shop.Product, error) {
	if strings.TrimSpace(req.Name) == "" {
		return shop.Product{}, shop.ValidationField("name", "product name is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return shop.Product{}, shop.ValidationField("description", "description is required")
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || !price.IsPositive() {
		return shop.Product{}, shop.ValidationField("price", "price must be a positive number")
	}
	if req.Stock < 0 {
		return shop.Product{}, shop.ValidationField("stock", "stock must be non-negative")
	}
	if strings.TrimSpace(req.Category) == "" {
		return shop.Product{}, shop.ValidationField("category", "category is required")
	}
	return shop.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       price.StringFixed(2),
		Stock:       req.Stock,
		Category:    req.Category,
		Image:       req.Image,
	}, nil
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, h.Log, err)
		return
	}
	p, err := validateProduct(req)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Store.CreateProduct(ctx, p)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusCreated, out)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, h.Log, err)
		return
	}
	p, err := validateProduct(req)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	p.ID = chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	out, err := h.Store.UpdateProduct(ctx, p)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusOK, out)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Store.DeleteProduct(ctx, chi.URLParam(r, "id")); err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusOK, map[string]string{"message": "product deleted"})
}
