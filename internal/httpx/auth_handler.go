package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/auth"
	"github.com/ariefcatur/go-storefront.git/internal/shop"
	"github.com/go-chi/chi/v5"
)

type UserStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash string) (shop.User, error)
	GetUserByEmail(ctx context.Context, email string) (shop.User, error)
	GetUserByID(ctx context.Context, id string) (shop.User, error)
}

type AuthHandler struct {
	Users  UserStore
	Issuer auth.TokenIssuer
	Log    *slog.Logger
}

func (h *AuthHandler) Register(r *chi.Mux) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Group(func(g chi.Router) {
		g.Use(auth.RequireAuth(h.Issuer))
		g.Get("/auth/me", h.me)
	})
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResp struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, h.Log, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondErr(w, h.Log, shop.ValidationField("email", "invalid email address"))
		return
	}
	if len(req.Password) < 6 {
		respondErr(w, h.Log, shop.ValidationField("password", "password must be at least 6 characters"))
		return
	}
	if len(strings.TrimSpace(req.Name)) < 2 {
		respondErr(w, h.Log, shop.ValidationField("name", "name must be at least 2 characters"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.CreateUser(ctx, req.Email, strings.TrimSpace(req.Name), hash)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	token, err := h.Issuer.Issue(u.ID, u.Email)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusCreated, authResp{ID: u.ID, Email: u.Email, Name: u.Name, Token: token})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	u, err := h.Users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusOK, u)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	// jangan bedakan "user tidak ada" vs "password salah"
	if err != nil || !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "Invalid email or password"})
		return
	}
	token, err := h.Issuer.Issue(u.ID, u.Email)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusOK, authResp{ID: u.ID, Email: u.Email, Name: u.Name, Token: token})
}
