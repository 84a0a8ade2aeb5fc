package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ariefcatur/go-storefront.git/internal/auth"
	"github.com/ariefcatur/go-storefront.git/internal/payments"
	"github.com/ariefcatur/go-storefront.git/internal/shop"
	"github.com/go-chi/chi/v5"
)

type PaymentsHandler struct {
	Svc    *payments.Service
	Issuer auth.TokenIssuer
	Log    *slog.Logger
}

func (h *PaymentsHandler) Register(r *chi.Mux) {
	r.Group(func(g chi.Router) {
		g.Use(auth.RequireAuth(h.Issuer))
		g.Post("/payments/paypal/create", h.paypalCreate)
		g.Post("/payments/paypal/capture", h.paypalCapture)
		g.Post("/payments/payfast/create", h.payfastCreate)
	})

	// ITN datang dari server PayFast, bukan browser user: tanpa auth.
	r.Post("/payments/payfast/notify", h.payfastNotify)
	r.Get("/payments/payfast/return", h.payfastReturn)
	r.Get("/payments/payfast/cancel", h.payfastCancel)
}

type createIntentReq struct {
	OrderID string `json:"orderId"`
}

type captureReq struct {
	OrderID       string `json:"orderId"`
	PaypalOrderID string `json:"paypalOrderId"`
}

func (h *PaymentsHandler) paypalCreate(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req createIntentReq
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	intent, err := h.Svc.CreatePaypalIntent(ctx, claims.UserID, req.OrderID)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusOK, intent)
}

func (h *PaymentsHandler) paypalCapture(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req captureReq
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.Svc.CapturePaypal(ctx, claims.UserID, req.OrderID, req.PaypalOrderID)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusOK, order)
}

func (h *PaymentsHandler) payfastCreate(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req createIntentReq
	if err := decodeBody(r, &req); err != nil {
		respondErr(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	intent, err := h.Svc.CreatePayfastIntent(ctx, claims.UserID, req.OrderID)
	if err != nil {
		respondErr(w, h.Log, err)
		return
	}
	respondOK(w, http.StatusOK, intent)
}

// payfastNotify: kontrak delivery PayFast minta body literal "OK" dgn 200;
// selain itu provider bakal retry.
func (h *PaymentsHandler) payfastNotify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondErr(w, h.Log, shop.E(shop.KindValidation, "invalid form data"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.Svc.HandlePayfastNotify(ctx, r.PostForm); err != nil {
		switch shop.KindOf(err) {
		case shop.KindValidation, shop.KindInvalidSignature, shop.KindNotFound:
			respondErr(w, h.Log, err)
		default:
			h.Log.Error("payfast notify failed", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("Error"))
		}
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *PaymentsHandler) payfastReturn(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	http.Redirect(w, r, "/checkout/success?orderId="+url.QueryEscape(orderID), http.StatusFound)
}

func (h *PaymentsHandler) payfastCancel(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("orderId")
	http.Redirect(w, r, "/checkout?orderId="+url.QueryEscape(orderID)+"&cancelled=true", http.StatusFound)
}
