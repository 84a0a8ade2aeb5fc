package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-storefront.git/internal/shop"
)

// Semua response JSON pakai envelope {success, data?, error?}.
type envelope struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Field     string `json:"field,omitempty"`
	ProductID string `json:"productId,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, envelope{Success: true, Data: data})
}

func statusForKind(k shop.Kind) int {
	switch k {
	case shop.KindValidation, shop.KindInsufficientStock, shop.KindInvalidSignature:
		return http.StatusBadRequest
	case shop.KindNotFound:
		return http.StatusNotFound
	case shop.KindForbidden:
		return http.StatusForbidden
	case shop.KindConflict:
		return http.StatusConflict
	case shop.KindProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondErr maps error kinds to status codes; error yg tidak dikenal jadi
// 500 generik tanpa bocorin detail internal.
func respondErr(w http.ResponseWriter, log *slog.Logger, err error) {
	var se *shop.Error
	if errors.As(err, &se) {
		code := statusForKind(se.Kind)
		if code >= 500 {
			log.Error("request failed", "kind", se.Kind, "err", err)
		}
		writeJSON(w, code, envelope{
			Success:   false,
			Error:     se.Msg,
			Field:     se.Field,
			ProductID: se.ProductID,
		})
		return
	}
	log.Error("request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, envelope{
		Success: false,
		Error:   "Internal server error",
	})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return shop.E(shop.KindValidation, "invalid json")
	}
	return nil
}
