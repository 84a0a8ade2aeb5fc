// Package payfast implements the PayFast redirect flow: signed parameter set
// for the process page, plus verification of ITN (Instant Transaction
// Notification) callbacks.
package payfast

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/ariefcatur/go-storefront.git/internal/shop"
)

const (
	StatusComplete  = "COMPLETE"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

type Config struct {
	MerchantID  string
	MerchantKey string
	Passphrase  string
	Mode        string // sandbox | live
}

func (c Config) Configured() bool {
	return c.MerchantID != "" && c.MerchantKey != ""
}

func (c Config) ProcessURL() string {
	if c.Mode == "live" {
		return "https://www.payfast.co.za/eng/process"
	}
	return "https://sandbox.payfast.co.za/eng/process"
}

// BuildPayment returns the signed parameter set for the redirect form.
// m_payment_id = order id, jadi ITN bisa dipetakan balik ke order.
func (c Config) BuildPayment(amount, itemName, orderID, returnURL, cancelURL, notifyURL string) (map[string]string, error) {
	if !c.Configured() {
		return nil, shop.E(shop.KindProvider, "PayFast credentials not configured")
	}
	params := map[string]string{
		"merchant_id":  c.MerchantID,
		"merchant_key": c.MerchantKey,
		"return_url":   returnURL,
		"cancel_url":   cancelURL,
		"notify_url":   notifyURL,
		"m_payment_id": orderID,
		"amount":       amount,
		"item_name":    itemName,
	}
	params["signature"] = Sign(params, c.Passphrase)
	return params, nil
}

// Sign: drop nilai kosong, sort key, join key=encode(trim(value)) pakai "&",
// append passphrase kalau di-set, lalu md5 lowercase hex. Harus bit-exact
// dengan sisi provider.
func Sign(params map[string]string, passphrase string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == "signature" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(encode(strings.TrimSpace(params[k])))
	}
	if passphrase != "" {
		b.WriteString("&passphrase=")
		b.WriteString(encode(strings.TrimSpace(passphrase)))
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// VerifySignature recomputes over the received params (minus the signature
// field) and compares.
func VerifySignature(params map[string]string, received, passphrase string) bool {
	return received != "" && Sign(params, passphrase) == received
}

// encode matches JS encodeURIComponent: unreserved A-Za-z0-9-_.!~*'(),
// sisanya %XX uppercase.
func encode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			b.WriteByte(ch)
		case strings.IndexByte("-_.!~*'()", ch) >= 0:
			b.WriteByte(ch)
		default:
			b.WriteByte('%')
			b.WriteString(strings.ToUpper(hex.EncodeToString([]byte{ch})))
		}
	}
	return b.String()
}

// Notification adalah payload ITN yg kita pedulikan.
type Notification struct {
	MPaymentID    string // = order id
	PfPaymentID   string // transaction id di PayFast
	PaymentStatus string
	ItemName      string
	AmountGross   string
	Signature     string
}

// ParseNotification flattens the posted form (first value wins) and pulls the
// required fields. Map hasilnya dipakai utk verifikasi signature.
func ParseNotification(form url.Values) (Notification, map[string]string, error) {
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}

	n := Notification{
		MPaymentID:    params["m_payment_id"],
		PfPaymentID:   params["pf_payment_id"],
		PaymentStatus: params["payment_status"],
		ItemName:      params["item_name"],
		AmountGross:   params["amount_gross"],
		Signature:     params["signature"],
	}
	switch {
	case n.MPaymentID == "":
		return n, params, shop.ValidationField("m_payment_id", "m_payment_id is required")
	case n.PfPaymentID == "":
		return n, params, shop.ValidationField("pf_payment_id", "pf_payment_id is required")
	case n.PaymentStatus == "":
		return n, params, shop.ValidationField("payment_status", "payment_status is required")
	case n.Signature == "":
		return n, params, shop.ValidationField("signature", "signature is required")
	}
	return n, params, nil
}
