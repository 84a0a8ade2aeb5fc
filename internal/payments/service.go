// Package payments holds the payment initiator (provider intents) and the
// reconciler (capture calls and ITN callbacks into order state).
package payments

import (
	"context"
	"log/slog"
	"net/url"

	kafkax "github.com/ariefcatur/go-storefront.git/internal/kafka"
	"github.com/ariefcatur/go-storefront.git/internal/payfast"
	"github.com/ariefcatur/go-storefront.git/internal/paypal"
	"github.com/ariefcatur/go-storefront.git/internal/shop"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type Store interface {
	GetOrder(ctx context.Context, orderID string) (shop.Order, error)
	MarkPaid(ctx context.Context, orderID, paymentID string) (shop.Order, bool, error)
	MarkFailed(ctx context.Context, orderID, paymentID string) (shop.Order, bool, error)
}

type PaypalAPI interface {
	CreateOrder(ctx context.Context, total, currency string) (paypal.OrderCreated, error)
	CaptureOrder(ctx context.Context, paypalOrderID string) (paypal.CaptureResult, error)
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Cache is a best-effort fast path; the DB conditional update stays the truth.
type Cache interface {
	SeenEvent(ctx context.Context, provider, id string) bool
	MarkEvent(ctx context.Context, provider, id string)
	SetOrderStatus(ctx context.Context, orderID, status string)
	OrderStatus(ctx context.Context, orderID string) (string, bool)
}

type Service struct {
	Store       Store
	Paypal      PaypalAPI
	Payfast     payfast.Config
	Cache       Cache
	Producer    Publisher
	BaseURL     string
	Currency    string
	ServiceName string
	Log         *slog.Logger
}

// PaypalIntent is what the client needs to send the buyer to PayPal.
type PaypalIntent struct {
	PaypalOrderID string `json:"paypalOrderId"`
	Status        string `json:"status"`
	ApprovalURL   string `json:"approvalUrl"`
}

// PayfastIntent: redirect URL + signed form fields.
type PayfastIntent struct {
	URL         string            `json:"url"`
	PaymentData map[string]string `json:"paymentData"`
}

// ownedOrder: NotFound kalau tidak ada, Forbidden kalau bukan punya user.
func (s *Service) ownedOrder(ctx context.Context, userID, orderID string) (shop.Order, error) {
	if orderID == "" {
		return shop.Order{}, shop.ValidationField("orderId", "orderId is required")
	}
	// id bukan uuid tidak mungkin order kita; jangan sampai jadi cast error di DB
	if uuid.Validate(orderID) != nil {
		return shop.Order{}, shop.E(shop.KindNotFound, "order not found")
	}
	o, err := s.Store.GetOrder(ctx, orderID)
	if err != nil {
		return shop.Order{}, err
	}
	if o.UserID != userID {
		return shop.Order{}, shop.E(shop.KindForbidden, "order does not belong to user")
	}
	return o, nil
}

// CreatePaypalIntent asks PayPal for an order intent over the order total.
// Tidak ada state yg dipersist; boleh di-retry kapan saja.
func (s *Service) CreatePaypalIntent(ctx context.Context, userID, orderID string) (PaypalIntent, error) {
	o, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return PaypalIntent{}, err
	}
	created, err := s.Paypal.CreateOrder(ctx, o.Total, s.Currency)
	if err != nil {
		// order tetap pending; checkout boleh dicoba lagi
		s.Log.Error("paypal create intent failed", "order_id", orderID, "err", err)
		return PaypalIntent{}, err
	}
	return PaypalIntent{
		PaypalOrderID: created.ID,
		Status:        created.Status,
		ApprovalURL:   created.ApprovalLink(),
	}, nil
}

// CreatePayfastIntent builds the signed redirect parameter set.
func (s *Service) CreatePayfastIntent(ctx context.Context, userID, orderID string) (PayfastIntent, error) {
	o, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return PayfastIntent{}, err
	}
	data, err := s.Payfast.BuildPayment(
		o.Total,
		"Order #"+shortID(o.ID),
		o.ID,
		s.BaseURL+"/payments/payfast/return",
		s.BaseURL+"/payments/payfast/cancel",
		s.BaseURL+"/payments/payfast/notify",
	)
	if err != nil {
		return PayfastIntent{}, err
	}
	return PayfastIntent{URL: s.Payfast.ProcessURL(), PaymentData: data}, nil
}

// CapturePaypal: synchronous reconciliation. Sukses provider -> paid.
// Replay dgn status final yg sama tidak double-apply.
func (s *Service) CapturePaypal(ctx context.Context, userID, orderID, paypalOrderID string) (shop.Order, error) {
	if paypalOrderID == "" {
		return shop.Order{}, shop.ValidationField("paypalOrderId", "paypalOrderId is required")
	}
	o, err := s.ownedOrder(ctx, userID, orderID)
	if err != nil {
		return shop.Order{}, err
	}

	res, err := s.Paypal.CaptureOrder(ctx, paypalOrderID)
	if err != nil {
		s.Log.Error("paypal capture failed", "order_id", orderID, "err", err)
		return shop.Order{}, err
	}

	switch res.Status {
	case paypal.StatusCompleted:
		ref := res.CaptureID
		if ref == "" {
			ref = paypalOrderID
		}
		o, changed, err := s.Store.MarkPaid(ctx, o.ID, ref)
		if err != nil {
			return shop.Order{}, err
		}
		if changed {
			s.afterTransition(ctx, o, true, "paypal", "")
		}
		return o, nil
	case paypal.StatusDeclined, paypal.StatusFailed:
		s.Log.Warn("paypal capture declined", "order_id", orderID, "status", res.Status)
		o, changed, err := s.Store.MarkFailed(ctx, o.ID, paypalOrderID)
		if err != nil {
			return shop.Order{}, err
		}
		if changed {
			s.afterTransition(ctx, o, false, "paypal", res.Status)
		}
		return o, nil
	default:
		// PENDING dsb: failed itu terminal, jadi jangan tutup jalan ke paid.
		// Order tetap pending sampai capture ulang atau hasil final.
		s.Log.Info("paypal capture not final", "order_id", orderID, "status", res.Status)
		return o, nil
	}
}

// HandlePayfastNotify processes an ITN post. At-least-once delivery: replays
// and notifications for already-paid orders are no-ops, never errors.
func (s *Service) HandlePayfastNotify(ctx context.Context, form url.Values) error {
	n, params, err := payfast.ParseNotification(form)
	if err != nil {
		return err
	}
	if !payfast.VerifySignature(params, n.Signature, s.Payfast.Passphrase) {
		// jangan mutasi state apa pun
		return shop.E(shop.KindInvalidSignature, "invalid signature")
	}

	// m_payment_id harus uuid; notifikasi nyasar berakhir 4xx, bukan retry abadi
	if uuid.Validate(n.MPaymentID) != nil {
		return shop.E(shop.KindNotFound, "order not found")
	}

	// dedup fast path; kalau kelewat, conditional update di DB tetap aman
	if s.Cache != nil && s.Cache.SeenEvent(ctx, "payfast", n.PfPaymentID) {
		return nil
	}

	o, err := s.Store.GetOrder(ctx, n.MPaymentID)
	if err != nil {
		return err
	}

	switch n.PaymentStatus {
	case payfast.StatusComplete:
		if n.AmountGross != "" && n.AmountGross != o.Total {
			s.Log.Warn("payfast amount mismatch", "order_id", o.ID,
				"order_total", o.Total, "amount_gross", n.AmountGross)
		}
		o, changed, err := s.Store.MarkPaid(ctx, o.ID, n.PfPaymentID)
		if err != nil {
			return err
		}
		if changed {
			s.afterTransition(ctx, o, true, "payfast", "")
		}
	case payfast.StatusFailed, payfast.StatusCancelled:
		o, changed, err := s.Store.MarkFailed(ctx, o.ID, n.PfPaymentID)
		if err != nil {
			return err
		}
		if changed {
			s.afterTransition(ctx, o, false, "payfast", n.PaymentStatus)
		}
	default:
		// status non-final (PENDING dsb) diterima tanpa transisi. Jangan
		// tandai dedup: COMPLETE susulan datang dgn pf_payment_id yg sama.
		s.Log.Info("payfast notify ignored", "order_id", o.ID, "payment_status", n.PaymentStatus)
		return nil
	}

	// dedup hanya utk status terminal yg sudah diproses
	if s.Cache != nil {
		s.Cache.MarkEvent(ctx, "payfast", n.PfPaymentID)
	}
	return nil
}

func (s *Service) afterTransition(ctx context.Context, o shop.Order, paid bool, provider, reason string) {
	if s.Cache != nil {
		s.Cache.SetOrderStatus(ctx, o.ID, string(o.Status))
	}
	if s.Producer == nil {
		return
	}
	if paid {
		ev := shop.NewEnvelope(shop.EventOrderPaid, s.ServiceName, "", o.ID,
			kafkax.MustMarshal(shop.OrderPaidPayload{
				OrderID: o.ID, PaymentID: o.PaymentID, Provider: provider, Total: o.Total,
			}))
		s.Producer.Publish(shop.TopicOrderPaid, shop.PartitionKey(o.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventOrderPaid)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
		return
	}
	ev := shop.NewEnvelope(shop.EventOrderPaymentFailed, s.ServiceName, "", o.ID,
		kafkax.MustMarshal(shop.OrderPaymentFailedPayload{
			OrderID: o.ID, Provider: provider, Reason: reason,
		}))
	s.Producer.Publish(shop.TopicOrderPaymentFailed, shop.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventOrderPaymentFailed)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
