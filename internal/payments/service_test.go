package payments

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"

	"github.com/ariefcatur/go-storefront.git/internal/payfast"
	"github.com/ariefcatur/go-storefront.git/internal/paypal"
	"github.com/ariefcatur/go-storefront.git/internal/shop"
	kafkago "github.com/segmentio/kafka-go"
)

const passphrase = "jt7NOE43FZPn"

// fakeStore replicates the repo's conditional-update semantics: transitions
// only out of pending, replays report changed=false.
type fakeStore struct {
	mu     sync.Mutex
	orders map[string]shop.Order
}

func newFakeStore(orders ...shop.Order) *fakeStore {
	s := &fakeStore{orders: map[string]shop.Order{}}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeStore) GetOrder(ctx context.Context, orderID string) (shop.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return shop.Order{}, shop.E(shop.KindNotFound, "order not found")
	}
	return o, nil
}

func (s *fakeStore) mark(orderID, paymentID string, to shop.Status) (shop.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return shop.Order{}, false, shop.E(shop.KindNotFound, "order not found")
	}
	if o.Status != shop.StatusPending {
		return o, false, nil
	}
	o.Status = to
	o.PaymentID = paymentID
	s.orders[orderID] = o
	return o, true, nil
}

func (s *fakeStore) MarkPaid(ctx context.Context, orderID, paymentID string) (shop.Order, bool, error) {
	return s.mark(orderID, paymentID, shop.StatusPaid)
}

func (s *fakeStore) MarkFailed(ctx context.Context, orderID, paymentID string) (shop.Order, bool, error) {
	return s.mark(orderID, paymentID, shop.StatusFailed)
}

type fakePaypal struct {
	created  paypal.OrderCreated
	capture  paypal.CaptureResult
	err      error
	captures int
}

func (f *fakePaypal) CreateOrder(ctx context.Context, total, currency string) (paypal.OrderCreated, error) {
	return f.created, f.err
}

func (f *fakePaypal) CaptureOrder(ctx context.Context, paypalOrderID string) (paypal.CaptureResult, error) {
	f.captures++
	return f.capture, f.err
}

type fakeCache struct {
	seen   map[string]bool
	status map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{seen: map[string]bool{}, status: map[string]string{}}
}

func (c *fakeCache) SeenEvent(ctx context.Context, provider, id string) bool {
	return c.seen[provider+":"+id]
}
func (c *fakeCache) MarkEvent(ctx context.Context, provider, id string) {
	c.seen[provider+":"+id] = true
}
func (c *fakeCache) SetOrderStatus(ctx context.Context, orderID, status string) {
	c.status[orderID] = status
}
func (c *fakeCache) OrderStatus(ctx context.Context, orderID string) (string, bool) {
	s, ok := c.status[orderID]
	return s, ok
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(topic string, key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
}

func pendingOrder() shop.Order {
	return shop.Order{
		ID:            "7c9e6679-7425-40de-944b-e07fc1f90ae7",
		UserID:        "u1",
		Total:         "64.97",
		Status:        shop.StatusPending,
		PaymentMethod: shop.MethodPayfast,
	}
}

func newTestService(store *fakeStore, pp *fakePaypal) (*Service, *recordingPublisher, *fakeCache) {
	pub := &recordingPublisher{}
	cache := newFakeCache()
	return &Service{
		Store:  store,
		Paypal: pp,
		Payfast: payfast.Config{
			MerchantID: "10000100", MerchantKey: "46f0cd694581a",
			Passphrase: passphrase, Mode: "sandbox",
		},
		Cache:       cache,
		Producer:    pub,
		BaseURL:     "https://shop.example.com",
		Currency:    "USD",
		ServiceName: "test",
		Log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, pub, cache
}

func signedITN(o shop.Order, pfPaymentID, status string) url.Values {
	params := map[string]string{
		"m_payment_id":   o.ID,
		"pf_payment_id":  pfPaymentID,
		"payment_status": status,
		"item_name":      "Order #7c9e6679",
		"amount_gross":   o.Total,
		"merchant_id":    "10000100",
	}
	sig := payfast.Sign(params, passphrase)
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("signature", sig)
	return form
}

func TestCreateIntents(t *testing.T) {
	ctx := context.Background()

	t.Run("paypal intent returns approval link", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		pp := &fakePaypal{created: paypal.OrderCreated{
			ID: "PP-1", Status: paypal.StatusCreated,
			Links: []paypal.Link{{Href: "https://paypal.test/approve", Rel: "approve"}},
		}}
		svc, _, _ := newTestService(store, pp)

		intent, err := svc.CreatePaypalIntent(ctx, "u1", pendingOrder().ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if intent.PaypalOrderID != "PP-1" || intent.ApprovalURL != "https://paypal.test/approve" {
			t.Fatalf("got %+v", intent)
		}
	})

	t.Run("payfast intent is signed and idempotent", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		svc, _, _ := newTestService(store, &fakePaypal{})

		first, err := svc.CreatePayfastIntent(ctx, "u1", pendingOrder().ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.URL != "https://sandbox.payfast.co.za/eng/process" {
			t.Fatalf("url = %s", first.URL)
		}
		data := first.PaymentData
		if data["m_payment_id"] != pendingOrder().ID || data["amount"] != "64.97" {
			t.Fatalf("payment data = %v", data)
		}
		if !payfast.VerifySignature(data, data["signature"], passphrase) {
			t.Fatal("self-signed payment data fails verification")
		}

		// re-initiation tidak mengubah state order
		second, err := svc.CreatePayfastIntent(ctx, "u1", pendingOrder().ID)
		if err != nil {
			t.Fatalf("retry failed: %v", err)
		}
		if second.PaymentData["signature"] != data["signature"] {
			t.Fatal("retry produced a different signature")
		}
		if o, _ := store.GetOrder(ctx, pendingOrder().ID); o.Status != shop.StatusPending {
			t.Fatalf("order status mutated to %q", o.Status)
		}
	})

	t.Run("foreign order -> forbidden from both providers", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		svc, _, _ := newTestService(store, &fakePaypal{})

		if _, err := svc.CreatePaypalIntent(ctx, "intruder", pendingOrder().ID); shop.KindOf(err) != shop.KindForbidden {
			t.Fatalf("paypal kind = %q, want forbidden", shop.KindOf(err))
		}
		if _, err := svc.CreatePayfastIntent(ctx, "intruder", pendingOrder().ID); shop.KindOf(err) != shop.KindForbidden {
			t.Fatalf("payfast kind = %q, want forbidden", shop.KindOf(err))
		}
	})

	t.Run("unknown order -> not found", func(t *testing.T) {
		svc, _, _ := newTestService(newFakeStore(), &fakePaypal{})
		if _, err := svc.CreatePaypalIntent(ctx, "u1", "missing"); shop.KindOf(err) != shop.KindNotFound {
			t.Fatalf("kind = %q, want not_found", shop.KindOf(err))
		}
	})

	t.Run("provider error leaves order pending", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		pp := &fakePaypal{err: shop.E(shop.KindProvider, "paypal down")}
		svc, _, _ := newTestService(store, pp)

		if _, err := svc.CreatePaypalIntent(ctx, "u1", pendingOrder().ID); shop.KindOf(err) != shop.KindProvider {
			t.Fatalf("kind = %q, want provider", shop.KindOf(err))
		}
		if o, _ := store.GetOrder(ctx, pendingOrder().ID); o.Status != shop.StatusPending {
			t.Fatalf("order status = %q, want pending", o.Status)
		}
	})
}

func TestCapturePaypal(t *testing.T) {
	ctx := context.Background()

	t.Run("completed capture -> paid with capture ref", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		pp := &fakePaypal{capture: paypal.CaptureResult{
			ID: "PP-1", Status: paypal.StatusCompleted, CaptureID: "CAP-42",
		}}
		svc, pub, cache := newTestService(store, pp)

		o, err := svc.CapturePaypal(ctx, "u1", pendingOrder().ID, "PP-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.Status != shop.StatusPaid || o.PaymentID != "CAP-42" {
			t.Fatalf("got status=%q payment_id=%q", o.Status, o.PaymentID)
		}
		if len(pub.topics) != 1 || pub.topics[0] != shop.TopicOrderPaid {
			t.Fatalf("topics = %v", pub.topics)
		}
		if s, _ := cache.OrderStatus(ctx, o.ID); s != "paid" {
			t.Fatalf("cached status = %q", s)
		}
	})

	t.Run("replay keeps paid state, no second event", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		pp := &fakePaypal{capture: paypal.CaptureResult{
			ID: "PP-1", Status: paypal.StatusCompleted, CaptureID: "CAP-42",
		}}
		svc, pub, _ := newTestService(store, pp)

		if _, err := svc.CapturePaypal(ctx, "u1", pendingOrder().ID, "PP-1"); err != nil {
			t.Fatalf("first capture: %v", err)
		}
		o, err := svc.CapturePaypal(ctx, "u1", pendingOrder().ID, "PP-1")
		if err != nil {
			t.Fatalf("replay: %v", err)
		}
		if o.Status != shop.StatusPaid || o.PaymentID != "CAP-42" {
			t.Fatalf("replay changed order: %+v", o)
		}
		if len(pub.topics) != 1 {
			t.Fatalf("replay published again: %v", pub.topics)
		}
	})

	t.Run("foreign order -> forbidden, no provider call", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		pp := &fakePaypal{}
		svc, _, _ := newTestService(store, pp)

		if _, err := svc.CapturePaypal(ctx, "intruder", pendingOrder().ID, "PP-1"); shop.KindOf(err) != shop.KindForbidden {
			t.Fatalf("kind = %q, want forbidden", shop.KindOf(err))
		}
		if pp.captures != 0 {
			t.Fatal("provider called despite ownership failure")
		}
	})

	t.Run("declined capture -> failed, not paid", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		pp := &fakePaypal{capture: paypal.CaptureResult{ID: "PP-1", Status: paypal.StatusDeclined}}
		svc, pub, _ := newTestService(store, pp)

		o, err := svc.CapturePaypal(ctx, "u1", pendingOrder().ID, "PP-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.Status != shop.StatusFailed {
			t.Fatalf("status = %q, want failed", o.Status)
		}
		if len(pub.topics) != 1 || pub.topics[0] != shop.TopicOrderPaymentFailed {
			t.Fatalf("topics = %v", pub.topics)
		}
	})

	t.Run("pending capture leaves order pending, settle later", func(t *testing.T) {
		// eCheck dsb: capture bisa PENDING dulu. failed itu terminal, jadi
		// order harus tetap pending supaya capture ulang masih bisa ke paid.
		store := newFakeStore(pendingOrder())
		pp := &fakePaypal{capture: paypal.CaptureResult{ID: "PP-1", Status: paypal.StatusPending}}
		svc, pub, _ := newTestService(store, pp)

		o, err := svc.CapturePaypal(ctx, "u1", pendingOrder().ID, "PP-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if o.Status != shop.StatusPending {
			t.Fatalf("status = %q, want pending", o.Status)
		}
		if len(pub.topics) != 0 {
			t.Fatalf("topics = %v", pub.topics)
		}

		// hasil final menyusul -> paid tetap tercapai
		pp.capture = paypal.CaptureResult{ID: "PP-1", Status: paypal.StatusCompleted, CaptureID: "CAP-42"}
		o, err = svc.CapturePaypal(ctx, "u1", pendingOrder().ID, "PP-1")
		if err != nil {
			t.Fatalf("second capture: %v", err)
		}
		if o.Status != shop.StatusPaid || o.PaymentID != "CAP-42" {
			t.Fatalf("order = %+v, want paid via CAP-42", o)
		}
	})
}

func TestHandlePayfastNotify(t *testing.T) {
	ctx := context.Background()

	t.Run("COMPLETE -> paid with pf_payment_id", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		svc, pub, _ := newTestService(store, &fakePaypal{})

		if err := svc.HandlePayfastNotify(ctx, signedITN(pendingOrder(), "1089250", payfast.StatusComplete)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		o, _ := store.GetOrder(ctx, pendingOrder().ID)
		if o.Status != shop.StatusPaid || o.PaymentID != "1089250" {
			t.Fatalf("got status=%q payment_id=%q", o.Status, o.PaymentID)
		}
		if len(pub.topics) != 1 || pub.topics[0] != shop.TopicOrderPaid {
			t.Fatalf("topics = %v", pub.topics)
		}
	})

	t.Run("replayed COMPLETE is a no-op", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		svc, pub, _ := newTestService(store, &fakePaypal{})

		form := signedITN(pendingOrder(), "1089250", payfast.StatusComplete)
		if err := svc.HandlePayfastNotify(ctx, form); err != nil {
			t.Fatalf("first notify: %v", err)
		}
		if err := svc.HandlePayfastNotify(ctx, form); err != nil {
			t.Fatalf("replay must not error: %v", err)
		}
		o, _ := store.GetOrder(ctx, pendingOrder().ID)
		if o.Status != shop.StatusPaid || o.PaymentID != "1089250" {
			t.Fatalf("replay changed order: %+v", o)
		}
		if len(pub.topics) != 1 {
			t.Fatalf("replay published again: %v", pub.topics)
		}
	})

	t.Run("invalid signature -> rejected, no mutation", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		svc, pub, _ := newTestService(store, &fakePaypal{})

		form := signedITN(pendingOrder(), "1089250", payfast.StatusComplete)
		form.Set("amount_gross", "0.01") // tampered after signing
		err := svc.HandlePayfastNotify(ctx, form)
		if shop.KindOf(err) != shop.KindInvalidSignature {
			t.Fatalf("kind = %q, want invalid_signature (%v)", shop.KindOf(err), err)
		}
		o, _ := store.GetOrder(ctx, pendingOrder().ID)
		if o.Status != shop.StatusPending {
			t.Fatalf("state mutated on invalid signature: %q", o.Status)
		}
		if len(pub.topics) != 0 {
			t.Fatalf("event published on invalid signature: %v", pub.topics)
		}
	})

	t.Run("non-final status accepted without transition", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		svc, pub, _ := newTestService(store, &fakePaypal{})

		if err := svc.HandlePayfastNotify(ctx, signedITN(pendingOrder(), "1089250", "PENDING")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		o, _ := store.GetOrder(ctx, pendingOrder().ID)
		if o.Status != shop.StatusPending {
			t.Fatalf("status = %q, want pending", o.Status)
		}
		if len(pub.topics) != 0 {
			t.Fatalf("topics = %v", pub.topics)
		}
	})

	t.Run("PENDING then COMPLETE with the same pf id -> paid", func(t *testing.T) {
		// metode delayed (eCheck dsb): PayFast kirim PENDING dulu, lalu
		// COMPLETE dgn pf_payment_id yg sama. Yg kedua harus tetap diproses.
		store := newFakeStore(pendingOrder())
		svc, pub, _ := newTestService(store, &fakePaypal{})

		if err := svc.HandlePayfastNotify(ctx, signedITN(pendingOrder(), "1089250", "PENDING")); err != nil {
			t.Fatalf("pending notify: %v", err)
		}
		if err := svc.HandlePayfastNotify(ctx, signedITN(pendingOrder(), "1089250", payfast.StatusComplete)); err != nil {
			t.Fatalf("complete notify: %v", err)
		}
		o, _ := store.GetOrder(ctx, pendingOrder().ID)
		if o.Status != shop.StatusPaid || o.PaymentID != "1089250" {
			t.Fatalf("order = %+v, want paid via 1089250", o)
		}
		if len(pub.topics) != 1 || pub.topics[0] != shop.TopicOrderPaid {
			t.Fatalf("topics = %v", pub.topics)
		}
	})

	t.Run("malformed m_payment_id -> not found, store untouched", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		svc, _, _ := newTestService(store, &fakePaypal{})

		o := pendingOrder()
		o.ID = "DROP TABLE orders" // bukan uuid
		err := svc.HandlePayfastNotify(ctx, signedITN(o, "1089250", payfast.StatusComplete))
		if shop.KindOf(err) != shop.KindNotFound {
			t.Fatalf("kind = %q, want not_found (%v)", shop.KindOf(err), err)
		}
	})

	t.Run("FAILED -> failed", func(t *testing.T) {
		store := newFakeStore(pendingOrder())
		svc, pub, _ := newTestService(store, &fakePaypal{})

		if err := svc.HandlePayfastNotify(ctx, signedITN(pendingOrder(), "1089250", payfast.StatusFailed)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		o, _ := store.GetOrder(ctx, pendingOrder().ID)
		if o.Status != shop.StatusFailed {
			t.Fatalf("status = %q, want failed", o.Status)
		}
		if len(pub.topics) != 1 || pub.topics[0] != shop.TopicOrderPaymentFailed {
			t.Fatalf("topics = %v", pub.topics)
		}
	})

	t.Run("notify for already-paid order never regresses", func(t *testing.T) {
		o := pendingOrder()
		o.Status = shop.StatusPaid
		o.PaymentID = "1089250"
		store := newFakeStore(o)
		svc, pub, _ := newTestService(store, &fakePaypal{})

		// status lain utk transaksi lain tidak menggeser paid
		if err := svc.HandlePayfastNotify(ctx, signedITN(o, "9999999", payfast.StatusFailed)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := store.GetOrder(ctx, o.ID)
		if got.Status != shop.StatusPaid || got.PaymentID != "1089250" {
			t.Fatalf("paid order mutated: %+v", got)
		}
		if len(pub.topics) != 0 {
			t.Fatalf("topics = %v", pub.topics)
		}
	})

	t.Run("unknown order -> not found", func(t *testing.T) {
		svc, _, _ := newTestService(newFakeStore(), &fakePaypal{})
		o := pendingOrder()
		err := svc.HandlePayfastNotify(ctx, signedITN(o, "1", payfast.StatusComplete))
		if shop.KindOf(err) != shop.KindNotFound {
			t.Fatalf("kind = %q, want not_found", shop.KindOf(err))
		}
	})
}
