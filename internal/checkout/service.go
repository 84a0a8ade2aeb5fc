// Package checkout turns a validated cart submission into a persisted
// pending order.
package checkout

import (
	"context"
	"log/slog"
	"strings"

	kafkax "github.com/ariefcatur/go-storefront.git/internal/kafka"
	"github.com/ariefcatur/go-storefront.git/internal/shop"
	kafkago "github.com/segmentio/kafka-go"
)

type Store interface {
	CreateOrderTx(ctx context.Context, userID string, lines []shop.CartLine, method shop.PaymentMethod, address string) (shop.Order, []shop.OrderItem, error)
	CancelOrder(ctx context.Context, orderID, userID string) (shop.Order, error)
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type StatusCache interface {
	SetOrderStatus(ctx context.Context, orderID, status string)
}

type Input struct {
	Items           []shop.CartLine    `json:"items"`
	ShippingAddress string             `json:"shippingAddress"`
	PaymentMethod   shop.PaymentMethod `json:"paymentMethod"`
}

type Service struct {
	Store       Store
	Producer    Publisher
	Cache       StatusCache
	ServiceName string
	Log         *slog.Logger
}

// PlaceOrder: validasi input, lalu serahkan pricing + stok + insert ke satu
// transaksi di store. Event order.created fire-and-forget.
func (s *Service) PlaceOrder(ctx context.Context, userID, traceID string, in Input) (shop.Order, []shop.OrderItem, error) {
	if err := validate(in); err != nil {
		return shop.Order{}, nil, err
	}

	order, items, err := s.Store.CreateOrderTx(ctx, userID, in.Items, in.PaymentMethod, strings.TrimSpace(in.ShippingAddress))
	if err != nil {
		return shop.Order{}, nil, err
	}

	if s.Cache != nil {
		s.Cache.SetOrderStatus(ctx, order.ID, string(order.Status))
	}

	if s.Producer != nil {
		ev := shop.NewEnvelope(shop.EventOrderCreated, s.ServiceName, traceID, order.ID,
			kafkax.MustMarshal(shop.OrderCreatedPayload{
				OrderID:       order.ID,
				UserID:        order.UserID,
				Total:         order.Total,
				PaymentMethod: order.PaymentMethod,
				Items:         items,
			}))
		s.Producer.Publish(shop.TopicOrderCreated, shop.PartitionKey(order.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventOrderCreated)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	s.Log.Info("order placed", "order_id", order.ID, "user_id", userID, "total", order.Total)
	return order, items, nil
}

// Cancel: pending-only, pemilik order saja; stok balik di transaksi store.
func (s *Service) Cancel(ctx context.Context, userID, traceID, orderID string) (shop.Order, error) {
	order, err := s.Store.CancelOrder(ctx, orderID, userID)
	if err != nil {
		return shop.Order{}, err
	}

	if s.Cache != nil {
		s.Cache.SetOrderStatus(ctx, order.ID, string(order.Status))
	}
	if s.Producer != nil {
		ev := shop.NewEnvelope(shop.EventOrderCancelled, s.ServiceName, traceID, order.ID,
			kafkax.MustMarshal(shop.OrderCancelledPayload{OrderID: order.ID, UserID: userID}))
		s.Producer.Publish(shop.TopicOrderCancelled, shop.PartitionKey(order.ID), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(shop.EventOrderCancelled)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}

	s.Log.Info("order cancelled", "order_id", order.ID, "user_id", userID)
	return order, nil
}

func validate(in Input) error {
	if len(in.Items) == 0 {
		return shop.ValidationField("items", "order must contain at least one item")
	}
	for _, ln := range in.Items {
		if ln.ProductID == "" {
			return shop.ValidationField("items.productId", "productId is required")
		}
		if ln.Quantity < 1 {
			return shop.ValidationField("items.quantity", "quantity must be at least 1")
		}
	}
	if len(strings.TrimSpace(in.ShippingAddress)) < 10 {
		return shop.ValidationField("shippingAddress", "shipping address is required")
	}
	if !shop.ValidMethod(in.PaymentMethod) {
		return shop.ValidationField("paymentMethod", "payment method must be paypal or payfast")
	}
	return nil
}
