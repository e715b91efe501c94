package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/dvtrung/wardrobe-orders/internal/kafka"
	"github.com/dvtrung/wardrobe-orders/internal/orders"
	"github.com/dvtrung/wardrobe-orders/internal/redisx"
)

// Service consumes order events and keeps the Redis status cache current,
// so storefront polling never has to touch Postgres.
type Service struct {
	Redis       *redis.Client
	Cache       redisx.StatusCache
	ServiceName string
}

// HandleOrderEvent is the consumer handler for both order topics.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup by event id; consumer groups redeliver on rebalance
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}

	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.setStatus(ctx, p.Code, string(orders.StatusPending), string(orders.PaymentPending)); err != nil {
			return err
		}
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		if err := s.mergeStatus(ctx, p); err != nil {
			return err
		}
	default:
		return nil // ignore
	}

	return s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
}

func (s *Service) setStatus(ctx context.Context, code, status, payment string) error {
	b, _ := json.Marshal(map[string]string{"status": status, "paymentStatus": payment})
	return s.Cache.SetStatus(ctx, code, string(b))
}

// mergeStatus patches only the fields the event carries, keeping whatever
// the cache already knows about the other one.
func (s *Service) mergeStatus(ctx context.Context, p orders.OrderStatusChangedPayload) error {
	cur := map[string]string{}
	if raw, err := s.Cache.GetStatus(ctx, p.Code); err == nil && raw != "" {
		_ = json.Unmarshal([]byte(raw), &cur)
	}
	if p.To != "" {
		cur["status"] = p.To
	}
	if p.PaymentStatus != "" {
		cur["paymentStatus"] = p.PaymentStatus
	}
	b, _ := json.Marshal(cur)
	return s.Cache.SetStatus(ctx, p.Code, string(b))
}
