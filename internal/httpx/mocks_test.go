package httpx

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/dvtrung/wardrobe-orders/internal/orders"
	"github.com/dvtrung/wardrobe-orders/internal/redisx"
)

// mockStore implements OrderStore with canned responses and captures the
// intent the handler built.
type mockStore struct {
	PlacedOrder *orders.Order
	PlaceErr    error
	LastIntent  *orders.OrderIntent

	Orders  []orders.Order
	ListErr error

	Status  orders.Status
	Payment orders.PaymentStatus
	GetErr  error

	FromStatus orders.Status
	UpdateErr  error
	PayErr     error
}

func (m *mockStore) PlaceOrder(_ context.Context, intent *orders.OrderIntent) (*orders.Order, error) {
	m.LastIntent = intent
	return m.PlacedOrder, m.PlaceErr
}

func (m *mockStore) ListByEmail(_ context.Context, _ string) ([]orders.Order, error) {
	return m.Orders, m.ListErr
}

func (m *mockStore) GetStatus(_ context.Context, _ string) (orders.Status, orders.PaymentStatus, error) {
	return m.Status, m.Payment, m.GetErr
}

func (m *mockStore) UpdateStatus(_ context.Context, _ string, _ orders.Status) (orders.Status, error) {
	return m.FromStatus, m.UpdateErr
}

func (m *mockStore) UpdatePaymentStatus(_ context.Context, _ string, _ orders.PaymentStatus) error {
	return m.PayErr
}

type fakeCache struct {
	data map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (c *fakeCache) GetStatus(_ context.Context, code string) (string, error) {
	s, ok := c.data[code]
	if !ok {
		return "", redisx.ErrCacheMiss
	}
	return s, nil
}

func (c *fakeCache) SetStatus(_ context.Context, code, payload string) error {
	c.data[code] = payload
	return nil
}

type capturedMessage struct {
	Key     []byte
	Value   []byte
	Headers []kafkago.Header
}

type fakePublisher struct {
	Messages []capturedMessage
}

func (p *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.Messages = append(p.Messages, capturedMessage{Key: key, Value: value, Headers: headers})
}
