package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/dvtrung/wardrobe-orders/internal/kafka"
	"github.com/dvtrung/wardrobe-orders/internal/orders"
	"github.com/dvtrung/wardrobe-orders/internal/redisx"
)

// OrderStore is the slice of the repo the handlers need; the concrete
// *orders.Repo satisfies it, tests plug in a mock.
type OrderStore interface {
	PlaceOrder(ctx context.Context, intent *orders.OrderIntent) (*orders.Order, error)
	ListByEmail(ctx context.Context, email string) ([]orders.Order, error)
	GetStatus(ctx context.Context, code string) (orders.Status, orders.PaymentStatus, error)
	UpdateStatus(ctx context.Context, code string, to orders.Status) (orders.Status, error)
	UpdatePaymentStatus(ctx context.Context, code string, to orders.PaymentStatus) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type OrdersHandler struct {
	Store         OrderStore
	Placed        Publisher
	Statuses      Publisher
	Cache         redisx.StatusCache
	Service       string
	ShippingCents int
}

// PlaceOrderReq mirrors what the checkout page posts. Total and promoAmount
// are accepted for compatibility but recomputed server-side.
type PlaceOrderReq struct {
	Items         []orders.OrderItem `json:"items"`
	Total         int                `json:"total"`
	Email         string             `json:"email"`
	FullName      string             `json:"fullName"`
	Phone         string             `json:"phone"`
	Address       string             `json:"address"`
	Ward          string             `json:"ward"`
	District      string             `json:"district"`
	Province      string             `json:"province"`
	PaymentMethod string             `json:"paymentMethod"`
	Note          string             `json:"note"`
	PromoCode     string             `json:"promoCode"`
	PromoAmount   int                `json:"promoAmount"`
}

type statusPayload struct {
	Status        orders.Status        `json:"status"`
	PaymentStatus orders.PaymentStatus `json:"paymentStatus"`
}

type updateOrderReq struct {
	Status        orders.Status        `json:"status"`
	PaymentStatus orders.PaymentStatus `json:"paymentStatus"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{code}", h.getOrder)
	r.Patch("/admin/orders/{code}/status", h.updateOrder)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"ok": false, "message": msg})
}

// fail maps the error taxonomy onto HTTP codes: stock conflicts 409, other
// user errors 400, everything else a generic 500 with the detail logged
// server-side only.
func fail(w http.ResponseWriter, err error) {
	switch {
	case orders.IsConflict(err):
		writeErr(w, http.StatusConflict, err.Error())
	case orders.IsUserError(err):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("order flow: %v", err)
		writeErr(w, http.StatusInternalServerError, "Something went wrong, please try again later")
	}
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	items, err := orders.ValidateItems(req.Items)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.FullName == "" || req.Phone == "" || req.Address == "" {
		writeErr(w, http.StatusBadRequest, "Missing contact or shipping information")
		return
	}

	intent := &orders.OrderIntent{
		Email:         req.Email,
		FullName:      req.FullName,
		Phone:         req.Phone,
		Address:       req.Address,
		Ward:          req.Ward,
		District:      req.District,
		Province:      req.Province,
		PaymentMethod: req.PaymentMethod,
		Note:          req.Note,
		PromoCode:     req.PromoCode,
		ShippingCents: h.ShippingCents,
		Items:         items,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Store.PlaceOrder(ctx, intent)
	if err != nil {
		fail(w, err)
		return
	}

	// post-commit: warm the status cache and emit the event. Neither can
	// undo the order, so errors here are logged, not surfaced.
	h.cacheStatus(ctx, o.Code, o.Status, o.PaymentStatus)
	h.publishPlaced(o, r.Header.Get("X-Request-Id"))

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "order": o})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		// set by the upstream session layer for signed-in shoppers
		email = r.Header.Get("X-User-Email")
	}
	if email == "" {
		writeErr(w, http.StatusUnauthorized, "Sign in or provide an email to view orders")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := h.Store.ListByEmail(ctx, email)
	if err != nil {
		fail(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "orders": list})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeErr(w, http.StatusBadRequest, "missing order code")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Cache != nil {
		if s, err := h.Cache.GetStatus(ctx, code); err == nil && s != "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"ok": true, "orderCode": code, "order": json.RawMessage(s),
			})
			return
		}
	}

	st, pay, err := h.Store.GetStatus(ctx, code)
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			writeErr(w, http.StatusNotFound, err.Error())
			return
		}
		fail(w, err)
		return
	}
	h.cacheStatus(ctx, code, st, pay)
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true, "orderCode": code,
		"order": statusPayload{Status: st, PaymentStatus: pay},
	})
}

func (h *OrdersHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req updateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Status == "" && req.PaymentStatus == "" {
		writeErr(w, http.StatusBadRequest, "nothing to update")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	change := orders.OrderStatusChangedPayload{Code: code}
	if req.Status != "" {
		from, err := h.Store.UpdateStatus(ctx, code, req.Status)
		if err != nil {
			fail(w, err)
			return
		}
		change.From, change.To = string(from), string(req.Status)
	}
	if req.PaymentStatus != "" {
		if err := h.Store.UpdatePaymentStatus(ctx, code, req.PaymentStatus); err != nil {
			fail(w, err)
			return
		}
		change.PaymentStatus = string(req.PaymentStatus)
	}

	st, pay, err := h.Store.GetStatus(ctx, code)
	if err == nil {
		h.cacheStatus(ctx, code, st, pay)
	}
	h.publishStatusChanged(change, r.Header.Get("X-Request-Id"))

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "orderCode": code})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, code string, st orders.Status, pay orders.PaymentStatus) {
	if h.Cache == nil {
		return
	}
	b, _ := json.Marshal(statusPayload{Status: st, PaymentStatus: pay})
	if err := h.Cache.SetStatus(ctx, code, string(b)); err != nil {
		log.Printf("status cache set %s: %v", code, err)
	}
}

func (h *OrdersHandler) publishPlaced(o *orders.Order, trace string) {
	if h.Placed == nil {
		return
	}
	items := make([]orders.ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orders.ItemQty{ProductID: it.ProductID, Size: it.Size, Qty: it.Quantity})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID: o.ID, Code: o.Code, Email: o.Email, TotalCents: o.TotalCents, Items: items,
		}),
	}
	h.Placed.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) publishStatusChanged(p orders.OrderStatusChangedPayload, trace string) {
	if h.Statuses == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: p.Code,
		Payload:       kafkax.MustMarshal(p),
	}
	h.Statuses.Publish(orders.PartitionKey(p.Code), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
