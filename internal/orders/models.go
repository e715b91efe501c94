package orders

import "time"

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Image      string    `json:"image"`
	Color      string    `json:"color"`
	PriceCents int       `json:"priceCents"`
	OutOfStock bool      `json:"outOfStock"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ProductSize is one stock counter: a product carries one row per size it is
// sold in. OutOfStock mirrors Stock == 0 and is recomputed inside the same
// transaction as every decrement so the two can never drift.
type ProductSize struct {
	ProductID  string `json:"productId"`
	Size       string `json:"size"`
	Stock      int    `json:"stock"`
	OutOfStock bool   `json:"outOfStock"`
}

type Order struct {
	ID            string        `json:"_id"`
	Code          string        `json:"orderCode"`
	Email         string        `json:"email"`
	FullName      string        `json:"fullName"`
	Phone         string        `json:"phone"`
	Address       string        `json:"address"`
	Ward          string        `json:"ward"`
	District      string        `json:"district"`
	Province      string        `json:"province"`
	PaymentMethod string        `json:"paymentMethod"`
	Note          string        `json:"note,omitempty"`
	PromoCode     string        `json:"promoCode,omitempty"`
	PromoCents    int           `json:"promoAmount"`
	ShippingCents int           `json:"shippingFee"`
	SubtotalCents int           `json:"subtotal"`
	TotalCents    int           `json:"total"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Items         []OrderItem   `json:"items"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// OrderItem is a snapshot: name, price, image and color are copied from the
// product at placement time and never follow later catalog edits.
type OrderItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Size       string `json:"size"`
	Quantity   int    `json:"quantity"`
	PriceCents int    `json:"price"`
	Color      string `json:"color,omitempty"`
	Image      string `json:"image,omitempty"`
}

type Promo struct {
	Code        string `json:"code"`
	AmountCents int    `json:"amountCents"`
	Active      bool   `json:"active"`
}

// OrderIntent is the validated, normalized form of a checkout request.
// Prices and the promo amount are resolved from the database inside the
// placement transaction; figures sent by the client are never trusted.
type OrderIntent struct {
	Email         string
	FullName      string
	Phone         string
	Address       string
	Ward          string
	District      string
	Province      string
	PaymentMethod string
	Note          string
	PromoCode     string
	ShippingCents int
	Items         []ItemIntent
}

type ItemIntent struct {
	ProductID string
	Size      string
	Quantity  int
}
