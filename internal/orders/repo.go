package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// PlaceOrder runs the whole checkout in one transaction: promo lookup,
// per-item stock reservation, out-of-stock flag refresh, order insert.
// Any failure aborts the lot; stock is never decremented without the order
// row existing and vice versa. Items are reserved sequentially so a
// shortage is always attributable to a specific line item.
func (r *Repo) PlaceOrder(ctx context.Context, intent *OrderIntent) (*Order, error) {
	if len(intent.Items) == 0 {
		return nil, ErrNoItems
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	promoCents := 0
	if intent.PromoCode != "" {
		err := tx.QueryRow(ctx,
			`SELECT amount_cents FROM promos WHERE code=$1 AND active`,
			intent.PromoCode).Scan(&promoCents)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPromoInvalid
		}
		if err != nil {
			return nil, err
		}
	}

	subtotal := 0
	items := make([]OrderItem, 0, len(intent.Items))
	for _, it := range intent.Items {
		line, err := r.reserve(ctx, tx, it)
		if err != nil {
			return nil, err
		}
		subtotal += line.PriceCents * line.Quantity
		items = append(items, *line)
	}

	total := subtotal - promoCents + intent.ShippingCents
	if total < 0 {
		total = 0
	}

	now := time.Now().UTC()
	o := &Order{
		ID:            uuid.NewString(),
		Code:          NewCode(now),
		Email:         intent.Email,
		FullName:      intent.FullName,
		Phone:         intent.Phone,
		Address:       intent.Address,
		Ward:          intent.Ward,
		District:      intent.District,
		Province:      intent.Province,
		PaymentMethod: intent.PaymentMethod,
		Note:          intent.Note,
		PromoCode:     intent.PromoCode,
		PromoCents:    promoCents,
		ShippingCents: intent.ShippingCents,
		SubtotalCents: subtotal,
		TotalCents:    total,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		Items:         items,
		CreatedAt:     now,
	}

	ct, err := tx.Exec(ctx, `
		INSERT INTO orders(id, code, email, full_name, phone, address, ward, district, province,
		                   payment_method, note, promo_code, promo_cents, shipping_cents,
		                   subtotal_cents, total_cents, status, payment_status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		o.ID, o.Code, o.Email, o.FullName, o.Phone, o.Address, o.Ward, o.District, o.Province,
		o.PaymentMethod, o.Note, o.PromoCode, o.PromoCents, o.ShippingCents,
		o.SubtotalCents, o.TotalCents, o.Status, o.PaymentStatus, o.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return nil, ErrOrderWriteFailed
	}

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, name, size, qty, price_cents, color, image)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			o.ID, it.ProductID, it.Name, it.Size, it.Quantity, it.PriceCents, it.Color, it.Image,
		); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return o, nil
}

// reserve checks and decrements one per-size counter. The decrement is
// conditional on the counter still covering the quantity at write time, so
// two checkouts racing for the same size cannot both take the last units:
// the loser matches zero rows and the transaction aborts.
func (r *Repo) reserve(ctx context.Context, tx pgx.Tx, it ItemIntent) (*OrderItem, error) {
	var (
		name, color, image string
		price, stock       int
	)
	err := tx.QueryRow(ctx, `
		SELECT p.name, p.color, p.image, p.price_cents, ps.stock
		FROM products p
		JOIN product_sizes ps ON ps.product_id = p.id
		WHERE p.id=$1 AND ps.size=$2`,
		it.ProductID, it.Size).Scan(&name, &color, &image, &price, &stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &ProductNotFoundError{ProductID: it.ProductID, Size: it.Size}
	}
	if err != nil {
		return nil, err
	}
	if stock < it.Quantity {
		return nil, &InsufficientStockError{
			ProductName: name, Size: it.Size, Requested: it.Quantity, Available: stock,
		}
	}

	ct, err := tx.Exec(ctx, `
		UPDATE product_sizes SET stock = stock - $3
		WHERE product_id=$1 AND size=$2 AND stock >= $3`,
		it.ProductID, it.Size, it.Quantity)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		// another transaction consumed the stock between our read and write
		return nil, ErrConcurrentStockChange
	}

	if err := r.refreshFlags(ctx, tx, it.ProductID, it.Size); err != nil {
		return nil, err
	}

	return &OrderItem{
		ProductID:  it.ProductID,
		Name:       name,
		Size:       it.Size,
		Quantity:   it.Quantity,
		PriceCents: price,
		Color:      color,
		Image:      image,
	}, nil
}

// refreshFlags rederives the denormalized out-of-stock booleans from the
// counters, inside the caller's transaction. Per-size flag is true iff that
// counter hit zero; the product flag is true iff every size is at zero.
func (r *Repo) refreshFlags(ctx context.Context, tx pgx.Tx, productID, size string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE product_sizes SET out_of_stock = (stock = 0)
		WHERE product_id=$1 AND size=$2`, productID, size); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE products SET
			out_of_stock = (SELECT bool_and(ps.stock = 0) FROM product_sizes ps WHERE ps.product_id = products.id),
			updated_at = now()
		WHERE id=$1`, productID)
	return err
}

// ListByEmail returns the shopper's orders newest-first, items attached.
func (r *Repo) ListByEmail(ctx context.Context, email string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, code, email, full_name, phone, address, ward, district, province,
		       payment_method, note, promo_code, promo_cents, shipping_cents,
		       subtotal_cents, total_cents, status, payment_status, created_at
		FROM orders WHERE email=$1 ORDER BY created_at DESC`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	byID := map[string]int{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Code, &o.Email, &o.FullName, &o.Phone, &o.Address,
			&o.Ward, &o.District, &o.Province, &o.PaymentMethod, &o.Note, &o.PromoCode,
			&o.PromoCents, &o.ShippingCents, &o.SubtotalCents, &o.TotalCents,
			&o.Status, &o.PaymentStatus, &o.CreatedAt); err != nil {
			return nil, err
		}
		byID[o.ID] = len(out)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	for _, o := range out {
		ids = append(ids, o.ID)
	}
	irows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, name, size, qty, price_cents, color, image
		FROM order_items WHERE order_id::text = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, err
	}
	defer irows.Close()
	for irows.Next() {
		var oid string
		var it OrderItem
		if err := irows.Scan(&oid, &it.ProductID, &it.Name, &it.Size, &it.Quantity,
			&it.PriceCents, &it.Color, &it.Image); err != nil {
			return nil, err
		}
		if i, ok := byID[oid]; ok {
			out[i].Items = append(out[i].Items, it)
		}
	}
	return out, irows.Err()
}

// GetStatus looks an order up by its public code.
func (r *Repo) GetStatus(ctx context.Context, code string) (Status, PaymentStatus, error) {
	var s Status
	var p PaymentStatus
	err := r.DB.QueryRow(ctx,
		`SELECT status, payment_status FROM orders WHERE code=$1`, code).Scan(&s, &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", ErrOrderNotFound
	}
	if err != nil {
		return "", "", err
	}
	return s, p, nil
}

// UpdateStatus advances an order through the fixed lifecycle. The current
// status is read under a row lock so two admins cannot race the same order
// into an illegal state.
func (r *Repo) UpdateStatus(ctx context.Context, code string, to Status) (Status, error) {
	if !ValidStatus(to) {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var from Status
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE code=$1 FOR UPDATE`, code).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}
	if !CanTransition(from, to) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2 WHERE code=$1`, code, to); err != nil {
		return "", err
	}
	return from, tx.Commit(ctx)
}

func (r *Repo) UpdatePaymentStatus(ctx context.Context, code string, to PaymentStatus) error {
	if !ValidPaymentStatus(to) {
		return fmt.Errorf("%w: unknown payment status %q", ErrInvalidTransition, to)
	}
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET payment_status=$2 WHERE code=$1`, code, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}
