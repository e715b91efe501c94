package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/dvtrung/wardrobe-orders/internal/postgres"
)

func setupRepo(t *testing.T) (*Repo, func()) {
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())
	require.NoError(t, postgres.Migrate(dsn, "../../migrations"))

	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return &Repo{DB: pool}, cleanup
}

func seedProduct(t *testing.T, r *Repo, id, name string, priceCents int, sizes map[string]int) {
	t.Helper()
	ctx := context.Background()
	_, err := r.DB.Exec(ctx,
		`INSERT INTO products(id, name, image, color, price_cents) VALUES ($1,$2,'','black',$3)`,
		id, name, priceCents)
	require.NoError(t, err)
	for size, stock := range sizes {
		_, err := r.DB.Exec(ctx,
			`INSERT INTO product_sizes(product_id, size, stock, out_of_stock) VALUES ($1,$2,$3,$3=0)`,
			id, size, stock)
		require.NoError(t, err)
	}
}

func sizeState(t *testing.T, r *Repo, id, size string) (stock int, flag bool) {
	t.Helper()
	err := r.DB.QueryRow(context.Background(),
		`SELECT stock, out_of_stock FROM product_sizes WHERE product_id=$1 AND size=$2`,
		id, size).Scan(&stock, &flag)
	require.NoError(t, err)
	return stock, flag
}

func productFlag(t *testing.T, r *Repo, id string) bool {
	t.Helper()
	var flag bool
	err := r.DB.QueryRow(context.Background(),
		`SELECT out_of_stock FROM products WHERE id=$1`, id).Scan(&flag)
	require.NoError(t, err)
	return flag
}

func orderCount(t *testing.T, r *Repo) int {
	t.Helper()
	var n int
	err := r.DB.QueryRow(context.Background(), `SELECT COUNT(*) FROM orders`).Scan(&n)
	require.NoError(t, err)
	return n
}

func intentFor(items ...ItemIntent) *OrderIntent {
	return &OrderIntent{
		Email:         "an.nguyen@example.com",
		FullName:      "Nguyen Van An",
		Phone:         "0901234567",
		Address:       "12 Le Loi",
		Ward:          "Ben Nghe",
		District:      "1",
		Province:      "Ho Chi Minh",
		PaymentMethod: "cod",
		ShippingCents: 3000,
		Items:         items,
	}
}

func TestPlaceOrder_Success(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	seedProduct(t, repo, "tee-1", "Basic Tee", 15000, map[string]int{"M": 3, "L": 5})

	o, err := repo.PlaceOrder(ctx, intentFor(ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 2}))
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.NotEmpty(t, o.ID)
	assert.Regexp(t, `^ORD\d{14}-[0-9A-F]{4}$`, o.Code)
	assert.Equal(t, 30000, o.SubtotalCents)
	assert.Equal(t, 33000, o.TotalCents) // subtotal + shipping
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Basic Tee", o.Items[0].Name)
	assert.Equal(t, 15000, o.Items[0].PriceCents)

	stock, flag := sizeState(t, repo, "tee-1", "M")
	assert.Equal(t, 1, stock)
	assert.False(t, flag)
	assert.Equal(t, 1, orderCount(t, repo))

	// persisted row matches what was returned
	st, pay, err := repo.GetStatus(ctx, o.Code)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, st)
	assert.Equal(t, PaymentPending, pay)
}

func TestPlaceOrder_InsufficientStock_FullRollback(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	seedProduct(t, repo, "tee-1", "Basic Tee", 15000, map[string]int{"M": 3, "L": 5})

	// first line is fine, second overshoots: nothing may stick
	intent := intentFor(
		ItemIntent{ProductID: "tee-1", Size: "L", Quantity: 1},
		ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 10},
	)
	_, err := repo.PlaceOrder(ctx, intent)

	var is *InsufficientStockError
	require.True(t, errors.As(err, &is))
	assert.Equal(t, "Basic Tee", is.ProductName)
	assert.Equal(t, "M", is.Size)
	assert.Equal(t, 3, is.Available)
	assert.Equal(t, "Insufficient quantity for product Basic Tee (Size M). Available: 3", err.Error())

	mStock, _ := sizeState(t, repo, "tee-1", "M")
	lStock, _ := sizeState(t, repo, "tee-1", "L")
	assert.Equal(t, 3, mStock)
	assert.Equal(t, 5, lStock)
	assert.Equal(t, 0, orderCount(t, repo))

	// retrying without restocking fails identically
	_, err2 := repo.PlaceOrder(ctx, intent)
	require.Error(t, err2)
	assert.Equal(t, err.Error(), err2.Error())
	assert.Equal(t, 0, orderCount(t, repo))
}

func TestPlaceOrder_OutOfStockFlags(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	seedProduct(t, repo, "tee-1", "Basic Tee", 15000, map[string]int{"M": 3, "L": 5})

	_, err := repo.PlaceOrder(ctx, intentFor(ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 3}))
	require.NoError(t, err)

	stock, flag := sizeState(t, repo, "tee-1", "M")
	assert.Equal(t, 0, stock)
	assert.True(t, flag)
	assert.False(t, productFlag(t, repo, "tee-1"), "L still in stock")

	// the whole product flips only when every size is gone
	_, err = repo.PlaceOrder(ctx, intentFor(ItemIntent{ProductID: "tee-1", Size: "L", Quantity: 5}))
	require.NoError(t, err)
	assert.True(t, productFlag(t, repo, "tee-1"))

	// one more unit of M must fail with available=0
	_, err = repo.PlaceOrder(ctx, intentFor(ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 1}))
	var is *InsufficientStockError
	require.True(t, errors.As(err, &is))
	assert.Equal(t, 0, is.Available)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	seedProduct(t, repo, "tee-1", "Basic Tee", 15000, map[string]int{"M": 3})

	_, err := repo.PlaceOrder(ctx, intentFor(ItemIntent{ProductID: "ghost", Size: "M", Quantity: 1}))
	var nf *ProductNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "ghost", nf.ProductID)

	// known product, size it is not sold in
	_, err = repo.PlaceOrder(ctx, intentFor(ItemIntent{ProductID: "tee-1", Size: "XXL", Quantity: 1}))
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "XXL", nf.Size)

	assert.Equal(t, 0, orderCount(t, repo))
}

func TestPlaceOrder_Promo(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	seedProduct(t, repo, "tee-1", "Basic Tee", 15000, map[string]int{"M": 3})
	_, err := repo.DB.Exec(ctx, `INSERT INTO promos(code, amount_cents, active) VALUES ('SALE10', 10000, TRUE), ('OLD', 5000, FALSE)`)
	require.NoError(t, err)

	intent := intentFor(ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 2})
	intent.PromoCode = "SALE10"
	o, err := repo.PlaceOrder(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, 10000, o.PromoCents)
	assert.Equal(t, 30000-10000+3000, o.TotalCents)

	bad := intentFor(ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 1})
	bad.PromoCode = "NOPE"
	_, err = repo.PlaceOrder(ctx, bad)
	assert.ErrorIs(t, err, ErrPromoInvalid)

	inactive := intentFor(ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 1})
	inactive.PromoCode = "OLD"
	_, err = repo.PlaceOrder(ctx, inactive)
	assert.ErrorIs(t, err, ErrPromoInvalid)

	// failed promo attempts must not have touched stock
	stock, _ := sizeState(t, repo, "tee-1", "M")
	assert.Equal(t, 1, stock)
}

func TestPlaceOrder_ConcurrentCheckouts(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	seedProduct(t, repo, "tee-1", "Basic Tee", 15000, map[string]int{"M": 5})

	var g errgroup.Group
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, err := repo.PlaceOrder(ctx, intentFor(ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 5}))
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, failed int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		failed++
		// the loser either saw the depleted counter up front or lost the
		// conditional decrement after blocking on the winner's row lock
		var is *InsufficientStockError
		stockErr := errors.As(err, &is) || errors.Is(err, ErrConcurrentStockChange)
		assert.True(t, stockErr, "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok, "exactly one checkout may win")
	assert.Equal(t, 1, failed)

	stock, flag := sizeState(t, repo, "tee-1", "M")
	assert.Equal(t, 0, stock, "total decremented quantity never exceeds pre-existing stock")
	assert.True(t, flag)
	assert.Equal(t, 1, orderCount(t, repo))
}

func TestListByEmail_NewestFirst(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	seedProduct(t, repo, "tee-1", "Basic Tee", 15000, map[string]int{"M": 10})

	first, err := repo.PlaceOrder(ctx, intentFor(ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 1}))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	second, err := repo.PlaceOrder(ctx, intentFor(ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 2}))
	require.NoError(t, err)

	list, err := repo.ListByEmail(ctx, "an.nguyen@example.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.Code, list[0].Code)
	assert.Equal(t, first.Code, list[1].Code)
	require.Len(t, list[0].Items, 1)
	assert.Equal(t, 2, list[0].Items[0].Quantity)

	other, err := repo.ListByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestUpdateStatus(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	seedProduct(t, repo, "tee-1", "Basic Tee", 15000, map[string]int{"M": 10})
	o, err := repo.PlaceOrder(ctx, intentFor(ItemIntent{ProductID: "tee-1", Size: "M", Quantity: 1}))
	require.NoError(t, err)

	from, err := repo.UpdateStatus(ctx, o.Code, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, from)

	// skipping straight to success is not a legal move
	_, err = repo.UpdateStatus(ctx, o.Code, StatusSuccess)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	st, _, err := repo.GetStatus(ctx, o.Code)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, st)

	_, err = repo.UpdateStatus(ctx, "ORD00000000000000-XXXX", StatusConfirmed)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	require.NoError(t, repo.UpdatePaymentStatus(ctx, o.Code, PaymentPaid))
	_, pay, err := repo.GetStatus(ctx, o.Code)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, pay)
}
