package orders

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-service/internal/stores/postgres"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Ping())
	require.NoError(t, postgres.RunMigrations(db))
	return db
}

type commitFixture struct {
	userID    string
	addressID string
	productID string
}

// newCommitFixture seeds a user, an address and one product with the given
// inventory.
func newCommitFixture(t *testing.T, db *sql.DB, inventory int) commitFixture {
	t.Helper()

	f := commitFixture{
		userID:    uuid.NewString(),
		addressID: uuid.NewString(),
		productID: uuid.NewString(),
	}
	_, err := db.Exec(`INSERT INTO users (id, name, email, password_hash) VALUES ($1, $2, $3, $4)`,
		f.userID, "Test User", f.userID+"@example.com", "x")
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO addresses (id, user_id, full_name, address, city, zip_code, phone, is_default)
		VALUES ($1, $2, 'Test User', '1 Main St', 'Springfield', '12345', '555-0100', TRUE)`,
		f.addressID, f.userID)
	require.NoError(t, err)

	categoryID := uuid.NewString()
	_, err = db.Exec(`INSERT INTO categories (id, name, slug) VALUES ($1, $2, $3)`,
		categoryID, "cat-"+categoryID, "cat-"+categoryID)
	require.NoError(t, err)

	_, err = db.Exec(`
		INSERT INTO products (id, name, description, price, inventory, category_id)
		VALUES ($1, 'Ibuprofen', '200mg', 9.99, $2, $3)`,
		f.productID, inventory, categoryID)
	require.NoError(t, err)
	return f
}

func (f commitFixture) order(quantity int) *Order {
	now := time.Now().UTC()
	orderID := uuid.NewString()
	return &Order{
		ID:             orderID,
		OrderNumber:    "ORD-" + uuid.NewString()[:10],
		UserID:         f.userID,
		AddressID:      f.addressID,
		ShippingMethod: "standard",
		PaymentMethod:  "card",
		Subtotal:       decimal.RequireFromString("9.99"),
		ShippingCost:   decimal.RequireFromString("4.99"),
		Tax:            decimal.RequireFromString("0.80"),
		Total:          decimal.RequireFromString("15.78"),
		Status:         StatusPending,
		PaymentStatus:  PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		Items: []OrderItem{{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: f.productID,
			Name:      "Ibuprofen",
			Price:     decimal.RequireFromString("9.99"),
			Quantity:  quantity,
		}},
	}
}

func (f commitFixture) inventory(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT inventory FROM products WHERE id = $1`, f.productID).Scan(&n))
	return n
}

func TestCommitOrderInventoryGuard(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c, err := NewConf(db)
	require.NoError(t, err)

	t.Run("oversell aborts and persists nothing", func(t *testing.T) {
		f := newCommitFixture(t, db, 3)
		o := f.order(5)

		err := c.CommitOrder(ctx, o, uuid.NewString())
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, f.productID, stockErr.ProductID)

		assert.Equal(t, 3, f.inventory(t, db))
		_, err = c.OrderByID(ctx, o.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent commits cannot oversell the last unit", func(t *testing.T) {
		f := newCommitFixture(t, db, 1)
		first, second := f.order(1), f.order(1)

		errs := make([]error, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); errs[0] = c.CommitOrder(ctx, first, uuid.NewString()) }()
		go func() { defer wg.Done(); errs[1] = c.CommitOrder(ctx, second, uuid.NewString()) }()
		wg.Wait()

		var ok, aborted int
		for _, err := range errs {
			var stockErr *InsufficientStockError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &stockErr):
				aborted++
			default:
				t.Fatalf("unexpected commit error: %v", err)
			}
		}
		assert.Equal(t, 1, ok, "exactly one commit should win")
		assert.Equal(t, 1, aborted, "the loser should abort on stock")
		assert.Equal(t, 0, f.inventory(t, db))
	})
}

// failingRollbackDriver simulates a transaction whose rollback itself
// breaks, so both the original error and the rollback failure must come
// back from withTx.
type failingRollbackDriver struct{}

func (failingRollbackDriver) Open(string) (driver.Conn, error) { return failingRollbackConn{}, nil }

type failingRollbackConn struct{}

func (failingRollbackConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("not supported")
}
func (failingRollbackConn) Close() error              { return nil }
func (failingRollbackConn) Begin() (driver.Tx, error) { return failingRollbackTx{}, nil }

type failingRollbackTx struct{}

func (failingRollbackTx) Commit() error   { return nil }
func (failingRollbackTx) Rollback() error { return errRollbackBroken }

var errRollbackBroken = errors.New("rollback broken")

func init() {
	sql.Register("failing-rollback", failingRollbackDriver{})
}

func TestWithTxReportsRollbackFailure(t *testing.T) {
	db, err := sql.Open("failing-rollback", "")
	require.NoError(t, err)
	defer db.Close()

	c := &Conf{db: db}
	errBoom := errors.New("boom")
	err = c.withTx(context.Background(), func(tx *sql.Tx) error { return errBoom })

	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, errRollbackBroken)
}
