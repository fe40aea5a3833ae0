package prescriptions

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
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

func createTestUser(t *testing.T, db *sql.DB) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(`INSERT INTO users (id, name, email, password_hash) VALUES ($1, $2, $3, $4)`,
		id, "Test User", id+"@example.com", "x")
	require.NoError(t, err)
	return id
}

// linkToOrder wires the prescription to a minimal order the way checkout
// does.
func linkToOrder(t *testing.T, db *sql.DB, userID, prescriptionID string) {
	t.Helper()

	addressID := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO addresses (id, user_id, full_name, address, city, zip_code, phone, is_default)
		VALUES ($1, $2, 'Test User', '1 Main St', 'Springfield', '12345', '555-0100', TRUE)`,
		addressID, userID)
	require.NoError(t, err)

	orderID := uuid.NewString()
	_, err = db.Exec(`
		INSERT INTO orders (id, order_number, user_id, address_id, shipping_method, payment_method,
			subtotal, shipping_cost, tax, total)
		VALUES ($1, $2, $3, $4, 'standard', 'card', 9.99, 4.99, 0.80, 15.78)`,
		orderID, "ORD-"+uuid.NewString()[:10], userID, addressID)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO order_prescriptions (order_id, prescription_id) VALUES ($1, $2)`,
		orderID, prescriptionID)
	require.NoError(t, err)
}

func TestDeletePrescription(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c, err := NewConf(db)
	require.NoError(t, err)
	userID := createTestUser(t, db)

	t.Run("unlinked prescription is removed", func(t *testing.T) {
		p, err := c.InsertPrescription(ctx, userID, NewPrescription{Image: "rx.jpg"})
		require.NoError(t, err)

		require.NoError(t, c.DeletePrescription(ctx, p.ID))
		_, err = c.GetPrescriptionByID(ctx, p.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("order-linked prescription is refused and survives", func(t *testing.T) {
		p, err := c.InsertPrescription(ctx, userID, NewPrescription{Image: "rx.jpg"})
		require.NoError(t, err)
		linkToOrder(t, db, userID, p.ID)

		err = c.DeletePrescription(ctx, p.ID)
		assert.ErrorIs(t, err, ErrInUse)

		got, err := c.GetPrescriptionByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := c.DeletePrescription(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
