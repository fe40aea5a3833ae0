package addresses

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmacy-service/internal/stores/postgres"
)

// testDB connects to the database named by TEST_POSTGRES_DSN and applies
// the migrations. Tests that need it are skipped when the variable is
// unset.
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

func countDefaults(t *testing.T, db *sql.DB, userID string) int {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM addresses WHERE user_id = $1 AND is_default`, userID).Scan(&n)
	require.NoError(t, err)
	return n
}

func newTestAddress(name string, isDefault bool) NewAddress {
	return NewAddress{
		FullName:  name,
		Address:   "1 Main St",
		City:      "Springfield",
		ZipCode:   "12345",
		Phone:     "555-0100",
		IsDefault: isDefault,
	}
}

func TestInsertAddressDefaultFlag(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c, err := NewConf(db)
	require.NoError(t, err)
	userID := createTestUser(t, db)

	// first address becomes the default even when not requested
	first, err := c.InsertAddress(ctx, userID, newTestAddress("First", false))
	require.NoError(t, err)
	assert.True(t, first.IsDefault)
	assert.Equal(t, 1, countDefaults(t, db, userID))

	// a non-default second address leaves the first one alone
	second, err := c.InsertAddress(ctx, userID, newTestAddress("Second", false))
	require.NoError(t, err)
	assert.False(t, second.IsDefault)
	assert.Equal(t, 1, countDefaults(t, db, userID))

	// an explicit default steals the flag, never duplicating it
	third, err := c.InsertAddress(ctx, userID, newTestAddress("Third", true))
	require.NoError(t, err)
	assert.True(t, third.IsDefault)
	assert.Equal(t, 1, countDefaults(t, db, userID))

	got, err := c.GetAddressByID(ctx, userID, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
}

func TestUpdateAddressDefaultFlag(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c, err := NewConf(db)
	require.NoError(t, err)
	userID := createTestUser(t, db)

	first, err := c.InsertAddress(ctx, userID, newTestAddress("First", false))
	require.NoError(t, err)
	second, err := c.InsertAddress(ctx, userID, newTestAddress("Second", false))
	require.NoError(t, err)

	updated, err := c.UpdateAddress(ctx, userID, second.ID, newTestAddress("Second", true))
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)
	assert.Equal(t, 1, countDefaults(t, db, userID))

	got, err := c.GetAddressByID(ctx, userID, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
}

func TestDeleteAddressPromotesSurvivor(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c, err := NewConf(db)
	require.NoError(t, err)
	userID := createTestUser(t, db)

	// created_at drives which survivor gets promoted
	first, err := c.InsertAddress(ctx, userID, newTestAddress("First", false))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := c.InsertAddress(ctx, userID, newTestAddress("Second", false))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	third, err := c.InsertAddress(ctx, userID, newTestAddress("Third", false))
	require.NoError(t, err)

	// deleting the default promotes exactly one survivor, the oldest
	require.NoError(t, c.DeleteAddress(ctx, userID, first.ID))
	assert.Equal(t, 1, countDefaults(t, db, userID))
	got, err := c.GetAddressByID(ctx, userID, second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	// deleting a non-default leaves the default untouched
	require.NoError(t, c.DeleteAddress(ctx, userID, third.ID))
	assert.Equal(t, 1, countDefaults(t, db, userID))

	// deleting the last address leaves zero defaults and zero rows
	require.NoError(t, c.DeleteAddress(ctx, userID, second.ID))
	assert.Equal(t, 0, countDefaults(t, db, userID))
	list, err := c.ListAddresses(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteAddressNotFound(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	c, err := NewConf(db)
	require.NoError(t, err)
	userID := createTestUser(t, db)

	err = c.DeleteAddress(ctx, userID, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}
