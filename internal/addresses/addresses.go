// Package addresses maintains the per-user address book. At most one
// address per user carries is_default, and that flag only ever changes
// inside a transaction.
package addresses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("address not found")
	ErrInUse    = errors.New("address is used by existing orders")
)

type Address struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FullName  string    `json:"full_name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	ZipCode   string    `json:"zip_code"`
	Country   string    `json:"country"`
	Phone     string    `json:"phone"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewAddress struct {
	FullName  string `json:"full_name" validate:"required"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state"`
	ZipCode   string `json:"zip_code" validate:"required"`
	Country   string `json:"country"`
	Phone     string `json:"phone" validate:"required"`
	IsDefault bool   `json:"is_default"`
}

type Store interface {
	InsertAddress(ctx context.Context, userID string, na NewAddress) (Address, error)
	ListAddresses(ctx context.Context, userID string) ([]Address, error)
	GetAddressByID(ctx context.Context, userID, addressID string) (Address, error)
	UpdateAddress(ctx context.Context, userID, addressID string, na NewAddress) (Address, error)
	DeleteAddress(ctx context.Context, userID, addressID string) error
}

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

const addressColumns = `id, user_id, full_name, address, city, state, zip_code, country, phone, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (Address, error) {
	var a Address
	err := row.Scan(&a.ID, &a.UserID, &a.FullName, &a.Address, &a.City, &a.State,
		&a.ZipCode, &a.Country, &a.Phone, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// InsertAddress creates an address. The user's first address always becomes
// the default; an explicit default clears the flag on every sibling in the
// same transaction.
func (c *Conf) InsertAddress(ctx context.Context, userID string, na NewAddress) (Address, error) {
	a := Address{
		ID:        uuid.NewString(),
		UserID:    userID,
		FullName:  na.FullName,
		Address:   na.Address,
		City:      na.City,
		State:     na.State,
		ZipCode:   na.ZipCode,
		Country:   na.Country,
		Phone:     na.Phone,
		IsDefault: na.IsDefault,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if a.Country == "" {
		a.Country = "United States"
	}

	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM addresses WHERE user_id = $1`, userID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count addresses: %w", err)
		}
		if count == 0 {
			a.IsDefault = true
		}

		if a.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE addresses SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1`, userID); err != nil {
				return fmt.Errorf("failed to clear default flags: %w", err)
			}
		}

		query := `
			INSERT INTO addresses (id, user_id, full_name, address, city, state, zip_code, country, phone, is_default, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		if _, err := tx.ExecContext(ctx, query, a.ID, a.UserID, a.FullName, a.Address, a.City, a.State,
			a.ZipCode, a.Country, a.Phone, a.IsDefault, a.CreatedAt, a.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert address: %w", err)
		}
		return nil
	})
	if err != nil {
		return Address{}, err
	}
	return a, nil
}

func (c *Conf) ListAddresses(ctx context.Context, userID string) ([]Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, created_at`
	rows, err := c.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}
	return out, nil
}

func (c *Conf) GetAddressByID(ctx context.Context, userID, addressID string) (Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`
	a, err := scanAddress(c.db.QueryRowContext(ctx, query, addressID, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Address{}, ErrNotFound
		}
		return Address{}, fmt.Errorf("failed to query address: %w", err)
	}
	return a, nil
}

// UpdateAddress rewrites the address fields. Setting is_default clears the
// flag on all other addresses of the user within the same transaction so
// concurrent readers never observe zero or two defaults.
func (c *Conf) UpdateAddress(ctx context.Context, userID, addressID string, na NewAddress) (Address, error) {
	var a Address
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2 FOR UPDATE`
		var err error
		a, err = scanAddress(tx.QueryRowContext(ctx, query, addressID, userID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to query address: %w", err)
		}

		if na.IsDefault && !a.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE addresses SET is_default = FALSE, updated_at = NOW() WHERE user_id = $1 AND id <> $2`,
				userID, addressID); err != nil {
				return fmt.Errorf("failed to clear default flags: %w", err)
			}
		}

		a.FullName = na.FullName
		a.Address = na.Address
		a.City = na.City
		a.State = na.State
		a.ZipCode = na.ZipCode
		if na.Country != "" {
			a.Country = na.Country
		}
		a.Phone = na.Phone
		a.IsDefault = na.IsDefault
		a.UpdatedAt = time.Now().UTC()

		queryUpdate := `
			UPDATE addresses
			SET full_name = $1, address = $2, city = $3, state = $4, zip_code = $5,
				country = $6, phone = $7, is_default = $8, updated_at = $9
			WHERE id = $10
		`
		if _, err := tx.ExecContext(ctx, queryUpdate, a.FullName, a.Address, a.City, a.State,
			a.ZipCode, a.Country, a.Phone, a.IsDefault, a.UpdatedAt, a.ID); err != nil {
			return fmt.Errorf("failed to update address: %w", err)
		}
		return nil
	})
	if err != nil {
		return Address{}, err
	}
	return a, nil
}

// DeleteAddress refuses to remove an address referenced by any order. When
// the deleted address was the default and others remain, one of them is
// promoted inside the same transaction.
func (c *Conf) DeleteAddress(ctx context.Context, userID, addressID string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		query := `SELECT is_default FROM addresses WHERE id = $1 AND user_id = $2 FOR UPDATE`
		var wasDefault bool
		err := tx.QueryRowContext(ctx, query, addressID, userID).Scan(&wasDefault)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to query address: %w", err)
		}

		var inUse bool
		err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE address_id = $1)`, addressID).Scan(&inUse)
		if err != nil {
			return fmt.Errorf("failed to check address orders: %w", err)
		}
		if inUse {
			return ErrInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, addressID); err != nil {
			return fmt.Errorf("failed to delete address: %w", err)
		}

		if wasDefault {
			promote := `
				UPDATE addresses
				SET is_default = TRUE, updated_at = NOW()
				WHERE id = (
					SELECT id FROM addresses WHERE user_id = $1 ORDER BY created_at LIMIT 1
				)
			`
			if _, err := tx.ExecContext(ctx, promote, userID); err != nil {
				return fmt.Errorf("failed to promote default address: %w", err)
			}
		}
		return nil
	})
}

func (c *Conf) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		if er := tx.Rollback(); er != nil && !errors.Is(er, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("failed to rollback withTx: %w", er))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit withTx: %w", err)
	}
	return nil
}
