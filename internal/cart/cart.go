package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrItemNotFound    = errors.New("cart item not found")
)

// InsufficientStockError reports which product could not cover the
// requested quantity.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type Store interface {
	GetCart(ctx context.Context, userID string) (*Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error)
	UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) error
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

// GetCart returns the user's cart with items and product details, creating
// an empty cart on first use.
func (c *Conf) GetCart(ctx context.Context, userID string) (*Cart, error) {
	var crt *Cart
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		crt, err = c.cartForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		crt.Items, err = c.cartItems(ctx, tx, crt.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return crt, nil
}

// AddItem merges the quantity into an existing row for the same product or
// inserts a new one. The merged quantity is checked against current
// inventory before any write.
func (c *Conf) AddItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	var crt *Cart
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		crt, err = c.cartForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		var stock int
		err = tx.QueryRowContext(ctx, `SELECT inventory FROM products WHERE id = $1`, productID).Scan(&stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrProductNotFound
			}
			return fmt.Errorf("failed to query product stock: %w", err)
		}

		queryCartItem := `
			SELECT id, quantity
			FROM cart_items
			WHERE cart_id = $1 AND product_id = $2
		`
		var itemID string
		var existing int
		err = tx.QueryRowContext(ctx, queryCartItem, crt.ID, productID).Scan(&itemID, &existing)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to query cart items: %w", err)
			}
			if quantity > stock {
				return &InsufficientStockError{ProductID: productID, Requested: quantity, Available: stock}
			}
			queryAdd := `
				INSERT INTO cart_items (id, cart_id, product_id, quantity, created_at, updated_at)
				VALUES ($1, $2, $3, $4, NOW(), NOW())
			`
			if _, err := tx.ExecContext(ctx, queryAdd, uuid.NewString(), crt.ID, productID, quantity); err != nil {
				return fmt.Errorf("failed to add product to cart: %w", err)
			}
		} else {
			merged := existing + quantity
			if merged > stock {
				return &InsufficientStockError{ProductID: productID, Requested: merged, Available: stock}
			}
			queryUpdate := `
				UPDATE cart_items
				SET quantity = $1, updated_at = NOW()
				WHERE id = $2
			`
			if _, err := tx.ExecContext(ctx, queryUpdate, merged, itemID); err != nil {
				return fmt.Errorf("failed to update cart item quantity: %w", err)
			}
		}

		crt.Items, err = c.cartItems(ctx, tx, crt.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return crt, nil
}

// UpdateItem sets an absolute quantity on an item of the user's cart.
func (c *Conf) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*Cart, error) {
	var crt *Cart
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		crt, err = c.cartForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		query := `
			SELECT ci.product_id, p.inventory
			FROM cart_items ci
			JOIN products p ON p.id = ci.product_id
			WHERE ci.id = $1 AND ci.cart_id = $2
		`
		var productID string
		var stock int
		err = tx.QueryRowContext(ctx, query, itemID, crt.ID).Scan(&productID, &stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to query cart item: %w", err)
		}
		if quantity > stock {
			return &InsufficientStockError{ProductID: productID, Requested: quantity, Available: stock}
		}

		queryUpdate := `
			UPDATE cart_items
			SET quantity = $1, updated_at = NOW()
			WHERE id = $2
		`
		if _, err := tx.ExecContext(ctx, queryUpdate, quantity, itemID); err != nil {
			return fmt.Errorf("failed to update cart item quantity: %w", err)
		}

		crt.Items, err = c.cartItems(ctx, tx, crt.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return crt, nil
}

func (c *Conf) RemoveItem(ctx context.Context, userID, itemID string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		crt, err := c.cartForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, crt.ID)
		if err != nil {
			return fmt.Errorf("failed to remove cart item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return ErrItemNotFound
		}
		return nil
	})
}

// cartForUpdate locks the user's cart row for the span of the transaction,
// creating the cart when none exists yet.
func (c *Conf) cartForUpdate(ctx context.Context, tx *sql.Tx, userID string) (*Cart, error) {
	crt := &Cart{UserID: userID}

	queryCart := `
		SELECT id, created_at, updated_at
		FROM carts
		WHERE user_id = $1
		FOR UPDATE
	`
	err := tx.QueryRowContext(ctx, queryCart, userID).Scan(&crt.ID, &crt.CreatedAt, &crt.UpdatedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to query cart: %w", err)
		}
		crt.ID = uuid.NewString()
		crt.CreatedAt = time.Now().UTC()
		crt.UpdatedAt = crt.CreatedAt
		queryCreate := `
			INSERT INTO carts (id, user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.ExecContext(ctx, queryCreate, crt.ID, userID, crt.CreatedAt, crt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
	}
	return crt, nil
}

func (c *Conf) cartItems(ctx context.Context, tx *sql.Tx, cartID string) ([]CartItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
			p.id, p.name, p.description, p.price, p.compare_at_price, p.sku, p.barcode,
			p.inventory, p.requires_prescription, p.category_id, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`
	rows, err := tx.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []CartItem
	for rows.Next() {
		var item CartItem
		p := &item.Product
		err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.CompareAtPrice, &p.SKU, &p.Barcode,
			&p.Inventory, &p.RequiresPrescription, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return items, nil
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
