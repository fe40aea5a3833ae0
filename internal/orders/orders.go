package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"pharmacy-service/internal/addresses"
	"pharmacy-service/internal/cart"
	"pharmacy-service/internal/prescriptions"
)

// uniqueViolation is the postgres error code raised when the order_number
// unique constraint trips.
const uniqueViolation = "23505"

type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Conf{db: db}, nil
}

func (c *Conf) AddressByIDAndOwner(ctx context.Context, addressID, userID string) (*addresses.Address, error) {
	query := `
		SELECT id, user_id, full_name, address, city, state, zip_code, country, phone, is_default, created_at, updated_at
		FROM addresses
		WHERE id = $1 AND user_id = $2
	`
	var a addresses.Address
	err := c.db.QueryRowContext(ctx, query, addressID, userID).
		Scan(&a.ID, &a.UserID, &a.FullName, &a.Address, &a.City, &a.State,
			&a.ZipCode, &a.Country, &a.Phone, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to query address: %w", err)
	}
	return &a, nil
}

func (c *Conf) CartWithItems(ctx context.Context, userID string) (*cart.Cart, error) {
	crt := &cart.Cart{UserID: userID}
	err := c.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM carts WHERE user_id = $1`, userID).
		Scan(&crt.ID, &crt.CreatedAt, &crt.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query cart: %w", err)
	}

	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
			p.id, p.name, p.description, p.price, p.compare_at_price, p.sku, p.barcode,
			p.inventory, p.requires_prescription, p.category_id, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`
	rows, err := c.db.QueryContext(ctx, query, crt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item cart.CartItem
		p := &item.Product
		err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
			&p.ID, &p.Name, &p.Description, &p.Price, &p.CompareAtPrice, &p.SKU, &p.Barcode,
			&p.Inventory, &p.RequiresPrescription, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		crt.Items = append(crt.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return crt, nil
}

func (c *Conf) PrescriptionsByIDsAndOwner(ctx context.Context, ids []string, userID string) ([]prescriptions.Prescription, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, image, status, notes, created_at, updated_at
		FROM prescriptions
		WHERE user_id = $1 AND id IN (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prescriptions: %w", err)
	}
	defer rows.Close()

	var out []prescriptions.Prescription
	for rows.Next() {
		var p prescriptions.Prescription
		if err := rows.Scan(&p.ID, &p.UserID, &p.Image, &p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prescription: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prescriptions: %w", err)
	}
	return out, nil
}

// CommitOrder persists the order and its side effects in one transaction:
// header, frozen items, prescription links, guarded inventory decrements,
// cart wipe. Any failure rolls the whole thing back.
func (c *Conf) CommitOrder(ctx context.Context, o *Order, cartID string) error {
	err := c.withTx(ctx, func(tx *sql.Tx) error {
		queryOrder := `
			INSERT INTO orders (id, order_number, user_id, address_id, shipping_method, payment_method,
				subtotal, shipping_cost, tax, total, status, payment_status, tracking_number, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`
		_, err := tx.ExecContext(ctx, queryOrder, o.ID, o.OrderNumber, o.UserID, o.AddressID,
			o.ShippingMethod, o.PaymentMethod, o.Subtotal, o.ShippingCost, o.Tax, o.Total,
			o.Status, o.PaymentStatus, o.TrackingNumber, o.Notes, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrOrderNumberTaken
			}
			return fmt.Errorf("failed to insert order: %w", err)
		}

		queryItem := `
			INSERT INTO order_items (id, order_id, product_id, name, price, quantity, requires_prescription)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		for _, item := range o.Items {
			_, err := tx.ExecContext(ctx, queryItem, item.ID, o.ID, item.ProductID,
				item.Name, item.Price, item.Quantity, item.RequiresPrescription)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}

		queryLink := `INSERT INTO order_prescriptions (order_id, prescription_id) VALUES ($1, $2)`
		for _, p := range o.Prescriptions {
			if _, err := tx.ExecContext(ctx, queryLink, o.ID, p.ID); err != nil {
				return fmt.Errorf("failed to link prescription: %w", err)
			}
		}

		// The inventory guard is what keeps concurrent checkouts from
		// driving stock negative: zero rows affected means someone else
		// got there first and the whole transaction aborts.
		queryDecrement := `
			UPDATE products
			SET inventory = inventory - $1, updated_at = NOW()
			WHERE id = $2 AND inventory >= $1
		`
		for _, item := range o.Items {
			res, err := tx.ExecContext(ctx, queryDecrement, item.Quantity, item.ProductID)
			if err != nil {
				return fmt.Errorf("failed to decrement inventory: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read rows affected: %w", err)
			}
			if n == 0 {
				return &InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		var stockErr *InsufficientStockError
		if errors.Is(err, ErrOrderNumberTaken) || errors.As(err, &stockErr) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrOrderCommitFailed, err)
	}
	return nil
}

const orderColumns = `id, order_number, user_id, address_id, shipping_method, payment_method,
	subtotal, shipping_cost, tax, total, status, payment_status, payment_ref, tracking_number, notes, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.AddressID, &o.ShippingMethod, &o.PaymentMethod,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Total, &o.Status, &o.PaymentStatus,
		&o.PaymentRef, &o.TrackingNumber, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (c *Conf) ListOrders(ctx context.Context, f ListFilters) ([]Order, int, error) {
	where := " WHERE 1=1"
	var args []any
	if f.UserID != "" {
		args = append(args, f.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT `+orderColumns+` FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}

	for i := range out {
		items, err := c.orderItems(ctx, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Items = items
	}
	return out, total, nil
}

func (c *Conf) OrderByID(ctx context.Context, orderID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(c.db.QueryRowContext(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	o.Items, err = c.orderItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}

	queryAddr := `
		SELECT id, user_id, full_name, address, city, state, zip_code, country, phone, is_default, created_at, updated_at
		FROM addresses
		WHERE id = $1
	`
	var a addresses.Address
	err = c.db.QueryRowContext(ctx, queryAddr, o.AddressID).
		Scan(&a.ID, &a.UserID, &a.FullName, &a.Address, &a.City, &a.State,
			&a.ZipCode, &a.Country, &a.Phone, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err == nil {
		o.Address = &a
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to query order address: %w", err)
	}

	queryRx := `
		SELECT p.id, p.user_id, p.image, p.status, p.notes, p.created_at, p.updated_at
		FROM order_prescriptions op
		JOIN prescriptions p ON p.id = op.prescription_id
		WHERE op.order_id = $1
	`
	rows, err := c.db.QueryContext(ctx, queryRx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order prescriptions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p prescriptions.Prescription
		if err := rows.Scan(&p.ID, &p.UserID, &p.Image, &p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order prescription: %w", err)
		}
		o.Prescriptions = append(o.Prescriptions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order prescriptions: %w", err)
	}
	return &o, nil
}

// UpdateOrder applies the administrative field updates; empty fields keep
// their current value. Status values are validated by the handler.
func (c *Conf) UpdateOrder(ctx context.Context, orderID string, req UpdateOrderRequest) (*Order, error) {
	query := `
		UPDATE orders
		SET status = COALESCE(NULLIF($1, ''), status),
			payment_status = COALESCE(NULLIF($2, ''), payment_status),
			tracking_number = COALESCE(NULLIF($3, ''), tracking_number),
			updated_at = $4
		WHERE id = $5
	`
	res, err := c.db.ExecContext(ctx, query, req.Status, req.PaymentStatus, req.TrackingNumber, time.Now().UTC(), orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return c.OrderByID(ctx, orderID)
}

// MarkOrderPaid flips the payment status after a confirmed payment and
// records the payment reference.
func (c *Conf) MarkOrderPaid(ctx context.Context, orderID, paymentRef string) (*Order, error) {
	query := `
		UPDATE orders
		SET payment_status = $1, payment_ref = $2, updated_at = $3
		WHERE id = $4
	`
	res, err := c.db.ExecContext(ctx, query, PaymentPaid, paymentRef, time.Now().UTC(), orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark order paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return c.OrderByID(ctx, orderID)
}

func (c *Conf) orderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, name, price, quantity, requires_prescription
		FROM order_items
		WHERE order_id = $1
	`
	rows, err := c.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name,
			&item.Price, &item.Quantity, &item.RequiresPrescription); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
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
