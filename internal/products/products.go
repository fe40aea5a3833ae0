package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
)

type Store interface {
	InsertProduct(ctx context.Context, np NewProduct) (Product, error)
	GetProductByID(ctx context.Context, id string) (Product, error)
	UpdateProductInDB(ctx context.Context, id string, p Product) (Product, error)
	DeleteProductFromDB(ctx context.Context, id string) error
	ListProductsFromDB(ctx context.Context, f ListFilters) ([]Product, int, error)
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

const productColumns = `id, name, description, price, compare_at_price, sku, barcode,
	inventory, requires_prescription, category_id, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CompareAtPrice, &p.SKU,
		&p.Barcode, &p.Inventory, &p.RequiresPrescription, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (c *Conf) InsertProduct(ctx context.Context, np NewProduct) (Product, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, np.CategoryID).Scan(&exists)
	if err != nil {
		return Product{}, fmt.Errorf("failed to check category: %w", err)
	}
	if !exists {
		return Product{}, ErrCategoryNotFound
	}

	p := Product{
		ID:                   uuid.NewString(),
		Name:                 np.Name,
		Description:          np.Description,
		Price:                np.Price,
		CompareAtPrice:       np.CompareAtPrice,
		SKU:                  np.SKU,
		Barcode:              np.Barcode,
		Inventory:            np.Inventory,
		RequiresPrescription: np.RequiresPrescription,
		CategoryID:           np.CategoryID,
		CreatedAt:            time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}

	query := `
		INSERT INTO products (id, name, description, price, compare_at_price, sku, barcode,
			inventory, requires_prescription, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = c.db.ExecContext(ctx, query, p.ID, p.Name, p.Description, p.Price, p.CompareAtPrice,
		p.SKU, p.Barcode, p.Inventory, p.RequiresPrescription, p.CategoryID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return p, nil
}

func (c *Conf) GetProductByID(ctx context.Context, id string) (Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	p, err := scanProduct(c.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (c *Conf) UpdateProductInDB(ctx context.Context, id string, p Product) (Product, error) {
	var exists bool
	err := c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, p.CategoryID).Scan(&exists)
	if err != nil {
		return Product{}, fmt.Errorf("failed to check category: %w", err)
	}
	if !exists {
		return Product{}, ErrCategoryNotFound
	}

	p.ID = id
	p.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, compare_at_price = $4, sku = $5, barcode = $6,
			inventory = $7, requires_prescription = $8, category_id = $9, updated_at = $10
		WHERE id = $11
	`
	res, err := c.db.ExecContext(ctx, query, p.Name, p.Description, p.Price, p.CompareAtPrice, p.SKU,
		p.Barcode, p.Inventory, p.RequiresPrescription, p.CategoryID, p.UpdatedAt, id)
	if err != nil {
		return Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Product{}, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (c *Conf) DeleteProductFromDB(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProductsFromDB applies the optional filters and returns the matching
// page plus the unpaginated count.
func (c *Conf) ListProductsFromDB(ctx context.Context, f ListFilters) ([]Product, int, error) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		ph := arg("%" + f.Query + "%")
		conds = append(conds, fmt.Sprintf("(p.name ILIKE %s OR p.description ILIKE %s)", ph, ph))
	}
	if f.CategoryID != "" {
		conds = append(conds, "p.category_id = "+arg(f.CategoryID))
	}
	if f.CategorySlug != "" {
		conds = append(conds, "p.category_id IN (SELECT id FROM categories WHERE slug = "+arg(f.CategorySlug)+")")
	}
	if f.MinPrice != nil {
		conds = append(conds, "p.price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "p.price <= "+arg(*f.MaxPrice))
	}
	if f.RequiresPrescription != nil {
		conds = append(conds, "p.requires_prescription = "+arg(*f.RequiresPrescription))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products p"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	// sort/order are matched against a fixed set, never interpolated raw
	sortCol := map[string]string{"name": "p.name", "price": "p.price", "created_at": "p.created_at"}[f.Sort]
	if sortCol == "" {
		sortCol = "p.name"
	}
	dir := "ASC"
	if strings.EqualFold(f.Order, "desc") {
		dir = "DESC"
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT p.id, p.name, p.description, p.price, p.compare_at_price, p.sku, p.barcode,
		p.inventory, p.requires_prescription, p.category_id, p.created_at, p.updated_at
		FROM products p%s ORDER BY %s %s LIMIT %s OFFSET %s`,
		where, sortCol, dir, arg(limit), arg(f.Offset))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}
	return out, total, nil
}
