package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var (
	ErrNotFound  = errors.New("category not found")
	ErrDuplicate = errors.New("category with this name already exists")
	ErrInUse     = errors.New("category has products")
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type NewCategory struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type Store interface {
	InsertCategory(ctx context.Context, nc NewCategory) (Category, error)
	GetCategoryByIDOrSlug(ctx context.Context, idOrSlug string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	UpdateCategory(ctx context.Context, id string, nc NewCategory) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
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

func (c *Conf) InsertCategory(ctx context.Context, nc NewCategory) (Category, error) {
	cat := Category{
		ID:          uuid.NewString(),
		Name:        nc.Name,
		Slug:        slug.Make(nc.Name),
		Description: nc.Description,
		Image:       nc.Image,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	var exists bool
	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE name = $1 OR slug = $2)`,
		cat.Name, cat.Slug).Scan(&exists)
	if err != nil {
		return Category{}, fmt.Errorf("failed to check category: %w", err)
	}
	if exists {
		return Category{}, ErrDuplicate
	}

	query := `
		INSERT INTO categories (id, name, slug, description, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.ExecContext(ctx, query, cat.ID, cat.Name, cat.Slug, cat.Description, cat.Image, cat.CreatedAt, cat.UpdatedAt)
	if err != nil {
		return Category{}, fmt.Errorf("failed to insert category: %w", err)
	}
	return cat, nil
}

func (c *Conf) GetCategoryByIDOrSlug(ctx context.Context, idOrSlug string) (Category, error) {
	var cat Category
	query := `
		SELECT id, name, slug, description, image, created_at, updated_at
		FROM categories
		WHERE id = $1 OR slug = $1
	`
	err := c.db.QueryRowContext(ctx, query, idOrSlug).
		Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.Description, &cat.Image, &cat.CreatedAt, &cat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, fmt.Errorf("failed to query category: %w", err)
	}
	return cat, nil
}

func (c *Conf) ListCategories(ctx context.Context) ([]Category, error) {
	query := `
		SELECT id, name, slug, description, image, created_at, updated_at
		FROM categories
		ORDER BY name ASC
	`
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.Description, &cat.Image, &cat.CreatedAt, &cat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return out, nil
}

func (c *Conf) UpdateCategory(ctx context.Context, id string, nc NewCategory) (Category, error) {
	cat, err := c.GetCategoryByIDOrSlug(ctx, id)
	if err != nil {
		return Category{}, err
	}

	newSlug := slug.Make(nc.Name)
	var exists bool
	err = c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE (name = $1 OR slug = $2) AND id <> $3)`,
		nc.Name, newSlug, cat.ID).Scan(&exists)
	if err != nil {
		return Category{}, fmt.Errorf("failed to check category: %w", err)
	}
	if exists {
		return Category{}, ErrDuplicate
	}

	cat.Name = nc.Name
	cat.Slug = newSlug
	cat.Description = nc.Description
	cat.Image = nc.Image
	cat.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE categories
		SET name = $1, slug = $2, description = $3, image = $4, updated_at = $5
		WHERE id = $6
	`
	_, err = c.db.ExecContext(ctx, query, cat.Name, cat.Slug, cat.Description, cat.Image, cat.UpdatedAt, cat.ID)
	if err != nil {
		return Category{}, fmt.Errorf("failed to update category: %w", err)
	}
	return cat, nil
}

func (c *Conf) DeleteCategory(ctx context.Context, id string) error {
	var inUse bool
	err := c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE category_id = $1)`, id).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("failed to check category products: %w", err)
	}
	if inUse {
		return ErrInUse
	}

	res, err := c.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
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
