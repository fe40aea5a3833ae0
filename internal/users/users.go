package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Store is the contract the handlers depend on.
type Store interface {
	InsertUser(ctx context.Context, nu NewUser) (User, error)
	AuthenticateUser(ctx context.Context, email, password string) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	UpdateUserProfile(ctx context.Context, id string, up UpdateUser) (User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]User, int, error)
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

func (c *Conf) InsertUser(ctx context.Context, nu NewUser) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	var exists bool
	err = c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, nu.Email).Scan(&exists)
	if err != nil {
		return User{}, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return User{}, ErrEmailTaken
	}

	user := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      "USER",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO users (id, name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, string(hash), user.Role, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (c *Conf) AuthenticateUser(ctx context.Context, email, password string) (User, error) {
	var u User
	query := `
		SELECT id, name, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	err := c.db.QueryRowContext(ctx, query, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (c *Conf) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	query := `
		SELECT id, name, email, password_hash, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	err := c.db.QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (c *Conf) UpdateUserProfile(ctx context.Context, id string, up UpdateUser) (User, error) {
	u, err := c.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if up.Email != "" && up.Email != u.Email {
		var exists bool
		err = c.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1 AND id <> $2)`, up.Email, id).Scan(&exists)
		if err != nil {
			return User{}, fmt.Errorf("failed to check email: %w", err)
		}
		if exists {
			return User{}, ErrEmailTaken
		}
		u.Email = up.Email
	}
	if up.Name != "" {
		u.Name = up.Name
	}

	passwordHash := u.PasswordHash
	if up.NewPassword != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(up.CurrentPassword)); err != nil {
			return User{}, ErrInvalidCredentials
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(up.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = string(hash)
	}

	u.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE users
		SET name = $1, email = $2, password_hash = $3, updated_at = $4
		WHERE id = $5
	`
	_, err = c.db.ExecContext(ctx, query, u.Name, u.Email, passwordHash, u.UpdatedAt, id)
	if err != nil {
		return User{}, fmt.Errorf("failed to update user: %w", err)
	}
	u.PasswordHash = passwordHash
	return u, nil
}

func (c *Conf) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `
		SELECT id, name, email, role, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := c.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating users: %w", err)
	}
	return out, total, nil
}
