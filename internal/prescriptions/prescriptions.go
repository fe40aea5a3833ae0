// Package prescriptions stores uploaded prescriptions and their review
// lifecycle: PENDING on upload, then APPROVED or REJECTED by a reviewer.
package prescriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

var (
	ErrNotFound      = errors.New("prescription not found")
	ErrInvalidStatus = errors.New("invalid prescription status")
	ErrInUse         = errors.New("prescription is linked to existing orders")
)

type Prescription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Image     string    `json:"image"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type NewPrescription struct {
	Image string `json:"image" validate:"required"`
	Notes string `json:"notes"`
}

// ListFilters scopes listing. Empty UserID means all users (reviewer view).
type ListFilters struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

type Store interface {
	InsertPrescription(ctx context.Context, userID string, np NewPrescription) (Prescription, error)
	ListPrescriptions(ctx context.Context, f ListFilters) ([]Prescription, int, error)
	GetPrescriptionByID(ctx context.Context, id string) (Prescription, error)
	ReviewPrescription(ctx context.Context, id, status, notes string) (Prescription, error)
	DeletePrescription(ctx context.Context, id string) error
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

const prescriptionColumns = `id, user_id, image, status, notes, created_at, updated_at`

func scanPrescription(row interface{ Scan(...any) error }) (Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.UserID, &p.Image, &p.Status, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (c *Conf) InsertPrescription(ctx context.Context, userID string, np NewPrescription) (Prescription, error) {
	p := Prescription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Image:     np.Image,
		Status:    StatusPending,
		Notes:     np.Notes,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO prescriptions (id, user_id, image, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := c.db.ExecContext(ctx, query, p.ID, p.UserID, p.Image, p.Status, p.Notes, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Prescription{}, fmt.Errorf("failed to insert prescription: %w", err)
	}
	return p, nil
}

func (c *Conf) ListPrescriptions(ctx context.Context, f ListFilters) ([]Prescription, int, error) {
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
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prescriptions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count prescriptions: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, f.Offset)
	query := fmt.Sprintf(`SELECT `+prescriptionColumns+` FROM prescriptions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query prescriptions: %w", err)
	}
	defer rows.Close()

	var out []Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan prescription: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating prescriptions: %w", err)
	}
	return out, total, nil
}

func (c *Conf) GetPrescriptionByID(ctx context.Context, id string) (Prescription, error) {
	query := `SELECT ` + prescriptionColumns + ` FROM prescriptions WHERE id = $1`
	p, err := scanPrescription(c.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prescription{}, ErrNotFound
		}
		return Prescription{}, fmt.Errorf("failed to query prescription: %w", err)
	}
	return p, nil
}

// ReviewPrescription moves a prescription to APPROVED or REJECTED. Notes
// are kept when the reviewer supplies none.
func (c *Conf) ReviewPrescription(ctx context.Context, id, status, notes string) (Prescription, error) {
	if status != StatusApproved && status != StatusRejected && status != StatusPending {
		return Prescription{}, ErrInvalidStatus
	}

	p, err := c.GetPrescriptionByID(ctx, id)
	if err != nil {
		return Prescription{}, err
	}
	if notes != "" {
		p.Notes = notes
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE prescriptions
		SET status = $1, notes = $2, updated_at = $3
		WHERE id = $4
	`
	if _, err := c.db.ExecContext(ctx, query, p.Status, p.Notes, p.UpdatedAt, id); err != nil {
		return Prescription{}, fmt.Errorf("failed to update prescription: %w", err)
	}
	return p, nil
}

// DeletePrescription refuses to remove a prescription already consumed by
// an order. The row lock keeps a concurrent checkout from linking the
// prescription between the in-use check and the delete.
func (c *Conf) DeletePrescription(ctx context.Context, id string) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, `SELECT TRUE FROM prescriptions WHERE id = $1 FOR UPDATE`, id).Scan(&exists)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to query prescription: %w", err)
		}

		var inUse bool
		err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM order_prescriptions WHERE prescription_id = $1)`, id).Scan(&inUse)
		if err != nil {
			return fmt.Errorf("failed to check prescription orders: %w", err)
		}
		if inUse {
			return ErrInUse
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete prescription: %w", err)
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
