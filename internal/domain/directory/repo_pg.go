package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/backoffice/internal/platform/db"
)

// PGDirectory implements all directory lookups against Postgres.
type PGDirectory struct{ pool *pgxpool.Pool }

func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory { return &PGDirectory{pool: pool} }

func (d *PGDirectory) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, d.pool)
}

func (d *PGDirectory) ResolveUserID(ctx context.Context, token string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrNotFound
	}
	var userID int64
	err := d.conn(ctx).QueryRow(ctx,
		`SELECT user_id FROM members WHERE hf_id = $1 AND active = TRUE`, token).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve identity %q: %w", token, err)
	}
	return userID, nil
}

func (d *PGDirectory) ClinicName(ctx context.Context, clinicID int64) (string, error) {
	var name string
	err := d.conn(ctx).QueryRow(ctx, `SELECT name FROM clinics WHERE id = $1`, clinicID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("clinic %d name: %w", clinicID, err)
	}
	return name, nil
}

func (d *PGDirectory) PatientContact(ctx context.Context, patientID int64) (*Contact, error) {
	var email, device *string
	err := d.conn(ctx).QueryRow(ctx,
		`SELECT email, device_token FROM patient_contacts WHERE patient_id = $1`, patientID).Scan(&email, &device)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("patient %d contact: %w", patientID, err)
	}
	c := &Contact{}
	if email != nil {
		c.Email = strings.TrimSpace(*email)
	}
	if device != nil {
		c.DeviceToken = strings.TrimSpace(*device)
	}
	return c, nil
}
