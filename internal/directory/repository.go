package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Querier is satisfied by *pgxpool.Pool and by pgxmock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository looks up doctors and patients in the relational database.
type Repository struct {
	db Querier
}

// NewRepository initializes a repo backed by a pgx pool (or mock).
func NewRepository(db Querier) *Repository {
	if db == nil {
		panic("directory: db handle required")
	}
	return &Repository{db: db}
}

// DoctorByName fetches a doctor by name, case-insensitively. Callers may say
// "Ahuja" for a doctor stored as "Dr. Ahuja", so the honorific is tolerated.
func (r *Repository) DoctorByName(ctx context.Context, name string) (*Doctor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrDoctorNotFound
	}

	query := `
		SELECT id, name, email, COALESCE(specialty, '')
		FROM doctors
		WHERE lower(name) = lower($1) OR lower(name) = lower('Dr. ' || $1)
	`
	var doc Doctor
	if err := r.db.QueryRow(ctx, query, name).Scan(&doc.ID, &doc.Name, &doc.Email, &doc.Specialty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("directory: doctor lookup failed: %w", err)
	}
	return &doc, nil
}

// PatientByEmail fetches a patient by email, case-insensitively.
func (r *Repository) PatientByEmail(ctx context.Context, email string) (*Patient, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrPatientNotFound
	}

	query := `
		SELECT id, name, email, COALESCE(primary_condition, '')
		FROM patients
		WHERE lower(email) = lower($1)
	`
	var pt Patient
	if err := r.db.QueryRow(ctx, query, email).Scan(&pt.ID, &pt.Name, &pt.Email, &pt.PrimaryCondition); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("directory: patient lookup failed: %w", err)
	}
	return &pt, nil
}
