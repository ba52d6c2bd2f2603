package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DB is the slice of pgxpool.Pool the repository needs. pgxmock satisfies it
// in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository persists availability windows and appointments in Postgres.
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	if db == nil {
		panic("schedule: db handle required")
	}
	return &Repository{db: db}
}

// WeeklyWindows returns a doctor's recurring availability for one stored
// weekday (0=Monday).
func (r *Repository) WeeklyWindows(ctx context.Context, doctorID int64, dayOfWeek int) ([]Window, error) {
	query := `
		SELECT id, doctor_id, day_of_week, start_time, end_time
		FROM doctor_availability
		WHERE doctor_id = $1 AND day_of_week = $2
		ORDER BY start_time
	`
	rows, err := r.db.Query(ctx, query, doctorID, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("schedule: availability query failed: %w", err)
	}
	defer rows.Close()

	var windows []Window
	for rows.Next() {
		var (
			w          Window
			start, end pgtype.Time
		)
		if err := rows.Scan(&w.ID, &w.DoctorID, &w.DayOfWeek, &start, &end); err != nil {
			return nil, fmt.Errorf("schedule: availability scan failed: %w", err)
		}
		w.Start = timeOfDayFromPg(start)
		w.End = timeOfDayFromPg(end)
		windows = append(windows, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: availability rows failed: %w", err)
	}
	return windows, nil
}

func timeOfDayFromPg(t pgtype.Time) TimeOfDay {
	minutes := int(t.Microseconds / int64(time.Minute/time.Microsecond))
	return TimeOfDay{Hour: minutes / 60, Minute: minutes % 60}
}

// BusyBlocks returns the non-canceled appointment intervals of a doctor on
// one calendar day.
func (r *Repository) BusyBlocks(ctx context.Context, doctorID int64, day time.Time) ([]Slot, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `
		SELECT start_at, end_at
		FROM appointments
		WHERE doctor_id = $1 AND start_at >= $2 AND start_at < $3 AND status <> 'canceled'
		ORDER BY start_at
	`
	rows, err := r.db.Query(ctx, query, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("schedule: busy block query failed: %w", err)
	}
	defer rows.Close()

	var busy []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.Start, &s.End); err != nil {
			return nil, fmt.Errorf("schedule: busy block scan failed: %w", err)
		}
		busy = append(busy, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: busy block rows failed: %w", err)
	}
	return busy, nil
}

// Book inserts an appointment after re-checking for overlap inside the same
// transaction. A lost race still trips the partial unique index on
// (doctor_id, start_at) over non-canceled rows, which also maps to
// ErrSlotTaken. Canceled rows never block a slot.
func (r *Repository) Book(ctx context.Context, doctorID, patientID int64, startAt, endAt time.Time, description string) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("schedule: begin booking tx failed: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var conflicts int
	conflictQuery := `
		SELECT COUNT(*)
		FROM appointments
		WHERE doctor_id = $1 AND status <> 'canceled' AND start_at < $3 AND end_at > $2
	`
	if err := tx.QueryRow(ctx, conflictQuery, doctorID, startAt, endAt).Scan(&conflicts); err != nil {
		return nil, fmt.Errorf("schedule: overlap check failed: %w", err)
	}
	if conflicts > 0 {
		return nil, ErrSlotTaken
	}

	insertQuery := `
		INSERT INTO appointments (doctor_id, patient_id, start_at, end_at, description, status)
		VALUES ($1, $2, $3, $4, $5, 'scheduled')
		RETURNING id
	`
	appt := &Appointment{
		DoctorID:    doctorID,
		PatientID:   patientID,
		StartAt:     startAt,
		EndAt:       endAt,
		Description: description,
		Status:      StatusScheduled,
	}
	if err := tx.QueryRow(ctx, insertQuery, doctorID, patientID, startAt, endAt, nullable(description)).Scan(&appt.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("schedule: booking insert failed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("schedule: booking commit failed: %w", err)
	}
	return appt, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// Cancel marks an appointment canceled and records the reason. Canceling an
// already-canceled appointment is a no-op that still succeeds.
func (r *Repository) Cancel(ctx context.Context, appointmentID int64, reason string) (*Appointment, error) {
	query := `
		UPDATE appointments
		SET status = 'canceled', cancel_reason = $2
		WHERE id = $1
		RETURNING id, doctor_id, patient_id, start_at, end_at, COALESCE(description, ''), status
	`
	var appt Appointment
	err := r.db.QueryRow(ctx, query, appointmentID, nullable(reason)).Scan(
		&appt.ID, &appt.DoctorID, &appt.PatientID, &appt.StartAt, &appt.EndAt, &appt.Description, &appt.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("schedule: cancel failed: %w", err)
	}
	return &appt, nil
}

// ListFilter narrows a day's appointment listing.
type ListFilter struct {
	Day          time.Time
	DoctorID     int64  // 0 means all doctors
	PatientEmail string // empty means all patients
}

// List returns a day's appointments joined with doctor and patient details.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]AppointmentDetail, error) {
	dayStart := time.Date(f.Day.Year(), f.Day.Month(), f.Day.Day(), 0, 0, 0, 0, f.Day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `
		SELECT a.id, a.doctor_id, a.patient_id, a.start_at, a.end_at,
		       COALESCE(a.description, ''), a.status,
		       d.name, p.name, p.email
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN patients p ON p.id = a.patient_id
		WHERE a.start_at >= $1 AND a.start_at < $2
		  AND ($3::bigint = 0 OR a.doctor_id = $3)
		  AND ($4::text = '' OR lower(p.email) = lower($4))
		ORDER BY a.start_at
	`
	rows, err := r.db.Query(ctx, query, dayStart, dayEnd, f.DoctorID, f.PatientEmail)
	if err != nil {
		return nil, fmt.Errorf("schedule: list query failed: %w", err)
	}
	defer rows.Close()

	var out []AppointmentDetail
	for rows.Next() {
		var d AppointmentDetail
		if err := rows.Scan(
			&d.ID, &d.DoctorID, &d.PatientID, &d.StartAt, &d.EndAt,
			&d.Description, &d.Status,
			&d.DoctorName, &d.PatientName, &d.PatientEmail,
		); err != nil {
			return nil, fmt.Errorf("schedule: list scan failed: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: list rows failed: %w", err)
	}
	return out, nil
}

// DailyStats aggregates one day's appointments, optionally narrowed to a
// doctor, with an optional condition substring count.
func (r *Repository) DailyStats(ctx context.Context, day time.Time, doctorID int64, conditionLike string) (*Stats, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'canceled')
		FROM appointments
		WHERE start_at >= $1 AND start_at < $2
		  AND ($3::bigint = 0 OR doctor_id = $3)
	`
	stats := &Stats{Date: dayStart.Format("2006-01-02")}
	if err := r.db.QueryRow(ctx, query, dayStart, dayEnd, doctorID).Scan(
		&stats.TotalAppointments, &stats.Completed, &stats.Canceled,
	); err != nil {
		return nil, fmt.Errorf("schedule: stats query failed: %w", err)
	}

	if conditionLike = strings.TrimSpace(conditionLike); conditionLike != "" {
		condQuery := `
			SELECT COUNT(a.id)
			FROM appointments a
			JOIN patients p ON p.id = a.patient_id
			WHERE a.start_at >= $1 AND a.start_at < $2
			  AND ($3::bigint = 0 OR a.doctor_id = $3)
			  AND lower(p.primary_condition) LIKE '%' || lower($4) || '%'
		`
		var count int
		if err := r.db.QueryRow(ctx, condQuery, dayStart, dayEnd, doctorID, conditionLike).Scan(&count); err != nil {
			return nil, fmt.Errorf("schedule: condition stats query failed: %w", err)
		}
		stats.ByCondition = map[string]int{conditionLike: count}
	}
	return stats, nil
}

// PatientsByReason returns the patients booked on a day whose recorded
// condition matches a substring.
func (r *Repository) PatientsByReason(ctx context.Context, day time.Time, reasonLike string, doctorID int64) ([]PatientVisit, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `
		SELECT p.name, p.email, COALESCE(p.primary_condition, ''), a.start_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.start_at >= $1 AND a.start_at < $2
		  AND a.status <> 'canceled'
		  AND ($3::bigint = 0 OR a.doctor_id = $3)
		  AND lower(p.primary_condition) LIKE '%' || lower($4) || '%'
		ORDER BY a.start_at
	`
	rows, err := r.db.Query(ctx, query, dayStart, dayEnd, doctorID, strings.TrimSpace(reasonLike))
	if err != nil {
		return nil, fmt.Errorf("schedule: patients by reason query failed: %w", err)
	}
	defer rows.Close()

	var out []PatientVisit
	for rows.Next() {
		var v PatientVisit
		if err := rows.Scan(&v.PatientName, &v.PatientEmail, &v.Condition, &v.StartAt); err != nil {
			return nil, fmt.Errorf("schedule: patients by reason scan failed: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: patients by reason rows failed: %w", err)
	}
	return out, nil
}
