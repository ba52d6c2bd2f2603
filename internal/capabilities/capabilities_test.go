package capabilities

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/assigny/clinic-agent/internal/agent"
	"github.com/assigny/clinic-agent/internal/directory"
	"github.com/assigny/clinic-agent/internal/notify"
	"github.com/assigny/clinic-agent/internal/schedule"
)

func pgtypeTime(hour, minute int) pgtype.Time {
	return pgtype.Time{
		Microseconds: int64(hour*3600+minute*60) * 1_000_000,
		Valid:        true,
	}
}

type failingEmail struct{}

func (failingEmail) Send(_ context.Context, _ notify.EmailMessage) error {
	return errors.New("smtp down")
}

func newTestDeps(t *testing.T, email notify.EmailSender) (pgxmock.PgxPoolIface, Deps) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	dir := directory.NewRepository(mock)
	repo := schedule.NewRepository(mock)
	sched := schedule.NewService(dir, repo, nil)

	var notifier *notify.Service
	if email != nil {
		notifier = notify.NewService(email, nil, nil, nil)
	}
	return mock, Deps{Schedule: sched, Notify: notifier}
}

func TestRegisterInstallsAllCapabilities(t *testing.T) {
	_, deps := newTestDeps(t, nil)
	reg := agent.NewRegistry()
	require.NoError(t, Register(reg, deps))

	wantPatient := map[string]bool{
		"check_doctor_availability": true,
		"book_appointment":          true,
		"cancel_appointment":        true,
		"next_availability":         true,
	}
	patientView := reg.List(agent.RolePatient)
	require.Len(t, patientView, len(wantPatient))
	for _, d := range patientView {
		require.True(t, wantPatient[d.Name], "unexpected patient capability %s", d.Name)
	}

	doctorView := reg.List(agent.RoleDoctor)
	names := make(map[string]bool, len(doctorView))
	for _, d := range doctorView {
		names[d.Name] = true
	}
	for _, doctorOnly := range []string{"list_appointments", "appointment_stats", "patients_by_reason"} {
		require.True(t, names[doctorOnly], "doctor missing %s", doctorOnly)
	}
	require.False(t, names["book_appointment"], "booking must be patient-only")
}

func TestCheckAvailabilityRun(t *testing.T) {
	mock, deps := newTestDeps(t, nil)
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC) // Wednesday

	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("Ahuja").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "specialty"}).
			AddRow(int64(1), "Dr. Ahuja", "ahuja@example.com", "General Physician"))
	mock.ExpectQuery("SELECT id, doctor_id, day_of_week").
		WithArgs(int64(1), 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "doctor_id", "day_of_week", "start_time", "end_time"}).
			AddRow(int64(10), int64(1), 2, pgtypeTime(9, 0), pgtypeTime(12, 0)))
	mock.ExpectQuery("SELECT start_at, end_at").
		WithArgs(int64(1), day, day.AddDate(0, 0, 1)).
		WillReturnRows(pgxmock.NewRows([]string{"start_at", "end_at"}))

	got, err := deps.checkAvailability(context.Background(), agent.Args{
		"doctor_name": "Ahuja",
		"date":        "2026-09-02",
		"part_of_day": "morning",
	})
	require.NoError(t, err)

	result, ok := got.(AvailabilityResult)
	require.True(t, ok, "got %T", got)
	require.Equal(t, "Dr. Ahuja", result.DoctorName)
	require.Len(t, result.Slots, 6)
	require.Equal(t, "09:00", result.Slots[0].Start)
	require.Contains(t, result.Summarize(), "6 open slots")
}

func TestCheckAvailabilityUnknownDoctor(t *testing.T) {
	mock, deps := newTestDeps(t, nil)

	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("Strange").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "specialty"}))

	_, err := deps.checkAvailability(context.Background(), agent.Args{
		"doctor_name": "Strange",
		"date":        "2026-09-02",
	})
	var notFound *agent.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestBookAppointmentConflictBecomesConflictError(t *testing.T) {
	mock, deps := newTestDeps(t, nil)
	start := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("Ahuja").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "specialty"}).
			AddRow(int64(1), "Dr. Ahuja", "ahuja@example.com", ""))
	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("john@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "primary_condition"}).
			AddRow(int64(2), "John Doe", "john@example.com", "fever"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1), start, start.Add(30*time.Minute)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := deps.bookAppointment(context.Background(), agent.Args{
		"doctor_name":   "Ahuja",
		"patient_email": "john@example.com",
		"start_at":      start,
		"end_at":        start.Add(30 * time.Minute),
		"description":   "",
	})
	var conflict *agent.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestBookAppointmentEmailFailureIsPartial(t *testing.T) {
	mock, deps := newTestDeps(t, failingEmail{})
	start := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("Ahuja").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "specialty"}).
			AddRow(int64(1), "Dr. Ahuja", "ahuja@example.com", ""))
	mock.ExpectQuery("SELECT id, name, email").
		WithArgs("john@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email", "primary_condition"}).
			AddRow(int64(2), "John Doe", "john@example.com", "fever"))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(int64(1), start, end).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(int64(1), int64(2), start, end, nil).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(41)))
	mock.ExpectCommit()
	mock.ExpectRollback()

	got, err := deps.bookAppointment(context.Background(), agent.Args{
		"doctor_name":   "Ahuja",
		"patient_email": "john@example.com",
		"start_at":      start,
		"end_at":        end,
		"description":   "",
	})
	require.NoError(t, err)

	partial, ok := got.(agent.PartialResult)
	require.True(t, ok, "booking with failed email must be a partial result, got %T", got)
	require.Len(t, partial.Warnings, 1)

	booking, ok := partial.Data.(BookingResult)
	require.True(t, ok)
	require.Equal(t, int64(41), booking.AppointmentID)
	require.Equal(t, "scheduled", booking.Status)
}

func TestCancelUnknownAppointment(t *testing.T) {
	mock, deps := newTestDeps(t, nil)

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(int64(999), nil).
		WillReturnRows(pgxmock.NewRows([]string{"id", "doctor_id", "patient_id", "start_at", "end_at", "description", "status"}))

	_, err := deps.cancelAppointment(context.Background(), agent.Args{"appointment_id": int64(999)})
	var notFound *agent.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestAppointmentStatsWithoutNotify(t *testing.T) {
	mock, deps := newTestDeps(t, nil)
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(day, day.AddDate(0, 0, 1), int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"total", "completed", "canceled"}).AddRow(7, 2, 1))

	got, err := deps.appointmentStats(context.Background(), agent.Args{
		"for_date": "2026-09-02",
		"notify":   false,
	})
	require.NoError(t, err)

	stats, ok := got.(StatsResult)
	require.True(t, ok)
	require.Equal(t, 7, stats.TotalAppointments)
	require.Contains(t, stats.Summarize(), "7 appointments")
}

func TestAppointmentStatsNotifyWithoutChannelIsPartial(t *testing.T) {
	mock, deps := newTestDeps(t, nil)
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(day, day.AddDate(0, 0, 1), int64(0)).
		WillReturnRows(pgxmock.NewRows([]string{"total", "completed", "canceled"}).AddRow(3, 0, 0))

	got, err := deps.appointmentStats(context.Background(), agent.Args{
		"for_date": "2026-09-02",
		"notify":   true,
	})
	require.NoError(t, err)

	partial, ok := got.(agent.PartialResult)
	require.True(t, ok, "stats with unreachable channel must be partial, got %T", got)
	require.NotEmpty(t, partial.Warnings)
}

func TestSummaries(t *testing.T) {
	empty := AvailabilityResult{DoctorName: "Dr. Ahuja", Date: "2026-09-02"}
	require.Contains(t, empty.Summarize(), "no open slots")

	cancel := CancelResult{AppointmentID: 41, StartAt: "2026-09-02 09:00", Status: "canceled"}
	require.Contains(t, cancel.Summarize(), "canceled")

	listEmpty := ListResult{Date: "2026-09-02"}
	require.Contains(t, listEmpty.Summarize(), "no appointments")

	byReason := PatientsByReasonResult{Date: "2026-09-02", Reason: "fever"}
	require.Contains(t, byReason.Summarize(), "No patients with fever")
}
