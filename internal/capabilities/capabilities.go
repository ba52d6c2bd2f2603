// Package capabilities binds the scheduling domain to the agent's capability
// registry: one descriptor per backend operation, with typed argument schemas
// and role restrictions.
package capabilities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/assigny/clinic-agent/internal/agent"
	"github.com/assigny/clinic-agent/internal/directory"
	"github.com/assigny/clinic-agent/internal/notify"
	"github.com/assigny/clinic-agent/internal/schedule"
	"github.com/assigny/clinic-agent/pkg/logging"
)

// Deps are the collaborators the capability run functions close over.
type Deps struct {
	Schedule *schedule.Service
	Notify   *notify.Service
	Logger   *logging.Logger
}

// Register installs every capability into the registry. Called once during
// startup, before the registry is sealed.
func Register(reg *agent.Registry, deps Deps) error {
	if deps.Schedule == nil {
		return errors.New("capabilities: schedule service is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}

	descriptors := []agent.Descriptor{
		{
			Name:        "check_doctor_availability",
			Description: "List a doctor's open appointment slots on a given date, optionally narrowed to morning, afternoon, or evening.",
			Schema: map[string]agent.ArgSpec{
				"doctor_name": {Type: agent.ArgString, Required: true, Description: "Doctor's name, with or without the Dr. prefix"},
				"date":        {Type: agent.ArgDate, Required: true, Description: "Calendar date to check"},
				"part_of_day": {Type: agent.ArgString, Description: "morning, afternoon, or evening"},
			},
			AllowedRoles: []agent.Role{agent.RolePatient, agent.RoleDoctor},
			Run:          deps.checkAvailability,
		},
		{
			Name:        "book_appointment",
			Description: "Book an appointment for a patient with a doctor at an exact start and end time.",
			Schema: map[string]agent.ArgSpec{
				"doctor_name":   {Type: agent.ArgString, Required: true},
				"patient_email": {Type: agent.ArgEmail, Required: true},
				"start_at":      {Type: agent.ArgDateTime, Required: true},
				"end_at":        {Type: agent.ArgDateTime, Required: true},
				"description":   {Type: agent.ArgString, Description: "Reason for the visit"},
			},
			AllowedRoles: []agent.Role{agent.RolePatient},
			Run:          deps.bookAppointment,
		},
		{
			Name:        "cancel_appointment",
			Description: "Cancel an existing appointment by its id.",
			Schema: map[string]agent.ArgSpec{
				"appointment_id": {Type: agent.ArgInt, Required: true},
				"reason":         {Type: agent.ArgString},
			},
			AllowedRoles: []agent.Role{agent.RolePatient, agent.RoleDoctor},
			Run:          deps.cancelAppointment,
		},
		{
			Name:        "list_appointments",
			Description: "List the appointments on a date, optionally for one doctor or one patient.",
			Schema: map[string]agent.ArgSpec{
				"for_date":      {Type: agent.ArgDate, Required: true},
				"doctor_name":   {Type: agent.ArgString},
				"patient_email": {Type: agent.ArgEmail},
			},
			AllowedRoles: []agent.Role{agent.RoleDoctor},
			Run:          deps.listAppointments,
		},
		{
			Name:        "appointment_stats",
			Description: "Summarize a day's appointments: totals, completions, cancellations, and an optional condition count. Can post the summary to the clinic channel.",
			Schema: map[string]agent.ArgSpec{
				"for_date":       {Type: agent.ArgDate, Description: "Defaults to today"},
				"doctor_name":    {Type: agent.ArgString},
				"condition_like": {Type: agent.ArgString, Description: "Condition substring to count, e.g. fever"},
				"notify":         {Type: agent.ArgBool, Default: false},
				"notify_channel": {Type: agent.ArgString},
			},
			AllowedRoles: []agent.Role{agent.RoleDoctor},
			Run:          deps.appointmentStats,
		},
		{
			Name:        "patients_by_reason",
			Description: "List the patients booked on a date whose recorded condition matches a phrase.",
			Schema: map[string]agent.ArgSpec{
				"for_date":    {Type: agent.ArgDate, Required: true},
				"reason_like": {Type: agent.ArgString, Required: true},
				"doctor_name": {Type: agent.ArgString},
			},
			AllowedRoles: []agent.Role{agent.RoleDoctor},
			Run:          deps.patientsByReason,
		},
		{
			Name:        "next_availability",
			Description: "Find the first day with open slots for a doctor, scanning forward from a start date.",
			Schema: map[string]agent.ArgSpec{
				"doctor_name": {Type: agent.ArgString, Required: true},
				"start_date":  {Type: agent.ArgDate, Required: true},
				"days_ahead":  {Type: agent.ArgInt, Default: int64(21)},
				"part_of_day": {Type: agent.ArgString},
			},
			AllowedRoles: []agent.Role{agent.RolePatient, agent.RoleDoctor},
			Run:          deps.nextAvailability,
		},
	}

	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("capabilities: %w", err)
		}
	}
	return nil
}

func (d Deps) checkAvailability(ctx context.Context, args agent.Args) (any, error) {
	day, err := argDate(args, "date")
	if err != nil {
		return nil, err
	}
	part := argString(args, "part_of_day")

	avail, err := d.Schedule.Availability(ctx, argString(args, "doctor_name"), day, part)
	if err != nil {
		return nil, translateErr(err)
	}
	return AvailabilityResult{
		DoctorName: avail.Doctor.Name,
		Date:       avail.Date.Format("2006-01-02"),
		PartOfDay:  part,
		Slots:      slotViews(avail.Slots),
	}, nil
}

func (d Deps) bookAppointment(ctx context.Context, args agent.Args) (any, error) {
	startAt, _ := args["start_at"].(time.Time)
	endAt, _ := args["end_at"].(time.Time)

	booking, err := d.Schedule.Book(ctx,
		argString(args, "doctor_name"),
		argString(args, "patient_email"),
		startAt, endAt,
		argString(args, "description"),
	)
	if err != nil {
		return nil, translateErr(err)
	}

	result := BookingResult{
		AppointmentID: booking.Appointment.ID,
		DoctorName:    booking.Doctor.Name,
		PatientName:   booking.Patient.Name,
		StartAt:       formatStamp(booking.Appointment.StartAt),
		EndAt:         formatStamp(booking.Appointment.EndAt),
		Status:        string(booking.Appointment.Status),
	}

	// Notifications are best-effort; the booking stands even if they fail.
	var warnings []string
	if d.Notify != nil {
		warnings = d.Notify.BookingConfirmation(ctx, notify.BookingNotice{
			AppointmentID: booking.Appointment.ID,
			DoctorName:    booking.Doctor.Name,
			PatientName:   booking.Patient.Name,
			PatientEmail:  booking.Patient.Email,
			StartAt:       booking.Appointment.StartAt,
			EndAt:         booking.Appointment.EndAt,
			Description:   booking.Appointment.Description,
		})
	}
	if len(warnings) > 0 {
		return agent.PartialResult{Data: result, Warnings: warnings}, nil
	}
	return result, nil
}

func (d Deps) cancelAppointment(ctx context.Context, args agent.Args) (any, error) {
	id, _ := args["appointment_id"].(int64)

	appt, err := d.Schedule.Cancel(ctx, id, argString(args, "reason"))
	if err != nil {
		return nil, translateErr(err)
	}
	return CancelResult{
		AppointmentID: appt.ID,
		StartAt:       formatStamp(appt.StartAt),
		Status:        string(appt.Status),
	}, nil
}

func (d Deps) listAppointments(ctx context.Context, args agent.Args) (any, error) {
	day, err := argDate(args, "for_date")
	if err != nil {
		return nil, err
	}

	details, err := d.Schedule.List(ctx, day, argString(args, "doctor_name"), argString(args, "patient_email"))
	if err != nil {
		return nil, translateErr(err)
	}

	views := make([]AppointmentView, 0, len(details))
	for _, a := range details {
		views = append(views, AppointmentView{
			AppointmentID: a.ID,
			DoctorName:    a.DoctorName,
			PatientName:   a.PatientName,
			PatientEmail:  a.PatientEmail,
			StartAt:       a.StartAt.Format("15:04"),
			EndAt:         a.EndAt.Format("15:04"),
			Status:        string(a.Status),
			Description:   a.Description,
		})
	}
	return ListResult{Date: day.Format("2006-01-02"), Appointments: views}, nil
}

func (d Deps) appointmentStats(ctx context.Context, args agent.Args) (any, error) {
	day := time.Now().UTC()
	if argString(args, "for_date") != "" {
		var err error
		if day, err = argDate(args, "for_date"); err != nil {
			return nil, err
		}
	}

	stats, err := d.Schedule.DailyStats(ctx, day, argString(args, "doctor_name"), argString(args, "condition_like"))
	if err != nil {
		return nil, translateErr(err)
	}
	result := StatsResult{Stats: *stats}

	shouldNotify, _ := args["notify"].(bool)
	if !shouldNotify {
		return result, nil
	}
	if d.Notify == nil {
		return agent.PartialResult{Data: result, Warnings: []string{"no summary channel is configured"}}, nil
	}
	warnings := d.Notify.StatsSummary(ctx, argString(args, "notify_channel"), result.Summarize())
	if len(warnings) > 0 {
		return agent.PartialResult{Data: result, Warnings: warnings}, nil
	}
	result.Notified = true
	return result, nil
}

func (d Deps) patientsByReason(ctx context.Context, args agent.Args) (any, error) {
	day, err := argDate(args, "for_date")
	if err != nil {
		return nil, err
	}
	reason := argString(args, "reason_like")

	visits, err := d.Schedule.PatientsByReason(ctx, day, reason, argString(args, "doctor_name"))
	if err != nil {
		return nil, translateErr(err)
	}

	views := make([]PatientVisitView, 0, len(visits))
	for _, v := range visits {
		views = append(views, PatientVisitView{
			PatientName:  v.PatientName,
			PatientEmail: v.PatientEmail,
			Condition:    v.Condition,
			StartAt:      v.StartAt.Format("15:04"),
		})
	}
	return PatientsByReasonResult{Date: day.Format("2006-01-02"), Reason: reason, Patients: views}, nil
}

func (d Deps) nextAvailability(ctx context.Context, args agent.Args) (any, error) {
	startDate, err := argDate(args, "start_date")
	if err != nil {
		return nil, err
	}
	daysAhead, _ := args["days_ahead"].(int64)
	part := argString(args, "part_of_day")

	avail, err := d.Schedule.NextAvailability(ctx, argString(args, "doctor_name"), startDate, int(daysAhead), part)
	if err != nil {
		return nil, translateErr(err)
	}
	return NextAvailabilityResult{
		DoctorName: avail.Doctor.Name,
		Date:       avail.Date.Format("2006-01-02"),
		PartOfDay:  part,
		Slots:      slotViews(avail.Slots),
	}, nil
}

// translateErr maps collaborator sentinels into the executor's error types so
// the outcome taxonomy stays accurate.
func translateErr(err error) error {
	switch {
	case errors.Is(err, directory.ErrDoctorNotFound):
		return &agent.NotFoundError{Msg: "no doctor by that name is registered with the clinic"}
	case errors.Is(err, directory.ErrPatientNotFound):
		return &agent.NotFoundError{Msg: "no patient with that email is registered with the clinic"}
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		return &agent.NotFoundError{Msg: "no appointment with that id exists"}
	case errors.Is(err, schedule.ErrSlotTaken):
		return &agent.ConflictError{Msg: "that time is already booked for this doctor"}
	case errors.Is(err, schedule.ErrNoAvailability):
		return &agent.NotFoundError{Msg: "no open slots in the requested range"}
	default:
		return err
	}
}

func argString(args agent.Args, name string) string {
	s, _ := args[name].(string)
	return s
}

// argDate parses a validated YYYY-MM-DD argument into a UTC midnight.
func argDate(args agent.Args, name string) (time.Time, error) {
	s, _ := args[name].(string)
	day, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("capabilities: bad %s %q: %w", name, s, err)
	}
	return day, nil
}
