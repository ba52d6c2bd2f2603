package capabilities

import (
	"fmt"
	"strings"
	"time"

	"github.com/assigny/clinic-agent/internal/schedule"
)

// SlotView is a slot rendered for replies.
type SlotView struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func slotViews(slots []schedule.Slot) []SlotView {
	out := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotView{
			Start: s.Start.Format("15:04"),
			End:   s.End.Format("15:04"),
		})
	}
	return out
}

// AvailabilityResult is the outcome of an availability check.
type AvailabilityResult struct {
	DoctorName string     `json:"doctor_name"`
	Date       string     `json:"date"`
	PartOfDay  string     `json:"part_of_day,omitempty"`
	Slots      []SlotView `json:"slots"`
}

func (r AvailabilityResult) Summarize() string {
	if len(r.Slots) == 0 {
		return fmt.Sprintf("%s has no open slots on %s.", r.DoctorName, r.Date)
	}
	starts := make([]string, 0, len(r.Slots))
	for _, s := range r.Slots {
		starts = append(starts, s.Start)
	}
	return fmt.Sprintf("%s has %d open slots on %s: %s.",
		r.DoctorName, len(r.Slots), r.Date, strings.Join(starts, ", "))
}

// BookingResult is the outcome of a confirmed booking.
type BookingResult struct {
	AppointmentID int64  `json:"appointment_id"`
	DoctorName    string `json:"doctor_name"`
	PatientName   string `json:"patient_name"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	Status        string `json:"status"`
}

func (r BookingResult) Summarize() string {
	return fmt.Sprintf("Appointment %d is booked: %s with %s from %s to %s.",
		r.AppointmentID, r.PatientName, r.DoctorName, r.StartAt, r.EndAt)
}

// CancelResult is the outcome of a cancellation.
type CancelResult struct {
	AppointmentID int64  `json:"appointment_id"`
	StartAt       string `json:"start_at"`
	Status        string `json:"status"`
}

func (r CancelResult) Summarize() string {
	return fmt.Sprintf("Appointment %d (starting %s) is now %s.", r.AppointmentID, r.StartAt, r.Status)
}

// AppointmentView is one row of a doctor's day listing.
type AppointmentView struct {
	AppointmentID int64  `json:"appointment_id"`
	DoctorName    string `json:"doctor_name"`
	PatientName   string `json:"patient_name"`
	PatientEmail  string `json:"patient_email"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	Status        string `json:"status"`
	Description   string `json:"description,omitempty"`
}

// ListResult is a day's appointment listing.
type ListResult struct {
	Date         string            `json:"date"`
	Appointments []AppointmentView `json:"appointments"`
}

func (r ListResult) Summarize() string {
	if len(r.Appointments) == 0 {
		return fmt.Sprintf("There are no appointments on %s.", r.Date)
	}
	lines := make([]string, 0, len(r.Appointments))
	for _, a := range r.Appointments {
		lines = append(lines, fmt.Sprintf("%s %s with %s (%s)", a.StartAt, a.PatientName, a.DoctorName, a.Status))
	}
	return fmt.Sprintf("%d appointments on %s: %s.", len(r.Appointments), r.Date, strings.Join(lines, "; "))
}

// StatsResult is a day's aggregate summary.
type StatsResult struct {
	schedule.Stats
	Notified bool `json:"notified,omitempty"`
}

func (r StatsResult) Summarize() string {
	s := fmt.Sprintf("On %s there are %d appointments, %d completed and %d canceled.",
		r.Date, r.TotalAppointments, r.Completed, r.Canceled)
	for condition, count := range r.ByCondition {
		s += fmt.Sprintf(" %d are for %s.", count, condition)
	}
	return s
}

// PatientVisitView is one matching patient in a by-reason listing.
type PatientVisitView struct {
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
	Condition    string `json:"condition"`
	StartAt      string `json:"start_at"`
}

// PatientsByReasonResult lists the patients seen for a condition on a day.
type PatientsByReasonResult struct {
	Date     string             `json:"date"`
	Reason   string             `json:"reason"`
	Patients []PatientVisitView `json:"patients"`
}

func (r PatientsByReasonResult) Summarize() string {
	if len(r.Patients) == 0 {
		return fmt.Sprintf("No patients with %s on %s.", r.Reason, r.Date)
	}
	names := make([]string, 0, len(r.Patients))
	for _, p := range r.Patients {
		names = append(names, fmt.Sprintf("%s at %s", p.PatientName, p.StartAt))
	}
	return fmt.Sprintf("%d patients with %s on %s: %s.", len(r.Patients), r.Reason, r.Date, strings.Join(names, "; "))
}

// NextAvailabilityResult is the first open day found by a forward scan.
type NextAvailabilityResult struct {
	DoctorName string     `json:"doctor_name"`
	Date       string     `json:"date"`
	PartOfDay  string     `json:"part_of_day,omitempty"`
	Slots      []SlotView `json:"slots"`
}

func (r NextAvailabilityResult) Summarize() string {
	starts := make([]string, 0, len(r.Slots))
	for _, s := range r.Slots {
		starts = append(starts, s.Start)
	}
	return fmt.Sprintf("The next open day for %s is %s with %d slots: %s.",
		r.DoctorName, r.Date, len(r.Slots), strings.Join(starts, ", "))
}

func formatStamp(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}
