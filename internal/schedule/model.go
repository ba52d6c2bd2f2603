package schedule

import (
	"errors"
	"fmt"
	"time"
)

// AppointmentStatus tracks the lifecycle of a booked appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCompleted AppointmentStatus = "completed"
	StatusCanceled  AppointmentStatus = "canceled"
)

var (
	// ErrSlotTaken is returned when a booking overlaps an existing appointment.
	ErrSlotTaken = errors.New("schedule: slot already taken")
	// ErrAppointmentNotFound is returned when an appointment id does not exist.
	ErrAppointmentNotFound = errors.New("schedule: appointment not found")
	// ErrNoAvailability is returned when a scan finds no open slot in range.
	ErrNoAvailability = errors.New("schedule: no availability in range")
)

// TimeOfDay is a wall-clock time without a date, as stored in the weekly
// availability windows.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// On anchors the wall-clock time on a calendar day in the day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour, t.Minute, 0, 0, day.Location())
}

// Window is one recurring weekly availability block for a doctor.
// DayOfWeek uses 0=Monday .. 6=Sunday, matching the stored schema.
type Window struct {
	ID        int64
	DoctorID  int64
	DayOfWeek int
	Start     TimeOfDay
	End       TimeOfDay
}

// storageWeekday converts Go's Sunday-based weekday to the Monday-based
// value the doctor_availability table stores.
func storageWeekday(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// Slot is a bookable half-open interval [Start, End).
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Appointment is a booked visit.
type Appointment struct {
	ID          int64             `json:"id"`
	DoctorID    int64             `json:"doctor_id"`
	PatientID   int64             `json:"patient_id"`
	StartAt     time.Time         `json:"start_at"`
	EndAt       time.Time         `json:"end_at"`
	Description string            `json:"description,omitempty"`
	Status      AppointmentStatus `json:"status"`
}

// AppointmentDetail is an appointment joined with the people involved,
// as the doctor-facing listing wants it.
type AppointmentDetail struct {
	Appointment
	DoctorName   string `json:"doctor_name"`
	PatientName  string `json:"patient_name"`
	PatientEmail string `json:"patient_email"`
}

// Stats summarizes a day's appointments.
type Stats struct {
	Date              string         `json:"date"`
	TotalAppointments int            `json:"total_appointments"`
	Completed         int            `json:"completed"`
	Canceled          int            `json:"canceled"`
	ByCondition       map[string]int `json:"by_condition,omitempty"`
}

// PatientVisit names a patient seen (or to be seen) on a day, with the
// condition that brought them in.
type PatientVisit struct {
	PatientName  string    `json:"patient_name"`
	PatientEmail string    `json:"patient_email"`
	Condition    string    `json:"condition"`
	StartAt      time.Time `json:"start_at"`
}
