package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/assigny/clinic-agent/internal/directory"
	"github.com/assigny/clinic-agent/pkg/logging"
)

// Service resolves people through the directory and answers scheduling
// questions against the repository.
type Service struct {
	directory *directory.Repository
	repo      *Repository
	logger    *logging.Logger
}

func NewService(dir *directory.Repository, repo *Repository, logger *logging.Logger) *Service {
	if dir == nil {
		panic("schedule: directory repository cannot be nil")
	}
	if repo == nil {
		panic("schedule: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{directory: dir, repo: repo, logger: logger}
}

// DayAvailability is the open slots of one doctor on one day.
type DayAvailability struct {
	Doctor *directory.Doctor
	Date   time.Time
	Slots  []Slot
}

// Availability computes a doctor's open slots on a day.
func (s *Service) Availability(ctx context.Context, doctorName string, day time.Time, partOfDay string) (*DayAvailability, error) {
	part, err := NormalizePartOfDay(partOfDay)
	if err != nil {
		return nil, err
	}
	doc, err := s.directory.DoctorByName(ctx, doctorName)
	if err != nil {
		return nil, err
	}

	windows, err := s.repo.WeeklyWindows(ctx, doc.ID, storageWeekday(day.Weekday()))
	if err != nil {
		return nil, err
	}
	avail := &DayAvailability{Doctor: doc, Date: day}
	if len(windows) == 0 {
		return avail, nil
	}

	busy, err := s.repo.BusyBlocks(ctx, doc.ID, day)
	if err != nil {
		return nil, err
	}
	avail.Slots = ComputeSlots(windows, busy, day, part, DefaultSlotMinutes)
	return avail, nil
}

// Booking is a confirmed appointment with the people resolved.
type Booking struct {
	Appointment *Appointment
	Doctor      *directory.Doctor
	Patient     *directory.Patient
}

// Book resolves doctor and patient, then books the interval. Overlap with an
// existing appointment surfaces as ErrSlotTaken.
func (s *Service) Book(ctx context.Context, doctorName, patientEmail string, startAt, endAt time.Time, description string) (*Booking, error) {
	if !endAt.After(startAt) {
		return nil, fmt.Errorf("schedule: end %s is not after start %s", endAt.Format(time.RFC3339), startAt.Format(time.RFC3339))
	}
	doc, err := s.directory.DoctorByName(ctx, doctorName)
	if err != nil {
		return nil, err
	}
	pt, err := s.directory.PatientByEmail(ctx, patientEmail)
	if err != nil {
		return nil, err
	}

	appt, err := s.repo.Book(ctx, doc.ID, pt.ID, startAt, endAt, description)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"doctor", doc.Name,
		"patient", pt.Email,
		"start_at", appt.StartAt,
	)
	return &Booking{Appointment: appt, Doctor: doc, Patient: pt}, nil
}

// Cancel marks an appointment canceled.
func (s *Service) Cancel(ctx context.Context, appointmentID int64, reason string) (*Appointment, error) {
	appt, err := s.repo.Cancel(ctx, appointmentID, reason)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment canceled", "appointment_id", appt.ID, "reason", reason)
	return appt, nil
}

// List returns a day's appointments, optionally narrowed to one doctor by
// name and/or one patient by email.
func (s *Service) List(ctx context.Context, day time.Time, doctorName, patientEmail string) ([]AppointmentDetail, error) {
	var doctorID int64
	if doctorName != "" {
		doc, err := s.directory.DoctorByName(ctx, doctorName)
		if err != nil {
			return nil, err
		}
		doctorID = doc.ID
	}
	return s.repo.List(ctx, ListFilter{Day: day, DoctorID: doctorID, PatientEmail: patientEmail})
}

// DailyStats aggregates one day, optionally narrowed to one doctor by name.
func (s *Service) DailyStats(ctx context.Context, day time.Time, doctorName, conditionLike string) (*Stats, error) {
	var doctorID int64
	if doctorName != "" {
		doc, err := s.directory.DoctorByName(ctx, doctorName)
		if err != nil {
			return nil, err
		}
		doctorID = doc.ID
	}
	return s.repo.DailyStats(ctx, day, doctorID, conditionLike)
}

// PatientsByReason lists the patients seen on a day for a given condition.
func (s *Service) PatientsByReason(ctx context.Context, day time.Time, reasonLike, doctorName string) ([]PatientVisit, error) {
	var doctorID int64
	if doctorName != "" {
		doc, err := s.directory.DoctorByName(ctx, doctorName)
		if err != nil {
			return nil, err
		}
		doctorID = doc.ID
	}
	return s.repo.PatientsByReason(ctx, day, reasonLike, doctorID)
}

// NextAvailability scans forward from startDate for the first day with an
// open slot. The scan is bounded by daysAhead; an empty scan returns
// ErrNoAvailability.
func (s *Service) NextAvailability(ctx context.Context, doctorName string, startDate time.Time, daysAhead int, partOfDay string) (*DayAvailability, error) {
	part, err := NormalizePartOfDay(partOfDay)
	if err != nil {
		return nil, err
	}
	if daysAhead <= 0 {
		daysAhead = 21
	}
	doc, err := s.directory.DoctorByName(ctx, doctorName)
	if err != nil {
		return nil, err
	}

	for i := 0; i < daysAhead; i++ {
		day := startDate.AddDate(0, 0, i)
		windows, err := s.repo.WeeklyWindows(ctx, doc.ID, storageWeekday(day.Weekday()))
		if err != nil {
			return nil, err
		}
		if len(windows) == 0 {
			continue
		}
		busy, err := s.repo.BusyBlocks(ctx, doc.ID, day)
		if err != nil {
			return nil, err
		}
		slots := ComputeSlots(windows, busy, day, part, DefaultSlotMinutes)
		if len(slots) > 0 {
			return &DayAvailability{Doctor: doc, Date: day, Slots: slots}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s within %d days of %s", ErrNoAvailability, doc.Name, daysAhead, startDate.Format("2006-01-02"))
}
