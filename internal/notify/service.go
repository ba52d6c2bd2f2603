package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/assigny/clinic-agent/pkg/logging"
)

// BookingNotice carries everything the notification fan-out needs about a
// freshly booked appointment.
type BookingNotice struct {
	AppointmentID int64
	DoctorName    string
	PatientName   string
	PatientEmail  string
	StartAt       time.Time
	EndAt         time.Time
	Description   string
}

// Service fans a booking or a stats summary out to the configured channels.
// Every channel is best-effort: a failure comes back as a warning string,
// never as an error, so the booking itself stands.
type Service struct {
	email    EmailSender
	calendar CalendarClient
	slack    *SlackNotifier
	logger   *logging.Logger
}

func NewService(email EmailSender, cal CalendarClient, slack *SlackNotifier, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, calendar: cal, slack: slack, logger: logger}
}

// BookingConfirmation emails the patient and mirrors the appointment onto
// the clinic calendar. Returned warnings describe the channels that failed.
func (s *Service) BookingConfirmation(ctx context.Context, n BookingNotice) []string {
	var warnings []string

	if s.email != nil {
		msg := EmailMessage{
			To:      n.PatientEmail,
			ToName:  n.PatientName,
			Subject: fmt.Sprintf("Appointment confirmed with %s", n.DoctorName),
			Body: fmt.Sprintf(
				"Hi %s,\n\nYour appointment with %s is confirmed for %s to %s.\n\nSee you then.",
				n.PatientName,
				n.DoctorName,
				n.StartAt.Format("Monday, Jan 2 2006 at 15:04"),
				n.EndAt.Format("15:04"),
			),
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Warn("booking confirmation email failed", "appointment_id", n.AppointmentID, "error", err)
			warnings = append(warnings, "the confirmation email could not be sent")
		}
	}

	if s.calendar != nil {
		ev := CalendarEvent{
			Summary:       fmt.Sprintf("%s / %s", n.DoctorName, n.PatientName),
			Description:   n.Description,
			Start:         n.StartAt,
			End:           n.EndAt,
			AttendeeEmail: n.PatientEmail,
			AttendeeName:  n.PatientName,
		}
		if _, err := s.calendar.CreateEvent(ctx, ev); err != nil {
			s.logger.Warn("booking calendar event failed", "appointment_id", n.AppointmentID, "error", err)
			warnings = append(warnings, "the calendar entry could not be created")
		}
	}

	return warnings
}

// StatsSummary posts a daily summary line to Slack. Returns a warning when
// the post fails or no notifier is configured.
func (s *Service) StatsSummary(ctx context.Context, channel, summary string) []string {
	if s.slack == nil {
		return []string{"no summary channel is configured"}
	}
	if err := s.slack.Post(ctx, channel, summary); err != nil {
		s.logger.Warn("stats summary post failed", "error", err)
		return []string{"the summary could not be posted"}
	}
	return nil
}
