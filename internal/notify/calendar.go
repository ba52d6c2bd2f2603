package notify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/assigny/clinic-agent/pkg/logging"
)

// CalendarEvent is a clinic appointment to mirror onto a shared calendar.
type CalendarEvent struct {
	Summary       string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	AttendeeName  string
}

// CalendarClient abstracts the calendar backend for tests.
type CalendarClient interface {
	CreateEvent(ctx context.Context, ev CalendarEvent) (string, error)
}

// GoogleCalendarConfig holds the OAuth refresh-token credentials for the
// clinic's Google calendar.
type GoogleCalendarConfig struct {
	CalendarID   string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// GoogleCalendar writes appointment events to a Google calendar.
type GoogleCalendar struct {
	svc        *calendar.Service
	calendarID string
	logger     *logging.Logger
}

// NewGoogleCalendar builds a calendar client from a stored refresh token.
// Returns nil (and no error) when the config is absent, so the caller can
// run without a calendar mirror.
func NewGoogleCalendar(ctx context.Context, cfg GoogleCalendarConfig, logger *logging.Logger) (*GoogleCalendar, error) {
	if cfg.CalendarID == "" || cfg.ClientID == "" || cfg.RefreshToken == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarEventsScope},
	}
	source := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := calendar.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("notify: calendar service init failed: %w", err)
	}
	return &GoogleCalendar{svc: svc, calendarID: cfg.CalendarID, logger: logger}, nil
}

// CreateEvent inserts the event and returns its Google event id.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, ev CalendarEvent) (string, error) {
	event := &calendar.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}
	if ev.AttendeeEmail != "" {
		event.Attendees = []*calendar.EventAttendee{
			{Email: ev.AttendeeEmail, DisplayName: ev.AttendeeName},
		}
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		g.logger.Error("calendar event insert failed", "error", err, "summary", ev.Summary)
		return "", fmt.Errorf("notify: calendar event insert failed: %w", err)
	}

	g.logger.Info("calendar event created", "event_id", created.Id, "summary", ev.Summary)
	return created.Id, nil
}

var _ CalendarClient = (*GoogleCalendar)(nil)
