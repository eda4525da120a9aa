package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_marketplace/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const primaryCalendar = "primary"

// NewGoogleOAuthConfig конфигурация OAuth-клиента с доступом только на чтение календаря
func NewGoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarReadonlyScope},
	}
}

// GoogleSource занятость из Google Calendar через free/busy API
type GoogleSource struct {
	oauth *oauth2.Config
	opts  []option.ClientOption
}

// NewGoogleSource opts дописываются к клиенту календаря (в тестах подменяют endpoint)
func NewGoogleSource(oauth *oauth2.Config, opts ...option.ClientOption) *GoogleSource {
	return &GoogleSource{oauth: oauth, opts: opts}
}

func (s *GoogleSource) Kind() SourceKind {
	return SourceProviderLinked
}

func (s *GoogleSource) BusyIntervals(ctx context.Context, lecturer *model.Lecturer, from, to time.Time) ([]model.BusyInterval, error) {
	if !lecturer.HasGoogleCalendar() {
		return nil, errors.New("google calendar is not linked")
	}

	token := &oauth2.Token{
		AccessToken:  lecturer.GoogleToken.AccessToken,
		RefreshToken: lecturer.GoogleToken.RefreshToken,
		TokenType:    lecturer.GoogleToken.TokenType,
		Expiry:       lecturer.GoogleToken.Expiry,
	}

	opts := append([]option.ClientOption{option.WithTokenSource(s.oauth.TokenSource(ctx, token))}, s.opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	resp, err := svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.UTC().Format(time.RFC3339),
		TimeMax: to.UTC().Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: primaryCalendar}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("query free/busy: %w", err)
	}

	cal, ok := resp.Calendars[primaryCalendar]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("free/busy for primary calendar: %s", cal.Errors[0].Reason)
	}

	out := make([]model.BusyInterval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("parse busy start %q: %w", period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("parse busy end %q: %w", period.End, err)
		}
		out = append(out, model.BusyInterval{Start: start.UTC(), End: end.UTC()})
	}

	return out, nil
}
