package service

import (
	"classroom-api/core/logger"
	"classroom-api/core/utils"
	"classroom-api/modules/calendar/entity"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

const (
	summaryPrefix    = "Class: "
	localTimeLayout  = "2006-01-02T15:04:05"
	conferenceMeet   = "hangoutsMeet"
	defaultCallLimit = 15 * time.Second
)

var (
	// ErrCalendarUnavailable means every configured credential failed.
	ErrCalendarUnavailable = errors.New("calendar unavailable")
	ErrNoProviders         = errors.New("no calendar credentials configured")
)

// ProviderError is a non-retryable failure reported by one credential.
type ProviderError struct {
	Op       string
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("calendar %s via %s: %v", e.Op, e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

type GatewayInterface interface {
	CreateEvent(ctx context.Context, details entity.EventDetails, organizer entity.Person) (*entity.CalendarEvent, error)
	PatchEvent(ctx context.Context, eventID string, patch entity.EventPatch) (*entity.CalendarEvent, error)
	DeleteEvent(ctx context.Context, eventID string) error
	ListInstances(ctx context.Context, rootEventID string) ([]entity.EventInstance, error)
}

type Gateway struct {
	providers   []Provider
	loc         *time.Location
	callTimeout time.Duration
}

// NewGateway takes providers in failover order. callTimeout bounds each
// attempt so a slow credential falls through to the next one.
func NewGateway(providers []Provider, loc *time.Location, callTimeout time.Duration) *Gateway {
	if loc == nil {
		loc = time.UTC
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallLimit
	}
	return &Gateway{providers: providers, loc: loc, callTimeout: callTimeout}
}

func (g *Gateway) Location() *time.Location {
	return g.loc
}

// retryable reports whether the next credential should be tried.
func retryable(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code != http.StatusBadRequest
	}
	return true
}

func withFailover[T any](ctx context.Context, g *Gateway, op string, call func(ctx context.Context, p Provider) (T, error)) (T, string, error) {
	var zero T
	if len(g.providers) == 0 {
		return zero, "", ErrNoProviders
	}

	errs := []error{ErrCalendarUnavailable}
	for i, p := range g.providers {
		callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
		result, err := call(callCtx, p)
		cancel()

		if err == nil {
			if i > 0 {
				logger.Warn("CalendarGateway:"+op+":FailoverUsed", "provider", p.Name(), "attempt", i+1)
			}
			return result, p.Name(), nil
		}

		if !retryable(ctx, err) {
			logger.Error("CalendarGateway:"+op+":Fatal", "provider", p.Name(), "error", err)
			return zero, p.Name(), &ProviderError{Op: op, Provider: p.Name(), Err: err}
		}

		logger.Warn("CalendarGateway:"+op+":ProviderFailed", "provider", p.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return zero, "", fmt.Errorf("calendar %s: %w", op, errors.Join(errs...))
}

func (g *Gateway) eventTime(t time.Time) *calendar.EventDateTime {
	return &calendar.EventDateTime{
		DateTime: t.In(g.loc).Format(localTimeLayout),
		TimeZone: g.loc.String(),
	}
}

func (g *Gateway) parseEventTime(edt *calendar.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
		if t, err := time.ParseInLocation(localTimeLayout, edt.DateTime, g.loc); err == nil {
			return t
		}
	}
	if edt.Date != "" {
		if t, err := time.ParseInLocation("2006-01-02", edt.Date, g.loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func attendeeList(emails ...string) []*calendar.EventAttendee {
	seen := make(map[string]bool, len(emails))
	attendees := make([]*calendar.EventAttendee, 0, len(emails))
	for _, email := range emails {
		email = strings.TrimSpace(email)
		key := strings.ToLower(email)
		if email == "" || seen[key] {
			continue
		}
		seen[key] = true
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}
	return attendees
}

// MeetCode returns the last path segment of a Meet link.
func MeetCode(hangoutLink string) string {
	if hangoutLink == "" {
		return ""
	}
	trimmed := strings.TrimRight(hangoutLink, "/")
	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}

func (g *Gateway) toCalendarEvent(ev *calendar.Event, provider string) *entity.CalendarEvent {
	out := &entity.CalendarEvent{
		ID:          ev.Id,
		Title:       strings.TrimPrefix(ev.Summary, summaryPrefix),
		Description: ev.Description,
		Start:       g.parseEventTime(ev.Start),
		End:         g.parseEventTime(ev.End),
		HangoutLink: ev.HangoutLink,
		MeetLink:    MeetCode(ev.HangoutLink),
		Recurrence:  ev.Recurrence,
		Provider:    provider,
	}
	if ev.Organizer != nil {
		out.Organizer = entity.Person{Name: ev.Organizer.DisplayName, Email: ev.Organizer.Email}
	}
	for _, a := range ev.Attendees {
		out.Attendees = append(out.Attendees, a.Email)
	}
	return out
}

func (g *Gateway) CreateEvent(ctx context.Context, details entity.EventDetails, organizer entity.Person) (*entity.CalendarEvent, error) {
	event := &calendar.Event{
		Summary:     summaryPrefix + details.Title,
		Description: details.Description,
		ColorId:     details.Type.ColorID(),
		Start:       g.eventTime(details.Start),
		End:         g.eventTime(details.End),
		Organizer:   &calendar.EventOrganizer{DisplayName: organizer.Name, Email: organizer.Email},
		Creator:     &calendar.EventCreator{DisplayName: organizer.Name, Email: organizer.Email},
		Attendees:   attendeeList(append([]string{organizer.Email}, details.Attendees...)...),
		ConferenceData: &calendar.ConferenceData{
			// One token per logical create, reused on failover.
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId:             utils.GenerateRequestToken(),
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{Type: conferenceMeet},
			},
		},
	}

	if details.Rule != nil {
		line, err := BuildRRule(details.Rule)
		if err != nil {
			return nil, fmt.Errorf("build recurrence: %w", err)
		}
		event.Recurrence = []string{line}
	}

	created, provider, err := withFailover(ctx, g, "CreateEvent", func(ctx context.Context, p Provider) (*calendar.Event, error) {
		return p.Insert(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("CalendarGateway:CreateEvent:Done", "event_id", created.Id, "provider", provider, "recurring", details.Rule != nil)
	return g.toCalendarEvent(created, provider), nil
}

func (g *Gateway) PatchEvent(ctx context.Context, eventID string, patch entity.EventPatch) (*entity.CalendarEvent, error) {
	event := &calendar.Event{}
	if patch.Title != nil {
		event.Summary = summaryPrefix + *patch.Title
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.Start != nil {
		event.Start = g.eventTime(*patch.Start)
	}
	if patch.End != nil {
		event.End = g.eventTime(*patch.End)
	}
	if len(patch.Attendees) > 0 {
		event.Attendees = attendeeList(patch.Attendees...)
	}

	updated, provider, err := withFailover(ctx, g, "PatchEvent", func(ctx context.Context, p Provider) (*calendar.Event, error) {
		return p.Patch(ctx, eventID, event)
	})
	if err != nil {
		return nil, err
	}
	return g.toCalendarEvent(updated, provider), nil
}

func (g *Gateway) DeleteEvent(ctx context.Context, eventID string) error {
	_, _, err := withFailover(ctx, g, "DeleteEvent", func(ctx context.Context, p Provider) (struct{}, error) {
		return struct{}{}, p.Delete(ctx, eventID)
	})
	return err
}

func (g *Gateway) ListInstances(ctx context.Context, rootEventID string) ([]entity.EventInstance, error) {
	items, _, err := withFailover(ctx, g, "ListInstances", func(ctx context.Context, p Provider) ([]*calendar.Event, error) {
		return p.Instances(ctx, rootEventID)
	})
	if err != nil {
		return nil, err
	}

	instances := make([]entity.EventInstance, 0, len(items))
	for _, item := range items {
		if item.Status == "cancelled" {
			continue
		}
		instances = append(instances, entity.EventInstance{
			ID:    item.Id,
			Start: g.parseEventTime(item.Start),
			End:   g.parseEventTime(item.End),
		})
	}
	slices.SortFunc(instances, func(a, b entity.EventInstance) int {
		return a.Start.Compare(b.Start)
	})
	return instances, nil
}
