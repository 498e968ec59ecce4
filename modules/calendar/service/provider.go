package service

import (
	"classroom-api/core/config"
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const sendUpdatesAll = "all"

// Provider is one credential's view of the platform calendar.
type Provider interface {
	Name() string
	Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	Patch(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error)
	Delete(ctx context.Context, eventID string) error
	Instances(ctx context.Context, eventID string) ([]*calendar.Event, error)
}

type GoogleProvider struct {
	name       string
	calendarID string
	svc        *calendar.Service
}

// NewGoogleProvider builds a provider that refreshes access tokens from the
// credential's long-lived refresh token.
func NewGoogleProvider(ctx context.Context, cred config.GoogleCredential, calendarID string) (*GoogleProvider, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarScope},
	}
	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	svc, err := calendar.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("calendar service for %s: %w", cred.Name, err)
	}

	return &GoogleProvider{name: cred.Name, calendarID: calendarID, svc: svc}, nil
}

func (p *GoogleProvider) Name() string {
	return p.name
}

func (p *GoogleProvider) Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	return p.svc.Events.Insert(p.calendarID, event).
		ConferenceDataVersion(1).
		SendUpdates(sendUpdatesAll).
		Context(ctx).
		Do()
}

func (p *GoogleProvider) Patch(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	return p.svc.Events.Patch(p.calendarID, eventID, event).
		SendUpdates(sendUpdatesAll).
		Context(ctx).
		Do()
}

func (p *GoogleProvider) Delete(ctx context.Context, eventID string) error {
	return p.svc.Events.Delete(p.calendarID, eventID).
		SendUpdates(sendUpdatesAll).
		Context(ctx).
		Do()
}

func (p *GoogleProvider) Instances(ctx context.Context, eventID string) ([]*calendar.Event, error) {
	var items []*calendar.Event
	err := p.svc.Events.Instances(p.calendarID, eventID).Pages(ctx, func(page *calendar.Events) error {
		items = append(items, page.Items...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// NewGoogleProviders builds providers for every configured credential in
// failover order.
func NewGoogleProviders(ctx context.Context, cfg config.GoogleAPIConfig) ([]Provider, error) {
	creds := cfg.Credentials()
	providers := make([]Provider, 0, len(creds))
	for _, cred := range creds {
		p, err := NewGoogleProvider(ctx, cred, cfg.CalendarID)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}
