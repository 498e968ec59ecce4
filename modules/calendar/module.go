package calendar

import (
	"classroom-api/core/config"
	"classroom-api/core/logger"
	"classroom-api/modules/calendar/service"
	"context"
	"fmt"
	"time"
)

// Init builds the gateway over every configured credential, primary first.
func Init(ctx context.Context, cfg config.GoogleAPIConfig) (*service.Gateway, *service.RecurrenceExpander, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, nil, fmt.Errorf("calendar time zone %q: %w", cfg.TimeZone, err)
	}

	providers, err := service.NewGoogleProviders(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if len(providers) == 0 {
		logger.Warn("Calendar:Init:NoCredentials", "reason", "class scheduling calls will fail until google_api credentials are set")
	}

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	logger.Info("Calendar:Init", "providers", names, "time_zone", loc.String(), "calendar_id", cfg.CalendarID)

	gateway := service.NewGateway(providers, loc, cfg.CallTimeout)
	return gateway, service.NewRecurrenceExpander(gateway), nil
}
