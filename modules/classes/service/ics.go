package service

import (
	"classroom-api/modules/classes/entity"
	"time"

	ics "github.com/arran4/golang-ical"
)

const icsProductID = "-//classroom-api//classes//EN"

type ICSExporter struct {
	loc *time.Location
}

func NewICSExporter(loc *time.Location) *ICSExporter {
	if loc == nil {
		loc = time.UTC
	}
	return &ICSExporter{loc: loc}
}

// Export renders classes as one VEVENT each, keyed by the class id.
func (x *ICSExporter) Export(name string, classes []entity.ClassInstance) []byte {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(name)
	cal.SetXWRTimezone(x.loc.String())

	for _, c := range classes {
		event := cal.AddEvent(c.ID.String() + "@classroom-api")
		event.SetSummary(c.Title)
		if c.Description != "" {
			event.SetDescription(c.Description)
		}
		event.SetStartAt(c.StartTime.UTC())
		event.SetEndAt(c.EndTime.UTC())

		stamp := c.UpdatedAt
		if stamp.IsZero() {
			stamp = c.StartTime
		}
		event.SetDtStampTime(stamp.UTC())
		event.SetStatus(ics.ObjectStatusConfirmed)

		if c.MeetLink != nil && *c.MeetLink != "" {
			event.SetURL("https://meet.google.com/" + *c.MeetLink)
		}
		if f := c.Facilitator(); f.Email != "" {
			event.SetOrganizer(f.Email, ics.WithCN(f.Name))
		}
	}
	return []byte(cal.Serialize())
}
