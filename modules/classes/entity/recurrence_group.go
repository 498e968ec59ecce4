package entity

import (
	"classroom-api/core/entity"
	calendarEntity "classroom-api/modules/calendar/entity"
	"time"

	"github.com/lib/pq"
)

// RecurrenceGroup ties a series' instances to the calendar root event.
// Deleting the row cascades to its instances.
type RecurrenceGroup struct {
	Frequency       string         `db:"frequency" json:"frequency"`
	OnDays          pq.StringArray `db:"on_days" json:"on_days"`
	Occurrence      *int           `db:"occurrence" json:"occurrence,omitempty"`
	Until           *time.Time     `db:"until" json:"until,omitempty"`
	CalendarEventID string         `db:"calendar_event_id" json:"calendar_event_id"`
	CohortRoomID    *string        `db:"cohort_room_id" json:"cohort_room_id,omitempty"`
	entity.BaseEntity
}

func NewRecurrenceGroup(rule *calendarEntity.RecurrenceRule, rootEventID string, roomID *string) *RecurrenceGroup {
	return &RecurrenceGroup{
		Frequency:       string(rule.Frequency),
		OnDays:          pq.StringArray(rule.OnDays),
		Occurrence:      rule.Occurrence,
		Until:           rule.Until,
		CalendarEventID: rootEventID,
		CohortRoomID:    roomID,
	}
}

func (g *RecurrenceGroup) Rule() *calendarEntity.RecurrenceRule {
	return &calendarEntity.RecurrenceRule{
		Frequency:  calendarEntity.Frequency(g.Frequency),
		OnDays:     []string(g.OnDays),
		Occurrence: g.Occurrence,
		Until:      g.Until,
	}
}

// Series is a group together with its materialized instances.
type Series struct {
	Group     *RecurrenceGroup `json:"group"`
	Instances []ClassInstance  `json:"instances"`
}
