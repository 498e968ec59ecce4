package entity

import "time"

type ClassType string

const (
	ClassTypeWorkshop   ClassType = "workshop"
	ClassTypeDoubtClass ClassType = "doubt_class"
	ClassTypeCohort     ClassType = "cohort"
)

func (t ClassType) Valid() bool {
	switch t {
	case ClassTypeWorkshop, ClassTypeDoubtClass, ClassTypeCohort:
		return true
	}
	return false
}

// ColorID is the Google Calendar color used for events of this type.
func (t ClassType) ColorID() string {
	switch t {
	case ClassTypeWorkshop:
		return "2"
	case ClassTypeDoubtClass:
		return "4"
	default:
		return "6"
	}
}

type Person struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EventDetails describes one logical calendar event to create.
type EventDetails struct {
	Title       string
	Description string
	Type        ClassType
	Start       time.Time
	End         time.Time
	Attendees   []string
	Rule        *RecurrenceRule
}

// EventPatch carries the fields to change on an existing event; nil fields
// are left untouched.
type EventPatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	Attendees   []string
}

type EventInstance struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type CalendarEvent struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Start       time.Time       `json:"start"`
	End         time.Time       `json:"end"`
	HangoutLink string          `json:"hangout_link,omitempty"`
	MeetLink    string          `json:"meet_link,omitempty"`
	Organizer   Person          `json:"organizer"`
	Attendees   []string        `json:"attendees,omitempty"`
	Recurrence  []string        `json:"recurrence,omitempty"`
	Instances   []EventInstance `json:"instances,omitempty"`
	// Provider names the credential that served the call.
	Provider string `json:"provider,omitempty"`
}

func (e *CalendarEvent) Recurring() bool {
	return len(e.Recurrence) > 0
}
