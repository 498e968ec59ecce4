package entity

import (
	"classroom-api/core/entity"
	calendarEntity "classroom-api/modules/calendar/entity"
	"slices"
	"time"

	"github.com/google/uuid"
)

type ClassType = calendarEntity.ClassType

const (
	LangHindi   = "hi"
	LangEnglish = "en"
	LangTelugu  = "te"
	LangTamil   = "ta"
)

var Languages = []string{LangHindi, LangEnglish, LangTelugu, LangTamil}

func ValidLang(lang string) bool {
	return slices.Contains(Languages, lang)
}

// ClassInstance is one scheduled class. RecurringID is set when it belongs
// to a series.
type ClassInstance struct {
	Title            string     `db:"title" json:"title"`
	Description      string     `db:"description" json:"description"`
	Type             ClassType  `db:"type" json:"type"`
	Lang             string     `db:"lang" json:"lang"`
	StartTime        time.Time  `db:"start_time" json:"start_time"`
	EndTime          time.Time  `db:"end_time" json:"end_time"`
	FacilitatorID    *uuid.UUID `db:"facilitator_id" json:"facilitator_id,omitempty"`
	FacilitatorName  *string    `db:"facilitator_name" json:"facilitator_name,omitempty"`
	FacilitatorEmail *string    `db:"facilitator_email" json:"facilitator_email,omitempty"`
	CalendarEventID  *string    `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
	MeetLink         *string    `db:"meet_link" json:"meet_link,omitempty"`
	MaterialLink     *string    `db:"material_link" json:"material_link,omitempty"`
	MaxEnrolment     *int       `db:"max_enrolment" json:"max_enrolment,omitempty"`
	RecurringID      *uuid.UUID `db:"recurring_id" json:"recurring_id,omitempty"`
	entity.BaseEntity

	Registrations []Registration `db:"-" json:"registrations,omitempty"`
}

func (c *ClassInstance) Recurring() bool {
	return c.RecurringID != nil
}

// Facilitator returns the name and email stored on the row.
func (c *ClassInstance) Facilitator() calendarEntity.Person {
	var p calendarEntity.Person
	if c.FacilitatorName != nil {
		p.Name = *c.FacilitatorName
	}
	if c.FacilitatorEmail != nil {
		p.Email = *c.FacilitatorEmail
	}
	return p
}

// IsFacilitator reports whether userID facilitates the class.
func (c *ClassInstance) IsFacilitator(userID uuid.UUID, email string) bool {
	if c.FacilitatorID != nil && *c.FacilitatorID == userID {
		return true
	}
	return c.FacilitatorEmail != nil && email != "" && *c.FacilitatorEmail == email
}

func (c *ClassInstance) RegisteredUserIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Registrations))
	for _, r := range c.Registrations {
		ids = append(ids, r.UserID)
	}
	return ids
}

func (c *ClassInstance) IsRegistered(userID uuid.UUID) bool {
	return slices.ContainsFunc(c.Registrations, func(r Registration) bool { return r.UserID == userID })
}

func (c *ClassInstance) Full() bool {
	return c.MaxEnrolment != nil && len(c.Registrations) >= *c.MaxEnrolment
}

type Registration struct {
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	ClassID      uuid.UUID `db:"class_id" json:"class_id"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}
