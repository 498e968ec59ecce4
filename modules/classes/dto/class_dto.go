package dto

import (
	calendarEntity "classroom-api/modules/calendar/entity"
	"classroom-api/modules/classes/entity"
	"time"

	"github.com/google/uuid"
)

// ===================== Request DTOs =====================

type RecurrenceRequest struct {
	Frequency  string     `json:"frequency" validate:"required,oneof=DAILY WEEKLY daily weekly"`
	OnDays     []string   `json:"on_days" validate:"required,min=1,dive,len=2"`
	Occurrence *int       `json:"occurrence" validate:"omitempty,min=1,max=48"`
	Until      *time.Time `json:"until"`
}

// ToRule returns the normalized rule; nil when no recurrence was sent.
func (r *RecurrenceRequest) ToRule() *calendarEntity.RecurrenceRule {
	if r == nil {
		return nil
	}
	rule := &calendarEntity.RecurrenceRule{
		Frequency:  calendarEntity.Frequency(r.Frequency),
		OnDays:     append([]string(nil), r.OnDays...),
		Occurrence: r.Occurrence,
		Until:      r.Until,
	}
	rule.Normalize()
	return rule
}

type ClassRequest struct {
	Title            string             `json:"title" validate:"required,max=200"`
	Description      string             `json:"description" validate:"max=5000"`
	Type             string             `json:"type" validate:"required,oneof=workshop doubt_class cohort"`
	Lang             string             `json:"lang" validate:"omitempty,oneof=hi en te ta"`
	StartTime        time.Time          `json:"start_time" validate:"required"`
	EndTime          time.Time          `json:"end_time" validate:"required,gtfield=StartTime"`
	FacilitatorID    *uuid.UUID         `json:"facilitator_id"`
	FacilitatorName  string             `json:"facilitator_name" validate:"omitempty,max=200"`
	FacilitatorEmail string             `json:"facilitator_email" validate:"omitempty,email"`
	MaterialLink     string             `json:"material_link" validate:"omitempty,url"`
	MaxEnrolment     *int               `json:"max_enrolment" validate:"omitempty,min=1"`
	Recurrence       *RecurrenceRequest `json:"recurrence" validate:"omitempty"`
}

// UpdateClassRequest carries only the fields to change.
type UpdateClassRequest struct {
	Title        *string            `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string            `json:"description" validate:"omitempty,max=5000"`
	Type         *string            `json:"type" validate:"omitempty,oneof=workshop doubt_class cohort"`
	Lang         *string            `json:"lang" validate:"omitempty,oneof=hi en te ta"`
	StartTime    *time.Time         `json:"start_time"`
	EndTime      *time.Time         `json:"end_time"`
	MaterialLink *string            `json:"material_link" validate:"omitempty,url"`
	MaxEnrolment *int               `json:"max_enrolment" validate:"omitempty,min=1"`
	Recurrence   *RecurrenceRequest `json:"recurrence" validate:"omitempty"`
}

// ===================== Response DTOs =====================

type FacilitatorResponse struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type ClassResponse struct {
	ID                string              `json:"id"`
	Title             string              `json:"title"`
	Description       string              `json:"description,omitempty"`
	Type              string              `json:"type"`
	Lang              string              `json:"lang"`
	StartTime         time.Time           `json:"start_time"`
	EndTime           time.Time           `json:"end_time"`
	Facilitator       FacilitatorResponse `json:"facilitator"`
	CalendarEventID   string              `json:"calendar_event_id,omitempty"`
	MeetLink          string              `json:"meet_link,omitempty"`
	MaterialLink      string              `json:"material_link,omitempty"`
	MaxEnrolment      *int                `json:"max_enrolment,omitempty"`
	RecurringID       string              `json:"recurring_id,omitempty"`
	RegistrationCount int                 `json:"registration_count"`
	Registrants       []string            `json:"registrants,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

type RecurrenceResponse struct {
	ID              string     `json:"id"`
	Frequency       string     `json:"frequency"`
	OnDays          []string   `json:"on_days"`
	Occurrence      *int       `json:"occurrence,omitempty"`
	Until           *time.Time `json:"until,omitempty"`
	CalendarEventID string     `json:"calendar_event_id"`
	CohortRoomID    string     `json:"cohort_room_id,omitempty"`
}

type SeriesResponse struct {
	Recurrence RecurrenceResponse `json:"recurrence"`
	Classes    []ClassResponse    `json:"classes"`
}

type PaginatedClassResponse struct {
	Items      []ClassResponse `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPages int             `json:"total_pages"`
	PageNumber int             `json:"page_number"`
	PageSize   int             `json:"page_size"`
}

// ===================== Mapper Functions =====================

func ToClassResponse(c *entity.ClassInstance) *ClassResponse {
	resp := &ClassResponse{
		ID:                c.ID.String(),
		Title:             c.Title,
		Description:       c.Description,
		Type:              string(c.Type),
		Lang:              c.Lang,
		StartTime:         c.StartTime,
		EndTime:           c.EndTime,
		MaxEnrolment:      c.MaxEnrolment,
		RegistrationCount: len(c.Registrations),
		CreatedAt:         c.CreatedAt,
	}

	person := c.Facilitator()
	resp.Facilitator = FacilitatorResponse{Name: person.Name, Email: person.Email}
	if c.FacilitatorID != nil {
		resp.Facilitator.ID = c.FacilitatorID.String()
	}
	if c.CalendarEventID != nil {
		resp.CalendarEventID = *c.CalendarEventID
	}
	if c.MeetLink != nil {
		resp.MeetLink = *c.MeetLink
	}
	if c.MaterialLink != nil {
		resp.MaterialLink = *c.MaterialLink
	}
	if c.RecurringID != nil {
		resp.RecurringID = c.RecurringID.String()
	}
	for _, r := range c.Registrations {
		resp.Registrants = append(resp.Registrants, r.UserID.String())
	}
	return resp
}

func ToClassResponses(classes []entity.ClassInstance) []ClassResponse {
	out := make([]ClassResponse, 0, len(classes))
	for i := range classes {
		out = append(out, *ToClassResponse(&classes[i]))
	}
	return out
}

func ToSeriesResponse(s *entity.Series) *SeriesResponse {
	g := s.Group
	resp := &SeriesResponse{
		Recurrence: RecurrenceResponse{
			ID:              g.ID.String(),
			Frequency:       g.Frequency,
			OnDays:          []string(g.OnDays),
			Occurrence:      g.Occurrence,
			Until:           g.Until,
			CalendarEventID: g.CalendarEventID,
		},
		Classes: ToClassResponses(s.Instances),
	}
	if g.CohortRoomID != nil {
		resp.Recurrence.CohortRoomID = *g.CohortRoomID
	}
	return resp
}
