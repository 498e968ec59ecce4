package tasks

import (
	"time"

	"github.com/google/uuid"
)

const (
	TypeAddMembers    = "chat:add_members"
	TypeWelcome       = "chat:welcome"
	TypeClassReminder = "chat:class_reminder"
	TypeClassFeedback = "chat:class_feedback"
)

type AddMembersPayload struct {
	RoomID  string      `json:"room_id"`
	UserIDs []uuid.UUID `json:"user_ids"`
}

type WelcomePayload struct {
	RoomID string    `json:"room_id"`
	UserID uuid.UUID `json:"user_id"`
}

type ClassNoticePayload struct {
	RoomID    string    `json:"room_id"`
	ClassID   uuid.UUID `json:"class_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	MeetLink  string    `json:"meet_link,omitempty"`
}
