package worker

import (
	"classroom-api/core/logger"
	"classroom-api/core/queue"
	authEntity "classroom-api/modules/auth/entity"
	"classroom-api/modules/chat/service"
	"classroom-api/modules/chat/tasks"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*authEntity.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]authEntity.User, error)
}

type Handlers struct {
	rooms    service.RoomClient
	users    UserLookup
	domain   string
	location *time.Location
}

func NewHandlers(rooms service.RoomClient, users UserLookup, domain string, loc *time.Location) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &Handlers{rooms: rooms, users: users, domain: domain, location: loc}
}

func (h *Handlers) Register(w *queue.Worker) {
	w.Handle(tasks.TypeAddMembers, h.HandleAddMembers)
	w.Handle(tasks.TypeWelcome, h.HandleWelcome)
	w.Handle(tasks.TypeClassReminder, h.HandleClassReminder)
	w.Handle(tasks.TypeClassFeedback, h.HandleClassFeedback)
}

func (h *Handlers) HandleAddMembers(ctx context.Context, task *asynq.Task) error {
	var p tasks.AddMembersPayload
	if err := queue.Decode(task, &p); err != nil {
		return err
	}

	users, err := h.users.FindByIDs(ctx, p.UserIDs)
	if err != nil {
		return err
	}

	var failed int
	for _, u := range users {
		if u.ChatID == nil || *u.ChatID == "" {
			logger.Warn("ChatWorker:AddMembers:NoChatID", "user_id", u.ID, "room_id", p.RoomID)
			continue
		}
		if err := h.rooms.Invite(ctx, p.RoomID, service.UserRef(*u.ChatID, h.domain)); err != nil {
			logger.Error("ChatWorker:AddMembers:Invite:Error", "user_id", u.ID, "room_id", p.RoomID, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d invites failed", failed, len(users))
	}
	return nil
}

func (h *Handlers) HandleWelcome(ctx context.Context, task *asynq.Task) error {
	var p tasks.WelcomePayload
	if err := queue.Decode(task, &p); err != nil {
		return err
	}

	user, err := h.users.FindByID(ctx, p.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("welcome: user %s not found: %w", p.UserID, asynq.SkipRetry)
	}

	text := fmt.Sprintf("Hi %s! This room was created for your class. Learners who register will join here, "+
		"and class reminders will be posted in this room.", user.Name)
	return h.rooms.SendText(ctx, p.RoomID, text)
}

func (h *Handlers) HandleClassReminder(ctx context.Context, task *asynq.Task) error {
	var p tasks.ClassNoticePayload
	if err := queue.Decode(task, &p); err != nil {
		return err
	}

	text := fmt.Sprintf("Reminder: %s starts at %s.", p.Title, p.StartTime.In(h.location).Format("Mon 2 Jan, 3:04 PM"))
	if p.MeetLink != "" {
		text += " Join at https://meet.google.com/" + p.MeetLink
	}
	return h.rooms.SendText(ctx, p.RoomID, text)
}

func (h *Handlers) HandleClassFeedback(ctx context.Context, task *asynq.Task) error {
	var p tasks.ClassNoticePayload
	if err := queue.Decode(task, &p); err != nil {
		return err
	}

	text := fmt.Sprintf("Thanks for attending %s! Reply here with how the class went.", p.Title)
	return h.rooms.SendText(ctx, p.RoomID, text)
}
