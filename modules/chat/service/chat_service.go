package service

import (
	"classroom-api/core/logger"
	"classroom-api/core/queue"
	"classroom-api/core/utils"
	"classroom-api/modules/chat/tasks"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/hibiken/asynq"
)

// ChatServiceInterface is the notification side of class scheduling. Only
// CreateRoom is synchronous; the rest enqueue work and return.
type ChatServiceInterface interface {
	CreateRoom(ctx context.Context, title, facilitatorName string) (string, error)
	AddUsers(ctx context.Context, roomID string, userIDs ...uuid.UUID) error
	SendWelcomeMessage(ctx context.Context, roomID string, userID uuid.UUID) error
	SendClassReminder(ctx context.Context, notice tasks.ClassNoticePayload) error
	SendClassFeedback(ctx context.Context, notice tasks.ClassNoticePayload) error
}

var ErrChatDisabled = errors.New("chat is not configured")

type ChatService struct {
	rooms RoomClient
	queue queue.Enqueuer
}

func NewChatService(rooms RoomClient, q queue.Enqueuer) *ChatService {
	return &ChatService{rooms: rooms, queue: q}
}

// RoomAlias derives a room alias from the class title and facilitator name
// with a short random suffix.
func RoomAlias(title, facilitatorName string) string {
	parts := []string{slug.Make(title), slug.Make(facilitatorName), utils.GenerateNumericSuffix(3)}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "-")
}

func (s *ChatService) CreateRoom(ctx context.Context, title, facilitatorName string) (string, error) {
	if s.rooms == nil {
		return "", ErrChatDisabled
	}

	spec := RoomSpec{
		Alias: RoomAlias(title, facilitatorName),
		Name:  title,
		Topic: fmt.Sprintf("%s by %s", title, facilitatorName),
	}
	roomID, err := s.rooms.CreateRoom(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("create room %s: %w", spec.Alias, err)
	}

	logger.Info("ChatService:CreateRoom:Done", "room_id", roomID, "alias", spec.Alias)
	return roomID, nil
}

func (s *ChatService) AddUsers(ctx context.Context, roomID string, userIDs ...uuid.UUID) error {
	if s.rooms == nil {
		return ErrChatDisabled
	}
	return s.queue.Enqueue(ctx, tasks.TypeAddMembers,
		tasks.AddMembersPayload{RoomID: roomID, UserIDs: userIDs},
		asynq.Queue(queue.QueueCritical), asynq.MaxRetry(5))
}

func (s *ChatService) SendWelcomeMessage(ctx context.Context, roomID string, userID uuid.UUID) error {
	if s.rooms == nil {
		return ErrChatDisabled
	}
	// Runs after AddUsers so the invite is already pending.
	return s.queue.Enqueue(ctx, tasks.TypeWelcome,
		tasks.WelcomePayload{RoomID: roomID, UserID: userID},
		asynq.ProcessIn(5*time.Second), asynq.MaxRetry(5))
}

func (s *ChatService) SendClassReminder(ctx context.Context, notice tasks.ClassNoticePayload) error {
	if s.rooms == nil {
		return ErrChatDisabled
	}
	return s.queue.Enqueue(ctx, tasks.TypeClassReminder, notice,
		asynq.TaskID("reminder:"+notice.ClassID.String()), asynq.Retention(24*time.Hour), asynq.MaxRetry(3))
}

func (s *ChatService) SendClassFeedback(ctx context.Context, notice tasks.ClassNoticePayload) error {
	if s.rooms == nil {
		return ErrChatDisabled
	}
	return s.queue.Enqueue(ctx, tasks.TypeClassFeedback, notice,
		asynq.TaskID("feedback:"+notice.ClassID.String()), asynq.Retention(24*time.Hour), asynq.MaxRetry(3))
}
