package service

import (
	"classroom-api/core/config"
	"classroom-api/core/constants"
	"classroom-api/core/logger"
	chatTasks "classroom-api/modules/chat/tasks"
	"classroom-api/modules/classes/entity"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

type reminderSource interface {
	FindStartingBetween(ctx context.Context, from, to time.Time) ([]entity.ClassInstance, error)
	FindEndingBetween(ctx context.Context, from, to time.Time) ([]entity.ClassInstance, error)
	FindGroupByID(ctx context.Context, id uuid.UUID) (*entity.RecurrenceGroup, error)
}

// Marker records that a notice was sent; SetNX reports false when the key
// already existed.
type Marker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
}

// ReminderScheduler posts start reminders and feedback prompts to series
// chat rooms.
type ReminderScheduler struct {
	cron   *cron.Cron
	spec   string
	lead   time.Duration
	store  reminderSource
	chat   ChatNotifier
	marker Marker
	now    func() time.Time
}

type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	logger.Debug("ReminderScheduler:Cron:"+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	logger.Error("ReminderScheduler:Cron:"+msg, append(kv, "error", err)...)
}

func NewReminderScheduler(store reminderSource, chat ChatNotifier, marker Marker, cfg config.SchedulerConfig, loc *time.Location) *ReminderScheduler {
	if loc == nil {
		loc = time.UTC
	}
	lead := cfg.ReminderLead
	if lead <= 0 {
		lead = 15 * time.Minute
	}
	spec := cfg.ReminderSpec
	if spec == "" {
		spec = "@every 1m"
	}
	return &ReminderScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
		),
		spec:   spec,
		lead:   lead,
		store:  store,
		chat:   chat,
		marker: marker,
		now:    time.Now,
	}
}

func (r *ReminderScheduler) Start() error {
	_, err := r.cron.AddFunc(r.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultRequestTimeout)
		defer cancel()
		r.Tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule reminders %q: %w", r.spec, err)
	}
	r.cron.Start()
	logger.Info("ReminderScheduler:Start", "spec", r.spec, "lead", r.lead.String())
	return nil
}

// Stop waits for a running tick or for ctx to end.
func (r *ReminderScheduler) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Tick sends reminders for classes starting within the lead time and
// feedback prompts for classes that ended within it. Each notice is sent
// once per class.
func (r *ReminderScheduler) Tick(ctx context.Context) {
	now := r.now()
	rooms := make(map[uuid.UUID]string)

	starting, err := r.store.FindStartingBetween(ctx, now, now.Add(r.lead))
	if err != nil {
		logger.Error("ReminderScheduler:Tick:FindStarting:Error", err)
	} else {
		for _, c := range starting {
			r.notify(ctx, "reminder", c, rooms, r.chat.SendClassReminder)
		}
	}

	ended, err := r.store.FindEndingBetween(ctx, now.Add(-r.lead), now)
	if err != nil {
		logger.Error("ReminderScheduler:Tick:FindEnded:Error", err)
	} else {
		for _, c := range ended {
			r.notify(ctx, "feedback", c, rooms, r.chat.SendClassFeedback)
		}
	}
}

func (r *ReminderScheduler) notify(ctx context.Context, kind string, c entity.ClassInstance, rooms map[uuid.UUID]string, send func(context.Context, chatTasks.ClassNoticePayload) error) {
	roomID := r.roomFor(ctx, c, rooms)
	if roomID == "" {
		return
	}

	key := "class:" + kind + ":" + c.ID.String()
	first, err := r.marker.SetNX(ctx, key, 1, 2*r.lead+time.Hour)
	if err != nil {
		logger.Warn("ReminderScheduler:Notify:Marker:Error", "class_id", c.ID, "kind", kind, "error", err)
		return
	}
	if !first {
		return
	}

	notice := chatTasks.ClassNoticePayload{
		RoomID:    roomID,
		ClassID:   c.ID,
		Title:     c.Title,
		StartTime: c.StartTime,
	}
	if c.MeetLink != nil {
		notice.MeetLink = *c.MeetLink
	}
	if err := send(ctx, notice); err != nil {
		logger.Warn("ReminderScheduler:Notify:Send:Error", "class_id", c.ID, "kind", kind, "error", err)
		// release the marker so the next tick retries
		if err := r.marker.Delete(ctx, key); err != nil {
			logger.Error("ReminderScheduler:Notify:ReleaseMarker:Error", "class_id", c.ID, "kind", kind, "error", err)
		}
		return
	}
	logger.Info("ReminderScheduler:Notify:Queued", "class_id", c.ID, "kind", kind, "room_id", roomID)
}

// roomFor returns the series chat room; standalone classes have none.
func (r *ReminderScheduler) roomFor(ctx context.Context, c entity.ClassInstance, rooms map[uuid.UUID]string) string {
	if c.RecurringID == nil {
		return ""
	}
	if room, ok := rooms[*c.RecurringID]; ok {
		return room
	}

	room := ""
	group, err := r.store.FindGroupByID(ctx, *c.RecurringID)
	if err != nil {
		logger.Warn("ReminderScheduler:RoomFor:Error", "group_id", *c.RecurringID, "error", err)
	} else if group != nil && group.CohortRoomID != nil {
		room = *group.CohortRoomID
	}
	rooms[*c.RecurringID] = room
	return room
}
