package service

import (
	"classroom-api/modules/chat/tasks"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type fakeRooms struct {
	created []RoomSpec
	createErr error
}

func (f *fakeRooms) CreateRoom(ctx context.Context, spec RoomSpec) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, spec)
	return "!room:example.org", nil
}

func (f *fakeRooms) Invite(ctx context.Context, roomID, userRef string) error { return nil }

func (f *fakeRooms) SendText(ctx context.Context, roomID, text string) error { return nil }

type enqueued struct {
	taskType string
	payload  any
}

type fakeQueue struct {
	tasks []enqueued
	err   error
}

func (f *fakeQueue) Enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, enqueued{taskType: taskType, payload: payload})
	return nil
}

func TestRoomAlias(t *testing.T) {
	alias := RoomAlias("Intro to Go!", "Asha Rao")
	if !regexp.MustCompile(`^intro-to-go-asha-rao-\d{3}$`).MatchString(alias) {
		t.Fatalf("alias = %q", alias)
	}
	if got := RoomAlias("", "Asha"); !regexp.MustCompile(`^asha-\d{3}$`).MatchString(got) {
		t.Fatalf("alias = %q", got)
	}
}

func TestCreateRoom(t *testing.T) {
	rooms := &fakeRooms{}
	svc := NewChatService(rooms, &fakeQueue{})

	roomID, err := svc.CreateRoom(context.Background(), "Go", "Asha")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if roomID != "!room:example.org" {
		t.Fatalf("room id = %q", roomID)
	}
	if rooms.created[0].Topic != "Go by Asha" || rooms.created[0].Name != "Go" {
		t.Fatalf("spec = %+v", rooms.created[0])
	}
}

func TestChatDisabled(t *testing.T) {
	q := &fakeQueue{}
	svc := NewChatService(nil, q)

	if _, err := svc.CreateRoom(context.Background(), "Go", "Asha"); !errors.Is(err, ErrChatDisabled) {
		t.Fatalf("CreateRoom err = %v", err)
	}
	if err := svc.AddUsers(context.Background(), "!r", uuid.New()); !errors.Is(err, ErrChatDisabled) {
		t.Fatalf("AddUsers err = %v", err)
	}
	if len(q.tasks) != 0 {
		t.Fatalf("tasks enqueued while disabled: %d", len(q.tasks))
	}
}

func TestNotificationsAreEnqueued(t *testing.T) {
	q := &fakeQueue{}
	svc := NewChatService(&fakeRooms{}, q)
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.AddUsers(ctx, "!r", userID); err != nil {
		t.Fatal(err)
	}
	if err := svc.SendWelcomeMessage(ctx, "!r", userID); err != nil {
		t.Fatal(err)
	}
	notice := tasks.ClassNoticePayload{RoomID: "!r", ClassID: uuid.New(), Title: "Go", StartTime: time.Now()}
	if err := svc.SendClassReminder(ctx, notice); err != nil {
		t.Fatal(err)
	}
	if err := svc.SendClassFeedback(ctx, notice); err != nil {
		t.Fatal(err)
	}

	want := []string{tasks.TypeAddMembers, tasks.TypeWelcome, tasks.TypeClassReminder, tasks.TypeClassFeedback}
	if len(q.tasks) != len(want) {
		t.Fatalf("tasks = %d", len(q.tasks))
	}
	for i, typ := range want {
		if q.tasks[i].taskType != typ {
			t.Errorf("task %d = %s, want %s", i, q.tasks[i].taskType, typ)
		}
	}
	if p := q.tasks[0].payload.(tasks.AddMembersPayload); len(p.UserIDs) != 1 || p.UserIDs[0] != userID {
		t.Fatalf("add members payload = %+v", p)
	}
}

func TestUserRef(t *testing.T) {
	if got := UserRef("asha", "example.org"); got != "@asha:example.org" {
		t.Fatalf("got %q", got)
	}
	if got := UserRef("@ravi:other.org", "example.org"); got != "@ravi:other.org" {
		t.Fatalf("got %q", got)
	}
}
