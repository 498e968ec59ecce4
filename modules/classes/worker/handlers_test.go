package worker

import (
	"classroom-api/modules/classes/entity"
	"classroom-api/modules/classes/service"
	"classroom-api/modules/classes/tasks"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type stubSeries struct {
	group     *entity.RecurrenceGroup
	instances []entity.ClassInstance
}

func (s *stubSeries) FindGroupByID(ctx context.Context, id uuid.UUID) (*entity.RecurrenceGroup, error) {
	if s.group == nil || s.group.ID != id {
		return nil, nil
	}
	return s.group, nil
}

func (s *stubSeries) FindInstancesByGroupID(ctx context.Context, groupID uuid.UUID) ([]entity.ClassInstance, error) {
	return s.instances, nil
}

type memObjects struct {
	key         string
	body        []byte
	contentType string
	err         error
}

func (m *memObjects) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.key, m.body, m.contentType = key, body, contentType
	return m.err
}

func publishTask(t *testing.T, groupID uuid.UUID) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(tasks.PublishSeriesPayload{GroupID: groupID})
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask(tasks.TypePublishSeries, data)
}

func TestHandlePublishSeries(t *testing.T) {
	group := &entity.RecurrenceGroup{Frequency: "WEEKLY"}
	group.ID = uuid.New()
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	var rows []entity.ClassInstance
	for i := range 3 {
		c := entity.ClassInstance{Title: "Intro to Go", StartTime: start.AddDate(0, 0, 7*i), EndTime: start.AddDate(0, 0, 7*i).Add(time.Hour)}
		c.ID = uuid.New()
		rows = append(rows, c)
	}

	objects := &memObjects{}
	h := NewHandlers(&stubSeries{group: group, instances: rows}, service.NewICSExporter(time.UTC), objects)

	if err := h.HandlePublishSeries(context.Background(), publishTask(t, group.ID)); err != nil {
		t.Fatalf("HandlePublishSeries: %v", err)
	}
	if objects.key != service.SeriesObjectKey(group.ID) {
		t.Fatalf("key = %q", objects.key)
	}
	if objects.contentType != "text/calendar; charset=utf-8" {
		t.Fatalf("content type = %q", objects.contentType)
	}
	if n := strings.Count(string(objects.body), "BEGIN:VEVENT"); n != 3 {
		t.Fatalf("events = %d, want 3", n)
	}
	if !strings.Contains(string(objects.body), "X-WR-CALNAME:Intro to Go") {
		t.Fatalf("calendar name missing:\n%s", objects.body)
	}
}

func TestHandlePublishSeriesSkipsMissingGroup(t *testing.T) {
	objects := &memObjects{}
	h := NewHandlers(&stubSeries{}, service.NewICSExporter(time.UTC), objects)

	err := h.HandlePublishSeries(context.Background(), publishTask(t, uuid.New()))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
	if objects.key != "" {
		t.Fatalf("nothing should be uploaded")
	}
}

func TestHandlePublishSeriesRetriesUploadFailure(t *testing.T) {
	group := &entity.RecurrenceGroup{}
	group.ID = uuid.New()
	boom := errors.New("503 slow down")
	h := NewHandlers(&stubSeries{group: group}, service.NewICSExporter(time.UTC), &memObjects{err: boom})

	err := h.HandlePublishSeries(context.Background(), publishTask(t, group.ID))
	if !errors.Is(err, boom) || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want retryable %v", err, boom)
	}
}

func TestHandlePublishSeriesBadPayload(t *testing.T) {
	h := NewHandlers(&stubSeries{}, service.NewICSExporter(time.UTC), &memObjects{})
	err := h.HandlePublishSeries(context.Background(), asynq.NewTask(tasks.TypePublishSeries, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}
