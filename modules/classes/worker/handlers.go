package worker

import (
	"classroom-api/core/queue"
	"classroom-api/core/storage"
	"classroom-api/modules/classes/entity"
	"classroom-api/modules/classes/service"
	"classroom-api/modules/classes/tasks"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type SeriesLoader interface {
	FindGroupByID(ctx context.Context, id uuid.UUID) (*entity.RecurrenceGroup, error)
	FindInstancesByGroupID(ctx context.Context, groupID uuid.UUID) ([]entity.ClassInstance, error)
}

type Handlers struct {
	series   SeriesLoader
	exporter *service.ICSExporter
	objects  storage.ObjectStore
}

func NewHandlers(series SeriesLoader, exporter *service.ICSExporter, objects storage.ObjectStore) *Handlers {
	return &Handlers{series: series, exporter: exporter, objects: objects}
}

func (h *Handlers) Register(w *queue.Worker) {
	w.Handle(tasks.TypePublishSeries, h.HandlePublishSeries)
}

// HandlePublishSeries uploads the series calendar file. A series replaced
// or deleted since the task was queued is skipped.
func (h *Handlers) HandlePublishSeries(ctx context.Context, task *asynq.Task) error {
	var p tasks.PublishSeriesPayload
	if err := queue.Decode(task, &p); err != nil {
		return err
	}

	group, err := h.series.FindGroupByID(ctx, p.GroupID)
	if err != nil {
		return err
	}
	if group == nil {
		return fmt.Errorf("publish series %s: %w", p.GroupID, asynq.SkipRetry)
	}

	instances, err := h.series.FindInstancesByGroupID(ctx, group.ID)
	if err != nil {
		return err
	}
	name := group.ID.String()
	if len(instances) > 0 {
		name = instances[0].Title
	}

	body := h.exporter.Export(name, instances)
	return h.objects.Put(ctx, service.SeriesObjectKey(group.ID), body, "text/calendar; charset=utf-8")
}
