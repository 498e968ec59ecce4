package service

import (
	"classroom-api/core/queue"
	"classroom-api/modules/classes/tasks"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// QueuePublisher hands series publication to the worker.
type QueuePublisher struct {
	queue queue.Enqueuer
}

func NewQueuePublisher(q queue.Enqueuer) *QueuePublisher {
	return &QueuePublisher{queue: q}
}

func (p *QueuePublisher) PublishSeries(ctx context.Context, groupID uuid.UUID) error {
	return p.queue.Enqueue(ctx, tasks.TypePublishSeries,
		tasks.PublishSeriesPayload{GroupID: groupID},
		asynq.TaskID("publish:"+groupID.String()), asynq.Retention(time.Hour), asynq.MaxRetry(5))
}

// SeriesObjectKey is where a series calendar file is stored.
func SeriesObjectKey(groupID uuid.UUID) string {
	return "classes/series/" + groupID.String() + ".ics"
}
