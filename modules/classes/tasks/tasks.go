package tasks

import "github.com/google/uuid"

const TypePublishSeries = "series:publish_ics"

type PublishSeriesPayload struct {
	GroupID uuid.UUID `json:"group_id"`
}
