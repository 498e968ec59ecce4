package service

import (
	"classroom-api/core/logger"
	"classroom-api/modules/calendar/entity"
	"context"
	"fmt"
)

type InstanceLister interface {
	ListInstances(ctx context.Context, rootEventID string) ([]entity.EventInstance, error)
}

type ExpanderInterface interface {
	Expand(ctx context.Context, root *entity.CalendarEvent, rule *entity.RecurrenceRule) ([]entity.EventInstance, error)
}

// RecurrenceExpander materializes a recurring root event into the concrete
// instances the provider generated for it.
type RecurrenceExpander struct {
	lister InstanceLister
}

func NewRecurrenceExpander(lister InstanceLister) *RecurrenceExpander {
	return &RecurrenceExpander{lister: lister}
}

// Expand trusts the provider's instance list; a count mismatch against the
// locally computed rule is only logged.
func (x *RecurrenceExpander) Expand(ctx context.Context, root *entity.CalendarEvent, rule *entity.RecurrenceRule) ([]entity.EventInstance, error) {
	if root == nil || root.ID == "" {
		return nil, fmt.Errorf("expand: root event has no id")
	}

	instances, err := x.lister.ListInstances(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", root.ID, err)
	}

	if rule != nil {
		expected, err := ExpectedOccurrences(rule, root.Start)
		if err != nil {
			logger.Warn("RecurrenceExpander:Expand:ExpectedOccurrences:Error", "error", err)
		} else if len(expected) != len(instances) {
			logger.Warn("RecurrenceExpander:Expand:CountMismatch",
				"event_id", root.ID,
				"provider_count", len(instances),
				"rule_count", len(expected),
			)
		}
	}

	root.Instances = instances
	return instances, nil
}
