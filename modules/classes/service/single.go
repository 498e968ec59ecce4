package service

import (
	"classroom-api/core/errors"
	"classroom-api/core/logger"
	calendarEntity "classroom-api/modules/calendar/entity"
	"classroom-api/modules/classes/dto"
	"classroom-api/modules/classes/entity"
	"context"
	"database/sql"
	stdErrors "errors"

	"github.com/google/uuid"
)

// CreateSingle schedules a standalone class with its own calendar event.
func (s *ClassService) CreateSingle(ctx context.Context, req *dto.ClassRequest, requesterID uuid.UUID) (*dto.ClassResponse, *errors.AppError) {
	f, appErr := s.resolveFacilitator(ctx, req, requesterID)
	if appErr != nil {
		return nil, appErr
	}
	class := newInstance(req, f)
	if appErr := validateClass(&class); appErr != nil {
		return nil, appErr
	}

	event, err := s.gateway.CreateEvent(ctx, calendarEntity.EventDetails{
		Title:       class.Title,
		Description: class.Description,
		Type:        class.Type,
		Start:       class.StartTime,
		End:         class.EndTime,
	}, f.person())
	if err != nil {
		logger.Error("ClassService:CreateSingle:CreateEvent:Error", "title", class.Title, "error", err)
		return nil, calendarError(errors.ErrCalendarCreateFailed, "failed to create calendar event", err)
	}

	class.CalendarEventID = &event.ID
	if event.MeetLink != "" {
		class.MeetLink = &event.MeetLink
	}

	rows := []entity.ClassInstance{class}
	err = s.store.RunInTransaction(ctx, func(ctx context.Context, tx ClassTx) error {
		return tx.CreateInstances(ctx, rows)
	})
	if err != nil {
		logger.Error("ClassService:CreateSingle:OrphanEvent", "event_id", event.ID, "error", err)
		return nil, persistenceError(err)
	}

	logger.Info("ClassService:CreateSingle:Done", "class_id", rows[0].ID, "event_id", event.ID)
	return dto.ToClassResponse(&rows[0]), nil
}

func eventPatch(req *dto.UpdateClassRequest, updated *entity.ClassInstance) calendarEntity.EventPatch {
	var patch calendarEntity.EventPatch
	if req.Title != nil {
		patch.Title = &updated.Title
	}
	if req.Description != nil {
		patch.Description = &updated.Description
	}
	if req.StartTime != nil || req.EndTime != nil {
		patch.Start = &updated.StartTime
		patch.End = &updated.EndTime
	}
	return patch
}

// UpdateSingle changes one class. The calendar patch is best-effort; the
// stored row is the source of truth.
func (s *ClassService) UpdateSingle(ctx context.Context, classID uuid.UUID, req *dto.UpdateClassRequest, requesterID uuid.UUID) (*dto.ClassResponse, *errors.AppError) {
	class, appErr := s.findInstance(ctx, classID)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := s.authorize(ctx, class, requesterID); appErr != nil {
		return nil, appErr
	}

	updated := *class
	applyPatch(&updated, req)
	if appErr := validateClass(&updated); appErr != nil {
		return nil, appErr
	}

	if updated.CalendarEventID != nil {
		patch := eventPatch(req, &updated)
		if patch.Title != nil || patch.Description != nil || patch.Start != nil {
			if _, err := s.gateway.PatchEvent(ctx, *updated.CalendarEventID, patch); err != nil {
				logger.Warn("ClassService:UpdateSingle:PatchEvent:Error", "event_id", *updated.CalendarEventID, "error", err)
			}
		}
	}

	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx ClassTx) error {
		return tx.UpdateInstance(ctx, &updated)
	})
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewAppError(errors.ErrNotFound, "class not found", err)
		}
		logger.Error("ClassService:UpdateSingle:Persist:Error", "class_id", classID, "error", err)
		return nil, persistenceError(err)
	}

	return dto.ToClassResponse(&updated), nil
}

// DeleteSingle removes one class after checking the requester may do so.
func (s *ClassService) DeleteSingle(ctx context.Context, classID uuid.UUID, requesterID uuid.UUID) *errors.AppError {
	class, appErr := s.findInstance(ctx, classID)
	if appErr != nil {
		return appErr
	}
	if appErr := s.authorize(ctx, class, requesterID); appErr != nil {
		return appErr
	}

	if class.CalendarEventID != nil {
		if err := s.gateway.DeleteEvent(ctx, *class.CalendarEventID); err != nil {
			logger.Warn("ClassService:DeleteSingle:DeleteEvent:Error", "event_id", *class.CalendarEventID, "error", err)
		}
	}

	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx ClassTx) error {
		return tx.DeleteInstance(ctx, classID)
	})
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return errors.NewAppError(errors.ErrNotFound, "class not found", err)
		}
		logger.Error("ClassService:DeleteSingle:Persist:Error", "class_id", classID, "error", err)
		return errors.NewAppError(errors.ErrPersistence, "failed to delete class", err)
	}

	logger.Info("ClassService:DeleteSingle:Done", "class_id", classID)
	return nil
}
