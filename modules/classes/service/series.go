package service

import (
	coreEntity "classroom-api/core/entity"
	"classroom-api/core/errors"
	"classroom-api/core/logger"
	calendarEntity "classroom-api/modules/calendar/entity"
	chatService "classroom-api/modules/chat/service"
	"classroom-api/modules/classes/dto"
	"classroom-api/modules/classes/entity"
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
)

var errGroupGone = stdErrors.New("recurring class no longer exists")

// materialize builds one row per calendar instance from the shared class
// fields. RecurringID is filled in once the group row exists.
func materialize(base entity.ClassInstance, instances []calendarEntity.EventInstance, meetLink string) []entity.ClassInstance {
	rows := make([]entity.ClassInstance, 0, len(instances))
	for _, inst := range instances {
		row := base
		row.BaseEntity = coreEntity.BaseEntity{}
		row.Registrations = nil
		row.StartTime = inst.Start
		row.EndTime = inst.End
		eventID := inst.ID
		row.CalendarEventID = &eventID
		if meetLink != "" {
			link := meetLink
			row.MeetLink = &link
		} else {
			row.MeetLink = nil
		}
		rows = append(rows, row)
	}
	return rows
}

func linkToGroup(rows []entity.ClassInstance, groupID uuid.UUID) {
	for i := range rows {
		id := groupID
		rows[i].RecurringID = &id
	}
}

// openCohortRoom creates the series chat room and invites the facilitator.
// Chat failures never block scheduling.
func (s *ClassService) openCohortRoom(ctx context.Context, title string, f facilitator) *string {
	if s.chat == nil {
		return nil
	}
	roomID, err := s.chat.CreateRoom(ctx, title, f.Name)
	if err != nil {
		if stdErrors.Is(err, chatService.ErrChatDisabled) {
			logger.Debug("ClassService:OpenCohortRoom:Skipped", "reason", err.Error())
		} else {
			logger.Warn("ClassService:OpenCohortRoom:Error", "title", title, "error", err)
		}
		return nil
	}
	if f.ID != nil {
		s.notifyChat("OpenCohortRoom:AddUsers", s.chat.AddUsers(ctx, roomID, *f.ID), "room_id", roomID)
		s.notifyChat("OpenCohortRoom:Welcome", s.chat.SendWelcomeMessage(ctx, roomID, *f.ID), "room_id", roomID)
	}
	return &roomID
}

// CreateSeries creates the root calendar event, expands it and stores the
// group with one row per instance.
//
// Compensation: a root event that cannot be expanded or persisted is left
// in the calendar and logged as an orphan.
func (s *ClassService) CreateSeries(ctx context.Context, req *dto.ClassRequest, rule *calendarEntity.RecurrenceRule, requesterID uuid.UUID) (*dto.SeriesResponse, *errors.AppError) {
	if rule == nil {
		return nil, errors.NewAppError(errors.ErrValidation, "recurrence is required", nil)
	}
	rule.Normalize()

	f, appErr := s.resolveFacilitator(ctx, req, requesterID)
	if appErr != nil {
		return nil, appErr
	}
	base := newInstance(req, f)
	if appErr := validateClass(&base); appErr != nil {
		return nil, appErr
	}
	if err := rule.Validate(s.now(), base.EndTime); err != nil {
		return nil, ruleError(err)
	}

	root, err := s.gateway.CreateEvent(ctx, calendarEntity.EventDetails{
		Title:       base.Title,
		Description: base.Description,
		Type:        base.Type,
		Start:       base.StartTime,
		End:         base.EndTime,
		Rule:        rule,
	}, f.person())
	if err != nil {
		logger.Error("ClassService:CreateSeries:CreateEvent:Error", "title", base.Title, "error", err)
		return nil, calendarError(errors.ErrCalendarCreateFailed, "failed to create calendar event", err)
	}

	instances, err := s.expander.Expand(ctx, root, rule)
	if err == nil && len(instances) == 0 {
		err = stdErrors.New("calendar returned no instances")
	}
	if err != nil {
		logger.Error("ClassService:CreateSeries:OrphanRoot", "event_id", root.ID, "step", "expand", "error", err)
		return nil, calendarError(errors.ErrCalendarCreateFailed, "failed to expand recurring event", err)
	}

	roomID := s.openCohortRoom(ctx, base.Title, f)

	group := entity.NewRecurrenceGroup(rule, root.ID, roomID)
	rows := materialize(base, instances, root.MeetLink)
	err = s.store.RunInTransaction(ctx, func(ctx context.Context, tx ClassTx) error {
		if err := tx.CreateGroup(ctx, group); err != nil {
			return err
		}
		linkToGroup(rows, group.ID)
		return tx.CreateInstances(ctx, rows)
	})
	if err != nil {
		logger.Error("ClassService:CreateSeries:OrphanRoot", "event_id", root.ID, "step", "persist", "error", err)
		return nil, persistenceError(err)
	}

	logger.Info("ClassService:CreateSeries:Done", "group_id", group.ID, "event_id", root.ID, "instances", len(rows))
	s.publish(ctx, group.ID)
	return dto.ToSeriesResponse(&entity.Series{Group: group, Instances: rows}), nil
}

// mergeSeries overlays the patch on the targeted class. Fields the patch
// leaves out, start and end included, come from that class.
func mergeSeries(target *entity.ClassInstance, req *dto.UpdateClassRequest) entity.ClassInstance {
	merged := *target
	applyPatch(&merged, req)
	return merged
}

// applyPatch sets the changed fields. Moving only the start keeps the
// class duration.
func applyPatch(c *entity.ClassInstance, req *dto.UpdateClassRequest) {
	if req.Title != nil {
		c.Title = *req.Title
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Type != nil {
		c.Type = entity.ClassType(*req.Type)
	}
	if req.Lang != nil {
		c.Lang = *req.Lang
	}
	if req.MaterialLink != nil {
		link := *req.MaterialLink
		c.MaterialLink = &link
	}
	if req.MaxEnrolment != nil {
		limit := *req.MaxEnrolment
		c.MaxEnrolment = &limit
	}

	duration := c.EndTime.Sub(c.StartTime)
	if req.StartTime != nil {
		c.StartTime = *req.StartTime
		c.EndTime = c.StartTime.Add(duration)
	}
	if req.EndTime != nil {
		c.EndTime = *req.EndTime
	}
}

func (s *ClassService) loadSeries(ctx context.Context, class *entity.ClassInstance) (*entity.RecurrenceGroup, []entity.ClassInstance, *errors.AppError) {
	if !class.Recurring() {
		return nil, nil, errors.NewAppError(errors.ErrValidation, "class is not part of a recurring series", nil)
	}
	group, err := s.store.FindGroupByID(ctx, *class.RecurringID)
	if err != nil {
		return nil, nil, errors.NewAppError(errors.ErrPersistence, "failed to load recurring class", err)
	}
	if group == nil {
		return nil, nil, errors.NewAppError(errors.ErrNotFound, "recurring class not found", nil)
	}
	instances, err := s.store.FindInstancesByGroupID(ctx, group.ID)
	if err != nil {
		return nil, nil, errors.NewAppError(errors.ErrPersistence, "failed to load recurring class", err)
	}
	return group, instances, nil
}

// UpdateSeries regenerates the whole series from the merged payload and
// re-registers every prior registrant on the new rows.
//
// Compensation: the old root is deleted best-effort before the new one is
// created; a new root that cannot be persisted is logged as an orphan; lost
// re-registrations are logged and never roll back the new series.
func (s *ClassService) UpdateSeries(ctx context.Context, classID uuid.UUID, req *dto.UpdateClassRequest, requesterID uuid.UUID) (*dto.SeriesResponse, *errors.AppError) {
	target, appErr := s.findInstance(ctx, classID)
	if appErr != nil {
		return nil, appErr
	}
	if appErr := s.authorize(ctx, target, requesterID); appErr != nil {
		return nil, appErr
	}
	group, current, appErr := s.loadSeries(ctx, target)
	if appErr != nil {
		return nil, appErr
	}

	registrants := UnionRegistrants(current)
	merged := mergeSeries(target, req)
	if appErr := validateClass(&merged); appErr != nil {
		return nil, appErr
	}

	rule := group.Rule()
	if req.Recurrence != nil {
		rule = req.Recurrence.ToRule()
	}
	if err := rule.Validate(s.now(), merged.EndTime); err != nil {
		return nil, ruleError(err)
	}

	if err := s.gateway.DeleteEvent(ctx, group.CalendarEventID); err != nil {
		logger.Warn("ClassService:UpdateSeries:DeleteOldRoot:Error", "event_id", group.CalendarEventID, "error", err)
	}

	root, err := s.gateway.CreateEvent(ctx, calendarEntity.EventDetails{
		Title:       merged.Title,
		Description: merged.Description,
		Type:        merged.Type,
		Start:       merged.StartTime,
		End:         merged.EndTime,
		Attendees:   s.attendeeEmails(ctx, registrants),
		Rule:        rule,
	}, merged.Facilitator())
	if err != nil {
		logger.Error("ClassService:UpdateSeries:CreateEvent:Error", "group_id", group.ID, "error", err)
		return nil, calendarError(errors.ErrCalendarUpdateFailed, "failed to recreate calendar event", err)
	}

	instances, err := s.expander.Expand(ctx, root, rule)
	if err == nil && len(instances) == 0 {
		err = stdErrors.New("calendar returned no instances")
	}
	if err != nil {
		logger.Error("ClassService:UpdateSeries:OrphanRoot", "event_id", root.ID, "step", "expand", "error", err)
		return nil, calendarError(errors.ErrCalendarUpdateFailed, "failed to expand recurring event", err)
	}

	newGroup := entity.NewRecurrenceGroup(rule, root.ID, group.CohortRoomID)
	rows := materialize(merged, instances, root.MeetLink)
	err = s.store.RunInTransaction(ctx, func(ctx context.Context, tx ClassTx) error {
		locked, err := tx.LockGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return errGroupGone
		}
		if _, err := tx.DeleteInstancesByGroup(ctx, group.ID); err != nil {
			return err
		}
		if err := tx.DeleteGroup(ctx, group.ID); err != nil {
			return err
		}
		if err := tx.CreateGroup(ctx, newGroup); err != nil {
			return err
		}
		linkToGroup(rows, newGroup.ID)
		return tx.CreateInstances(ctx, rows)
	})
	if err != nil {
		logger.Error("ClassService:UpdateSeries:OrphanRoot", "event_id", root.ID, "step", "persist", "error", err)
		if stdErrors.Is(err, errGroupGone) {
			return nil, errors.NewAppError(errors.ErrNotFound, "recurring class not found", err)
		}
		return nil, persistenceError(err)
	}

	if err := s.migrator.Migrate(ctx, newGroup.ID, rows, registrants); err == nil && len(registrants) > 0 {
		if fresh, err := s.store.FindInstancesByGroupID(ctx, newGroup.ID); err == nil {
			rows = fresh
		}
	}

	logger.Info("ClassService:UpdateSeries:Done",
		"old_group_id", group.ID,
		"group_id", newGroup.ID,
		"event_id", root.ID,
		"instances", len(rows),
		"registrants", len(registrants),
	)
	s.publish(ctx, newGroup.ID)
	return dto.ToSeriesResponse(&entity.Series{Group: newGroup, Instances: rows}), nil
}

// DeleteSeries removes the root event best-effort, then the group row
// together with its instances and registrations.
func (s *ClassService) DeleteSeries(ctx context.Context, classID uuid.UUID, requesterID uuid.UUID) *errors.AppError {
	target, appErr := s.findInstance(ctx, classID)
	if appErr != nil {
		return appErr
	}
	if appErr := s.authorize(ctx, target, requesterID); appErr != nil {
		return appErr
	}
	if !target.Recurring() {
		return errors.NewAppError(errors.ErrValidation, "class is not part of a recurring series", nil)
	}
	group, err := s.store.FindGroupByID(ctx, *target.RecurringID)
	if err != nil {
		return errors.NewAppError(errors.ErrPersistence, "failed to load recurring class", err)
	}
	if group == nil {
		return errors.NewAppError(errors.ErrNotFound, "recurring class not found", nil)
	}

	if err := s.gateway.DeleteEvent(ctx, group.CalendarEventID); err != nil {
		logger.Warn("ClassService:DeleteSeries:DeleteEvent:Error", "event_id", group.CalendarEventID, "error", err)
	}

	err = s.store.RunInTransaction(ctx, func(ctx context.Context, tx ClassTx) error {
		locked, err := tx.LockGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return errGroupGone
		}
		return tx.DeleteGroup(ctx, group.ID)
	})
	if err != nil {
		if stdErrors.Is(err, errGroupGone) {
			return errors.NewAppError(errors.ErrNotFound, "recurring class not found", err)
		}
		logger.Error("ClassService:DeleteSeries:Persist:Error", "group_id", group.ID, "error", err)
		return errors.NewAppError(errors.ErrPersistence, "failed to delete recurring class", err)
	}

	logger.Info("ClassService:DeleteSeries:Done", "group_id", group.ID, "event_id", group.CalendarEventID)
	return nil
}
