package service

import (
	"classroom-api/core/errors"
	"classroom-api/core/logger"
	"classroom-api/core/params"
	calendarEntity "classroom-api/modules/calendar/entity"
	"classroom-api/modules/classes/dto"
	"classroom-api/modules/classes/entity"
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
)

var (
	errClassMissing = stdErrors.New("class not found")
	errClassEnded   = stdErrors.New("class has already ended")
	errClassFull    = stdErrors.New("class is full")
)

func (s *ClassService) Get(ctx context.Context, classID uuid.UUID) (*dto.ClassResponse, *errors.AppError) {
	class, appErr := s.findInstance(ctx, classID)
	if appErr != nil {
		return nil, appErr
	}
	return dto.ToClassResponse(class), nil
}

func (s *ClassService) ListUpcoming(ctx context.Context, from time.Time, params params.QueryParams) (*dto.PaginatedClassResponse, *errors.AppError) {
	if from.IsZero() {
		from = s.now()
	}
	page, err := s.store.ListUpcoming(ctx, from, params)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrPersistence, "failed to list classes", err)
	}
	return &dto.PaginatedClassResponse{
		Items:      dto.ToClassResponses(page.Items),
		TotalItems: page.TotalItems,
		TotalPages: page.TotalPages,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}, nil
}

// Register adds userID to the class, holding the class row lock while the
// enrolment limit is checked.
func (s *ClassService) Register(ctx context.Context, classID, userID uuid.UUID) (*dto.ClassResponse, *errors.AppError) {
	var added bool
	err := s.store.RunInTransaction(ctx, func(ctx context.Context, tx ClassTx) error {
		class, err := tx.LockInstance(ctx, classID)
		if err != nil {
			return err
		}
		if class == nil {
			return errClassMissing
		}
		if !class.EndTime.After(s.now()) {
			return errClassEnded
		}

		added, err = tx.AddRegistration(ctx, classID, userID)
		if err != nil || !added || class.MaxEnrolment == nil {
			return err
		}
		n, err := tx.CountRegistrations(ctx, classID)
		if err != nil {
			return err
		}
		if n > *class.MaxEnrolment {
			return errClassFull
		}
		return nil
	})
	switch {
	case stdErrors.Is(err, errClassMissing):
		return nil, errors.NewAppError(errors.ErrNotFound, "class not found", nil)
	case stdErrors.Is(err, errClassEnded):
		return nil, errors.NewAppError(errors.ErrValidation, "class has already ended", nil)
	case stdErrors.Is(err, errClassFull):
		return nil, errors.NewAppError(errors.ErrClassFull, "class has reached its enrolment limit", nil)
	case err != nil:
		logger.Error("ClassService:Register:Error", "class_id", classID, "user_id", userID, "error", err)
		return nil, errors.NewAppError(errors.ErrPersistence, "failed to register for class", err)
	}

	class, appErr := s.findInstance(ctx, classID)
	if appErr != nil {
		return nil, appErr
	}
	if added {
		s.syncAttendees(ctx, class)
		s.joinCohortRoom(ctx, class, userID)
	}
	return dto.ToClassResponse(class), nil
}

func (s *ClassService) Unregister(ctx context.Context, classID, userID uuid.UUID) *errors.AppError {
	removed, err := s.store.UnregisterUser(ctx, classID, userID)
	if err != nil {
		logger.Error("ClassService:Unregister:Error", "class_id", classID, "user_id", userID, "error", err)
		return errors.NewAppError(errors.ErrPersistence, "failed to unregister from class", err)
	}
	if !removed {
		return errors.NewAppError(errors.ErrNotFound, "registration not found", nil)
	}

	if class, err := s.store.FindInstanceByID(ctx, classID); err == nil && class != nil {
		s.syncAttendees(ctx, class)
	}
	return nil
}

// syncAttendees mirrors the registrant list onto the calendar event.
func (s *ClassService) syncAttendees(ctx context.Context, class *entity.ClassInstance) {
	if class.CalendarEventID == nil {
		return
	}
	attendees := []string{class.Facilitator().Email}
	attendees = append(attendees, s.attendeeEmails(ctx, class.RegisteredUserIDs())...)

	_, err := s.gateway.PatchEvent(ctx, *class.CalendarEventID, calendarEntity.EventPatch{Attendees: attendees})
	if err != nil {
		logger.Warn("ClassService:SyncAttendees:Error", "class_id", class.ID, "event_id", *class.CalendarEventID, "error", err)
	}
}

func (s *ClassService) joinCohortRoom(ctx context.Context, class *entity.ClassInstance, userID uuid.UUID) {
	if s.chat == nil || !class.Recurring() {
		return
	}
	group, err := s.store.FindGroupByID(ctx, *class.RecurringID)
	if err != nil || group == nil || group.CohortRoomID == nil {
		return
	}
	s.notifyChat("Register:AddUsers", s.chat.AddUsers(ctx, *group.CohortRoomID, userID), "room_id", *group.CohortRoomID)
}

// ExportICS renders the class, or its whole series, as an iCalendar file.
func (s *ClassService) ExportICS(ctx context.Context, classID uuid.UUID) ([]byte, *errors.AppError) {
	class, appErr := s.findInstance(ctx, classID)
	if appErr != nil {
		return nil, appErr
	}
	if !class.Recurring() {
		return s.exporter.Export(class.Title, []entity.ClassInstance{*class}), nil
	}

	instances, err := s.store.FindInstancesByGroupID(ctx, *class.RecurringID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrPersistence, "failed to load recurring class", err)
	}
	return s.exporter.Export(class.Title, instances), nil
}
