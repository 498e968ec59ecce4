package service

import (
	"classroom-api/core/constants"
	"classroom-api/core/errors"
	"classroom-api/core/logger"
	"classroom-api/core/params"
	authEntity "classroom-api/modules/auth/entity"
	calendarEntity "classroom-api/modules/calendar/entity"
	calendarService "classroom-api/modules/calendar/service"
	chatTasks "classroom-api/modules/chat/tasks"
	"classroom-api/modules/classes/dto"
	"classroom-api/modules/classes/entity"
	"classroom-api/modules/classes/repository"
	"context"
	stdErrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type (
	ClassStore = repository.ClassRepositoryInterface
	ClassTx    = repository.ClassTx
)

type IdentityResolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*authEntity.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]authEntity.User, error)
}

// ChatNotifier is fire-and-forget apart from CreateRoom.
type ChatNotifier interface {
	CreateRoom(ctx context.Context, title, facilitatorName string) (string, error)
	AddUsers(ctx context.Context, roomID string, userIDs ...uuid.UUID) error
	SendWelcomeMessage(ctx context.Context, roomID string, userID uuid.UUID) error
	SendClassReminder(ctx context.Context, notice chatTasks.ClassNoticePayload) error
	SendClassFeedback(ctx context.Context, notice chatTasks.ClassNoticePayload) error
}

// SeriesPublisher schedules export of a series calendar file.
type SeriesPublisher interface {
	PublishSeries(ctx context.Context, groupID uuid.UUID) error
}

type ClassServiceInterface interface {
	CreateSeries(ctx context.Context, req *dto.ClassRequest, rule *calendarEntity.RecurrenceRule, requesterID uuid.UUID) (*dto.SeriesResponse, *errors.AppError)
	UpdateSeries(ctx context.Context, classID uuid.UUID, req *dto.UpdateClassRequest, requesterID uuid.UUID) (*dto.SeriesResponse, *errors.AppError)
	DeleteSeries(ctx context.Context, classID uuid.UUID, requesterID uuid.UUID) *errors.AppError
	CreateSingle(ctx context.Context, req *dto.ClassRequest, requesterID uuid.UUID) (*dto.ClassResponse, *errors.AppError)
	UpdateSingle(ctx context.Context, classID uuid.UUID, req *dto.UpdateClassRequest, requesterID uuid.UUID) (*dto.ClassResponse, *errors.AppError)
	DeleteSingle(ctx context.Context, classID uuid.UUID, requesterID uuid.UUID) *errors.AppError
	Get(ctx context.Context, classID uuid.UUID) (*dto.ClassResponse, *errors.AppError)
	ListUpcoming(ctx context.Context, from time.Time, params params.QueryParams) (*dto.PaginatedClassResponse, *errors.AppError)
	Register(ctx context.Context, classID, userID uuid.UUID) (*dto.ClassResponse, *errors.AppError)
	Unregister(ctx context.Context, classID, userID uuid.UUID) *errors.AppError
	ExportICS(ctx context.Context, classID uuid.UUID) ([]byte, *errors.AppError)
}

type ClassService struct {
	store     ClassStore
	gateway   calendarService.GatewayInterface
	expander  calendarService.ExpanderInterface
	identity  IdentityResolver
	chat      ChatNotifier
	publisher SeriesPublisher
	migrator  *RegistrationMigrator
	exporter  *ICSExporter
	now       func() time.Time
}

type Dependencies struct {
	Store     ClassStore
	Gateway   calendarService.GatewayInterface
	Expander  calendarService.ExpanderInterface
	Identity  IdentityResolver
	Chat      ChatNotifier
	Publisher SeriesPublisher
	Exporter  *ICSExporter
}

func NewClassService(deps Dependencies) *ClassService {
	exporter := deps.Exporter
	if exporter == nil {
		exporter = NewICSExporter(time.UTC)
	}
	return &ClassService{
		store:     deps.Store,
		gateway:   deps.Gateway,
		expander:  deps.Expander,
		identity:  deps.Identity,
		chat:      deps.Chat,
		publisher: deps.Publisher,
		migrator:  NewRegistrationMigrator(deps.Store),
		exporter:  exporter,
		now:       time.Now,
	}
}

func (s *ClassService) requester(ctx context.Context, id uuid.UUID) (*authEntity.User, *errors.AppError) {
	user, err := s.identity.FindByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load user", err)
	}
	if user == nil {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "user not found", nil)
	}
	return user, nil
}

// authorize allows the class facilitator and elevated roles.
func (s *ClassService) authorize(ctx context.Context, class *entity.ClassInstance, requesterID uuid.UUID) *errors.AppError {
	user, appErr := s.requester(ctx, requesterID)
	if appErr != nil {
		return appErr
	}
	if user.HasAnyRole(constants.RoleAdmin, constants.RoleClassAdmin) || class.IsFacilitator(user.ID, user.Email) {
		return nil
	}
	logger.Warn("ClassService:Authorize:Denied", "class_id", class.ID, "user_id", user.ID)
	return errors.NewAppError(errors.ErrForbidden, "only the facilitator or an admin can change this class", nil)
}

type facilitator struct {
	ID    *uuid.UUID
	Name  string
	Email string
}

func (f facilitator) person() calendarEntity.Person {
	return calendarEntity.Person{Name: f.Name, Email: f.Email}
}

// resolveFacilitator prefers an explicit user id, then an explicit name and
// email, then the requester.
func (s *ClassService) resolveFacilitator(ctx context.Context, req *dto.ClassRequest, requesterID uuid.UUID) (facilitator, *errors.AppError) {
	if req.FacilitatorID != nil {
		user, err := s.identity.FindByID(ctx, *req.FacilitatorID)
		if err != nil {
			return facilitator{}, errors.NewAppError(errors.ErrInternalServer, "failed to load facilitator", err)
		}
		if user == nil {
			return facilitator{}, errors.NewAppError(errors.ErrValidation, "facilitator not found", nil)
		}
		return facilitator{ID: &user.ID, Name: user.Name, Email: user.Email}, nil
	}

	name, email := strings.TrimSpace(req.FacilitatorName), strings.TrimSpace(req.FacilitatorEmail)
	if name != "" || email != "" {
		if name == "" || email == "" {
			return facilitator{}, errors.NewAppError(errors.ErrValidation, "facilitator_name and facilitator_email must be sent together", nil)
		}
		return facilitator{Name: name, Email: email}, nil
	}

	user, appErr := s.requester(ctx, requesterID)
	if appErr != nil {
		return facilitator{}, appErr
	}
	return facilitator{ID: &user.ID, Name: user.Name, Email: user.Email}, nil
}

func newInstance(req *dto.ClassRequest, f facilitator) entity.ClassInstance {
	lang := req.Lang
	if lang == "" {
		lang = entity.LangEnglish
	}
	c := entity.ClassInstance{
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Type:          entity.ClassType(req.Type),
		Lang:          lang,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		FacilitatorID: f.ID,
		MaxEnrolment:  req.MaxEnrolment,
	}
	if f.Name != "" {
		c.FacilitatorName = &f.Name
	}
	if f.Email != "" {
		c.FacilitatorEmail = &f.Email
	}
	if req.MaterialLink != "" {
		link := req.MaterialLink
		c.MaterialLink = &link
	}
	return c
}

func validateClass(c *entity.ClassInstance) *errors.AppError {
	if c.Title == "" {
		return errors.NewAppError(errors.ErrValidation, "title is required", nil)
	}
	if !c.Type.Valid() {
		return errors.NewAppError(errors.ErrValidation, "type must be one of workshop, doubt_class, cohort", nil)
	}
	if !entity.ValidLang(c.Lang) {
		return errors.NewAppError(errors.ErrValidation, "lang must be one of hi, en, te, ta", nil)
	}
	if !c.EndTime.After(c.StartTime) {
		return errors.NewAppError(errors.ErrValidation, "end_time must be after start_time", nil)
	}
	return nil
}

func ruleError(err error) *errors.AppError {
	var re *calendarEntity.RuleError
	if stdErrors.As(err, &re) {
		return errors.NewAppError(errors.ErrValidation, re.Error(), err)
	}
	return errors.NewAppError(errors.ErrValidation, "invalid recurrence", err)
}

// calendarError keeps code and only refines the message when every
// credential failed.
func calendarError(code errors.ErrorCode, message string, err error) *errors.AppError {
	if stdErrors.Is(err, calendarService.ErrCalendarUnavailable) || stdErrors.Is(err, calendarService.ErrNoProviders) {
		message = "calendar is unavailable, try again later"
	}
	return errors.NewAppError(code, message, err)
}

func persistenceError(err error) *errors.AppError {
	return errors.NewAppError(errors.ErrPersistence, "failed to save class", err)
}

func (s *ClassService) findInstance(ctx context.Context, id uuid.UUID) (*entity.ClassInstance, *errors.AppError) {
	class, err := s.store.FindInstanceByID(ctx, id)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrPersistence, "failed to load class", err)
	}
	if class == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "class not found", nil)
	}
	return class, nil
}

// attendeeEmails resolves registrant emails for calendar invites.
func (s *ClassService) attendeeEmails(ctx context.Context, userIDs []uuid.UUID) []string {
	if len(userIDs) == 0 {
		return nil
	}
	users, err := s.identity.FindByIDs(ctx, userIDs)
	if err != nil {
		logger.Error("ClassService:AttendeeEmails:Error", "count", len(userIDs), "error", err)
		return nil
	}
	emails := make([]string, 0, len(users))
	for _, u := range users {
		emails = append(emails, u.Email)
	}
	return emails
}

func (s *ClassService) publish(ctx context.Context, groupID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSeries(ctx, groupID); err != nil {
		logger.Warn("ClassService:PublishSeries:Error", "group_id", groupID, "error", err)
	}
}

func (s *ClassService) notifyChat(op string, err error, kv ...any) {
	if err == nil {
		return
	}
	args := append(kv, "error", err)
	logger.Warn("ClassService:"+op+":Chat:Error", args...)
}
