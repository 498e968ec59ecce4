package repository

import (
	"classroom-api/core/database"
	coreEntity "classroom-api/core/entity"
	"classroom-api/core/logger"
	"classroom-api/core/params"
	"classroom-api/modules/classes/entity"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ClassTx is the set of writes that must commit or roll back together.
type ClassTx interface {
	LockGroup(ctx context.Context, id uuid.UUID) (*entity.RecurrenceGroup, error)
	LockInstance(ctx context.Context, id uuid.UUID) (*entity.ClassInstance, error)
	CreateGroup(ctx context.Context, group *entity.RecurrenceGroup) error
	CreateInstances(ctx context.Context, instances []entity.ClassInstance) error
	DeleteInstancesByGroup(ctx context.Context, groupID uuid.UUID) (int64, error)
	DeleteGroup(ctx context.Context, id uuid.UUID) error
	UpdateInstance(ctx context.Context, class *entity.ClassInstance) error
	DeleteInstance(ctx context.Context, id uuid.UUID) error
	CountRegistrations(ctx context.Context, classID uuid.UUID) (int, error)
	AddRegistration(ctx context.Context, classID, userID uuid.UUID) (bool, error)
}

type ClassRepositoryInterface interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx ClassTx) error) error
	FindInstanceByID(ctx context.Context, id uuid.UUID) (*entity.ClassInstance, error)
	FindInstancesByGroupID(ctx context.Context, groupID uuid.UUID) ([]entity.ClassInstance, error)
	FindGroupByID(ctx context.Context, id uuid.UUID) (*entity.RecurrenceGroup, error)
	ListUpcoming(ctx context.Context, from time.Time, params params.QueryParams) (*coreEntity.Pagination[entity.ClassInstance], error)
	FindStartingBetween(ctx context.Context, from, to time.Time) ([]entity.ClassInstance, error)
	FindEndingBetween(ctx context.Context, from, to time.Time) ([]entity.ClassInstance, error)
	RegisterUsers(ctx context.Context, classIDs, userIDs []uuid.UUID) error
	UnregisterUser(ctx context.Context, classID, userID uuid.UUID) (bool, error)
}

type ClassRepository struct {
	DB database.Database
}

func NewClassRepository(db database.Database) *ClassRepository {
	return &ClassRepository{DB: db}
}

const classColumns = `id, title, description, type, lang, start_time, end_time,
	facilitator_id, facilitator_name, facilitator_email, calendar_event_id, meet_link,
	material_link, max_enrolment, recurring_id, created_at, updated_at`

const groupColumns = `id, frequency, on_days, occurrence, until, calendar_event_id,
	cohort_room_id, created_at, updated_at`

func (r *ClassRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx ClassTx) error) error {
	return r.DB.RunInTransaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return fn(ctx, &classTx{q: tx})
	})
}

// FindInstanceByID returns nil, nil when the class does not exist.
func (r *ClassRepository) FindInstanceByID(ctx context.Context, id uuid.UUID) (*entity.ClassInstance, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1`

	var class entity.ClassInstance
	if err := r.DB.GetContext(ctx, &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("ClassRepository:FindInstanceByID", err)
		return nil, err
	}

	classes := []entity.ClassInstance{class}
	if err := loadRegistrations(ctx, r.DB.SQLx(), classes); err != nil {
		return nil, err
	}
	return &classes[0], nil
}

func (r *ClassRepository) FindInstancesByGroupID(ctx context.Context, groupID uuid.UUID) ([]entity.ClassInstance, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE recurring_id = $1 ORDER BY start_time`

	var classes []entity.ClassInstance
	if err := r.DB.SelectContext(ctx, &classes, query, groupID); err != nil {
		logger.Error("ClassRepository:FindInstancesByGroupID", err)
		return nil, err
	}
	if err := loadRegistrations(ctx, r.DB.SQLx(), classes); err != nil {
		return nil, err
	}
	return classes, nil
}

func (r *ClassRepository) FindGroupByID(ctx context.Context, id uuid.UUID) (*entity.RecurrenceGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM recurring_classes WHERE id = $1`

	var group entity.RecurrenceGroup
	if err := r.DB.GetContext(ctx, &group, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("ClassRepository:FindGroupByID", err)
		return nil, err
	}
	return &group, nil
}

func (r *ClassRepository) ListUpcoming(ctx context.Context, from time.Time, params params.QueryParams) (*coreEntity.Pagination[entity.ClassInstance], error) {
	where := ` WHERE end_time >= $1 AND ($2 = '' OR title ILIKE '%' || $2 || '%')`

	var total int
	if err := r.DB.GetContext(ctx, &total, `SELECT COUNT(*) FROM classes`+where, from, params.Search); err != nil {
		logger.Error("ClassRepository:ListUpcoming:Count", err)
		return nil, err
	}

	query := `SELECT ` + classColumns + ` FROM classes` + where + ` ORDER BY start_time LIMIT $3 OFFSET $4`

	var classes []entity.ClassInstance
	if err := r.DB.SelectContext(ctx, &classes, query, from, params.Search, params.PageSize, params.Offset()); err != nil {
		logger.Error("ClassRepository:ListUpcoming", err)
		return nil, err
	}
	if err := loadRegistrations(ctx, r.DB.SQLx(), classes); err != nil {
		return nil, err
	}

	totalPages := 0
	if params.PageSize > 0 {
		totalPages = (total + params.PageSize - 1) / params.PageSize
	}
	return &coreEntity.Pagination[entity.ClassInstance]{
		Items:      classes,
		TotalItems: total,
		TotalPages: totalPages,
		PageNumber: params.PageNumber,
		PageSize:   params.PageSize,
	}, nil
}

func (r *ClassRepository) FindStartingBetween(ctx context.Context, from, to time.Time) ([]entity.ClassInstance, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE start_time >= $1 AND start_time < $2 ORDER BY start_time`

	var classes []entity.ClassInstance
	if err := r.DB.SelectContext(ctx, &classes, query, from, to); err != nil {
		logger.Error("ClassRepository:FindStartingBetween", err)
		return nil, err
	}
	return classes, nil
}

func (r *ClassRepository) FindEndingBetween(ctx context.Context, from, to time.Time) ([]entity.ClassInstance, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE end_time >= $1 AND end_time < $2 ORDER BY end_time`

	var classes []entity.ClassInstance
	if err := r.DB.SelectContext(ctx, &classes, query, from, to); err != nil {
		logger.Error("ClassRepository:FindEndingBetween", err)
		return nil, err
	}
	return classes, nil
}

// RegisterUsers registers every user on every class in one transaction,
// skipping pairs that already exist.
func (r *ClassRepository) RegisterUsers(ctx context.Context, classIDs, userIDs []uuid.UUID) error {
	if len(classIDs) == 0 || len(userIDs) == 0 {
		return nil
	}

	query := `
		INSERT INTO class_registrations (user_id, class_id, registered_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, class_id) DO NOTHING
	`
	return r.DB.RunInTransaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		for _, classID := range classIDs {
			for _, userID := range userIDs {
				if _, err := tx.ExecContext(ctx, query, userID, classID); err != nil {
					logger.Error("ClassRepository:RegisterUsers", "class_id", classID, "user_id", userID, "error", err)
					return err
				}
			}
		}
		return nil
	})
}

// UnregisterUser reports whether a registration was removed.
func (r *ClassRepository) UnregisterUser(ctx context.Context, classID, userID uuid.UUID) (bool, error) {
	query := `DELETE FROM class_registrations WHERE class_id = $1 AND user_id = $2`

	result, err := r.DB.SQLx().ExecContext(ctx, query, classID, userID)
	if err != nil {
		logger.Error("ClassRepository:UnregisterUser", err)
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func loadRegistrations(ctx context.Context, q database.Queryer, classes []entity.ClassInstance) error {
	if len(classes) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(classes))
	index := make(map[uuid.UUID]int, len(classes))
	for i, c := range classes {
		ids[i] = c.ID
		index[c.ID] = i
	}

	query := `
		SELECT user_id, class_id, registered_at
		FROM class_registrations
		WHERE class_id = ANY($1::uuid[])
		ORDER BY registered_at
	`
	var regs []entity.Registration
	if err := q.SelectContext(ctx, &regs, query, pq.Array(database.UUIDStrings(ids))); err != nil {
		logger.Error("ClassRepository:loadRegistrations", err)
		return err
	}
	for _, reg := range regs {
		if i, ok := index[reg.ClassID]; ok {
			classes[i].Registrations = append(classes[i].Registrations, reg)
		}
	}
	return nil
}

type classTx struct {
	q database.Queryer
}

func (t *classTx) LockGroup(ctx context.Context, id uuid.UUID) (*entity.RecurrenceGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM recurring_classes WHERE id = $1 FOR UPDATE`

	var group entity.RecurrenceGroup
	if err := t.q.GetContext(ctx, &group, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

func (t *classTx) LockInstance(ctx context.Context, id uuid.UUID) (*entity.ClassInstance, error) {
	query := `SELECT ` + classColumns + ` FROM classes WHERE id = $1 FOR UPDATE`

	var class entity.ClassInstance
	if err := t.q.GetContext(ctx, &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &class, nil
}

func (t *classTx) CreateGroup(ctx context.Context, group *entity.RecurrenceGroup) error {
	query := `
		INSERT INTO recurring_classes (frequency, on_days, occurrence, until, calendar_event_id, cohort_room_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := t.q.QueryRowxContext(ctx, query,
		group.Frequency, group.OnDays, group.Occurrence, group.Until, group.CalendarEventID, group.CohortRoomID,
	).Scan(&group.ID, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		logger.Error("ClassRepository:CreateGroup", err)
		return fmt.Errorf("insert recurring class: %w", err)
	}
	return nil
}

// CreateInstances inserts every row and fills in the generated ids.
func (t *classTx) CreateInstances(ctx context.Context, instances []entity.ClassInstance) error {
	query := `
		INSERT INTO classes (title, description, type, lang, start_time, end_time,
			facilitator_id, facilitator_name, facilitator_email, calendar_event_id, meet_link,
			material_link, max_enrolment, recurring_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at
	`
	for i := range instances {
		c := &instances[i]
		err := t.q.QueryRowxContext(ctx, query,
			c.Title, c.Description, c.Type, c.Lang, c.StartTime, c.EndTime,
			c.FacilitatorID, c.FacilitatorName, c.FacilitatorEmail, c.CalendarEventID, c.MeetLink,
			c.MaterialLink, c.MaxEnrolment, c.RecurringID,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			logger.Error("ClassRepository:CreateInstances", "index", i, "error", err)
			return fmt.Errorf("insert class %d of %d: %w", i+1, len(instances), err)
		}
	}
	return nil
}

func (t *classTx) DeleteInstancesByGroup(ctx context.Context, groupID uuid.UUID) (int64, error) {
	result, err := t.q.ExecContext(ctx, `DELETE FROM classes WHERE recurring_id = $1`, groupID)
	if err != nil {
		logger.Error("ClassRepository:DeleteInstancesByGroup", err)
		return 0, err
	}
	return result.RowsAffected()
}

func (t *classTx) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	result, err := t.q.ExecContext(ctx, `DELETE FROM recurring_classes WHERE id = $1`, id)
	if err != nil {
		logger.Error("ClassRepository:DeleteGroup", err)
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *classTx) UpdateInstance(ctx context.Context, class *entity.ClassInstance) error {
	query := `
		UPDATE classes SET
			title = :title,
			description = :description,
			type = :type,
			lang = :lang,
			start_time = :start_time,
			end_time = :end_time,
			facilitator_id = :facilitator_id,
			facilitator_name = :facilitator_name,
			facilitator_email = :facilitator_email,
			meet_link = :meet_link,
			material_link = :material_link,
			max_enrolment = :max_enrolment,
			updated_at = NOW()
		WHERE id = :id
	`
	result, err := t.q.NamedExecContext(ctx, query, class)
	if err != nil {
		logger.Error("ClassRepository:UpdateInstance", err)
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *classTx) DeleteInstance(ctx context.Context, id uuid.UUID) error {
	result, err := t.q.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		logger.Error("ClassRepository:DeleteInstance", err)
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (t *classTx) CountRegistrations(ctx context.Context, classID uuid.UUID) (int, error) {
	var n int
	if err := t.q.GetContext(ctx, &n, `SELECT COUNT(*) FROM class_registrations WHERE class_id = $1`, classID); err != nil {
		return 0, err
	}
	return n, nil
}

// AddRegistration reports false when the user was already registered.
func (t *classTx) AddRegistration(ctx context.Context, classID, userID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO class_registrations (user_id, class_id, registered_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, class_id) DO NOTHING
	`
	result, err := t.q.ExecContext(ctx, query, userID, classID)
	if err != nil {
		logger.Error("ClassRepository:AddRegistration", err)
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
