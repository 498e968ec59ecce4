package repository

import (
	"classroom-api/core/database"
	"classroom-api/core/logger"
	"classroom-api/modules/auth/entity"
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type UserRepository struct {
	DB database.Database
}

func NewUserRepository(db database.Database) *UserRepository {
	return &UserRepository{DB: db}
}

type UserRepositoryInterface interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.User, error)
	GetUserByEmail(ctx context.Context, email string) (*entity.User, error)
}

const userColumns = `id, name, email, chat_id, roles, created_at, updated_at`

func (r *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user entity.User
	if err := r.DB.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("UserRepository:GetUserByID", err)
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.User, error) {
	if len(ids) == 0 {
		return []entity.User{}, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[]) ORDER BY name`

	var users []entity.User
	if err := r.DB.SelectContext(ctx, &users, query, pq.Array(database.UUIDStrings(ids))); err != nil {
		logger.Error("UserRepository:GetUsersByIDs", err)
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`

	var user entity.User
	if err := r.DB.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("UserRepository:GetUserByEmail", err)
		return nil, err
	}
	return &user, nil
}
