package service

import (
	"classroom-api/core/cache"
	"classroom-api/core/constants"
	"classroom-api/core/errors"
	"classroom-api/core/logger"
	"classroom-api/modules/auth/dto"
	"classroom-api/modules/auth/entity"
	"classroom-api/modules/auth/repository"
	"context"
	"fmt"

	"github.com/google/uuid"
)

type IdentityService struct {
	repo  repository.UserRepositoryInterface
	cache cache.Cache
}

type IdentityServiceInterface interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*dto.UserResponse, *errors.AppError)
	Logout(ctx context.Context, token string) *errors.AppError
}

func NewIdentityService(repo repository.UserRepositoryInterface, cache cache.Cache) *IdentityService {
	return &IdentityService{repo: repo, cache: cache}
}

// FindByID returns nil, nil when the user does not exist.
func (s *IdentityService) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultTimeout)
	defer cancel()

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return user, nil
}

func (s *IdentityService) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultTimeout)
	defer cancel()

	users, err := s.repo.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("find %d users: %w", len(ids), err)
	}
	if len(users) != len(ids) {
		logger.Warn("IdentityService:FindByIDs:Missing", "requested", len(ids), "found", len(users))
	}
	return users, nil
}

func (s *IdentityService) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultTimeout)
	defer cancel()

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (s *IdentityService) GetProfile(ctx context.Context, id uuid.UUID) (*dto.UserResponse, *errors.AppError) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		logger.Error("IdentityService:GetProfile:FindByID:Error", "error", err, "user_id", id)
		return nil, errors.NewAppError(errors.ErrInternalServer, "failed to load user", err)
	}
	if user == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "user not found", nil)
	}
	return dto.ToUserResponse(user), nil
}

func (s *IdentityService) Logout(ctx context.Context, token string) *errors.AppError {
	if err := s.cache.AddToTokenBlacklist(ctx, token); err != nil {
		logger.Error("IdentityService:Logout:AddToTokenBlacklist:Error", "error", err)
		return errors.NewAppError(errors.ErrInternalServer, "failed to revoke token", err)
	}
	return nil
}
