package service

import (
	"classroom-api/core/logger"
	"classroom-api/modules/classes/entity"
	"context"

	"github.com/google/uuid"
)

type registrationWriter interface {
	RegisterUsers(ctx context.Context, classIDs, userIDs []uuid.UUID) error
}

// RegistrationMigrator re-attaches prior registrants to regenerated rows.
// It runs after the series transaction has committed and is not retried.
type RegistrationMigrator struct {
	store registrationWriter
}

func NewRegistrationMigrator(store registrationWriter) *RegistrationMigrator {
	return &RegistrationMigrator{store: store}
}

func (m *RegistrationMigrator) Migrate(ctx context.Context, groupID uuid.UUID, instances []entity.ClassInstance, userIDs []uuid.UUID) error {
	if len(userIDs) == 0 || len(instances) == 0 {
		return nil
	}

	classIDs := make([]uuid.UUID, 0, len(instances))
	for _, c := range instances {
		classIDs = append(classIDs, c.ID)
	}

	if err := m.store.RegisterUsers(ctx, classIDs, userIDs); err != nil {
		logger.Error("RegistrationMigrator:Migrate:LostRegistrations",
			"group_id", groupID,
			"user_ids", userIDs,
			"classes", len(classIDs),
			"error", err,
		)
		return err
	}

	logger.Info("RegistrationMigrator:Migrate:Done", "group_id", groupID, "users", len(userIDs), "classes", len(classIDs))
	return nil
}

// UnionRegistrants returns each registered user once, in first-seen order.
func UnionRegistrants(instances []entity.ClassInstance) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, c := range instances {
		for _, r := range c.Registrations {
			if !seen[r.UserID] {
				seen[r.UserID] = true
				out = append(out, r.UserID)
			}
		}
	}
	return out
}
