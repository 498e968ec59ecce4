package entity

import (
	"classroom-api/core/entity"
	"slices"

	"github.com/lib/pq"
)

type User struct {
	Name   string         `db:"name" json:"name"`
	Email  string         `db:"email" json:"email"`
	ChatID *string        `db:"chat_id" json:"chat_id,omitempty"`
	Roles  pq.StringArray `db:"roles" json:"roles"`
	entity.BaseEntity
}

func (u *User) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(u.Roles, r) {
			return true
		}
	}
	return false
}
