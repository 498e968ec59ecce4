package dto

import "classroom-api/modules/auth/entity"

type UserResponse struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	ChatID string   `json:"chat_id,omitempty"`
	Roles  []string `json:"roles"`
}

func ToUserResponse(u *entity.User) *UserResponse {
	resp := &UserResponse{
		ID:    u.ID.String(),
		Name:  u.Name,
		Email: u.Email,
		Roles: []string(u.Roles),
	}
	if u.ChatID != nil {
		resp.ChatID = *u.ChatID
	}
	if resp.Roles == nil {
		resp.Roles = []string{}
	}
	return resp
}
