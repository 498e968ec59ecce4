package service

import (
	"classroom-api/core/config"
	"context"
	"fmt"
	"strings"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"
)

const (
	visibilityPrivate = "private"
	presetPrivateChat = "private_chat"
)

type RoomSpec struct {
	Alias string
	Name  string
	Topic string
}

// RoomClient is the subset of the chat homeserver API the platform uses.
type RoomClient interface {
	CreateRoom(ctx context.Context, spec RoomSpec) (string, error)
	Invite(ctx context.Context, roomID, userRef string) error
	SendText(ctx context.Context, roomID, text string) error
}

type MatrixClient struct {
	client *mautrix.Client
}

func NewMatrixClient(cfg config.MatrixConfig) (*MatrixClient, error) {
	client, err := mautrix.NewClient(cfg.HomeserverURL, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("matrix client: %w", err)
	}
	return &MatrixClient{client: client}, nil
}

// UserRef turns a stored chat id into a full Matrix user id.
func UserRef(chatID, domain string) string {
	if strings.HasPrefix(chatID, "@") {
		return chatID
	}
	return string(id.NewUserID(chatID, domain))
}

func (m *MatrixClient) CreateRoom(ctx context.Context, spec RoomSpec) (string, error) {
	resp, err := m.client.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Visibility:    visibilityPrivate,
		Preset:        presetPrivateChat,
		RoomAliasName: spec.Alias,
		Name:          spec.Name,
		Topic:         spec.Topic,
	})
	if err != nil {
		return "", err
	}
	return string(resp.RoomID), nil
}

func (m *MatrixClient) Invite(ctx context.Context, roomID, userRef string) error {
	_, err := m.client.InviteUser(ctx, id.RoomID(roomID), &mautrix.ReqInviteUser{UserID: id.UserID(userRef)})
	return err
}

func (m *MatrixClient) SendText(ctx context.Context, roomID, text string) error {
	_, err := m.client.SendText(ctx, id.RoomID(roomID), text)
	return err
}
