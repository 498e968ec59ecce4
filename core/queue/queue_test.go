package queue

import (
	"errors"
	"testing"

	"github.com/hibiken/asynq"
)

func TestDecode(t *testing.T) {
	var dest struct {
		RoomID string `json:"room_id"`
	}
	task := asynq.NewTask("chat:welcome", []byte(`{"room_id":"!abc:example.org"}`))
	if err := Decode(task, &dest); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dest.RoomID != "!abc:example.org" {
		t.Fatalf("room id = %q", dest.RoomID)
	}
}

func TestDecodeMalformedSkipsRetry(t *testing.T) {
	var dest map[string]string
	err := Decode(asynq.NewTask("chat:welcome", []byte("{")), &dest)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}
